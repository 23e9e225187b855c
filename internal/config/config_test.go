package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string {
		return vars[key]
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(nil, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "./tests", cfg.TestDir)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.FullyParallel)
	assert.False(t, cfg.ForbidOnly)
	assert.Equal(t, 0, cfg.Retries)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.Equal(t, []string{"html"}, cfg.Reporters())
	assert.Equal(t, "https://www.youtube.com", cfg.BaseURL)
	assert.Equal(t, "on-first-retry", cfg.Trace)
	assert.Equal(t, "on-first-retry", cfg.Video)
	assert.Equal(t, "only-on-failure", cfg.Screenshot)
	assert.False(t, cfg.Headless)
	assert.False(t, cfg.CI)
	assert.NoError(t, cfg.Validate())
}

func TestCIDefaults(t *testing.T) {
	cfg, err := Load(nil, env(map[string]string{"CI": "true"}))
	require.NoError(t, err)

	assert.True(t, cfg.CI)
	assert.True(t, cfg.ForbidOnly)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 1, cfg.Workers)
}

func TestFlagsOverrideCI(t *testing.T) {
	cfg, err := Load([]string{"--retries", "0", "--workers=4", "--reporter", "list,json"}, env(map[string]string{"CI": "1"}))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Retries)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.ForbidOnly)
	assert.Equal(t, []string{"list", "json"}, cfg.Reporters())
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ytflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
testDir: ./tests/youtube
timeout: 45000
retries: 1
workers: 3
reporter: json
use:
  baseURL: http://127.0.0.1:4000
  headless: true
  trace: retain-on-failure
natsURL: nats://127.0.0.1:4222
`), 0644))

	cfg, err := Load([]string{"--config", path, "--workers", "2"}, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "./tests/youtube", cfg.TestDir)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.Retries)
	assert.Equal(t, 2, cfg.Workers, "flags win over the file")
	assert.Equal(t, "json", cfg.Reporter)
	assert.Equal(t, "http://127.0.0.1:4000", cfg.BaseURL)
	assert.True(t, cfg.Headless)
	assert.Equal(t, "retain-on-failure", cfg.Trace)
	assert.Equal(t, "on-first-retry", cfg.Video)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NatsURL)
}

func TestParseFileTimeout(t *testing.T) {
	f, err := ParseFile([]byte("timeout: 1m30s\n"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, f.timeout)

	_, err = ParseFile([]byte("timeout: soon\n"))
	assert.Error(t, err)

	_, err = ParseFile([]byte("retries: [1\n"))
	assert.Error(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, env(nil))
	assert.Error(t, err)
}

func TestUnknownFlag(t *testing.T) {
	_, err := Load([]string{"--nope"}, env(nil))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 0
	cfg.Retries = -1
	cfg.Reporter = "list,junit"
	cfg.Trace = "sometimes"
	cfg.Screenshot = "on-first-retry"
	cfg.Engine = "webkit"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"workers", "retries", `"junit"`, `"sometimes"`, "screenshot", `"webkit"`} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadCredentials(t *testing.T) {
	creds := LoadCredentials(env(nil))
	assert.Equal(t, PlaceholderEmail, creds.Email)
	assert.Equal(t, PlaceholderPassword, creds.Password)
	assert.True(t, creds.IsPlaceholder())

	creds = LoadCredentials(env(map[string]string{
		"YOUTUBE_EMAIL":    "qa@example.org",
		"YOUTUBE_PASSWORD": "s3cret",
	}))
	assert.Equal(t, Credentials{Email: "qa@example.org", Password: "s3cret"}, creds)
	assert.False(t, creds.IsPlaceholder())
}
