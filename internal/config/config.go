package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Version is the current version of ytflow
	Version = "1"
	// AppName is the application name
	AppName = "ytflow"
)

// Credential placeholders used when the environment does not provide an account.
const (
	PlaceholderEmail    = "your_email@example.com"
	PlaceholderPassword = "your_password"
)

// Config holds all run options
type Config struct {
	// Discovery
	TestDir string
	Grep    string
	List    bool

	// Execution
	Timeout       time.Duration
	FullyParallel bool
	ForbidOnly    bool
	Retries       int
	Workers       int

	// Reporting
	Reporter  string // comma-separated: list, json, html
	OutputDir string

	// Browser
	BaseURL        string
	Trace          string
	Video          string
	Screenshot     string
	Headless       bool
	Engine         string
	ChromeRevision int
	InstallChrome  bool

	// Status server and events
	Serve         string
	NatsURL       string
	NatsJetStream bool

	// Fixture site
	Fixture bool

	ConfigFile string
	CI         bool

	// Flags
	ShowVersion bool
	ShowHelp    bool
}

// Credentials is the account used by the login flow.
type Credentials struct {
	Email    string
	Password string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		TestDir:        "./tests",
		Timeout:        30 * time.Second,
		FullyParallel:  true,
		ForbidOnly:     false,
		Retries:        0,
		Workers:        defaultWorkers(),
		Reporter:       "html",
		OutputDir:      "./ytflow-report",
		BaseURL:        "https://www.youtube.com",
		Trace:          "on-first-retry",
		Video:          "on-first-retry",
		Screenshot:     "only-on-failure",
		Headless:       false,
		Engine:         "chromium",
		ChromeRevision: 0,
	}
}

// defaultWorkers uses half of the logical CPUs.
func defaultWorkers() int {
	if n := runtime.NumCPU() / 2; n > 0 {
		return n
	}
	return 1
}

// ApplyEnv applies the CI defaults when the CI variable is set to anything non-empty.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv("CI") == "" {
		return
	}
	c.CI = true
	c.ForbidOnly = true
	c.Retries = 2
	c.Workers = 1
}

// LoadCredentials reads the account from YOUTUBE_EMAIL and YOUTUBE_PASSWORD, falling back to placeholders.
func LoadCredentials(getenv func(string) string) Credentials {
	creds := Credentials{
		Email:    getenv("YOUTUBE_EMAIL"),
		Password: getenv("YOUTUBE_PASSWORD"),
	}
	if creds.Email == "" {
		creds.Email = PlaceholderEmail
	}
	if creds.Password == "" {
		creds.Password = PlaceholderPassword
	}
	return creds
}

// IsPlaceholder reports whether no real account was configured.
func (c Credentials) IsPlaceholder() bool {
	return c.Email == PlaceholderEmail || c.Password == PlaceholderPassword
}

// Reporters splits the reporter option.
func (c *Config) Reporters() []string {
	var names []string
	for _, name := range strings.Split(c.Reporter, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Validate rejects options the runner cannot honour.
func (c *Config) Validate() error {
	var errs []error

	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	for _, name := range c.Reporters() {
		switch name {
		case "list", "json", "html":
		default:
			errs = append(errs, fmt.Errorf("unknown reporter %q", name))
		}
	}
	if !oneOf(c.Trace, "off", "on", "retain-on-failure", "on-first-retry") {
		errs = append(errs, fmt.Errorf("invalid trace policy %q", c.Trace))
	}
	if !oneOf(c.Video, "off", "on", "retain-on-failure", "on-first-retry") {
		errs = append(errs, fmt.Errorf("invalid video policy %q", c.Video))
	}
	if !oneOf(c.Screenshot, "off", "on", "only-on-failure") {
		errs = append(errs, fmt.Errorf("invalid screenshot policy %q", c.Screenshot))
	}
	if !oneOf(c.Engine, "chromium", "playwright") {
		errs = append(errs, fmt.Errorf("unknown engine %q", c.Engine))
	}

	return errors.Join(errs...)
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func newFlagSet(cfg *Config, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.SetOutput(output)

	// Discovery flags
	fs.StringVar(&cfg.TestDir, "test-dir", cfg.TestDir, "Directory scenarios are discovered from")
	fs.StringVar(&cfg.Grep, "grep", cfg.Grep, "Only run scenarios whose title matches this regular expression")
	fs.BoolVar(&cfg.List, "list", cfg.List, "List discovered scenarios without running them")

	// Execution flags
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Timeout per scenario attempt and default action timeout")
	fs.BoolVar(&cfg.FullyParallel, "fully-parallel", cfg.FullyParallel, "Run scenarios of the same file in parallel")
	fs.BoolVar(&cfg.ForbidOnly, "forbid-only", cfg.ForbidOnly, "Fail the run if a scenario is marked only")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Retries for failed scenarios")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of parallel workers")

	// Reporting flags
	fs.StringVar(&cfg.Reporter, "reporter", cfg.Reporter, "Reporters: list, json, html (comma-separated)")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Directory for reports and artifacts")

	// Browser flags
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Base URL relative navigations resolve against")
	fs.StringVar(&cfg.Trace, "trace", cfg.Trace, "Trace policy: off, on, retain-on-failure, on-first-retry")
	fs.StringVar(&cfg.Video, "video", cfg.Video, "Video policy: off, on, retain-on-failure, on-first-retry")
	fs.StringVar(&cfg.Screenshot, "screenshot", cfg.Screenshot, "Screenshot policy: off, on, only-on-failure")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run the browser headless")
	fs.StringVar(&cfg.Engine, "engine", cfg.Engine, "Browser engine: chromium (rod) or playwright")
	fs.IntVar(&cfg.ChromeRevision, "chrome-revision", cfg.ChromeRevision, "Chromium revision to download (0 uses default)")
	fs.BoolVar(&cfg.InstallChrome, "install-chrome", cfg.InstallChrome, "Download the browser and its system dependencies before running")

	// Status server and NATS flags
	fs.StringVar(&cfg.Serve, "serve", cfg.Serve, "Serve run status on this address (e.g. :8000)")
	fs.StringVar(&cfg.NatsURL, "nats-url", cfg.NatsURL, "Publish run events to this NATS server")
	fs.BoolVar(&cfg.NatsJetStream, "nats-jetstream", cfg.NatsJetStream, "Publish run events through JetStream")

	fs.BoolVar(&cfg.Fixture, "fixture", cfg.Fixture, "Run against the built-in fixture site instead of base-url")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file")

	// Other flags
	fs.BoolVar(&cfg.ShowVersion, "version", cfg.ShowVersion, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", cfg.ShowHelp, "Show help message")

	// ParseFlags prints the help itself
	fs.Usage = func() {}

	return fs
}

// Load builds the configuration from defaults, the CI environment, the YAML file and args,
// in increasing order of precedence.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.ApplyEnv(getenv)

	fs := newFlagSet(cfg, io.Discard)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) {
			set[f.Name] = true
		})

		file, err := ReadFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		file.apply(cfg, set)
	}

	return cfg, nil
}

// ParseFlags parses command line flags and returns the config
func ParseFlags() *Config {
	cfg, err := Load(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		PrintHelp()
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		PrintHelp()
		os.Exit(2)
	}
	return cfg
}

// PrintVersion prints version information
func PrintVersion() {
	fmt.Printf("%s v%s\n", AppName, Version)
}

// PrintHelp prints help information
func PrintHelp() {
	d := DefaultConfig()
	fmt.Printf(`%s v%s (browser E2E runner)

Usage:
  ./ytflow [flags]

Discovery:
  --test-dir         %s
  --grep             regular expression on scenario titles
  --list             list scenarios and exit

Execution:
  --timeout          %s
  --fully-parallel   %v
  --forbid-only      %v (true when CI is set)
  --retries          %d (2 when CI is set)
  --workers          %d (1 when CI is set)

Reporting:
  --reporter         %s (list, json, html)
  --output-dir       %s

Browser:
  --base-url         %s
  --trace            %s
  --video            %s
  --screenshot       %s
  --headless         %v
  --engine           %s (chromium, playwright)
  --chrome-revision  %d
  --install-chrome   %v

Events:
  --serve            address for the status server (disabled if empty)
  --nats-url         NATS server for run events (disabled if empty)
  --nats-jetstream   %v

Other:
  --fixture          run against the built-in fixture site
  --config           YAML config file
  --version          show version
  --help             show this help

Environment:
  CI                 enable CI defaults
  YOUTUBE_EMAIL      account email (default %s)
  YOUTUBE_PASSWORD   account password (default %s)

`, AppName, Version,
		d.TestDir,
		d.Timeout, d.FullyParallel, d.ForbidOnly, d.Retries, d.Workers,
		d.Reporter, d.OutputDir,
		d.BaseURL, d.Trace, d.Video, d.Screenshot, d.Headless, d.Engine, d.ChromeRevision, d.InstallChrome,
		d.NatsJetStream,
		PlaceholderEmail, PlaceholderPassword)
}

// HandleFlags handles version and help flags, exits if needed
func HandleFlags(cfg *Config) {
	if cfg.ShowVersion {
		PrintVersion()
		os.Exit(0)
	}

	if cfg.ShowHelp {
		PrintHelp()
		os.Exit(0)
	}
}

// File is the YAML form of Config. Unset keys leave the configuration untouched.
type File struct {
	TestDir       *string `yaml:"testDir"`
	Timeout       *string `yaml:"timeout"`
	FullyParallel *bool   `yaml:"fullyParallel"`
	ForbidOnly    *bool   `yaml:"forbidOnly"`
	Retries       *int    `yaml:"retries"`
	Workers       *int    `yaml:"workers"`
	Reporter      *string `yaml:"reporter"`
	OutputDir     *string `yaml:"outputDir"`
	Grep          *string `yaml:"grep"`
	Use           struct {
		BaseURL    *string `yaml:"baseURL"`
		Trace      *string `yaml:"trace"`
		Video      *string `yaml:"video"`
		Screenshot *string `yaml:"screenshot"`
		Headless   *bool   `yaml:"headless"`
		Engine     *string `yaml:"engine"`
	} `yaml:"use"`
	NatsURL       *string `yaml:"natsURL"`
	NatsJetStream *bool   `yaml:"natsJetStream"`
	Serve         *string `yaml:"serve"`

	timeout time.Duration
}

// ReadFile parses a YAML config file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses YAML config data. Timeouts accept Go durations ("45s") or milliseconds (45000).
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if f.Timeout != nil {
		d, err := parseTimeout(*f.Timeout)
		if err != nil {
			return nil, err
		}
		f.timeout = d
	}

	return &f, nil
}

func parseTimeout(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return 0, fmt.Errorf("invalid timeout %q", s)
}

// apply copies the file's values into cfg, skipping options given on the command line.
func (f *File) apply(cfg *Config, set map[string]bool) {
	setString := func(flagName string, dst *string, src *string) {
		if src != nil && !set[flagName] {
			*dst = *src
		}
	}
	setBool := func(flagName string, dst *bool, src *bool) {
		if src != nil && !set[flagName] {
			*dst = *src
		}
	}
	setInt := func(flagName string, dst *int, src *int) {
		if src != nil && !set[flagName] {
			*dst = *src
		}
	}

	setString("test-dir", &cfg.TestDir, f.TestDir)
	if f.Timeout != nil && !set["timeout"] {
		cfg.Timeout = f.timeout
	}
	setBool("fully-parallel", &cfg.FullyParallel, f.FullyParallel)
	setBool("forbid-only", &cfg.ForbidOnly, f.ForbidOnly)
	setInt("retries", &cfg.Retries, f.Retries)
	setInt("workers", &cfg.Workers, f.Workers)
	setString("reporter", &cfg.Reporter, f.Reporter)
	setString("output-dir", &cfg.OutputDir, f.OutputDir)
	setString("grep", &cfg.Grep, f.Grep)
	setString("base-url", &cfg.BaseURL, f.Use.BaseURL)
	setString("trace", &cfg.Trace, f.Use.Trace)
	setString("video", &cfg.Video, f.Use.Video)
	setString("screenshot", &cfg.Screenshot, f.Use.Screenshot)
	setBool("headless", &cfg.Headless, f.Use.Headless)
	setString("engine", &cfg.Engine, f.Use.Engine)
	setString("nats-url", &cfg.NatsURL, f.NatsURL)
	setBool("nats-jetstream", &cfg.NatsJetStream, f.NatsJetStream)
	setString("serve", &cfg.Serve, f.Serve)
}
