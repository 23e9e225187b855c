package browser

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"runtime"

	"github.com/go-rod/rod/lib/launcher"
)

// InstallChrome downloads the Chromium revision used by the chromium engine and returns its binary path.
// A zero revision uses rod's pinned default. With deps set, the shared libraries Chromium needs
// are installed through the system package manager first.
func InstallChrome(ctx context.Context, revision int, deps bool) (string, error) {
	if deps {
		if err := installChromeDeps(ctx); err != nil {
			return "", err
		}
	}

	b := launcher.NewBrowser()
	b.Context = ctx
	if revision > 0 {
		b.Revision = revision
	}

	path, err := b.Get()
	if err != nil {
		return "", fmt.Errorf("failed to download chromium r%d: %w", b.Revision, err)
	}

	log.Printf("Chromium r%d installed at %s", b.Revision, path)
	return path, nil
}

// packageManager knows how to install a list of packages.
type packageManager struct {
	bin      string
	args     []string
	packages []string
}

var chromePackageManagers = []packageManager{
	{bin: "apt-get", args: []string{"install", "-y", "--no-install-recommends"}, packages: []string{
		"ca-certificates", "fonts-liberation", "libasound2", "libatk-bridge2.0-0", "libatk1.0-0",
		"libcups2", "libdbus-1-3", "libdrm2", "libgbm1", "libgtk-3-0", "libnspr4", "libnss3",
		"libxcomposite1", "libxdamage1", "libxfixes3", "libxrandr2", "libxkbcommon0",
		"libpango-1.0-0",
	}},
	{bin: "dnf", args: []string{"install", "-y"}, packages: []string{
		"alsa-lib", "atk", "cups-libs", "gtk3", "libXcomposite", "libXdamage", "libXrandr",
		"libxkbcommon", "nss", "nspr", "pango", "mesa-libgbm", "libdrm",
	}},
	{bin: "apk", args: []string{"add", "--no-cache"}, packages: []string{
		"ca-certificates", "nss", "freetype", "harfbuzz", "ttf-freefont", "alsa-lib", "at-spi2-atk",
		"cups-libs", "libxcomposite", "libxdamage", "libxrandr", "libxkbcommon", "mesa-gbm",
		"gtk+3.0", "pango",
	}},
}

func installChromeDeps(ctx context.Context) error {
	if runtime.GOOS != "linux" {
		return nil
	}

	for _, pm := range chromePackageManagers {
		path, err := exec.LookPath(pm.bin)
		if err != nil {
			continue
		}
		if pm.bin == "apt-get" {
			if err := runCommand(ctx, path, "update"); err != nil {
				return err
			}
		}
		return runCommand(ctx, path, append(pm.args, pm.packages...)...)
	}

	return fmt.Errorf("no supported package manager found for chromium dependencies")
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v failed: %w\n%s", name, args, err, out.String())
	}
	return nil
}
