package cmdutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/0w0mewo/localsend-engine/internal/config"
	"github.com/0w0mewo/localsend-engine/internal/identity"
)

func withConfigDir(t *testing.T, dir string) {
	t.Helper()

	old := ConfigDir
	ConfigDir = dir
	t.Cleanup(func() { ConfigDir = old })
}

func TestDirCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "conf")
	withConfigDir(t, dir)

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	if got != dir {
		t.Errorf("Dir = %q; want %q", got, dir)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Errorf("directory not created: %v", err)
	}
}

func TestDirUncreatableIsConfigurationError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	withConfigDir(t, filepath.Join(file, "conf"))

	_, err := Dir()
	var cfgErr *identity.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Dir error = %v; want a ConfigurationError", err)
	}
}

func TestDirUnresolvableIsConfigurationError(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on how the user config dir is resolved on linux")
	}
	withConfigDir(t, "")
	t.Setenv(config.EnvConfigDir, "")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")

	_, err := Dir()
	var cfgErr *identity.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Dir error = %v; want a ConfigurationError", err)
	}

	// LoadSettings and every command built on it see the same error
	if _, _, err := LoadSettings(); !errors.As(err, &cfgErr) {
		t.Errorf("LoadSettings error = %v; want a ConfigurationError", err)
	}
}
