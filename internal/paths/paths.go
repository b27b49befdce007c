// Package paths resolves configuration, data, and recording directory
// locations for plutarch.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used under the platform config and data roots.
const AppName = "plutarch"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "PLUTARCH_CONFIG_DIR"
	EnvDataDir   = "PLUTARCH_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/plutarch (fallback ~/.config/plutarch)
// macOS:   ~/Library/Application Support/plutarch
// Windows: %APPDATA%/plutarch
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/plutarch (fallback ~/.local/share/plutarch)
// macOS:   ~/Library/Application Support/plutarch
// Windows: %APPDATA%/plutarch
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(xdgVar, homeFallback string) (string, error) {
	if runtime.GOOS != "linux" {
		// os.UserConfigDir is ~/Library/Application Support on macOS and
		// %APPDATA% on Windows; both hold config and data.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeFallback, AppName), nil
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > PLUTARCH_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configYAMLValue > PLUTARCH_DATA_DIR env > DefaultDataDir().
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	for _, v := range []string{flag, configYAMLValue, os.Getenv(EnvDataDir)} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	return DefaultDataDir()
}

// InDir anchors a relative path p at base. Absolute paths and the empty
// string are returned unchanged.
func InDir(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
