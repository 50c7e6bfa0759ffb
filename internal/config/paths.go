// Package config handles configuration loading and validation for powerhintd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// powerhintd is a system daemon; when run as root it uses the usual
// system directories. Non-root runs (development, tests) fall back to
// XDG user directories so the daemon never needs privileges to start.

// DataDir returns the directory for persistent daemon state.
//
//   - root:     /var/lib/powerhintd
//   - non-root: $XDG_DATA_HOME/powerhintd or ~/.local/share/powerhintd
//
// POWERHINTD_DATA_DIR overrides both.
func DataDir() string {
	if envDir := os.Getenv("POWERHINTD_DATA_DIR"); envDir != "" {
		return envDir
	}
	if os.Geteuid() == 0 {
		return "/var/lib/powerhintd"
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "powerhintd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "powerhintd")
}

// ConfigDir returns the directory holding config.toml and powerhint.json.
//
//   - root:     /etc/powerhintd
//   - non-root: $XDG_CONFIG_HOME/powerhintd or ~/.config/powerhintd
func ConfigDir() string {
	if os.Geteuid() == 0 {
		return "/etc/powerhintd"
	}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "powerhintd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "powerhintd")
}

// RuntimeDir returns the directory for the control socket and lock file.
//
//   - root:     /run/powerhintd
//   - non-root: $XDG_RUNTIME_DIR/powerhintd or /tmp/powerhintd-$UID
func RuntimeDir() string {
	if os.Geteuid() == 0 {
		return "/run/powerhintd"
	}
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, "powerhintd")
	}
	return filepath.Join("/tmp", fmt.Sprintf("powerhintd-%d", os.Getuid()))
}

// LogDir returns the directory for log files.
//
//   - root:     /var/log/powerhintd
//   - non-root: $XDG_STATE_HOME/powerhintd or ~/.local/state/powerhintd
func LogDir() string {
	if os.Geteuid() == 0 {
		return "/var/log/powerhintd"
	}
	if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
		return filepath.Join(xdgState, "powerhintd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "powerhintd")
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches for a config file in standard locations.
// Returns the first match, or empty string if none exists.
func FindConfigFile() string {
	searchDirs := []string{
		".",
		ConfigDir(),
	}

	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}
