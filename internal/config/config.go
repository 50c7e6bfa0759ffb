// Package config handles configuration loading, validation, and management for powerhintd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Daemon holds process-level settings.
	Daemon DaemonConfig `toml:"daemon" json:"daemon" yaml:"daemon"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Engine configuration for the hint-application engine.
	Engine EngineConfig `toml:"engine" json:"engine" yaml:"engine"`

	// Governor configuration for the scheduling-governor gate.
	Governor GovernorConfig `toml:"governor" json:"governor" yaml:"governor"`

	// Properties configuration for the system property store.
	Properties PropertiesConfig `toml:"properties" json:"properties" yaml:"properties"`

	// Display configuration for the low-power-mode toggle.
	Display DisplayConfig `toml:"display" json:"display" yaml:"display"`

	// Journal configuration for the hint transition journal.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	// IPC configuration for the control socket.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// DaemonConfig holds process-level settings.
type DaemonConfig struct {
	// DataDir is where persistent daemon state lives (journal, properties).
	DataDir string `toml:"data_dir" json:"data_dir" yaml:"data_dir"`

	// RuntimeDir is where the control socket and lock file live.
	RuntimeDir string `toml:"runtime_dir" json:"runtime_dir" yaml:"runtime_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output includes "file").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// EngineConfig holds hint-engine configuration.
type EngineConfig struct {
	// ConfigPath is the path to the hint-engine JSON configuration.
	// A load failure at startup is fatal.
	ConfigPath string `toml:"config_path" json:"config_path" yaml:"config_path"`
}

// GovernorConfig holds the scheduling-governor gate configuration.
type GovernorConfig struct {
	// Path is the sysfs file reporting the active scaling governor.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Allowed lists the governors under which hinting is performed.
	Allowed []string `toml:"allowed" json:"allowed" yaml:"allowed"`
}

// PropertiesConfig holds the system property store configuration.
type PropertiesConfig struct {
	// Dir is the directory backing the property store (one file per key).
	Dir string `toml:"dir" json:"dir" yaml:"dir"`

	// InitKey is the readiness property the init sequencer blocks on.
	InitKey string `toml:"init_key" json:"init_key" yaml:"init_key"`

	// InitValue is the value InitKey must reach before initialization proceeds.
	InitValue string `toml:"init_value" json:"init_value" yaml:"init_value"`

	// StateKey is the persisted mode property replayed at startup.
	StateKey string `toml:"state_key" json:"state_key" yaml:"state_key"`

	// AudioKey is the persisted audio-low-latency property.
	AudioKey string `toml:"audio_key" json:"audio_key" yaml:"audio_key"`

	// RenderingKey is the persisted expensive-rendering property.
	RenderingKey string `toml:"rendering_key" json:"rendering_key" yaml:"rendering_key"`
}

// DisplayConfig holds the display low-power toggle configuration.
type DisplayConfig struct {
	// Enabled determines whether LOW_POWER events drive the display bus.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Destination is the bus name owning the display-config object.
	Destination string `toml:"destination" json:"destination" yaml:"destination"`

	// ObjectPath is the display-config object path.
	ObjectPath string `toml:"object_path" json:"object_path" yaml:"object_path"`

	// Interface is the interface exposing the power-save property.
	Interface string `toml:"interface" json:"interface" yaml:"interface"`

	// Property is the int32 power-save property name.
	Property string `toml:"property" json:"property" yaml:"property"`

	// LowPowerMode is the property value written when entering low power.
	LowPowerMode int32 `toml:"low_power_mode" json:"low_power_mode" yaml:"low_power_mode"`

	// NormalMode is the property value written when leaving low power.
	NormalMode int32 `toml:"normal_mode" json:"normal_mode" yaml:"normal_mode"`
}

// JournalConfig holds the hint transition journal configuration.
type JournalConfig struct {
	// Enabled determines whether issued directives are journaled.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database path.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// IPCConfig holds control-socket configuration.
type IPCConfig struct {
	// Enabled determines whether the IPC server is started.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// SocketPath is the path to the Unix socket.
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`

	// TimeoutSec is the per-request timeout.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dataDir := DataDir()
	runtimeDir := RuntimeDir()

	return &Config{
		Version: Version,
		Daemon: DaemonConfig{
			DataDir:    dataDir,
			RuntimeDir: runtimeDir,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "stderr",
			FilePath: filepath.Join(LogDir(), "powerhintd.log"),
		},
		Engine: EngineConfig{
			ConfigPath: filepath.Join(ConfigDir(), "powerhint.json"),
		},
		Governor: GovernorConfig{
			Path:    "/sys/devices/system/cpu/cpu0/cpufreq/scaling_governor",
			Allowed: []string{"schedutil", "sched"},
		},
		Properties: PropertiesConfig{
			Dir:          filepath.Join(dataDir, "props"),
			InitKey:      "powerhint.init",
			InitValue:    "1",
			StateKey:     "powerhint.state",
			AudioKey:     "powerhint.audio",
			RenderingKey: "powerhint.rendering",
		},
		Display: DisplayConfig{
			Enabled:      true,
			Destination:  "org.gnome.Mutter.DisplayConfig",
			ObjectPath:   "/org/gnome/Mutter/DisplayConfig",
			Interface:    "org.gnome.Mutter.DisplayConfig",
			Property:     "PowerSaveMode",
			LowPowerMode: 1,
			NormalMode:   0,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir, "journal.db"),
		},
		IPC: IPCConfig{
			Enabled:    true,
			SocketPath: filepath.Join(runtimeDir, "powerhintd.sock"),
			TimeoutSec: 30,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates all directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Daemon.DataDir,
		c.Daemon.RuntimeDir,
		c.Properties.Dir,
		filepath.Dir(c.Logging.FilePath),
	}
	if c.Journal.Enabled {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Variables are prefixed with POWERHINTD_.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("POWERHINTD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("POWERHINTD_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("POWERHINTD_SOCKET_PATH"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("POWERHINTD_ENGINE_CONFIG"); v != "" {
		c.Engine.ConfigPath = v
	}
	if v := os.Getenv("POWERHINTD_GOVERNOR_PATH"); v != "" {
		c.Governor.Path = v
	}
	if v := os.Getenv("POWERHINTD_PROPS_DIR"); v != "" {
		c.Properties.Dir = v
	}
	if v := os.Getenv("POWERHINTD_JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := Config{
		Version:    c.Version,
		Daemon:     c.Daemon,
		Logging:    c.Logging,
		Engine:     c.Engine,
		Governor:   c.Governor,
		Properties: c.Properties,
		Display:    c.Display,
		Journal:    c.Journal,
		IPC:        c.IPC,
	}
	clone.Governor.Allowed = append([]string{}, c.Governor.Allowed...)

	return &clone
}

// SaveConfig saves the configuration to a file. The format follows the
// file extension; TOML output carries section comments.
func SaveConfig(cfg *Config, path string) error {
	ext := filepath.Ext(path)

	var data []byte
	var err error

	switch ext {
	case ".json":
		data, err = encodeToJSON(cfg)
	case ".yaml", ".yml":
		data, err = encodeToYAML(cfg)
	default:
		data = []byte(generateTOML(cfg))
	}

	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// generateTOML generates a commented TOML configuration file.
func generateTOML(cfg *Config) string {
	return fmt.Sprintf(`# powerhintd configuration
# Version %d

version = %d

[daemon]
data_dir = %q
runtime_dir = %q

[logging]
# level: debug, info, warn, error
level = %q
# format: text, json
format = %q
# output: stdout, stderr, file, both
output = %q
file_path = %q

[engine]
# Hint-engine node/action configuration. A load failure is fatal.
config_path = %q

[governor]
path = %q
allowed = %s

[properties]
dir = %q
init_key = %q
init_value = %q
state_key = %q
audio_key = %q
rendering_key = %q

[display]
enabled = %t
destination = %q
object_path = %q
interface = %q
property = %q
low_power_mode = %d
normal_mode = %d

[journal]
enabled = %t
path = %q

[ipc]
enabled = %t
socket_path = %q
timeout_sec = %d
`,
		Version, cfg.Version,
		cfg.Daemon.DataDir, cfg.Daemon.RuntimeDir,
		cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.FilePath,
		cfg.Engine.ConfigPath,
		cfg.Governor.Path, tomlStringList(cfg.Governor.Allowed),
		cfg.Properties.Dir, cfg.Properties.InitKey, cfg.Properties.InitValue,
		cfg.Properties.StateKey, cfg.Properties.AudioKey, cfg.Properties.RenderingKey,
		cfg.Display.Enabled, cfg.Display.Destination, cfg.Display.ObjectPath,
		cfg.Display.Interface, cfg.Display.Property,
		cfg.Display.LowPowerMode, cfg.Display.NormalMode,
		cfg.Journal.Enabled, cfg.Journal.Path,
		cfg.IPC.Enabled, cfg.IPC.SocketPath, cfg.IPC.TimeoutSec,
	)
}

func tomlStringList(values []string) string {
	s := "["
	for i, v := range values {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%q", v)
	}
	return s + "]"
}
