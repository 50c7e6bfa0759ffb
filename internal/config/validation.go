// Package config handles configuration loading and validation for powerhintd.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateDaemon(&c.Daemon)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateEngine(&c.Engine)...)
	errs = append(errs, validateGovernor(&c.Governor)...)
	errs = append(errs, validateProperties(&c.Properties)...)
	errs = append(errs, validateDisplay(&c.Display)...)
	errs = append(errs, validateJournal(&c.Journal)...)
	errs = append(errs, validateIPC(&c.IPC)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateDaemon(d *DaemonConfig) ValidationErrors {
	var errs ValidationErrors

	if d.DataDir == "" {
		errs = append(errs, ValidationError{Field: "daemon.data_dir", Message: "cannot be empty"})
	}
	if d.RuntimeDir == "" {
		errs = append(errs, ValidationError{Field: "daemon.runtime_dir", Message: "cannot be empty"})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("must be debug, info, warn, or error (got %q)", l.Level),
		})
	}

	switch strings.ToLower(l.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("must be text or json (got %q)", l.Format),
		})
	}

	switch strings.ToLower(l.Output) {
	case "", "stdout", "stderr", "file", "both":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("must be stdout, stderr, file, or both (got %q)", l.Output),
		})
	}

	output := strings.ToLower(l.Output)
	if (output == "file" || output == "both") && l.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: "required when output includes file",
		})
	}

	return errs
}

func validateEngine(e *EngineConfig) ValidationErrors {
	var errs ValidationErrors

	if e.ConfigPath == "" {
		errs = append(errs, ValidationError{Field: "engine.config_path", Message: "cannot be empty"})
	}

	return errs
}

func validateGovernor(g *GovernorConfig) ValidationErrors {
	var errs ValidationErrors

	if g.Path == "" {
		errs = append(errs, ValidationError{Field: "governor.path", Message: "cannot be empty"})
	}
	if len(g.Allowed) == 0 {
		errs = append(errs, ValidationError{
			Field:   "governor.allowed",
			Message: "must list at least one supported governor",
		})
	}
	for i, name := range g.Allowed {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("governor.allowed[%d]", i),
				Message: "cannot be empty",
			})
		}
	}

	return errs
}

func validateProperties(p *PropertiesConfig) ValidationErrors {
	var errs ValidationErrors

	if p.Dir == "" {
		errs = append(errs, ValidationError{Field: "properties.dir", Message: "cannot be empty"})
	}

	keys := map[string]string{
		"properties.init_key":      p.InitKey,
		"properties.state_key":     p.StateKey,
		"properties.audio_key":     p.AudioKey,
		"properties.rendering_key": p.RenderingKey,
	}
	for field, key := range keys {
		if key == "" {
			errs = append(errs, ValidationError{Field: field, Message: "cannot be empty"})
			continue
		}
		if strings.ContainsAny(key, "/\x00") {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid property key %q", key),
			})
		}
	}

	if p.InitValue == "" {
		errs = append(errs, ValidationError{Field: "properties.init_value", Message: "cannot be empty"})
	}

	return errs
}

func validateDisplay(d *DisplayConfig) ValidationErrors {
	var errs ValidationErrors

	if !d.Enabled {
		return errs
	}

	if d.Destination == "" {
		errs = append(errs, ValidationError{Field: "display.destination", Message: "required when display is enabled"})
	}
	if d.ObjectPath == "" || !strings.HasPrefix(d.ObjectPath, "/") {
		errs = append(errs, ValidationError{
			Field:   "display.object_path",
			Message: fmt.Sprintf("must be an absolute object path (got %q)", d.ObjectPath),
		})
	}
	if d.Interface == "" {
		errs = append(errs, ValidationError{Field: "display.interface", Message: "required when display is enabled"})
	}
	if d.Property == "" {
		errs = append(errs, ValidationError{Field: "display.property", Message: "required when display is enabled"})
	}
	if d.LowPowerMode < 0 || d.NormalMode < 0 {
		errs = append(errs, ValidationError{
			Field:   "display.low_power_mode",
			Message: "mode values cannot be negative",
		})
	}

	return errs
}

func validateJournal(j *JournalConfig) ValidationErrors {
	var errs ValidationErrors

	if j.Enabled && j.Path == "" {
		errs = append(errs, ValidationError{Field: "journal.path", Message: "required when journal is enabled"})
	}

	return errs
}

func validateIPC(i *IPCConfig) ValidationErrors {
	var errs ValidationErrors

	if i.Enabled && i.SocketPath == "" {
		errs = append(errs, ValidationError{Field: "ipc.socket_path", Message: "required when ipc is enabled"})
	}
	if i.TimeoutSec <= 0 {
		errs = append(errs, ValidationError{Field: "ipc.timeout_sec", Message: "must be positive"})
	}

	return errs
}
