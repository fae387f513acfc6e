package audit

import (
	"errors"
	"fmt"
	"strings"
)

// Output destinations and formats.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputFile   = "file"

	FormatJSON = "json"
	FormatText = "text"
)

// Config represents the audit logging configuration.
type Config struct {
	// Enabled enables audit logging.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Output is stdout, stderr or file.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`

	// Format is json or text.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// File configures file output.
	File *FileConfig `yaml:"file,omitempty" json:"file,omitempty"`

	// Events selects which event types are recorded. Nil records all.
	Events *EventsConfig `yaml:"events,omitempty" json:"events,omitempty"`

	// SkipPaths lists path prefixes that are never audited.
	SkipPaths []string `yaml:"skipPaths,omitempty" json:"skipPaths,omitempty"`
}

// FileConfig configures a rotating audit file.
type FileConfig struct {
	Path       string `yaml:"path" json:"path"`
	MaxSizeMB  int    `yaml:"maxSizeMB,omitempty" json:"maxSizeMB,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty" json:"maxBackups,omitempty"`
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty" json:"maxAgeDays,omitempty"`
	Compress   bool   `yaml:"compress,omitempty" json:"compress,omitempty"`
}

// EventsConfig configures which events to audit.
type EventsConfig struct {
	Authentication bool `yaml:"authentication" json:"authentication"`
	Authorization  bool `yaml:"authorization" json:"authorization"`
	Configuration  bool `yaml:"configuration" json:"configuration"`
}

// DefaultConfig returns a disabled configuration writing JSON to stdout.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputStdout,
		Format: FormatJSON,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	switch c.Output {
	case "", OutputStdout, OutputStderr:
	case OutputFile:
		if c.File == nil || c.File.Path == "" {
			errs = append(errs, errors.New("file.path is required for file output"))
		}
	default:
		errs = append(errs, fmt.Errorf("output must be stdout, stderr or file, got %q", c.Output))
	}

	switch c.Format {
	case "", FormatJSON, FormatText:
	default:
		errs = append(errs, fmt.Errorf("format must be json or text, got %q", c.Format))
	}

	return errors.Join(errs...)
}

// ShouldAudit reports whether events of eventType are recorded.
func (c *Config) ShouldAudit(eventType EventType) bool {
	if c.Events == nil {
		return true
	}
	switch eventType {
	case EventTypeAuthentication:
		return c.Events.Authentication
	case EventTypeAuthorization:
		return c.Events.Authorization
	case EventTypeConfiguration:
		return c.Events.Configuration
	default:
		return true
	}
}

// ShouldSkipPath reports whether path is excluded from auditing.
func (c *Config) ShouldSkipPath(path string) bool {
	for _, prefix := range c.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
