// Package config loads leapvault CLI configuration.
//
// Values are layered, lowest precedence first: built-in defaults, the
// leapvault.yaml project file, LEAPVAULT_* environment variables and
// explicitly set command-line flags.
package config

import (
	"strings"
	"time"

	"github.com/leapstack-labs/leapvault/internal/adapter"
)

// Config holds all CLI configuration options.
type Config struct {
	Database     string                  `koanf:"database"`
	ScriptsDir   string                  `koanf:"scripts_dir"`
	StatePath    string                  `koanf:"state_path"`
	RecordSource string                  `koanf:"record_source"`
	Verbose      bool                    `koanf:"verbose"`
	OutputFormat string                  `koanf:"output"`
	Metadata     MetadataConfig          `koanf:"metadata"`
	Watch        WatchConfig             `koanf:"watch"`
	Sources      map[string]SourceConfig `koanf:"sources"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the project file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// MetadataConfig names the metadata files loaded by init and
// metadata load.
type MetadataConfig struct {
	Tables      string `koanf:"tables"`
	Transitions string `koanf:"transitions"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Dir string `koanf:"dir"`
	// Pattern is the default file glob; {source} is replaced by the source
	// name.
	Pattern  string        `koanf:"pattern"`
	Interval time.Duration `koanf:"interval"`
	// Sources restricts watching to these sources. Empty means every
	// configured source.
	Sources []string `koanf:"sources"`
}

// SourceConfig holds per-source settings.
type SourceConfig struct {
	RecordSource string `koanf:"record_source"`
	Pattern      string `koanf:"pattern"`
}

// Default configuration values.
const (
	DefaultDatabase      = "vault.duckdb"
	DefaultScriptsDir    = "scripts"
	DefaultStateFile     = ".leapvault/journal.db"
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultWatchDir      = "drop"
	DefaultWatchPattern  = "{source}_*"
	DefaultWatchInterval = time.Second
)

// ConfigFileNames are the project file names searched for, in order.
var ConfigFileNames = []string{"leapvault.yaml", "leapvault.yml"}

// AdapterConfig returns the database connection settings.
func (c *Config) AdapterConfig() adapter.Config {
	path := c.Database
	if path == "" {
		path = ":memory:"
	}
	return adapter.Config{Type: "duckdb", Path: path}
}

// RecordSourceFor returns the record source for loads of source: the
// per-source setting, then the global one. Empty lets the engine use the
// source name.
func (c *Config) RecordSourceFor(source string) string {
	if s, ok := c.Sources[source]; ok && s.RecordSource != "" {
		return s.RecordSource
	}
	return c.RecordSource
}

// PatternFor returns the watch glob of source.
func (c *Config) PatternFor(source string) string {
	if s, ok := c.Sources[source]; ok && s.Pattern != "" {
		return s.Pattern
	}
	pattern := c.Watch.Pattern
	if pattern == "" {
		pattern = DefaultWatchPattern
	}
	return strings.ReplaceAll(pattern, "{source}", source)
}
