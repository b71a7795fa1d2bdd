package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // zones resolve on hosts without a zoneinfo database

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

// PipelineConfig describes one named seminar pipeline and the source file
// name its upload hook is bound to.
type PipelineConfig struct {
	// Name selects the pipeline explicitly (CLI --pipeline, registry key).
	Name string `yaml:"name" json:"name"`
	// SourceFilename binds uploads with exactly this base name to the pipeline.
	SourceFilename string `yaml:"source_filename" json:"source_filename"`

	SeriesTitle        string `yaml:"series_title" json:"series_title"`
	DocumentTitle      string `yaml:"document_title" json:"document_title"`
	SummaryPrefix      string `yaml:"summary_prefix" json:"summary_prefix"`
	AliasPrefix        string `yaml:"alias_prefix" json:"alias_prefix"`
	Boilerplate        string `yaml:"boilerplate" json:"boilerplate"`
	DefaultVenue       string `yaml:"default_venue" json:"default_venue"`
	CancellationNotice string `yaml:"cancellation_notice,omitempty" json:"cancellation_notice,omitempty"`

	// Template is the background artwork: a PDF (first page is used) or a
	// PNG, JPEG or SVG image.
	Template string `yaml:"template" json:"template"`
	// OutputDir receives the per-term documents.
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	// DatasetKey names the persisted dataset in the store.
	DatasetKey string `yaml:"dataset_key" json:"dataset_key"`
}

// StoreConfig selects where datasets are persisted.
type StoreConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	// Dir is used by the file backend.
	Dir string `yaml:"dir" json:"dir"`

	RedisAddr     string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty" json:"-"`
	RedisDB       int    `yaml:"redis_db,omitempty" json:"redis_db,omitempty"`
	RedisPrefix   string `yaml:"redis_prefix,omitempty" json:"redis_prefix,omitempty"`
}

// InboxConfig controls the watched upload directory used by `serve`.
type InboxConfig struct {
	// Dir is scanned for source files; empty disables the watcher.
	Dir string `yaml:"dir" json:"dir"`
	// Cron is a cron-style schedule string (e.g. "*/5 * * * *").
	Cron string `yaml:"cron" json:"cron"`
}

// HistoryConfig locates the run ledger.
type HistoryConfig struct {
	// Path of the sqlite database; empty disables the ledger.
	Path string `yaml:"path" json:"path"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used as the single local time for dates and
	// times of day. Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Pipelines []PipelineConfig `yaml:"pipelines" json:"pipelines"`
	Store     StoreConfig      `yaml:"store" json:"store"`
	Inbox     InboxConfig      `yaml:"inbox" json:"inbox"`
	History   HistoryConfig    `yaml:"history" json:"history"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultPipeline is the seminar series pipeline as originally deployed.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		Name:           "seminars",
		SourceFilename: "npeu-seminar-dates.csv",
		SeriesTitle:    "NPEU Seminar Series",
		DocumentTitle:  "NPEU Seminars",
		SummaryPrefix:  "NPEU Seminar: ",
		AliasPrefix:    "npeu-seminar-",
		Boilerplate:    "All welcome.",
		DefaultVenue:   "Richard Doll Lecture Theatre",
		Template:       "/var/lib/seminars/Seminars Template.pdf",
		OutputDir:      "/var/lib/seminars/documents",
		DatasetKey:     "npeu-seminar-dates.json",
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    "127.0.0.1:8080",
		Timezone:  "Europe/London",
		LogLevel:  "info",
		Pipelines: []PipelineConfig{DefaultPipeline()},
		Store: StoreConfig{
			Backend: StoreFile,
			Dir:     "/var/lib/seminars/data",
		},
		Inbox: InboxConfig{
			Dir:  "",
			Cron: "*/5 * * * *",
		},
		History: HistoryConfig{
			Path: "/var/lib/seminars/history.db",
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Pipelines == nil {
		c.Pipelines = []PipelineConfig{DefaultPipeline()}
	}
	def := DefaultPipeline()
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		if p.SeriesTitle == "" {
			p.SeriesTitle = def.SeriesTitle
		}
		if p.DocumentTitle == "" {
			p.DocumentTitle = def.DocumentTitle
		}
		if p.SummaryPrefix == "" {
			p.SummaryPrefix = def.SummaryPrefix
		}
		if p.AliasPrefix == "" {
			p.AliasPrefix = def.AliasPrefix
		}
		if p.Boilerplate == "" {
			p.Boilerplate = def.Boilerplate
		}
		if p.DefaultVenue == "" {
			p.DefaultVenue = def.DefaultVenue
		}
		if p.DatasetKey == "" && p.Name != "" {
			p.DatasetKey = p.Name + ".json"
		}
	}

	switch c.Store.Backend {
	case StoreFile, StoreRedis:
		// ok
	case "":
		c.Store.Backend = StoreFile
	}
	if c.Store.Backend == StoreFile && c.Store.Dir == "" {
		c.Store.Dir = "/var/lib/seminars/data"
	}
	if c.Store.Backend == StoreRedis && c.Store.RedisAddr == "" {
		c.Store.RedisAddr = "127.0.0.1:6379"
	}
	if c.Inbox.Cron == "" {
		c.Inbox.Cron = "*/5 * * * *"
	}
}

// Validate rejects configurations the pipeline registry cannot serve.
func (c *Config) Validate() error {
	if len(c.Pipelines) == 0 {
		return errors.New("no pipelines defined")
	}
	names := make(map[string]bool)
	files := make(map[string]string)
	keys := make(map[string]string)
	docs := make(map[string]string)
	for _, p := range c.Pipelines {
		if p.Name == "" {
			return errors.New("pipeline name is empty")
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate pipeline name %q", p.Name)
		}
		names[p.Name] = true

		if p.SourceFilename != "" {
			if other, ok := files[p.SourceFilename]; ok {
				return fmt.Errorf("source filename %q bound to both %q and %q", p.SourceFilename, other, p.Name)
			}
			files[p.SourceFilename] = p.Name
		}
		if p.DatasetKey != "" {
			if other, ok := keys[p.DatasetKey]; ok {
				return fmt.Errorf("dataset_key %q shared by %q and %q", p.DatasetKey, other, p.Name)
			}
			keys[p.DatasetKey] = p.Name
		}
		if p.Template == "" {
			return fmt.Errorf("pipeline %q: template is empty", p.Name)
		}
		if p.OutputDir == "" {
			return fmt.Errorf("pipeline %q: output_dir is empty", p.Name)
		}
		doc := filepath.Join(filepath.Clean(p.OutputDir), p.DocumentTitle)
		if other, ok := docs[doc]; ok {
			return fmt.Errorf("pipelines %q and %q write the same documents in %s", other, p.Name, p.OutputDir)
		}
		docs[doc] = p.Name
	}
	switch c.Store.Backend {
	case StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown store backend %q (expected %q or %q)", c.Store.Backend, StoreFile, StoreRedis)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// Location resolves Timezone, falling back to the host's local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Pipeline returns the named pipeline config.
func (c *Config) Pipeline(name string) (PipelineConfig, bool) {
	for _, p := range c.Pipelines {
		if p.Name == name {
			return p, true
		}
	}
	return PipelineConfig{}, false
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".seminars-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
