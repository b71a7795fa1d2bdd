package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Pipelines, again.Pipelines)
	assert.Equal(t, "npeu-seminar-dates.csv", again.Pipelines[0].SourceFilename)
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
timezone: Europe/London
pipelines:
  - name: lectures
    source_filename: lecture-dates.csv
    series_title: Guest Lectures
    template: /srv/tpl.png
    output_dir: /srv/out
store:
  backend: redis
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Pipelines, 1)

	p := cfg.Pipelines[0]
	assert.Equal(t, "Guest Lectures", p.SeriesTitle)
	assert.Equal(t, "NPEU Seminars", p.DocumentTitle)
	assert.Equal(t, "All welcome.", p.Boilerplate)
	assert.Equal(t, "lectures.json", p.DatasetKey)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "127.0.0.1:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "*/5 * * * *", cfg.Inbox.Cron)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "Europe/London", cfg.Location().String())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipelines: [\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"no pipelines":     func(c *Config) { c.Pipelines = nil },
		"empty name":       func(c *Config) { c.Pipelines[0].Name = "" },
		"duplicate name":   func(c *Config) { c.Pipelines = append(c.Pipelines, c.Pipelines[0]) },
		"missing template": func(c *Config) { c.Pipelines[0].Template = "" },
		"missing output":   func(c *Config) { c.Pipelines[0].OutputDir = "" },
		"shared filename": func(c *Config) {
			other := c.Pipelines[0]
			other.Name = "other"
			c.Pipelines = append(c.Pipelines, other)
		},
		"shared dataset key": func(c *Config) {
			other := c.Pipelines[0]
			other.Name = "other"
			other.SourceFilename = "other.csv"
			other.OutputDir = "/srv/other"
			c.Pipelines = append(c.Pipelines, other)
		},
		"shared documents": func(c *Config) {
			other := c.Pipelines[0]
			other.Name = "other"
			other.SourceFilename = "other.csv"
			other.DatasetKey = "other.json"
			other.OutputDir = c.Pipelines[0].OutputDir + "/"
			c.Pipelines = append(c.Pipelines, other)
		},
		"bad backend":  func(c *Config) { c.Store.Backend = "s3" },
		"bad timezone": func(c *Config) { c.Timezone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	other := cfg.Pipelines[0]
	other.Name = "lectures"
	other.SourceFilename = "lecture-dates.csv"
	other.DatasetKey = "lecture-dates.json"
	other.DocumentTitle = "NPEU Lectures"
	cfg.Pipelines = append(cfg.Pipelines, other)
	assert.NoError(t, cfg.Validate(), "distinct key and document title")
}

func TestPipelineLookup(t *testing.T) {
	cfg := DefaultConfig()
	p, ok := cfg.Pipeline("seminars")
	require.True(t, ok)
	assert.Equal(t, "Richard Doll Lecture Theatre", p.DefaultVenue)

	_, ok = cfg.Pipeline("missing")
	assert.False(t, ok)
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = ""
	assert.Equal(t, "Local", cfg.Location().String())
}
