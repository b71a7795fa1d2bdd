package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	SetLevel(LevelInfo)
	Debug("hidden debug", "k", "v")
	assert.Empty(t, buf.String())

	Info("pipeline done", "term", "Hilary 2020", "events", 2)
	assert.Contains(t, buf.String(), "pipeline done")
	assert.Contains(t, buf.String(), "term=")
	assert.Contains(t, buf.String(), "events=2")

	buf.Reset()
	Error("render failed", errors.New("boom"), "term", "Trinity")
	assert.Contains(t, buf.String(), "render failed")
	assert.Contains(t, buf.String(), "boom")

	buf.Reset()
	SetLevel(LevelError)
	Warn("quiet warning")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
