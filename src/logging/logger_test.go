package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestComponentJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New("info", "json", &buf), "session")
	l.Debug("hidden")
	l.Info("opened", "tools", 3)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"component":"session"`)
	assert.Contains(t, out, `"tools":3`)
}

func TestOrDiscard(t *testing.T) {
	l := OrDiscard(nil)
	assert.NotNil(t, l)
	l.Error("dropped")
}
