package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewZerologAdapterFor_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewZerologAdapterFor(&buf, FormatJSON, "info")
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("report published",
		String("sink", "mqtt"),
		Int("lines", 3),
		Uint32("ioa", 5000),
		Uint64("dropped", 2),
		Duration("took", 150*time.Millisecond),
		Err(errors.New("boom")),
	)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug is below the level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "report published", entry["message"])
	assert.Equal(t, "mqtt", entry["sink"])
	assert.Equal(t, float64(3), entry["lines"])
	assert.Equal(t, float64(5000), entry["ioa"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNewZerologAdapterFor_Rejects(t *testing.T) {
	_, err := NewZerologAdapterFor(&bytes.Buffer{}, "xml", "info")
	assert.Error(t, err)

	_, err = NewZerologAdapterFor(&bytes.Buffer{}, FormatConsole, "loud")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)

	lvl, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, lvl)
}

type captureLogger struct {
	fields []Field
}

func (c *captureLogger) Debug(msg string, fields ...Field) { c.fields = fields }
func (c *captureLogger) Info(msg string, fields ...Field)  { c.fields = fields }
func (c *captureLogger) Warn(msg string, fields ...Field)  { c.fields = fields }
func (c *captureLogger) Error(msg string, fields ...Field) { c.fields = fields }

func TestWith_PrependsFields(t *testing.T) {
	base := &captureLogger{}
	l := With(With(base, String("session_id", "abc")), Int("attempt", 2))

	l.Warn("reconnecting", Bool("final", false))

	require.Len(t, base.fields, 3)
	assert.Equal(t, "session_id", base.fields[0].Key)
	assert.Equal(t, "attempt", base.fields[1].Key)
	assert.Equal(t, "final", base.fields[2].Key)

	assert.Same(t, Logger(base), With(base))
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NewNoopLogger()
	l.Info("discarded", String("k", "v"))
}
