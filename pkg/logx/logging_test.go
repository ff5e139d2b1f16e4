package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewJSONWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "debug").With(String("comp", "test"))
	log.Info("hello", Int("n", 3), Duration("d", time.Second), Err(errors.New("bad")), Err(nil))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	require.Equal(t, "hello", m["message"])
	require.Equal(t, "test", m["comp"])
	require.Equal(t, float64(3), m["n"])
	require.Equal(t, "bad", m["err"])
	require.Contains(t, m["caller"], "logging_test.go:")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "warn")
	log.Debug("quiet")
	log.Info("quiet")
	require.Zero(t, buf.Len())
	log.Warn("loud")
	require.Contains(t, buf.String(), "loud")
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	require.True(t, l.IsZero())
	l.Error("dropped", String("k", "v"))
	require.False(t, Nop().IsZero())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, ParseLevel(" debug ", LevelInfo))
	require.Equal(t, zerolog.WarnLevel, ParseLevel("WARNING", LevelInfo))
	require.Equal(t, LevelError, ParseLevel("nope", LevelError))
}

func TestServiceApplyFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	defer svc.Close()

	log.Info("to file", String("k", "v"))
	log.Debug("filtered")

	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	log.Debug("now visible")
	require.Equal(t, "debug", svc.Config().Level)
	require.NoError(t, svc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	require.Contains(t, out, "to file")
	require.NotContains(t, out, "filtered")
	require.Contains(t, out, "now visible")
	require.Equal(t, 2, strings.Count(out, "\n"))
}
