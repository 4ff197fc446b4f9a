package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/drivelens/pkg/utils/logging"
	"github.com/m-mizutani/gt"
)

func TestNewLevels(t *testing.T) {
	testCases := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warning", false, false, true},
		{"error", false, false, false},
		{"DEBUG", true, true, true},
		{"invalid", false, true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.New(tc.level, buf)

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message")

			output := buf.String()
			check := func(want bool, msg string) {
				if want {
					gt.S(t, output).Contains(msg)
				} else {
					gt.S(t, output).NotContains(msg)
				}
			}
			check(tc.wantDebug, "debug message")
			check(tc.wantInfo, "info message")
			check(tc.wantWarn, "warn message")
			gt.S(t, output).Contains("error message")
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := logging.ParseLevel("warn")
	gt.NoError(t, err)
	gt.Equal(t, lvl, slog.LevelWarn)

	_, err = logging.ParseLevel("verbose")
	gt.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := logging.ParseFormat("JSON")
	gt.NoError(t, err)
	gt.Equal(t, f, logging.FormatJSON)

	f, err = logging.ParseFormat("")
	gt.NoError(t, err)
	gt.Equal(t, f, logging.FormatConsole)

	_, err = logging.ParseFormat("xml")
	gt.Error(t, err)
}

func TestNewJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("info", buf, logging.WithFormat(logging.FormatJSON))
	logger.Info("saved", "tx_hash", "0xdeadbeef")

	var record map[string]any
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	gt.Equal(t, record["msg"], "saved")
	gt.Equal(t, record["tx_hash"], "0xdeadbeef")
}

func TestOpenOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drivelens.log")
	w, closeFn, err := logging.OpenOutput(path)
	gt.NoError(t, err)

	logger := logging.New("info", w)
	logger.Info("to file")
	gt.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.S(t, string(data)).Contains("to file")
}

func TestOpenOutputStderr(t *testing.T) {
	w, closeFn, err := logging.OpenOutput("-")
	gt.NoError(t, err)
	gt.True(t, w == os.Stderr)
	gt.NoError(t, closeFn())
}

func TestWithAndFrom(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}
	logger := logging.New("debug", buf).With("component", "channel")

	ctx = logging.With(ctx, logger)
	retrieved := logging.From(ctx)
	gt.Equal(t, retrieved, logger)

	retrieved.Info("context message")
	gt.S(t, buf.String()).Contains("context message")
	gt.S(t, buf.String()).Contains("channel")
}

func TestFromUsesDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	customDefault := logging.New("warn", buf)
	logging.SetDefault(customDefault)

	retrieved := logging.From(context.Background())
	gt.Equal(t, retrieved, customDefault)

	retrieved.Warn("warning from default")
	gt.S(t, buf.String()).Contains("warning from default")
}
