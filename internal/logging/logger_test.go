package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/askdb/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"DEBUG", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"ERROR", logrus.ErrorLevel},
		{"invalid", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestNewLoggerOutputs(t *testing.T) {
	for _, output := range []string{"stdout", "stderr"} {
		t.Run(output, func(t *testing.T) {
			logger, err := NewLogger(config.LoggingConfig{Level: "info", Format: "text", Output: output})
			require.NoError(t, err)
			require.NotNil(t, logger)
			assert.Nil(t, logger.file)
		})
	}
}

func TestNewLoggerFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "askdb.log")

	logger, err := NewLogger(config.LoggingConfig{
		Level:  "warn",
		Format: "json",
		Output: "file",
		File:   logFile,
	})
	require.NoError(t, err)

	logger.WithField("step", "EXECUTE_QUERY").Warn("query failed, repairing")
	logger.Info("filtered out")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "warning", record["level"])
	assert.Equal(t, "query failed, repairing", record["msg"])
	assert.Equal(t, "EXECUTE_QUERY", record["step"])
}

func TestNewLoggerErrors(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "info", Output: "file"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log file path is required")

	_, err = NewLogger(config.LoggingConfig{Level: "info", Output: "syslog"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log output")
}

func TestFieldsAreScoped(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug")

	child := logger.WithFields(map[string]any{"run_id": "abc", "database": "main_db"})
	child.Debugf("selected %d tables", 2)
	logger.Info("no fields")

	out := buf.String()
	assert.Contains(t, out, "run_id=abc")
	assert.Contains(t, out, "database=main_db")
	assert.Contains(t, out, "selected 2 tables")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[1], "run_id")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	assert.Same(t, logger, logger.WithError(nil))

	logger.ErrorWithErr("connection failed", errors.New("dial tcp: refused"))
	assert.Contains(t, buf.String(), "connection failed")
	assert.Contains(t, buf.String(), "dial tcp: refused")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "error")

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	assert.Empty(t, buf.String())
	assert.False(t, logger.IsDebug())

	logger.Error("error")
	assert.Contains(t, buf.String(), "error")
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewWithWriter(&buf, "info"))
	t.Cleanup(func() { SetLogger(nil) })

	Infof("ran %s", "pipeline")
	WithField("step", "GET_SAMPLE").Warn("sample empty")

	assert.Contains(t, buf.String(), "ran pipeline")
	assert.Contains(t, buf.String(), "step=GET_SAMPLE")
}

func TestGlobalLoggerFallsBack(t *testing.T) {
	SetLogger(nil)
	t.Cleanup(func() { SetLogger(nil) })

	assert.NotPanics(t, func() { Info("logged through fallback") })
	assert.NotNil(t, current())
}

func TestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewWithWriter(&buf, "debug"))
	t.Cleanup(func() { SetLogger(nil) })

	require.NoError(t, LoggerMiddleware("introspect", func() error { return nil }))
	assert.Contains(t, buf.String(), "Operation completed successfully")

	failure := errors.New("boom")
	assert.Equal(t, failure, LoggerMiddleware("introspect", func() error { return failure }))
	assert.Contains(t, buf.String(), "Operation failed")
}
