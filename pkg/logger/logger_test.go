package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scope.log")

	l, err := newLogger(Config{Level: "info", Encoding: "json", OutputPath: path, Service: "scope-test"})
	require.NoError(t, err)

	l.Info("artifacts located", zap.Int("count", 2))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"scope-test"`)
	assert.Contains(t, string(data), `"message":"artifacts located"`)
}

func TestOrGlobal(t *testing.T) {
	nop := zap.NewNop()
	assert.Same(t, nop, OrGlobal(nop))
	assert.NotNil(t, OrGlobal(nil))
}
