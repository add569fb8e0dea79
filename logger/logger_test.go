package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitStderr(t *testing.T) {
	Init(LoggingConfig{Level: "info"})

	log := Get(context.Background())
	require.NotNil(t, log)
	// Sync on stderr may fail on some platforms.
	_ = Sync()
}

func TestInitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vastlogmon.log")
	Init(LoggingConfig{Level: "debug", Path: path, MaxSize: 1})

	Get(nil).Infof("hello %s", "file")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}

func TestGetFromContext(t *testing.T) {
	custom := zap.NewNop().Sugar()
	ctx := WithContext(context.Background(), custom)

	assert.Same(t, custom, Get(ctx))
	assert.NotNil(t, Get(nil))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}
