package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
	}
	for name, want := range cases {
		log, err := New("libraryops", name)
		require.NoError(t, err, name)
		assert.True(t, log.Core().Enabled(want), name)
		if want > zapcore.DebugLevel {
			assert.False(t, log.Core().Enabled(want-1), name)
		}
	}
}
