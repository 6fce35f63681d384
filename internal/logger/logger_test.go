package logger

import (
	"bytes"
	"testing"

	"fit2tp/internal/progress"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		log, err := New(level)
		require.NoError(t, err, level)

		want, _ := zapcore.ParseLevel(level)
		assert.True(t, log.Core().Enabled(want))
		if want > zapcore.DebugLevel {
			assert.False(t, log.Core().Enabled(want-1))
		}
	}
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New("loud")
	require.Error(t, err)
}

func TestNewWithWriterRedrawsProgressLine(t *testing.T) {
	var out, logs bytes.Buffer
	term := progress.NewTerminal(&out, &logs)
	term.SetLine("BAR")
	out.Reset()

	log, err := NewWithWriter("info", term)
	require.NoError(t, err)
	log.Info("Successfully uploaded FIT file")
	log.Debug("hidden")
	require.NoError(t, log.Sync())

	assert.Contains(t, logs.String(), "Successfully uploaded FIT file")
	assert.NotContains(t, logs.String(), "hidden")
	assert.Equal(t, "\r\033[2KBAR", out.String())
}
