package logger

import (
	"os"
	"path/filepath"
	"testing"

	"mex-balancer-bot-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("JSONWithFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "bot.log")

		log, err := NewLogger(config.Logger{Level: "info", Format: "json", File: path})
		require.NoError(t, err)
		log.Info("hello")
		_ = log.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"hello"`)
		assert.Contains(t, string(data), `"service":"mex-balancer"`)
	})

	t.Run("DefaultLevel", func(t *testing.T) {
		log, err := NewLogger(config.Logger{})
		require.NoError(t, err)
		assert.NotNil(t, log)
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := NewLogger(config.Logger{Level: "loud"})
		assert.ErrorContains(t, err, "invalid log level")
	})
}
