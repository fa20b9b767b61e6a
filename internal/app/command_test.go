package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/config"
)

func TestNewCommandLoadsConfigAndRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gesture_config.txt")
	require.NoError(t, os.WriteFile(path, []byte("MQTT_BROKER=tcp://localhost:1883\nLOG_LEVEL=warn\n"), 0o644))

	var got *config.Config
	boom := errors.New("boom")
	cmd := NewCommand("test", "test binary", func(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
		require.NotNil(t, logger)
		assert.NoError(t, ctx.Err())
		got = cfg
		return boom
	})
	cmd.SetArgs([]string{"--config", path})

	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, got)
	assert.Equal(t, "tcp://localhost:1883", got.MQTTBroker)
	assert.Equal(t, "warn", got.LogLevel)
	assert.Same(t, config.Get(), got)

	assert.Equal(t, DefaultConfigPath, cmd.Flags().Lookup("config").DefValue)
}
