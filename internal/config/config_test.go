package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "chatorder", cfg.App.Name)
	require.Equal(t, "8080", cfg.App.Port)
	require.Equal(t, "chat.inbound", cfg.Rabbit.WorkQueue)
	require.Equal(t, "review.request", cfg.Rabbit.ReviewQueue)
	require.Equal(t, 24*time.Hour, cfg.Rabbit.MaxDelay)
	require.Equal(t, 2*time.Second, cfg.Pipeline.QuietPeriod)
	require.Equal(t, 6000, cfg.Pipeline.TokenCeiling)
	require.Equal(t, 7, cfg.Pipeline.KeepRecent)
	require.Equal(t, 5, cfg.Pipeline.MaxIterations)
	require.Equal(t, 5*time.Minute, cfg.Review.DefaultDelay)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHATORDER_APP_PORT", "9999")
	t.Setenv("CHATORDER_PIPELINE_TOKENCEILING", "8000")
	t.Setenv("CHATORDER_RABBIT_WORKQUEUE", "chat.inbound.test")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "9999", cfg.App.Port)
	require.Equal(t, 8000, cfg.Pipeline.TokenCeiling)
	require.Equal(t, "chat.inbound.test", cfg.Rabbit.WorkQueue)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CHATORDER_PIPELINE_KEEPRECENT", "0")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "keeprecent")
}
