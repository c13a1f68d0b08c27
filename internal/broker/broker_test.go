package broker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClampDelay(t *testing.T) {
	max := 24 * time.Hour

	require.Equal(t, time.Second, ClampDelay(0, max))
	require.Equal(t, time.Second, ClampDelay(-5*time.Minute, max))
	require.Equal(t, 90*time.Minute, ClampDelay(90*time.Minute, max))
	require.Equal(t, max, ClampDelay(48*time.Hour, max))
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope("review.request", map[string]string{"order_id": "o-1"})
	require.NoError(t, err)
	require.Equal(t, "review.request", env.Type)
	require.False(t, env.EnqueuedAt.IsZero())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(env.Value, &payload))
	require.Equal(t, "o-1", payload["order_id"])
}
