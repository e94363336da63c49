package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOrchestratorConfig(t *testing.T) {
	cfg := DefaultOrchestratorConfig()
	assert.Equal(t, float64(50), cfg.Rate)
	assert.Equal(t, 100, cfg.Burst)
	assert.True(t, cfg.Enabled())
}

func TestNew(t *testing.T) {
	t.Run("disabled config yields nil", func(t *testing.T) {
		assert.Nil(t, New(Config{}))
		assert.Nil(t, New(Config{Rate: -1, Burst: 10}))
	})

	t.Run("burst defaults to the rate rounded up", func(t *testing.T) {
		rl := New(Config{Rate: 2.5})
		require.NotNil(t, rl)
		assert.Equal(t, 3, rl.Config().Burst)
	})

	t.Run("keeps explicit burst", func(t *testing.T) {
		rl := New(Config{Rate: 10, Burst: 20})
		assert.Equal(t, Config{Rate: 10, Burst: 20}, rl.Config())
	})
}

func TestLimiter_Allow(t *testing.T) {
	rl := New(Config{Rate: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(), "request %d within burst", i)
	}
	assert.False(t, rl.Allow(), "burst exhausted")
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	rl := New(Config{Rate: 0.001, Burst: 1})
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx))
}

func TestNilLimiter(t *testing.T) {
	var rl *Limiter
	assert.NoError(t, rl.Wait(context.Background()))
	assert.True(t, rl.Allow())
	assert.Equal(t, Config{}, rl.Config())
}
