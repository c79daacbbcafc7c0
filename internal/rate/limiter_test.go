package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/cache"
)

func TestFixedWindow(t *testing.T) {
	l := NewFixedWindow(cache.NewMemory("", 0), "", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "code abc")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(1-i), res.Remaining)
	}

	res, err := l.Allow(ctx, "code abc")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(3), res.CurrentHits)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// otra clave tiene su propia ventana
	res, err = l.Allow(ctx, "code xyz")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
