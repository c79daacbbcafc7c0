package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(TokensRevoked.WithLabelValues("refresh"))
	TokensRevoked.WithLabelValues("refresh").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(TokensRevoked.WithLabelValues("refresh")))
}

func TestObserveStoreOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	ObserveStoreOp("memory", "auth_codes", "store_one", 3*time.Millisecond)
	n, err := testutil.GatherAndCount(reg, "store_op_duration_seconds")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}
