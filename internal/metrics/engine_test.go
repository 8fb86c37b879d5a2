package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/txengine/internal/chainerr"
)

func TestEngineMetrics(t *testing.T) {
	m := NewEngineMetrics()

	before := testutil.ToFloat64(rpcRequestsTotal.WithLabelValues("ethereum", "eth_getBalance", "success"))
	m.RecordRPC("ethereum", "eth_getBalance", time.Now(), nil)
	require.Equal(t, before+1, testutil.ToFloat64(rpcRequestsTotal.WithLabelValues("ethereum", "eth_getBalance", "success")))

	m.RecordRPC("ethereum", "eth_getBalance", time.Now(), context.DeadlineExceeded)
	require.Equal(t, float64(1), testutil.ToFloat64(rpcRequestsTotal.WithLabelValues("ethereum", "eth_getBalance", "rpc_timeout")))

	m.RecordRPC("ethereum", "eth_call", time.Now(), errors.New("boom"))
	require.Equal(t, float64(1), testutil.ToFloat64(rpcRequestsTotal.WithLabelValues("ethereum", "eth_call", "error")))

	m.RecordBroadcast("bitcoin", chainerr.New(chainerr.KindOnChainRejection, "bitcoin", "min relay fee not met"))
	m.RecordBroadcast("bitcoin", nil)
	require.Equal(t, float64(1), testutil.ToFloat64(broadcastsTotal.WithLabelValues("bitcoin", "on_chain_rejection")))
	require.Equal(t, float64(1), testutil.ToFloat64(broadcastsTotal.WithLabelValues("bitcoin", "success")))

	var nilMetrics *EngineMetrics
	require.NotPanics(t, func() {
		nilMetrics.RecordRPC("ethereum", "eth_call", time.Now(), nil)
		nilMetrics.RecordBroadcast("ethereum", nil)
	})
}
