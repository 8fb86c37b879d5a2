package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vultisig/txengine/internal/chainerr"
)

var (
	rpcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "txengine",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of node RPC calls",
		},
		[]string{"chain", "method", "outcome"},
	)

	rpcRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "txengine",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Node RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"chain", "method"},
	)

	broadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "txengine",
			Subsystem: "broadcast",
			Name:      "results_total",
			Help:      "Total number of broadcasts by outcome",
		},
		[]string{"chain", "outcome"},
	)
)

// EngineMetrics records node interaction metrics. A nil *EngineMetrics is a
// valid no-op recorder.
type EngineMetrics struct{}

func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{}
}

// RecordRPC records one node call started at start.
func (m *EngineMetrics) RecordRPC(chain, method string, start time.Time, err error) {
	if m == nil {
		return
	}
	rpcRequestsTotal.WithLabelValues(chain, method, outcome(err)).Inc()
	rpcRequestDuration.WithLabelValues(chain, method).Observe(time.Since(start).Seconds())
}

// RecordBroadcast records the result of one broadcast attempt.
func (m *EngineMetrics) RecordBroadcast(chain string, err *chainerr.Error) {
	if m == nil {
		return
	}
	res := "success"
	if err != nil {
		res = string(err.Kind)
	}
	broadcastsTotal.WithLabelValues(chain, res).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := chainerr.KindOf(err); kind != "" {
		return string(kind)
	}
	if chainerr.IsTimeout(err) {
		return string(chainerr.KindRPCTimeout)
	}
	return "error"
}
