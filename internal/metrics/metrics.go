// Package metrics provides Prometheus metrics collection for the transaction engine.
//
// This package includes:
// - node RPC call metrics (count, latency, outcome) per chain and method
// - broadcast outcome counters per chain and failure kind
// - a metrics HTTP server on a configurable port
//
// Usage:
//
//	metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{metrics.ServiceEngine}, logger)
//	defer metricsServer.Stop(context.Background())
//
//	m := metrics.NewEngineMetrics()
//	start := time.Now()
//	err := call()
//	m.RecordRPC("ethereum", "eth_sendRawTransaction", start, err)
package metrics

const (
	ServiceEngine = "engine"
)
