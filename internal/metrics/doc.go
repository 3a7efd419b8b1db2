// Package metrics provides an observability framework for pipeline phase,
// hash-pool, builder, reconciler, and mesh-load metrics.
//
// # Design Philosophy
//
// This package implements the Null Object pattern to enable metrics collection
// without requiring explicit nil checks throughout the codebase. By default,
// all components use NoopRecorder which implements the Recorder interface with
// no-op methods that inline to nothing at compile time.
//
// # Architecture
//
// The metrics system has three components:
//
//  1. Recorder interface - Defines all metrics operations
//  2. NoopRecorder - Default implementation that does nothing (zero overhead)
//  3. PrometheusRecorder - the Prometheus-backed implementation (activated when needed)
//
// # Usage Pattern
//
// Components receive a Recorder through dependency injection:
//
//	type HashPool struct {
//	    recorder metrics.Recorder
//	}
//
//	func NewHashPool() *HashPool {
//	    return &HashPool{
//	        recorder: metrics.NoopRecorder{}, // Default: no metrics
//	    }
//	}
//
// # Activation
//
// To enable metrics, swap NoopRecorder for a real implementation:
//
//	// When --metrics-addr is set
//	recorder := metrics.NewPrometheusRecorder(registry)
//	pool := hash.NewPool(cfg.Threads, hashFn, cfg.DateModifiedHash, recorder)
//
// This approach allows:
//   - Zero overhead when metrics are disabled (noop methods inline away)
//   - Metrics activation without code changes (just swap implementation)
//   - Clean testing (inject mock recorder for verification)
//   - Gradual rollout (enable metrics per-component)
//
// # Current State
//
// The CLI defaults to NoopRecorder. Setting --metrics-addr activates
// PrometheusRecorder and serves it via prometheus_http.go.
package metrics
