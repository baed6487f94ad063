package dispatch

import "github.com/shareleaderd/broker/internal/model"

// MetricsSink receives the counters named in the management surface:
// records_read, records_committed, publishes_sent, acks_matched,
// ack_timeouts, worker_starts, worker_stops, per ShareLeaderKey. The
// prometheus-backed implementation lives in internal/metrics.
type MetricsSink interface {
	RecordsRead(key model.ShareLeaderKey, n int)
	RecordsCommitted(key model.ShareLeaderKey, n int)
	PublishSent(key model.ShareLeaderKey)
	AckMatched(key model.ShareLeaderKey)
	AckTimeout(key model.ShareLeaderKey)
	WorkerStart(key model.ShareLeaderKey)
	WorkerStop(key model.ShareLeaderKey)
}

// NoopMetrics discards every counter. It is the default sink so the core
// never requires a prometheus registry to run in tests.
type NoopMetrics struct{}

func (NoopMetrics) RecordsRead(model.ShareLeaderKey, int)      {}
func (NoopMetrics) RecordsCommitted(model.ShareLeaderKey, int) {}
func (NoopMetrics) PublishSent(model.ShareLeaderKey)           {}
func (NoopMetrics) AckMatched(model.ShareLeaderKey)            {}
func (NoopMetrics) AckTimeout(model.ShareLeaderKey)            {}
func (NoopMetrics) WorkerStart(model.ShareLeaderKey)           {}
func (NoopMetrics) WorkerStop(model.ShareLeaderKey)            {}
