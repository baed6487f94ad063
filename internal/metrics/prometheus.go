// Package metrics adapts the dispatch core's counters onto prometheus,
// labeled per group/topic so each ShareLeaderKey's progress is visible on
// the admin surface's metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shareleaderd/broker/internal/model"
)

// Prometheus implements dispatch.MetricsSink by recording into a set of
// CounterVecs labeled by group and topic.
type Prometheus struct {
	recordsRead      *prometheus.CounterVec
	recordsCommitted *prometheus.CounterVec
	publishesSent    *prometheus.CounterVec
	acksMatched      *prometheus.CounterVec
	ackTimeouts      *prometheus.CounterVec
	workerStarts     *prometheus.CounterVec
	workerStops      *prometheus.CounterVec
	workersRunning   *prometheus.GaugeVec
}

// NewPrometheus registers the dispatch metric families on reg and returns a
// sink backed by them.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	labels := []string{"group", "topic"}
	p := &Prometheus{
		recordsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shareleaderd",
			Subsystem: "dispatch",
			Name:      "records_read_total",
			Help:      "Records pulled from the log store per share-leader key.",
		}, labels),
		recordsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shareleaderd",
			Subsystem: "dispatch",
			Name:      "records_committed_total",
			Help:      "Records whose cursor has been durably committed.",
		}, labels),
		publishesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shareleaderd",
			Subsystem: "dispatch",
			Name:      "publishes_sent_total",
			Help:      "PUBLISH packets sent to a shared-subscription member.",
		}, labels),
		acksMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shareleaderd",
			Subsystem: "dispatch",
			Name:      "acks_matched_total",
			Help:      "Acknowledgements matched to an outstanding delivery.",
		}, labels),
		ackTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shareleaderd",
			Subsystem: "dispatch",
			Name:      "ack_timeouts_total",
			Help:      "Deliveries that timed out waiting for an acknowledgement.",
		}, labels),
		workerStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shareleaderd",
			Subsystem: "dispatch",
			Name:      "worker_starts_total",
			Help:      "Dispatch workers started per share-leader key.",
		}, labels),
		workerStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shareleaderd",
			Subsystem: "dispatch",
			Name:      "worker_stops_total",
			Help:      "Dispatch workers stopped per share-leader key.",
		}, labels),
		workersRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "shareleaderd",
			Subsystem: "dispatch",
			Name:      "workers_running",
			Help:      "Dispatch workers currently running per share-leader key.",
		}, labels),
	}

	reg.MustRegister(
		p.recordsRead,
		p.recordsCommitted,
		p.publishesSent,
		p.acksMatched,
		p.ackTimeouts,
		p.workerStarts,
		p.workerStops,
		p.workersRunning,
	)
	return p
}

func (p *Prometheus) RecordsRead(key model.ShareLeaderKey, n int) {
	p.recordsRead.WithLabelValues(key.GroupName, key.TopicID).Add(float64(n))
}

func (p *Prometheus) RecordsCommitted(key model.ShareLeaderKey, n int) {
	p.recordsCommitted.WithLabelValues(key.GroupName, key.TopicID).Add(float64(n))
}

func (p *Prometheus) PublishSent(key model.ShareLeaderKey) {
	p.publishesSent.WithLabelValues(key.GroupName, key.TopicID).Inc()
}

func (p *Prometheus) AckMatched(key model.ShareLeaderKey) {
	p.acksMatched.WithLabelValues(key.GroupName, key.TopicID).Inc()
}

func (p *Prometheus) AckTimeout(key model.ShareLeaderKey) {
	p.ackTimeouts.WithLabelValues(key.GroupName, key.TopicID).Inc()
}

func (p *Prometheus) WorkerStart(key model.ShareLeaderKey) {
	p.workerStarts.WithLabelValues(key.GroupName, key.TopicID).Inc()
	p.workersRunning.WithLabelValues(key.GroupName, key.TopicID).Inc()
}

func (p *Prometheus) WorkerStop(key model.ShareLeaderKey) {
	p.workerStops.WithLabelValues(key.GroupName, key.TopicID).Inc()
	p.workersRunning.WithLabelValues(key.GroupName, key.TopicID).Dec()
}
