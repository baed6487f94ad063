package dispatch

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shareleaderd/broker/internal/model"
)

// Decoder turns a Record's raw payload into a Message. Decode failure is a
// skippable per-record error: the worker commits the offset and moves on.
type Decoder func(payload []byte) (*model.Message, error)

// jsonDecoder is the default Decoder: records are expected to carry their
// Message as JSON. Brokers with a different wire format supply their own
// Decoder via WithDecoder.
func jsonDecoder(payload []byte) (*model.Message, error) {
	var msg model.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, model.ErrDecodeFailed
	}
	return &msg, nil
}

// Option configures a Supervisor.
type Option func(*options)

type options struct {
	strategy            Strategy
	ackTimeout          time.Duration
	idleBackoff         time.Duration
	membershipRefresh   time.Duration
	gcInterval          time.Duration
	maxAttempts         int
	batchSizeMultiplier int
	maxQoS              uint8
	logger              *slog.Logger
	metrics             MetricsSink
	decoder             Decoder
}

func defaultOptions() *options {
	return &options{
		strategy:            RoundRobin,
		ackTimeout:          30 * time.Second,
		idleBackoff:         500 * time.Millisecond,
		membershipRefresh:   5 * time.Second,
		gcInterval:          1 * time.Second,
		maxAttempts:         8,
		batchSizeMultiplier: 5,
		maxQoS:              2,
		logger:              slog.Default(),
		metrics:             NoopMetrics{},
		decoder:             jsonDecoder,
	}
}

// WithStrategy sets the recipient-selection strategy. Default: round_robin.
func WithStrategy(s Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithAckTimeout sets how long a QoS>0 delivery waits for its ack before
// failing with ErrAckTimedOut. Default: 30s.
func WithAckTimeout(d time.Duration) Option {
	return func(o *options) { o.ackTimeout = d }
}

// WithIdleBackoff sets the sleep between empty log reads. Default: 500ms.
func WithIdleBackoff(d time.Duration) Option {
	return func(o *options) { o.idleBackoff = d }
}

// WithMembershipRefresh sets how often a worker reloads its member
// snapshot. Default: 5s.
func WithMembershipRefresh(d time.Duration) Option {
	return func(o *options) { o.membershipRefresh = d }
}

// WithGCInterval sets the supervisor's worker reconciliation period.
// Default: 1s.
func WithGCInterval(d time.Duration) Option {
	return func(o *options) { o.gcInterval = d }
}

// WithMaxAttempts bounds per-record delivery attempts before the worker
// gives up, logs, commits, and moves on. Default: 8.
func WithMaxAttempts(n int) Option {
	return func(o *options) { o.maxAttempts = n }
}

// WithBatchSizeMultiplier sets the factor applied to member count to derive
// batch_size = max(1, multiplier * |members|). Default: 5.
func WithBatchSizeMultiplier(n int) Option {
	return func(o *options) { o.batchSizeMultiplier = n }
}

// WithMaxQoS caps the QoS a PUBLISH may be built at, regardless of source or
// subscriber max-QoS. Default: 2.
func WithMaxQoS(q uint8) Option {
	return func(o *options) { o.maxQoS = q }
}

// WithLogger sets the structured logger used by the supervisor and its
// workers. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the counters sink. Default: NoopMetrics.
func WithMetrics(m MetricsSink) Option {
	return func(o *options) { o.metrics = m }
}

// WithDecoder overrides how a Record's payload is decoded into a Message.
// Default: JSON.
func WithDecoder(d Decoder) Option {
	return func(o *options) { o.decoder = d }
}
