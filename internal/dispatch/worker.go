package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/shareleaderd/broker/internal/ack"
	"github.com/shareleaderd/broker/internal/logstore"
	"github.com/shareleaderd/broker/internal/model"
	"github.com/shareleaderd/broker/internal/pkid"
	"github.com/shareleaderd/broker/internal/registry"
	"github.com/shareleaderd/broker/internal/router"
)

// DeliveryToucher is implemented by registries that track each member's
// last successful delivery time.
type DeliveryToucher interface {
	TouchDelivery(key model.ShareLeaderKey, clientID string, at time.Time)
}

// worker is the Dispatch Worker: the per-group loop that reads a batch,
// picks a member by strategy, builds a PUBLISH, runs the QoS state machine,
// and commits. Exactly one worker exists per led ShareLeaderKey per node.
type worker struct {
	key     model.ShareLeaderKey
	groupID string

	logStore logstore.Store
	reg      registry.Registry
	touch    DeliveryToucher // nil when the registry does not track it
	tracker  *ack.Tracker
	alloc    *pkid.Allocator
	rtr      *router.Router

	opts *options
	log  *slog.Logger

	memberSnapshot      []model.Subscriber
	snapshotRefreshedAt time.Time
	batchSize           int
	cursorIndex         int
	sticky              stickyState

	done chan struct{}
}

func newWorker(key model.ShareLeaderKey, logStore logstore.Store, reg registry.Registry, tracker *ack.Tracker, alloc *pkid.Allocator, rtr *router.Router, opts *options) *worker {
	touch, _ := reg.(DeliveryToucher)
	return &worker{
		key:       key,
		groupID:   key.GroupID(),
		logStore:  logStore,
		reg:       reg,
		touch:     touch,
		tracker:   tracker,
		alloc:     alloc,
		rtr:       rtr,
		opts:      opts,
		log:       opts.logger.With("group", key.GroupName, "topic", key.TopicID),
		batchSize: opts.batchSizeMultiplier,
		done:      make(chan struct{}),
	}
}

// run is the worker's main loop. It returns when ctx is cancelled; the
// caller (the supervisor) does not need to wait on anything beyond ctx
// cancellation plus the worker's done channel closing.
func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	w.opts.metrics.WorkerStart(w.key)
	defer w.opts.metrics.WorkerStop(w.key)

	w.refreshSnapshot()

	for {
		if ctx.Err() != nil {
			return
		}

		if time.Since(w.snapshotRefreshedAt) >= w.opts.membershipRefresh {
			w.refreshSnapshot()
		}

		if ctx.Err() != nil {
			return
		}

		records, err := w.logStore.Read(ctx, w.key.TopicID, w.groupID, w.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error("log read failed", "error", err)
			if !sleepCtx(ctx, w.opts.idleBackoff) {
				return
			}
			continue
		}
		w.opts.metrics.RecordsRead(w.key, len(records))

		if len(records) == 0 {
			if !sleepCtx(ctx, w.opts.idleBackoff) {
				return
			}
			continue
		}

		for _, rec := range records {
			if !w.dispatchRecord(ctx, rec) {
				return
			}
		}
	}
}

func (w *worker) refreshSnapshot() {
	w.memberSnapshot = w.reg.Members(w.key)
	w.snapshotRefreshedAt = time.Now()
	n := len(w.memberSnapshot)
	if n < 1 {
		n = 1
	}
	w.batchSize = w.opts.batchSizeMultiplier * n
	if w.batchSize < 1 {
		w.batchSize = 1
	}
}

// dispatchRecord handles one record to terminal state (delivered, skipped on
// decode error, or attempts exhausted), committing its offset on every path
// except a worker cancellation. It returns false if the worker should exit.
func (w *worker) dispatchRecord(ctx context.Context, rec model.Record) bool {
	msg, err := w.opts.decoder(rec.Payload)
	if err != nil {
		w.commitWithRetry(ctx, rec.Offset)
		w.opts.metrics.RecordsCommitted(w.key, 1)
		return true
	}
	if msg.Topic == "" {
		msg.Topic = w.key.TopicID
	}

	attempts := 0
	for {
		if ctx.Err() != nil {
			return false
		}

		if len(w.memberSnapshot) == 0 {
			if !sleepCtx(ctx, w.opts.idleBackoff) {
				return false
			}
			w.refreshSnapshot()
			continue
		}

		recipient, perr := pick(w.opts.strategy, w.memberSnapshot, &w.cursorIndex, &w.sticky, msg)
		if perr != nil {
			if !sleepCtx(ctx, w.opts.idleBackoff) {
				return false
			}
			continue
		}

		outcome := w.deliverOnce(ctx, msg, &recipient)
		switch outcome {
		case deliverOK:
			if w.touch != nil {
				w.touch.TouchDelivery(w.key, recipient.ClientID, time.Now())
			}
			w.commitWithRetry(ctx, rec.Offset)
			w.opts.metrics.RecordsCommitted(w.key, 1)
			return true
		case deliverCancelled:
			return false
		case deliverNoPkid, deliverFailed:
			if outcome == deliverNoPkid {
				if !sleepCtx(ctx, pkidRetryBackoff) {
					return false
				}
			}
			recordStickyFailure(&w.sticky, recipient.ClientID)
			attempts++
			if attempts >= w.opts.maxAttempts {
				w.log.Warn("delivery attempts exhausted, skipping record",
					"offset", rec.Offset, "attempts", attempts)
				w.commitWithRetry(ctx, rec.Offset)
				w.opts.metrics.RecordsCommitted(w.key, 1)
				return true
			}
		}
	}
}

type deliverResult uint8

const (
	deliverOK deliverResult = iota
	deliverFailed
	// deliverNoPkid is a failure caused by pkid exhaustion or a busy id;
	// the worker backs off briefly before the next attempt so the in-flight
	// deliveries holding the id space have a chance to drain.
	deliverNoPkid
	deliverCancelled
)

// pkidRetryBackoff is the pause after a PkidBusy/NoPkidAvailable failure.
const pkidRetryBackoff = 20 * time.Millisecond

// deliverOnce runs one delivery attempt to recipient: build the PUBLISH,
// send it, and for QoS>0 run the ack handshake. It never advances the
// offset itself; the caller commits on deliverOK.
func (w *worker) deliverOnce(ctx context.Context, msg *model.Message, recipient *model.Subscriber) deliverResult {
	qos := minQoS(minQoS(msg.SourceQoS, recipient.QoSMax), model.QoS(w.opts.maxQoS))

	if qos == model.AtMostOnce {
		pkt := buildPublish(msg, recipient, w.opts.maxQoS, 0)
		if err := w.rtr.Send(recipient.ClientID, pkt); err != nil {
			return deliverFailed
		}
		w.opts.metrics.PublishSent(w.key)
		return deliverOK
	}

	lease, err := w.alloc.AcquireLease(recipient.ClientID)
	if err != nil {
		return deliverNoPkid
	}
	defer lease.Release()

	if qos == model.AtLeastOnce {
		return w.runQoS1(ctx, msg, recipient, lease)
	}
	return w.runQoS2(ctx, msg, recipient, lease)
}

func (w *worker) runQoS1(ctx context.Context, msg *model.Message, recipient *model.Subscriber, lease *pkid.Lease) deliverResult {
	handle, err := w.tracker.Register(recipient.ClientID, lease.ID(), model.PubAck, w.opts.ackTimeout)
	if err != nil {
		return deliverNoPkid
	}

	pkt := buildPublish(msg, recipient, w.opts.maxQoS, lease.ID())
	if err := w.rtr.Send(recipient.ClientID, pkt); err != nil {
		w.tracker.Remove(recipient.ClientID, lease.ID())
		return deliverFailed
	}
	w.opts.metrics.PublishSent(w.key)

	out := w.tracker.Await(ctx, handle)
	switch {
	case out.Cancelled:
		return deliverCancelled
	case out.TimedOut:
		w.opts.metrics.AckTimeout(w.key)
		return deliverFailed
	case out.Acked && out.Kind == model.PubAck:
		w.opts.metrics.AckMatched(w.key)
		return deliverOK
	default:
		return deliverFailed
	}
}

func (w *worker) runQoS2(ctx context.Context, msg *model.Message, recipient *model.Subscriber, lease *pkid.Lease) deliverResult {
	recHandle, err := w.tracker.Register(recipient.ClientID, lease.ID(), model.PubRec, w.opts.ackTimeout)
	if err != nil {
		return deliverNoPkid
	}

	pkt := buildPublish(msg, recipient, w.opts.maxQoS, lease.ID())
	if err := w.rtr.Send(recipient.ClientID, pkt); err != nil {
		w.tracker.Remove(recipient.ClientID, lease.ID())
		return deliverFailed
	}
	w.opts.metrics.PublishSent(w.key)

	recOut := w.tracker.Await(ctx, recHandle)
	switch {
	case recOut.Cancelled:
		return deliverCancelled
	case recOut.TimedOut:
		w.opts.metrics.AckTimeout(w.key)
		return deliverFailed
	case !(recOut.Acked && recOut.Kind == model.PubRec):
		return deliverFailed
	}
	w.opts.metrics.AckMatched(w.key)

	compHandle, err := w.tracker.Register(recipient.ClientID, lease.ID(), model.PubComp, w.opts.ackTimeout)
	if err != nil {
		return deliverFailed
	}

	rel := buildPubrel(recipient, lease.ID())
	if err := w.rtr.Send(recipient.ClientID, rel); err != nil {
		w.tracker.Remove(recipient.ClientID, lease.ID())
		return deliverFailed
	}

	compOut := w.tracker.Await(ctx, compHandle)
	switch {
	case compOut.Cancelled:
		return deliverCancelled
	case compOut.TimedOut:
		w.opts.metrics.AckTimeout(w.key)
		return deliverFailed
	case compOut.Acked && compOut.Kind == model.PubComp:
		w.opts.metrics.AckMatched(w.key)
		return deliverOK
	default:
		return deliverFailed
	}
}

// commitWithRetry retries the commit indefinitely with exponential backoff
// (10ms, 20ms, ..., capped at 1s) on storage failure, per the commit policy:
// the worker never proceeds past an uncommitted offset. It breaks out as
// soon as the commit succeeds.
func (w *worker) commitWithRetry(ctx context.Context, offset uint64) {
	backoff := 10 * time.Millisecond
	const maxBackoff = 1 * time.Second

	for {
		err := w.logStore.Commit(ctx, w.key.TopicID, w.groupID, offset)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		w.log.Error("commit failed, retrying", "offset", offset, "error", err, "backoff", backoff)
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first. It
// returns false if ctx was cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
