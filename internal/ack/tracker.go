// Package ack is the Ack Tracker: a per-client pkid -> pending-ack map with
// timeout-bounded waits. Each entry carries a single-shot completion signal
// (done channel + sync.Once) that records which ack kind arrived, so the
// awaiting worker and the inbound packet handler never race on the outcome.
package ack

import (
	"context"
	"sync"
	"time"

	"github.com/shareleaderd/broker/internal/model"
)

// Outcome is the result of awaiting a PendingAck.
type Outcome struct {
	Acked     bool
	Kind      model.AckKind
	TimedOut  bool
	Cancelled bool
}

// Err maps the outcome onto the shared error taxonomy: nil when acked,
// ErrAckTimedOut on expiry, ErrCancelled when the worker's cancel signal won
// the race.
func (o Outcome) Err() error {
	switch {
	case o.TimedOut:
		return model.ErrAckTimedOut
	case o.Cancelled:
		return model.ErrCancelled
	default:
		return nil
	}
}

type pendingEntry struct {
	expected model.AckKind
	done     chan struct{}
	once     sync.Once
	outcome  Outcome
	timer    *time.Timer
}

func (p *pendingEntry) complete(o Outcome) {
	p.once.Do(func() {
		p.outcome = o
		close(p.done)
	})
}

// AwaitHandle is returned by Register and consumed by Await exactly once.
type AwaitHandle struct {
	clientID string
	pkid     uint16
	entry    *pendingEntry
}

// Tracker is the ack collaborator the Dispatch Worker registers pending
// acknowledgements with and the inbound packet handler delivers acks into.
type Tracker struct {
	mu      sync.Mutex
	pending map[clientPkid]*pendingEntry
}

type clientPkid struct {
	clientID string
	pkid     uint16
}

// NewTracker creates an empty Ack Tracker.
func NewTracker() *Tracker {
	return &Tracker{pending: make(map[clientPkid]*pendingEntry)}
}

// Register creates a PendingAck for (clientID, pkid) expecting expected,
// armed with a timeout. It fails with ErrPkidBusy if an entry already
// exists for that pair; each (client, pkid) is owned by exactly one
// worker between acquire and release.
func (t *Tracker) Register(clientID string, pkid uint16, expected model.AckKind, timeout time.Duration) (AwaitHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := clientPkid{clientID, pkid}
	if _, exists := t.pending[key]; exists {
		return AwaitHandle{}, model.ErrPkidBusy
	}

	entry := &pendingEntry{
		expected: expected,
		done:     make(chan struct{}),
	}
	entry.timer = time.AfterFunc(timeout, func() {
		entry.complete(Outcome{TimedOut: true})
	})
	t.pending[key] = entry

	return AwaitHandle{clientID: clientID, pkid: pkid, entry: entry}, nil
}

// Deliver is invoked by the inbound packet handler when a
// PUBACK/PUBREC/PUBCOMP arrives. It wakes the corresponding awaiter with
// kind and reports whether an entry existed.
func (t *Tracker) Deliver(clientID string, pkid uint16, kind model.AckKind) bool {
	t.mu.Lock()
	entry, ok := t.pending[clientPkid{clientID, pkid}]
	t.mu.Unlock()
	if !ok {
		return false
	}
	entry.timer.Stop()
	entry.complete(Outcome{Acked: true, Kind: kind})
	return true
}

// Await suspends until the handle's PendingAck reaches one of {Acked,
// TimedOut, Cancelled}, whichever the ctx/entry race resolves first, then
// removes the entry. The caller must still call Remove itself if it returns
// early without awaiting (e.g. on a synchronous error path).
func (t *Tracker) Await(ctx context.Context, handle AwaitHandle) Outcome {
	select {
	case <-handle.entry.done:
		t.Remove(handle.clientID, handle.pkid)
		return handle.entry.outcome
	case <-ctx.Done():
		handle.entry.timer.Stop()
		handle.entry.complete(Outcome{Cancelled: true})
		t.Remove(handle.clientID, handle.pkid)
		return Outcome{Cancelled: true}
	}
}

// Remove explicitly deletes the PendingAck entry for (clientID, pkid). It is
// idempotent: removing an absent entry is a no-op.
func (t *Tracker) Remove(clientID string, pkid uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := clientPkid{clientID, pkid}
	if entry, ok := t.pending[key]; ok {
		entry.timer.Stop()
		delete(t.pending, key)
	}
}

// Len reports the number of currently outstanding PendingAck entries, used
// by tests asserting that a cancelled worker leaks nothing.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
