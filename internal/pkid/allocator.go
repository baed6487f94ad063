// Package pkid is the PacketId Allocator: a per-client monotonic 16-bit id
// allocator with wraparound-skips-in-use and recycle-on-release.
package pkid

import (
	"sync"
	"time"

	"github.com/shareleaderd/broker/internal/model"
)

type clientState struct {
	next uint16
	used map[uint16]bool
}

// Allocator hands out packet identifiers in [1, 65535] per client.
type Allocator struct {
	mu          sync.Mutex
	clients     map[string]*clientState
	waitBound   time.Duration
	pollBackoff time.Duration
}

// New creates an Allocator. waitBound bounds how long Acquire will block
// polling for a freed id before failing with ErrNoPkidAvailable; zero means
// fail immediately.
func New(waitBound time.Duration) *Allocator {
	return &Allocator{
		clients:     make(map[string]*clientState),
		waitBound:   waitBound,
		pollBackoff: time.Millisecond,
	}
}

func (a *Allocator) stateFor(clientID string) *clientState {
	st, ok := a.clients[clientID]
	if !ok {
		st = &clientState{used: make(map[uint16]bool)}
		a.clients[clientID] = st
	}
	return st
}

// tryAcquire scans for a free id without blocking.
func (a *Allocator) tryAcquire(clientID string) (uint16, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.stateFor(clientID)
	for i := uint32(0); i < 65535; i++ {
		st.next++
		if st.next == 0 {
			st.next = 1
		}
		if !st.used[st.next] {
			st.used[st.next] = true
			return st.next, true
		}
	}
	return 0, false
}

// Acquire returns the next free pkid for clientID. If every id is in use it
// polls up to waitBound before failing with ErrNoPkidAvailable.
func (a *Allocator) Acquire(clientID string) (uint16, error) {
	deadline := time.Now().Add(a.waitBound)
	for {
		if id, ok := a.tryAcquire(clientID); ok {
			return id, nil
		}
		if a.waitBound <= 0 || time.Now().After(deadline) {
			return 0, model.ErrNoPkidAvailable
		}
		time.Sleep(a.pollBackoff)
	}
}

// Release frees pkid for reuse by clientID. Releasing an id that was not
// acquired is a no-op.
func (a *Allocator) Release(clientID string, id uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if st, ok := a.clients[clientID]; ok {
		delete(st.used, id)
	}
}

// Lease is a scoped handle over one acquired pkid. Release is idempotent and
// intended to be deferred immediately after Acquire succeeds, guaranteeing
// the pkid is freed on every exit path of the QoS state machine.
type Lease struct {
	alloc    *Allocator
	clientID string
	id       uint16
	released bool
}

// AcquireLease acquires a pkid and wraps it in a Lease.
func (a *Allocator) AcquireLease(clientID string) (*Lease, error) {
	id, err := a.Acquire(clientID)
	if err != nil {
		return nil, err
	}
	return &Lease{alloc: a, clientID: clientID, id: id}, nil
}

// ID returns the leased packet identifier.
func (l *Lease) ID() uint16 {
	return l.id
}

// Release frees the leased pkid. Safe to call more than once.
func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	l.alloc.Release(l.clientID, l.id)
}
