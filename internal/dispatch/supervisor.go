// Package dispatch implements components F and G: the Dispatch Supervisor
// and Dispatch Worker. The supervisor reconciles the set of running workers
// against the Subscriber Registry's leadership view on a fixed poll period;
// each worker owns exactly one ShareLeaderKey's read-pick-build-ack-commit
// loop. Cyclic references between worker and supervisor are avoided by
// using one-way channels (ctx cancellation down, done-channel up) rather
// than back-pointers.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shareleaderd/broker/internal/ack"
	"github.com/shareleaderd/broker/internal/logstore"
	"github.com/shareleaderd/broker/internal/model"
	"github.com/shareleaderd/broker/internal/pkid"
	"github.com/shareleaderd/broker/internal/registry"
	"github.com/shareleaderd/broker/internal/router"
)

type runningWorker struct {
	cancel context.CancelFunc
	w      *worker
}

// Supervisor owns the set of Dispatch Workers running on this node. There is
// exactly one Supervisor per node; the composition root constructs it once
// with the collaborator handles and injects them, never via a package-level
// singleton.
type Supervisor struct {
	logStore logstore.Store
	reg      registry.Registry
	tracker  *ack.Tracker
	alloc    *pkid.Allocator
	rtr      *router.Router
	opts     *options
	log      *slog.Logger

	mu      sync.Mutex
	workers map[model.ShareLeaderKey]*runningWorker

	stop   context.CancelFunc
	stopWG sync.WaitGroup
}

// NewSupervisor creates a Supervisor over its collaborators. Call Start to
// begin reconciling, Stop to signal cancel to every worker and drain.
func NewSupervisor(logStore logstore.Store, reg registry.Registry, tracker *ack.Tracker, alloc *pkid.Allocator, rtr *router.Router, opts ...Option) *Supervisor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Supervisor{
		logStore: logStore,
		reg:      reg,
		tracker:  tracker,
		alloc:    alloc,
		rtr:      rtr,
		opts:     o,
		log:      o.logger,
		workers:  make(map[model.ShareLeaderKey]*runningWorker),
	}
}

// Start begins the reconciliation loop. It returns immediately; the loop
// runs on its own goroutine until Stop is called.
func (s *Supervisor) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.stop = cancel

	s.stopWG.Add(1)
	go func() {
		defer s.stopWG.Done()
		s.reconcileLoop(loopCtx)
	}()
}

// Stop signals cancel to every running worker, waits for them to drain, and
// stops the reconciliation loop.
func (s *Supervisor) Stop() {
	if s.stop != nil {
		s.stop()
	}
	s.stopWG.Wait()

	s.mu.Lock()
	workers := make([]*runningWorker, 0, len(s.workers))
	for _, rw := range s.workers {
		workers = append(workers, rw)
	}
	s.workers = make(map[model.ShareLeaderKey]*runningWorker)
	s.mu.Unlock()

	for _, rw := range workers {
		rw.cancel()
		<-rw.w.done
	}
}

func (s *Supervisor) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.gcInterval)
	defer ticker.Stop()

	s.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

// reconcile enumerates the keys this node leads, starts a worker for any new
// key, and stops workers whose key is no longer led. The set of running
// workers equals the set of led keys, observed at most gc_interval late.
func (s *Supervisor) reconcile(ctx context.Context) {
	ledKeys := s.reg.Keys()
	led := make(map[model.ShareLeaderKey]bool, len(ledKeys))
	for _, k := range ledKeys {
		led[k] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range led {
		if _, exists := s.workers[key]; exists {
			continue
		}
		s.startWorkerLocked(ctx, key)
	}

	for key, rw := range s.workers {
		if led[key] {
			continue
		}
		rw.cancel()
		<-rw.w.done
		delete(s.workers, key)
	}
}

func (s *Supervisor) startWorkerLocked(ctx context.Context, key model.ShareLeaderKey) {
	workerCtx, cancel := context.WithCancel(ctx)
	w := newWorker(key, s.logStore, s.reg, s.tracker, s.alloc, s.rtr, s.opts)

	s.workers[key] = &runningWorker{cancel: cancel, w: w}
	go w.run(workerCtx)
}

// Metrics exposes the counters sink configured on the supervisor, so an
// admin surface can read current values if the sink supports it.
func (s *Supervisor) Metrics() MetricsSink {
	return s.opts.metrics
}

// LedKeyCount reports how many workers are currently running, for tests and
// health checks.
func (s *Supervisor) LedKeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// Running reports whether a Dispatch Worker is currently running for key, for
// the admin surface's per-key status endpoint.
func (s *Supervisor) Running(key model.ShareLeaderKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workers[key]
	return ok
}

// LedKeys returns the set of keys this node currently runs a worker for.
func (s *Supervisor) LedKeys() []model.ShareLeaderKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]model.ShareLeaderKey, 0, len(s.workers))
	for k := range s.workers {
		keys = append(keys, k)
	}
	return keys
}
