// Package router is the Response Router: it hands a built packet to the
// owning connection's writer queue, looked up by connection id. Each sink
// declares its connection's protocol version, but Send does not consult it;
// the packet's own Version field, set by the caller, decides its encoding.
package router

import (
	"sync"

	"github.com/shareleaderd/broker/internal/model"
	"github.com/shareleaderd/broker/internal/packets"
)

// Sink is one connection's egress queue. Implementations are expected to be
// non-blocking or bounded; a full sink should return an error rather than
// block the dispatch worker indefinitely.
type Sink interface {
	Protocol() model.Protocol
	Send(pkt packets.Packet) error
}

// Router is the egress collaborator the Dispatch Worker consumes.
type Router struct {
	mu    sync.RWMutex
	sinks map[string]Sink // keyed by connection id (== client id)
}

// New creates an empty Router.
func New() *Router {
	return &Router{sinks: make(map[string]Sink)}
}

// Attach registers the sink for a connection id, replacing any previous one.
func (r *Router) Attach(connectionID string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[connectionID] = sink
}

// Detach removes a connection's sink, e.g. on disconnect.
func (r *Router) Detach(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, connectionID)
}

// Send writes pkt to connectionID's egress queue. It returns
// model.ErrNoConnection if the connection is not currently established; the
// worker treats that as "this subscriber is unreachable right now" and
// proceeds to the next candidate without committing.
func (r *Router) Send(connectionID string, pkt packets.Packet) error {
	r.mu.RLock()
	sink, ok := r.sinks[connectionID]
	r.mu.RUnlock()
	if !ok {
		return model.ErrNoConnection
	}
	return sink.Send(pkt)
}

// ProtocolOf reports the declared protocol version for connectionID. It
// returns false if the connection is not attached.
func (r *Router) ProtocolOf(connectionID string) (model.Protocol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sinks[connectionID]
	if !ok {
		return 0, false
	}
	return sink.Protocol(), true
}
