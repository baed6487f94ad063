// Package registry is the Subscriber Registry: a keyed mapping from
// ShareLeaderKey to its current group members, polled by the Dispatch
// Supervisor rather than pushed to.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/shareleaderd/broker/internal/model"
)

// Registry is the membership collaborator the dispatch core consumes.
type Registry interface {
	// Members returns a value-copy snapshot of the current member list for
	// key, in registry insertion order (stable for round-robin determinism).
	Members(key model.ShareLeaderKey) []model.Subscriber

	// Keys returns all ShareLeaderKeys this node currently leads.
	Keys() []model.ShareLeaderKey
}

type group struct {
	order   []string // client IDs, insertion order
	members map[string]model.Subscriber
}

// Memory is the in-process Registry implementation. Membership changes
// (Subscribe/Unsubscribe/SetLedKeys) are expected to come from the
// connection-handling and placement-client layers; the dispatch core only
// ever reads through the Registry interface.
type Memory struct {
	mu     sync.RWMutex
	groups map[model.ShareLeaderKey]*group
	led    map[model.ShareLeaderKey]bool
}

// NewMemory creates an empty registry.
func NewMemory() *Memory {
	return &Memory{
		groups: make(map[model.ShareLeaderKey]*group),
		led:    make(map[model.ShareLeaderKey]bool),
	}
}

// Subscribe adds or replaces a subscriber in its ShareLeaderKey's group.
// Replacing preserves the original insertion position.
func (m *Memory) Subscribe(sub model.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := model.ShareLeaderKey{GroupName: sub.GroupName, TopicID: sub.TopicID}
	g, ok := m.groups[key]
	if !ok {
		g = &group{members: make(map[string]model.Subscriber)}
		m.groups[key] = g
	}
	if _, exists := g.members[sub.ClientID]; !exists {
		g.order = append(g.order, sub.ClientID)
	}
	g.members[sub.ClientID] = sub
}

// Unsubscribe removes a subscriber from a ShareLeaderKey's group.
func (m *Memory) Unsubscribe(key model.ShareLeaderKey, clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[key]
	if !ok {
		return
	}
	if _, exists := g.members[clientID]; !exists {
		return
	}
	delete(g.members, clientID)
	for i, id := range g.order {
		if id == clientID {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// SetLedKeys replaces the set of keys this node leads. It is the hook the
// placement-center client uses to push the latest leadership assignment; the
// Dispatch Supervisor observes the result through Keys() on its own poll
// cycle.
func (m *Memory) SetLedKeys(keys []model.ShareLeaderKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	led := make(map[model.ShareLeaderKey]bool, len(keys))
	for _, k := range keys {
		led[k] = true
	}
	m.led = led
}

// TouchDelivery stamps the last successful delivery time for a group member.
// Called by the dispatch worker after each completed delivery; a member that
// left in the meantime is a no-op.
func (m *Memory) TouchDelivery(key model.ShareLeaderKey, clientID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[key]
	if !ok {
		return
	}
	if sub, ok := g.members[clientID]; ok {
		sub.LastDelivery = at
		g.members[clientID] = sub
	}
}

func (m *Memory) Members(key model.ShareLeaderKey) []model.Subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[key]
	if !ok {
		return nil
	}
	out := make([]model.Subscriber, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.members[id])
	}
	return out
}

func (m *Memory) Keys() []model.ShareLeaderKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.ShareLeaderKey, 0, len(m.led))
	for k := range m.led {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupName != out[j].GroupName {
			return out[i].GroupName < out[j].GroupName
		}
		return out[i].TopicID < out[j].TopicID
	})
	return out
}
