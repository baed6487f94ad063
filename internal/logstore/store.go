// Package logstore is the Message Log Reader: a lazy, offset-addressed pull
// of records from a topic partition, plus a durably committed per-group
// cursor. Implementations must never regress a committed offset and must
// deliver records for a given (topicID, groupID) in strictly increasing
// offset order across calls made between commits.
package logstore

import (
	"context"
	"sync"

	"github.com/shareleaderd/broker/internal/model"
)

// Store is the log collaborator the dispatch core consumes. It is an open
// interface (one method pair) precisely because storage backends vary;
// the recipient-selection strategy set, by contrast, is closed (see
// internal/dispatch.Strategy).
type Store interface {
	// Read returns up to maxRecords records starting just past the
	// committed offset for (topicID, groupID). It may return fewer records,
	// including zero, and must not block indefinitely.
	Read(ctx context.Context, topicID, groupID string, maxRecords int) ([]model.Record, error)

	// Commit durably advances the committed cursor for (topicID, groupID) to
	// offset. It is idempotent for an offset equal to or smaller than the
	// current cursor: the cursor never regresses.
	Commit(ctx context.Context, topicID, groupID string, offset uint64) error
}

type cursorKey struct {
	topicID string
	groupID string
}

// Memory is an in-process Store backed by a per-topic append log and a map
// of committed cursors. It exists for tests and for single-node development;
// production durability is provided by the pebble-backed Store.
type Memory struct {
	mu      sync.Mutex
	records map[string][]model.Record // keyed by topicID
	cursors map[cursorKey]uint64
}

// NewMemory creates an empty in-memory log store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string][]model.Record),
		cursors: make(map[cursorKey]uint64),
	}
}

// Append adds records to a topic's log. Offsets must be strictly increasing
// across calls for the same topic; callers (typically tests and the ingest
// path) are responsible for assigning them.
func (m *Memory) Append(topicID string, records ...model.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[topicID] = append(m.records[topicID], records...)
}

func (m *Memory) Read(_ context.Context, topicID, groupID string, maxRecords int) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	committed := m.cursors[cursorKey{topicID, groupID}]
	all := m.records[topicID]

	start := 0
	for start < len(all) && all[start].Offset <= committed {
		start++
	}
	end := start + maxRecords
	if end > len(all) {
		end = len(all)
	}
	if start >= end {
		return nil, nil
	}

	out := make([]model.Record, end-start)
	copy(out, all[start:end])
	return out, nil
}

func (m *Memory) Commit(_ context.Context, topicID, groupID string, offset uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := cursorKey{topicID, groupID}
	if offset > m.cursors[key] {
		m.cursors[key] = offset
	}
	return nil
}

// Committed returns the current committed offset for (topicID, groupID),
// for use by tests asserting commit progress.
func (m *Memory) Committed(topicID, groupID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[cursorKey{topicID, groupID}]
}
