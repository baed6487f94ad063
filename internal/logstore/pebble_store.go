package logstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/shareleaderd/broker/internal/model"
)

func nanoTime(nano int64) time.Time {
	return time.Unix(0, nano).UTC()
}

// Pebble is a Store backed by a cockroachdb/pebble LSM database. Records are
// keyed so that an ordered range scan naturally yields strictly increasing
// offsets per topic; committed cursors are a small fixed-size value under a
// separate key prefix so they never interleave with record keys.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (creating if absent) a pebble database at dir to back the
// log store. The caller must Close it on shutdown.
func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble log store: %w", err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Close() error {
	return p.db.Close()
}

func recordKey(topicID string, offset uint64) []byte {
	key := make([]byte, 0, len(topicID)+1+8)
	key = append(key, 'r', ':')
	key = append(key, topicID...)
	key = append(key, ':')
	key = binary.BigEndian.AppendUint64(key, offset)
	return key
}

func recordPrefix(topicID string) []byte {
	key := make([]byte, 0, len(topicID)+2)
	key = append(key, 'r', ':')
	key = append(key, topicID...)
	key = append(key, ':')
	return key
}

func cursorDBKey(topicID, groupID string) []byte {
	key := make([]byte, 0, len(topicID)+len(groupID)+2)
	key = append(key, 'c', ':')
	key = append(key, topicID...)
	key = append(key, ':')
	key = append(key, groupID...)
	return key
}

// PutRecord writes a single record for topicID. Used by the ingest path (not
// part of the dispatch core's own interface, but required for the log to
// have anything to read).
func (p *Pebble) PutRecord(ctx context.Context, topicID string, rec model.Record) error {
	value := make([]byte, 8, 8+len(rec.Payload))
	binary.BigEndian.PutUint64(value, uint64(rec.ProducedAt.UnixNano()))
	value = append(value, rec.Payload...)
	if err := p.db.Set(recordKey(topicID, rec.Offset), value, pebble.Sync); err != nil {
		return storageErr("put record", err)
	}
	return nil
}

func (p *Pebble) Read(_ context.Context, topicID, groupID string, maxRecords int) ([]model.Record, error) {
	committed, err := p.readCursor(topicID, groupID)
	if err != nil {
		return nil, err
	}

	lower := recordKey(topicID, committed+1)
	upper := append(recordPrefix(topicID), 0xff)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, storageErr("open iterator", err)
	}
	defer iter.Close()

	var out []model.Record
	for iter.First(); iter.Valid() && len(out) < maxRecords; iter.Next() {
		key := iter.Key()
		offset := binary.BigEndian.Uint64(key[len(key)-8:])
		value := iter.Value()
		if len(value) < 8 {
			continue
		}
		producedAtNano := int64(binary.BigEndian.Uint64(value[:8]))
		payload := make([]byte, len(value)-8)
		copy(payload, value[8:])
		out = append(out, model.Record{
			Offset:     offset,
			Payload:    payload,
			ProducedAt: nanoTime(producedAtNano),
		})
	}
	return out, iter.Error()
}

func (p *Pebble) readCursor(topicID, groupID string) (uint64, error) {
	value, closer, err := p.db.Get(cursorDBKey(topicID, groupID))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("read committed cursor", err)
	}
	defer closer.Close()
	if len(value) < 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(value), nil
}

func (p *Pebble) Commit(_ context.Context, topicID, groupID string, offset uint64) error {
	current, err := p.readCursor(topicID, groupID)
	if err != nil {
		return err
	}
	if offset <= current {
		return nil
	}
	value := binary.BigEndian.AppendUint64(nil, offset)
	if err := p.db.Set(cursorDBKey(topicID, groupID), value, pebble.Sync); err != nil {
		return storageErr("commit cursor", err)
	}
	return nil
}

// storageErr wraps a pebble failure so callers can match the whole class with
// errors.Is(err, model.ErrStorageUnavailable) regardless of which operation
// failed.
func storageErr(op string, err error) error {
	return &model.DispatchError{
		Code:    model.CodeStorageUnavailable,
		Message: "logstore: " + op,
		Parent:  fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err),
	}
}
