package logstore

import (
	"context"
	"testing"
	"time"

	"github.com/shareleaderd/broker/internal/model"
)

func openTestPebble(t *testing.T) *Pebble {
	t.Helper()
	p, err := OpenPebble(t.TempDir())
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPebbleReadCommitCycle(t *testing.T) {
	p := openTestPebble(t)
	ctx := context.Background()
	now := time.Now()

	for _, off := range []uint64{1, 2, 3} {
		err := p.PutRecord(ctx, "T", model.Record{Offset: off, Payload: []byte{byte(off)}, ProducedAt: now})
		if err != nil {
			t.Fatalf("put record: %v", err)
		}
	}

	recs, err := p.Read(ctx, "T", "g", 10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 3 || recs[0].Offset != 1 || recs[2].Offset != 3 {
		t.Fatalf("unexpected records: %+v", recs)
	}

	if err := p.Commit(ctx, "T", "g", 2); err != nil {
		t.Fatalf("commit: %v", err)
	}

	recs, err = p.Read(ctx, "T", "g", 10)
	if err != nil {
		t.Fatalf("read after commit: %v", err)
	}
	if len(recs) != 1 || recs[0].Offset != 3 {
		t.Fatalf("expected only offset 3 past the cursor, got %+v", recs)
	}
}

func TestPebbleCommitNeverRegresses(t *testing.T) {
	p := openTestPebble(t)
	ctx := context.Background()

	if err := p.Commit(ctx, "T", "g", 5); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := p.Commit(ctx, "T", "g", 3); err != nil {
		t.Fatalf("commit smaller: %v", err)
	}

	got, err := p.readCursor("T", "g")
	if err != nil {
		t.Fatalf("read cursor: %v", err)
	}
	if got != 5 {
		t.Errorf("cursor regressed: got %d, want 5", got)
	}
}

func TestPebbleCursorsIsolatedPerGroup(t *testing.T) {
	p := openTestPebble(t)
	ctx := context.Background()

	if err := p.PutRecord(ctx, "T", model.Record{Offset: 1, Payload: []byte("x"), ProducedAt: time.Now()}); err != nil {
		t.Fatalf("put record: %v", err)
	}
	if err := p.Commit(ctx, "T", "g1", 1); err != nil {
		t.Fatalf("commit: %v", err)
	}

	recs, err := p.Read(ctx, "T", "g2", 10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected g2's cursor untouched by g1's commit, got %d records", len(recs))
	}
}
