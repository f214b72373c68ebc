package dedupe

import (
	"context"
	"testing"
	"time"
)

func TestMemory_EntriesExpire(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now()
	m.now = func() time.Time { return base }

	if fresh, _ := m.MarkProcessed(ctx, "evt-1"); !fresh {
		t.Fatal("first mark should be fresh")
	}
	if fresh, _ := m.MarkProcessed(ctx, "evt-1"); fresh {
		t.Fatal("duplicate within the TTL should be suppressed")
	}

	// Past the TTL the id is fresh again and the stale entry is swept rather
	// than accumulating forever.
	m.now = func() time.Time { return base.Add(eventKeyTTL + time.Minute) }
	if fresh, _ := m.MarkProcessed(ctx, "evt-1"); !fresh {
		t.Fatal("expired id should be fresh again")
	}
	if len(m.seen) != 1 {
		t.Fatalf("stale entries not swept: %d", len(m.seen))
	}
}
