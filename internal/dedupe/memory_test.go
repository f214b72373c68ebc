package dedupe_test

import (
	"context"
	"testing"

	"quotedesk/internal/dedupe"
)

func TestMemory_MarkAndRelease(t *testing.T) {
	m := dedupe.NewMemory()
	ctx := context.Background()

	fresh, err := m.MarkProcessed(ctx, "evt-1")
	if err != nil || !fresh {
		t.Fatalf("first mark: fresh=%v err=%v", fresh, err)
	}
	fresh, err = m.MarkProcessed(ctx, "evt-1")
	if err != nil || fresh {
		t.Fatalf("duplicate mark: fresh=%v err=%v", fresh, err)
	}

	// Release makes the id fresh again, for the retry-after-failure path.
	if err := m.Release(ctx, "evt-1"); err != nil {
		t.Fatal(err)
	}
	fresh, err = m.MarkProcessed(ctx, "evt-1")
	if err != nil || !fresh {
		t.Fatalf("mark after release: fresh=%v err=%v", fresh, err)
	}
}
