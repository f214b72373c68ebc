// Package dedupe suppresses redelivered webhook events. It is a fast path
// only: the reconciler's terminal-state checks are what actually guarantee
// idempotency, so a lost cache never corrupts state, it just costs a
// redundant gateway fetch.
package dedupe

import "context"

type Cache interface {
	// MarkProcessed records an event id, returning false if it was already
	// recorded (a replay).
	MarkProcessed(ctx context.Context, eventID string) (bool, error)

	// Release forgets an event id so a gateway retry is processed again.
	// Called when handling failed for infrastructure reasons.
	Release(ctx context.Context, eventID string) error
}
