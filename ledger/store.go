/*
store.go - Persistence contract for the stock ledger

PURPOSE:
  Defines the narrow interface between the engine and the durable store.
  The store is the single arbiter of concurrent mutation: every write
  goes through one atomic append-and-update call guarded by a
  compare-and-swap on the balance projection.

APPEND-ONLY CONTRACT:
  Events are written once and never updated or deleted. The only way
  history disappears is ResetAll, an admin-gated truncation back to the
  empty log.

ATOMICITY:
  AppendEvents is all-or-nothing: the stock events, the optional sale
  record and the new balance commit together or not at all. The store
  must reject the write if the expected prior balance is stale
  (ErrConflict) or if any resulting quantity would be negative
  (ErrInsufficientStock) - the negativity guard lives here, at the sole
  write path, not in every caller.

NOTIFICATIONS:
  Subscribers receive the post-commit balance at least once per change.
  Dispatch is asynchronous and must never block the mutating caller.

IMPLEMENTATIONS:
  - store/sqlite: production store (WAL, CAS version column)
*/
package ledger

import (
	"context"
	"time"
)

// Store is the durable collaborator holding the event log and the
// balance projection. It owns all events; the engine is its only writer.
type Store interface {
	// ReadBalance returns the current balance projection. A store
	// outage is an error, never a fabricated zero balance.
	ReadBalance(ctx context.Context) (Balance, error)

	// AppendEvents atomically appends the stock events (and the sale,
	// when non-nil), checks non-negativity, and advances the balance.
	// Fails with ErrConflict if expectedPrior.Version is stale, or
	// ErrInsufficientStock if a counter would go negative. No partial
	// effect is ever committed.
	AppendEvents(ctx context.Context, events []StockEvent, sale *SaleEvent, expectedPrior Balance) (Balance, error)

	// StockEvents returns stock events with OccurredOn in [from, to],
	// most recent first. Zero bounds mean unbounded on that side.
	StockEvents(ctx context.Context, from, to time.Time) ([]StockEvent, error)

	// Sales returns sale events with SaleDate in [from, to], most
	// recent first. Zero bounds mean unbounded on that side.
	Sales(ctx context.Context, from, to time.Time) ([]SaleEvent, error)

	// ResetAll irreversibly discards all events and reinitializes the
	// balance to (0,0). The capability check is enforced here - the
	// store is the only enforcement point trusted in a multi-client
	// setting. Fails with ErrNotAuthorized.
	ResetAll(ctx context.Context, requesterIsAdmin bool) (Balance, error)

	// Subscribe registers a balance-changed observer. Best-effort,
	// at-least-once per change, dispatched after commit.
	Subscribe(fn func(Balance))
}

// ReplayStore is an optional store capability: reading the full stock
// event history in commit order, oldest first, for replay verification.
type ReplayStore interface {
	Store

	// StockEventsInCommitOrder returns every stock event in the order
	// it was committed.
	StockEventsInCommitOrder(ctx context.Context) ([]StockEvent, error)
}
