/*
Package ledger provides the core stock ledger engine.

PURPOSE:
  This package contains the types and operations for a two-state physical
  inventory: filled cylinders (ISI) ready for sale and empty cylinders
  (KOSONG) awaiting refill. Every movement is recorded as an immutable
  event; the current balance is a projection that can always be rebuilt
  by replaying the event log from zero.

KEY CONCEPTS IN THIS FILE (types.go):
  - Unit: which of the two counters an event touches (FILLED or EMPTY)
  - Balance: the current (filled, empty) quantities plus a CAS version
  - StockEvent: an immutable, signed quantity change on one unit
  - SaleEvent: a customer transaction, always paired with a FILLED debit

DESIGN PRINCIPLES:
  1. Immutability: events are appended once and never edited
  2. Non-negativity: neither counter may go below zero, ever
  3. Precision: money uses decimal.Decimal, never float
  4. Replayability: Replay(events) from (0,0) reproduces the balance

SEE ALSO:
  - engine.go: invariant-checked mutation operations
  - store.go: persistence contract
  - validate.go: input predicates
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// UNIT - The two stock kinds
// =============================================================================

// Unit identifies one of the two stock counters. Exactly these two exist.
type Unit string

const (
	UnitFilled Unit = "ISI"    // filled cylinders, ready for sale
	UnitEmpty  Unit = "KOSONG" // empty cylinders, awaiting refill
)

// Valid reports whether u is one of the two known units.
func (u Unit) Valid() bool {
	return u == UnitFilled || u == UnitEmpty
}

// =============================================================================
// BALANCE - Singleton projection over the event log
// =============================================================================

// Balance is the current stock position. It is derived state: the event
// log is the source of truth and the balance must always equal the fold
// of all events from (0,0).
//
// Version increases by one on every committed mutation and is the
// compare-and-swap token for optimistic concurrency at the store.
type Balance struct {
	Filled  int
	Empty   int
	Version int64
}

// Qty returns the quantity for a unit.
func (b Balance) Qty(u Unit) int {
	if u == UnitFilled {
		return b.Filled
	}
	return b.Empty
}

// Apply returns the balance after a single event. It does not check
// signs; callers validate the result with IsNegative.
func (b Balance) Apply(e StockEvent) Balance {
	next := b
	switch e.Unit {
	case UnitFilled:
		next.Filled += e.DeltaQty
	case UnitEmpty:
		next.Empty += e.DeltaQty
	}
	return next
}

// ApplyAll folds a slice of events onto the balance.
func (b Balance) ApplyAll(events []StockEvent) Balance {
	next := b
	for _, e := range events {
		next = next.Apply(e)
	}
	return next
}

// IsNegative reports whether either counter is below zero.
func (b Balance) IsNegative() bool {
	return b.Filled < 0 || b.Empty < 0
}

// TotalUnits returns the physical cylinder count across both states.
// A filled-from-empties transfer leaves this unchanged.
func (b Balance) TotalUnits() int {
	return b.Filled + b.Empty
}

// Equal compares quantities, ignoring the version.
func (b Balance) Equal(other Balance) bool {
	return b.Filled == other.Filled && b.Empty == other.Empty
}

// =============================================================================
// PAYMENT METHOD
// =============================================================================

// PaymentMethod is how a sale was settled.
type PaymentMethod string

const (
	PayCash   PaymentMethod = "TUNAI"  // cash on the spot
	PayCredit PaymentMethod = "HUTANG" // customer owes
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PayCash || m == PayCredit
}

// =============================================================================
// STOCK EVENT - Append-only record of a balance change
// =============================================================================

// StockEvent records one signed quantity change on one unit.
// Positive DeltaQty for additions, negative for debits. A filled-stock
// addition sourced from empties is two events in one transaction:
// +qty on ISI and -qty on KOSONG.
type StockEvent struct {
	ID       string
	Unit     Unit
	DeltaQty int
	Note     string

	// SaleID links the FILLED debit created by a sale back to the
	// SaleEvent. Empty for plain stock movements.
	SaleID string

	OccurredOn time.Time // calendar date of the movement
	RecordedAt time.Time // wall-clock commit time
}

// =============================================================================
// SALE EVENT - Customer transaction
// =============================================================================

// SaleEvent records a customer transaction. Creating one always also
// creates a StockEvent of -qty on FILLED within the same store
// transaction; a sale without a matching stock debit is corrupt.
type SaleEvent struct {
	ID           string
	CustomerName string
	Qty          int
	UnitPrice    decimal.Decimal
	Method       PaymentMethod
	SaleDate     time.Time
	RecordedAt   time.Time

	// Total is qty x unit price. Cached for read convenience; the
	// factors remain authoritative.
	Total decimal.Decimal
}

// Profit returns total revenue minus unitCost x qty. The unit cost (HPP)
// is a reporting concern only, it is not part of ledger consistency.
func (s SaleEvent) Profit(unitCost decimal.Decimal) decimal.Decimal {
	return s.Total.Sub(unitCost.Mul(decimal.NewFromInt(int64(s.Qty))))
}

// =============================================================================
// REPLAY - Rebuild the projection from the log
// =============================================================================

// Replay folds stock events in commit order from (0,0) and returns the
// resulting balance. It fails if the log ever drives a counter negative,
// which would mean the append path let an invalid write through.
func Replay(events []StockEvent) (Balance, error) {
	balance := Balance{}
	for _, e := range events {
		balance = balance.Apply(e)
		if balance.IsNegative() {
			return Balance{}, &CorruptLogError{EventID: e.ID, At: balance}
		}
	}
	return balance, nil
}
