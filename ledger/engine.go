/*
engine.go - Invariant-checked mutation operations

PURPOSE:
  The engine is the write surface of the ledger. Every mutation follows
  the same shape: validate input, read the current balance, compute the
  proposed balance, reject the whole operation if any counter would go
  negative, otherwise commit events and the new balance atomically.

CONCURRENCY:
  The engine holds no mutable shared state and may be called from any
  number of goroutines. Correctness comes from the store's
  compare-and-swap on the balance projection: a write that lost the race
  fails with ErrConflict and is retried here with a short backoff. Only
  exhausted retries surface to the caller.

OPERATIONS:
  AddFilled:  +qty ISI and -qty KOSONG in one transaction (fill empties
              at the depot, receive filled cylinders back)
  AddEmpty:   +qty KOSONG
  RecordSale: one SaleEvent plus -qty ISI, atomically
  ResetAll:   admin-gated truncation to the empty ledger
  Balance:    pure read of the projection

SEE ALSO:
  - validate.go: the predicates run before any store interaction
  - store.go: the atomicity and CAS contract
*/
package ledger

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Write conflicts are races, not rule violations; a couple of retries
// resolve them under realistic contention.
const (
	maxCommitAttempts = 3
	retryBackoff      = 15 * time.Millisecond
)

// Config carries the process-wide settings the engine needs. Fixed at
// startup, not re-derived.
type Config struct {
	Rules Rules

	// Default note strings per operation kind, used when the caller
	// leaves the note empty.
	DefaultFilledNote string
	DefaultEmptyNote  string
}

// Engine exposes the mutation operations and the balance read. It is
// safe for concurrent use.
type Engine struct {
	store Store
	cfg   Config
	log   *logrus.Logger
}

// NewEngine creates an engine over the given store. A nil logger
// disables engine logging.
func NewEngine(store Store, cfg Config, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Engine{store: store, cfg: cfg, log: log}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// AddFilled records qty cylinders refilled at the depot: +qty ISI and
// -qty KOSONG committed together. The transfer conserves the total
// cylinder count; it is rejected whole if KOSONG would go negative.
func (e *Engine) AddFilled(ctx context.Context, qty int, date time.Time, note string) (Balance, error) {
	if !PositiveQuantity(qty) {
		return Balance{}, ErrInvalidQuantity
	}
	if err := e.cfg.Rules.CheckDate(date); err != nil {
		return Balance{}, err
	}
	if strings.TrimSpace(note) == "" {
		note = e.cfg.DefaultFilledNote
	}

	balance, err := e.commit(ctx, func(prior Balance) ([]StockEvent, *SaleEvent, error) {
		if prior.Empty < qty {
			return nil, nil, &InsufficientStockError{Unit: UnitEmpty, Available: prior.Empty, Requested: qty}
		}
		now := time.Now().UTC()
		return []StockEvent{
			{ID: uuid.NewString(), Unit: UnitFilled, DeltaQty: qty, Note: note, OccurredOn: date, RecordedAt: now},
			{ID: uuid.NewString(), Unit: UnitEmpty, DeltaQty: -qty, Note: note, OccurredOn: date, RecordedAt: now},
		}, nil, nil
	})
	if err != nil {
		return Balance{}, err
	}

	e.log.WithFields(logrus.Fields{"op": "add_filled", "qty": qty, "filled": balance.Filled, "empty": balance.Empty}).Info("stock updated")
	return balance, nil
}

// AddEmpty records qty newly acquired empty cylinders: +qty KOSONG.
// There is no upstream stock prerequisite.
func (e *Engine) AddEmpty(ctx context.Context, qty int, date time.Time, note string) (Balance, error) {
	if !PositiveQuantity(qty) {
		return Balance{}, ErrInvalidQuantity
	}
	if err := e.cfg.Rules.CheckDate(date); err != nil {
		return Balance{}, err
	}
	if strings.TrimSpace(note) == "" {
		note = e.cfg.DefaultEmptyNote
	}

	balance, err := e.commit(ctx, func(prior Balance) ([]StockEvent, *SaleEvent, error) {
		return []StockEvent{
			{ID: uuid.NewString(), Unit: UnitEmpty, DeltaQty: qty, Note: note, OccurredOn: date, RecordedAt: time.Now().UTC()},
		}, nil, nil
	})
	if err != nil {
		return Balance{}, err
	}

	e.log.WithFields(logrus.Fields{"op": "add_empty", "qty": qty, "filled": balance.Filled, "empty": balance.Empty}).Info("stock updated")
	return balance, nil
}

// RecordSale appends one SaleEvent and the matching -qty ISI debit
// atomically. Returns the post-transaction balance and the created sale
// for the caller's own confirmation echo.
func (e *Engine) RecordSale(ctx context.Context, customer string, qty int, unitPrice decimal.Decimal, method PaymentMethod, date time.Time) (Balance, SaleEvent, error) {
	if !PositiveQuantity(qty) {
		return Balance{}, SaleEvent{}, ErrInvalidQuantity
	}
	if !PositivePrice(unitPrice) {
		return Balance{}, SaleEvent{}, ErrInvalidPrice
	}
	if !ValidCustomerName(customer) {
		return Balance{}, SaleEvent{}, ErrInvalidCustomerName
	}
	if err := e.cfg.Rules.CheckDate(date); err != nil {
		return Balance{}, SaleEvent{}, err
	}
	if !method.Valid() {
		method = PayCash
	}
	customer = strings.TrimSpace(customer)

	var sale SaleEvent
	balance, err := e.commit(ctx, func(prior Balance) ([]StockEvent, *SaleEvent, error) {
		if prior.Filled < qty {
			return nil, nil, &InsufficientStockError{Unit: UnitFilled, Available: prior.Filled, Requested: qty}
		}
		now := time.Now().UTC()
		sale = SaleEvent{
			ID:           uuid.NewString(),
			CustomerName: customer,
			Qty:          qty,
			UnitPrice:    unitPrice,
			Total:        unitPrice.Mul(decimal.NewFromInt(int64(qty))),
			Method:       method,
			SaleDate:     date,
			RecordedAt:   now,
		}
		debit := StockEvent{
			ID:         uuid.NewString(),
			Unit:       UnitFilled,
			DeltaQty:   -qty,
			Note:       "customer: " + customer,
			SaleID:     sale.ID,
			OccurredOn: date,
			RecordedAt: now,
		}
		return []StockEvent{debit}, &sale, nil
	})
	if err != nil {
		return Balance{}, SaleEvent{}, err
	}

	e.log.WithFields(logrus.Fields{"op": "sale", "customer": customer, "qty": qty, "total": sale.Total.String()}).Info("sale recorded")
	return balance, sale, nil
}

// ResetAll discards all history and returns the zeroed balance. The
// capability check is enforced by the store, not here: in a multi-client
// setting the store is the only trusted enforcement point.
func (e *Engine) ResetAll(ctx context.Context, isAdmin bool) (Balance, error) {
	balance, err := e.store.ResetAll(ctx, isAdmin)
	if err != nil {
		return Balance{}, err
	}
	e.log.WithField("op", "reset").Warn("ledger reset to empty")
	return balance, nil
}

// =============================================================================
// READS
// =============================================================================

// Balance returns the current projection. Store failures propagate as-is
// so callers can tell "empty inventory" from "balance unavailable".
func (e *Engine) Balance(ctx context.Context) (Balance, error) {
	return e.store.ReadBalance(ctx)
}

// Subscribe registers a balance-changed observer with the store.
func (e *Engine) Subscribe(fn func(Balance)) {
	e.store.Subscribe(fn)
}

// VerifyReplay replays the full event log from (0,0) and checks that it
// reproduces the current projection. Requires a store with commit-order
// reads; other stores get ErrStoreUnavailable.
func (e *Engine) VerifyReplay(ctx context.Context) (Balance, error) {
	rs, ok := e.store.(ReplayStore)
	if !ok {
		return Balance{}, &StoreError{Op: "replay", Err: errors.New("store does not expose commit-order reads")}
	}
	events, err := rs.StockEventsInCommitOrder(ctx)
	if err != nil {
		return Balance{}, err
	}
	replayed, err := Replay(events)
	if err != nil {
		return Balance{}, err
	}
	current, err := e.store.ReadBalance(ctx)
	if err != nil {
		return Balance{}, err
	}
	if !replayed.Equal(current) {
		return Balance{}, &CorruptLogError{At: replayed}
	}
	return current, nil
}

// =============================================================================
// COMMIT LOOP
// =============================================================================

// commit runs the read-check-write sequence, retrying bounded times on
// CAS conflicts. build receives the pre-transaction balance and returns
// the events (and optional sale) to append; returning an error aborts
// with no store write.
func (e *Engine) commit(ctx context.Context, build func(prior Balance) ([]StockEvent, *SaleEvent, error)) (Balance, error) {
	var lastErr error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		prior, err := e.store.ReadBalance(ctx)
		if err != nil {
			return Balance{}, err
		}

		events, sale, err := build(prior)
		if err != nil {
			return Balance{}, err
		}

		// Engine-side guard; the store re-checks inside its transaction.
		if prior.ApplyAll(events).IsNegative() {
			return Balance{}, ErrInsufficientStock
		}

		next, err := e.store.AppendEvents(ctx, events, sale, prior)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Balance{}, err
		}

		lastErr = err
		e.log.WithField("attempt", attempt).Debug("write conflict, retrying")
		select {
		case <-ctx.Done():
			return Balance{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return Balance{}, lastErr
}
