/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place. Callers branch on sentinels with
  errors.Is; structured types carry the details.

ERROR CATEGORIES:
  1. Input errors - invalid quantity/price/date/name; the caller fixes
     its input, never retried automatically
  2. Business-rule rejections - insufficient stock; safe to show verbatim
  3. Authorization - denied without revealing anything else
  4. Store errors - write conflicts (retryable) and outages (surfaced
     as-is, never masked as an empty balance)
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidQuantity is returned when a quantity is zero or negative.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")

	// ErrInvalidPrice is returned when a unit price is zero or negative.
	ErrInvalidPrice = errors.New("price must be greater than zero")

	// ErrInvalidDate is returned when a transaction date falls outside
	// the configured allowed year range.
	ErrInvalidDate = errors.New("date outside allowed range")

	// ErrInvalidCustomerName is returned when a customer name fails the
	// allowed-name predicate.
	ErrInvalidCustomerName = errors.New("invalid customer name")

	// ErrInsufficientStock is returned when a mutation would drive a
	// stock counter negative. The whole transaction is rejected.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNotAuthorized is returned when the caller lacks the admin
	// capability for a destructive operation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrConflict is returned when an optimistic write lost the race on
	// the balance projection. Transient; the engine retries it.
	ErrConflict = errors.New("balance version conflict")

	// ErrStoreUnavailable is returned when the durable store cannot be
	// reached. Never substituted with a zero balance.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError reports which counter fell short.
type InsufficientStockError struct {
	Unit      Unit
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient %s stock: available %d, requested %d",
		e.Unit, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// DateRangeError reports the rejected year and the configured window.
type DateRangeError struct {
	Year    int
	MinYear int
	MaxYear int
}

func (e *DateRangeError) Error() string {
	return fmt.Sprintf("date year %d outside allowed range [%d, %d]",
		e.Year, e.MinYear, e.MaxYear)
}

func (e *DateRangeError) Unwrap() error {
	return ErrInvalidDate
}

// CorruptLogError is returned by Replay when the event history itself
// violates non-negativity. This should be impossible through the normal
// write path and indicates external tampering or a store bug.
type CorruptLogError struct {
	EventID string
	At      Balance
}

func (e *CorruptLogError) Error() string {
	return fmt.Sprintf("corrupt event log: negative balance (%d, %d) after event %s",
		e.At.Filled, e.At.Empty, e.EventID)
}

// StoreError wraps a low-level store failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return ErrStoreUnavailable
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to caller input or a
// business-rule rejection, i.e. correctable without operator help.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidCustomerName) ||
		errors.Is(err, ErrInsufficientStock)
}

// IsRetryable reports whether the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
