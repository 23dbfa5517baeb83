/*
validate.go - Pure input predicates

PURPOSE:
  Stateless checks on raw input, run by the engine at the start of every
  mutating operation. A failing predicate short-circuits before any store
  interaction, so validation failures never cost a transaction.

PREDICATES:
  AllowedDate:       year within the configured [MinYear, MaxYear]
  PositiveQuantity:  integer > 0
  PositivePrice:     decimal > 0
  ValidCustomerName: 2-50 runes of Unicode letters, spaces and . ' -
                     after trimming; digits and other symbols rejected
*/
package ledger

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// customerNameRE matches trimmed names: Unicode letters, spaces and a
// small punctuation set, 2 to 50 runes, anchored full-match.
var customerNameRE = regexp.MustCompile(`^[\p{L}\s.'-]{2,50}$`)

// Rules holds the configured validation window. Fixed at process start.
type Rules struct {
	MinYear int
	MaxYear int
}

// AllowedDate reports whether the date's year is inside the window.
// The zero time is always rejected.
func (r Rules) AllowedDate(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	y := t.Year()
	return y >= r.MinYear && y <= r.MaxYear
}

// CheckDate returns a DateRangeError if the date is not allowed.
func (r Rules) CheckDate(t time.Time) error {
	if r.AllowedDate(t) {
		return nil
	}
	return &DateRangeError{Year: t.Year(), MinYear: r.MinYear, MaxYear: r.MaxYear}
}

// PositiveQuantity reports whether q is a valid quantity.
func PositiveQuantity(q int) bool {
	return q > 0
}

// PositivePrice reports whether p is a valid unit price.
func PositivePrice(p decimal.Decimal) bool {
	return p.IsPositive()
}

// ValidCustomerName reports whether name is acceptable after trimming.
func ValidCustomerName(name string) bool {
	return customerNameRE.MatchString(strings.TrimSpace(name))
}
