/*
Package report derives time-filtered views and summary statistics from
the ledger's event history.

PURPOSE:
  Everything here is a read-only fold over events the caller already
  loaded; the package never touches the store and never mutates the
  ledger. Filters compose by ANDing whatever predicates are supplied, a
  missing predicate means no constraint.

ORDERING:
  Filtered sales come back most recent sale date first. Ties keep the
  input (insertion) order, so re-filtering an already sorted list is
  stable.

MONEY:
  Revenue, cost basis and margin use decimal.Decimal. The unit cost
  (HPP) is supplied by the caller; it is a reporting constant, not part
  of the ledger's consistency domain.
*/
package report

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pangkalan/gasledger/ledger"
)

// =============================================================================
// SALES FILTER
// =============================================================================

// SalesFilter narrows a sale list. Zero-valued fields are ignored.
type SalesFilter struct {
	// NameContains matches case-insensitively against the customer name.
	NameContains string

	// From and To bound the sale date inclusively. Zero time = unbounded.
	From time.Time
	To   time.Time

	// Method restricts to one payment method when non-nil.
	Method *ledger.PaymentMethod
}

func (f SalesFilter) matches(s ledger.SaleEvent) bool {
	if f.NameContains != "" && !containsFold(s.CustomerName, f.NameContains) {
		return false
	}
	if !f.From.IsZero() && dayBefore(s.SaleDate, f.From) {
		return false
	}
	if !f.To.IsZero() && dayBefore(f.To, s.SaleDate) {
		return false
	}
	if f.Method != nil && s.Method != *f.Method {
		return false
	}
	return true
}

// FilterSales returns the sales satisfying every supplied predicate,
// most recent sale date first. Ties are broken by insertion order.
func FilterSales(sales []ledger.SaleEvent, f SalesFilter) []ledger.SaleEvent {
	out := make([]ledger.SaleEvent, 0, len(sales))
	for _, s := range sales {
		if f.matches(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SaleDate.After(out[j].SaleDate)
	})
	return out
}

// =============================================================================
// STOCK EVENT FILTER
// =============================================================================

// StockFilter bounds stock events by their calendar date.
type StockFilter struct {
	From time.Time
	To   time.Time
}

// FilterStockEvents returns events with OccurredOn inside the bounds,
// most recent first, stable on ties.
func FilterStockEvents(events []ledger.StockEvent, f StockFilter) []ledger.StockEvent {
	out := make([]ledger.StockEvent, 0, len(events))
	for _, e := range events {
		if !f.From.IsZero() && dayBefore(e.OccurredOn, f.From) {
			continue
		}
		if !f.To.IsZero() && dayBefore(f.To, e.OccurredOn) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredOn.After(out[j].OccurredOn)
	})
	return out
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary is the fold over a filtered sale list. TotalCost is
// unitCost x TotalQty and TotalProfit is revenue minus cost.
type Summary struct {
	Count        int
	TotalQty     int
	TotalRevenue decimal.Decimal
	TotalCost    decimal.Decimal
	TotalProfit  decimal.Decimal
}

// Summarize computes the summary for the given sales. Pure fold; an
// empty input yields the all-zero summary.
func Summarize(sales []ledger.SaleEvent, unitCost decimal.Decimal) Summary {
	s := Summary{
		TotalRevenue: decimal.Zero,
		TotalCost:    decimal.Zero,
		TotalProfit:  decimal.Zero,
	}
	for _, sale := range sales {
		s.Count++
		s.TotalQty += sale.Qty
		s.TotalRevenue = s.TotalRevenue.Add(sale.Total)
	}
	s.TotalCost = unitCost.Mul(decimal.NewFromInt(int64(s.TotalQty)))
	s.TotalProfit = s.TotalRevenue.Sub(s.TotalCost)
	return s
}

// =============================================================================
// PAGINATION
// =============================================================================

// PageSize is a positive page length, or SizeAll for the whole sequence.
type PageSize int

// SizeAll disables pagination and forces page 1.
const SizeAll PageSize = -1

// ParsePageSize parses a page size query value. "ALL" (any case) maps
// to SizeAll; otherwise the value must be a positive integer.
func ParsePageSize(s string) (PageSize, bool) {
	if strings.EqualFold(s, "ALL") {
		return SizeAll, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return PageSize(n), true
}

// Paginate returns the page-th slice of items (1-based). A page past
// the end returns an empty slice, never an error.
func Paginate[T any](items []T, page int, size PageSize) []T {
	if size == SizeAll {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * int(size)
	if start >= len(items) {
		return []T{}
	}
	end := start + int(size)
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// =============================================================================
// HELPERS
// =============================================================================

// dayBefore compares calendar dates, ignoring time of day.
func dayBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
