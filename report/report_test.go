package report_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pangkalan/gasledger/ledger"
	"github.com/pangkalan/gasledger/report"
)

// =============================================================================
// TEST DATA
// =============================================================================

func day(d int) time.Time {
	return time.Date(2025, time.June, d, 0, 0, 0, 0, time.UTC)
}

func sale(id, customer string, qty int, price int64, method ledger.PaymentMethod, date time.Time) ledger.SaleEvent {
	p := decimal.NewFromInt(price)
	return ledger.SaleEvent{
		ID:           id,
		CustomerName: customer,
		Qty:          qty,
		UnitPrice:    p,
		Total:        p.Mul(decimal.NewFromInt(int64(qty))),
		Method:       method,
		SaleDate:     date,
	}
}

func testSales() []ledger.SaleEvent {
	return []ledger.SaleEvent{
		sale("s1", "Ayu Lestari", 2, 20000, ledger.PayCash, day(10)),
		sale("s2", "Budi Santoso", 1, 20000, ledger.PayCredit, day(12)),
		sale("s3", "ayu pratiwi", 3, 21000, ledger.PayCash, day(12)),
		sale("s4", "Citra", 1, 20000, ledger.PayCash, day(15)),
	}
}

// =============================================================================
// SALES FILTER
// =============================================================================

func TestFilterSales_NoFilter_AllReturned_MostRecentFirst(t *testing.T) {
	out := report.FilterSales(testSales(), report.SalesFilter{})

	assert.Len(t, out, 4)
	assert.Equal(t, "s4", out[0].ID)
	// Ties on June 12 keep insertion order: s2 before s3.
	assert.Equal(t, "s2", out[1].ID)
	assert.Equal(t, "s3", out[2].ID)
	assert.Equal(t, "s1", out[3].ID)
}

func TestFilterSales_NameContains_CaseInsensitive(t *testing.T) {
	out := report.FilterSales(testSales(), report.SalesFilter{NameContains: "AYU"})

	assert.Len(t, out, 2)
	for _, s := range out {
		assert.Contains(t, []string{"s1", "s3"}, s.ID)
	}
}

func TestFilterSales_DateBounds_Inclusive(t *testing.T) {
	out := report.FilterSales(testSales(), report.SalesFilter{From: day(12), To: day(15)})

	assert.Len(t, out, 3)
	assert.Equal(t, "s4", out[0].ID)
}

func TestFilterSales_Method(t *testing.T) {
	credit := ledger.PayCredit
	out := report.FilterSales(testSales(), report.SalesFilter{Method: &credit})

	assert.Len(t, out, 1)
	assert.Equal(t, "s2", out[0].ID)
}

func TestFilterSales_CombinedPredicatesAND(t *testing.T) {
	cash := ledger.PayCash
	out := report.FilterSales(testSales(), report.SalesFilter{
		NameContains: "ayu",
		From:         day(11),
		Method:       &cash,
	})

	assert.Len(t, out, 1)
	assert.Equal(t, "s3", out[0].ID)
}

func TestFilterSales_EmptyResult(t *testing.T) {
	out := report.FilterSales(testSales(), report.SalesFilter{NameContains: "nobody"})
	assert.Empty(t, out)
}

// =============================================================================
// STOCK EVENT FILTER
// =============================================================================

func TestFilterStockEvents_DateBounds(t *testing.T) {
	events := []ledger.StockEvent{
		{ID: "e1", Unit: ledger.UnitEmpty, DeltaQty: 5, OccurredOn: day(1)},
		{ID: "e2", Unit: ledger.UnitFilled, DeltaQty: 3, OccurredOn: day(10)},
		{ID: "e3", Unit: ledger.UnitFilled, DeltaQty: -1, OccurredOn: day(20)},
	}

	out := report.FilterStockEvents(events, report.StockFilter{From: day(5), To: day(15)})
	assert.Len(t, out, 1)
	assert.Equal(t, "e2", out[0].ID)

	all := report.FilterStockEvents(events, report.StockFilter{})
	assert.Len(t, all, 3)
	assert.Equal(t, "e3", all[0].ID, "most recent first")
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSummarize(t *testing.T) {
	// 7 cylinders sold: 2x20000 + 1x20000 + 3x21000 + 1x20000 = 143000
	// cost basis 7 x 15500 = 108500, margin 34500

	s := report.Summarize(testSales(), decimal.NewFromInt(15500))

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 7, s.TotalQty)
	assert.True(t, s.TotalRevenue.Equal(decimal.NewFromInt(143000)), "revenue %s", s.TotalRevenue)
	assert.True(t, s.TotalCost.Equal(decimal.NewFromInt(108500)), "cost %s", s.TotalCost)
	assert.True(t, s.TotalProfit.Equal(decimal.NewFromInt(34500)), "profit %s", s.TotalProfit)
}

func TestSummarize_Empty(t *testing.T) {
	s := report.Summarize(nil, decimal.NewFromInt(15500))

	assert.Equal(t, 0, s.Count)
	assert.Equal(t, 0, s.TotalQty)
	assert.True(t, s.TotalRevenue.IsZero())
	assert.True(t, s.TotalCost.IsZero())
	assert.True(t, s.TotalProfit.IsZero())
}

// =============================================================================
// PAGINATION
// =============================================================================

func TestParsePageSize(t *testing.T) {
	size, ok := report.ParsePageSize("10")
	assert.True(t, ok)
	assert.Equal(t, report.PageSize(10), size)

	size, ok = report.ParsePageSize("ALL")
	assert.True(t, ok)
	assert.Equal(t, report.SizeAll, size)

	size, ok = report.ParsePageSize("all")
	assert.True(t, ok)
	assert.Equal(t, report.SizeAll, size)

	for _, bad := range []string{"", "0", "-1", "ten", "1.5"} {
		_, ok := report.ParsePageSize(bad)
		assert.False(t, ok, "expected %q to be rejected", bad)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{1, 2}, report.Paginate(items, 1, 2))
	assert.Equal(t, []int{3, 4}, report.Paginate(items, 2, 2))
	assert.Equal(t, []int{5}, report.Paginate(items, 3, 2))

	// Past the end: empty slice, never an error.
	assert.Empty(t, report.Paginate(items, 4, 2))

	// SizeAll returns everything regardless of page.
	assert.Equal(t, items, report.Paginate(items, 7, report.SizeAll))

	// Page below 1 clamps to the first page.
	assert.Equal(t, []int{1, 2}, report.Paginate(items, 0, 2))
}
