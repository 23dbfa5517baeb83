/*
dto.go - Data transfer objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupled from the internal
  domain model. Request bodies carry validator struct tags; handler-side
  validation runs before anything reaches the engine.

NAMING:
  The stock keys keep the operator's own vocabulary: "isi" (filled) and
  "kosong" (empty), with "qty_change" on movement rows.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pangkalan/gasledger/ledger"
	"github.com/pangkalan/gasledger/report"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// AddStockRequest is the body for both stock addition endpoints.
type AddStockRequest struct {
	Qty  int    `json:"qty" validate:"required,gt=0"`
	Date string `json:"date" validate:"required"` // YYYY-MM-DD
	Note string `json:"note"`
}

// CreateSaleRequest is the body for recording a sale.
type CreateSaleRequest struct {
	Customer string          `json:"customer" validate:"required"`
	Qty      int             `json:"qty" validate:"required,gt=0"`
	Price    decimal.Decimal `json:"price" validate:"required"`
	Method   string          `json:"method" validate:"omitempty,oneof=TUNAI HUTANG"`
	Date     string          `json:"date" validate:"required"` // YYYY-MM-DD
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// BalanceDTO is the current stock position.
type BalanceDTO struct {
	Filled int `json:"isi"`
	Empty  int `json:"kosong"`
}

// StockEventDTO is one row of the movement history.
type StockEventDTO struct {
	ID         string `json:"id"`
	Unit       string `json:"code"`
	QtyChange  int    `json:"qty_change"`
	Note       string `json:"note,omitempty"`
	SaleID     string `json:"sale_id,omitempty"`
	Date       string `json:"date"`
	RecordedAt string `json:"recorded_at"`
}

// SaleDTO is one row of the sales history. Profit is derived with the
// configured unit cost (HPP) for display; it is not stored.
type SaleDTO struct {
	ID         string          `json:"id"`
	Customer   string          `json:"customer"`
	Qty        int             `json:"qty"`
	Price      decimal.Decimal `json:"price"`
	Total      decimal.Decimal `json:"total"`
	Method     string          `json:"method"`
	Date       string          `json:"date"`
	RecordedAt string          `json:"recorded_at"`
	Profit     decimal.Decimal `json:"profit"`
}

// SummaryDTO is the fold over a filtered sales view.
type SummaryDTO struct {
	Count        int             `json:"count"`
	TotalQty     int             `json:"total_qty"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBalanceDTO(b ledger.Balance) BalanceDTO {
	return BalanceDTO{Filled: b.Filled, Empty: b.Empty}
}

func toStockEventDTO(e ledger.StockEvent) StockEventDTO {
	return StockEventDTO{
		ID:         e.ID,
		Unit:       string(e.Unit),
		QtyChange:  e.DeltaQty,
		Note:       e.Note,
		SaleID:     e.SaleID,
		Date:       e.OccurredOn.Format("2006-01-02"),
		RecordedAt: e.RecordedAt.Format(time.RFC3339),
	}
}

func toStockEventDTOs(events []ledger.StockEvent) []StockEventDTO {
	dtos := make([]StockEventDTO, len(events))
	for i, e := range events {
		dtos[i] = toStockEventDTO(e)
	}
	return dtos
}

func toSaleDTO(s ledger.SaleEvent, unitCost decimal.Decimal) SaleDTO {
	return SaleDTO{
		ID:         s.ID,
		Customer:   s.CustomerName,
		Qty:        s.Qty,
		Price:      s.UnitPrice,
		Total:      s.Total,
		Method:     string(s.Method),
		Date:       s.SaleDate.Format("2006-01-02"),
		RecordedAt: s.RecordedAt.Format(time.RFC3339),
		Profit:     s.Profit(unitCost),
	}
}

func toSaleDTOs(sales []ledger.SaleEvent, unitCost decimal.Decimal) []SaleDTO {
	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s, unitCost)
	}
	return dtos
}

func toSummaryDTO(s report.Summary) SummaryDTO {
	return SummaryDTO{
		Count:        s.Count,
		TotalQty:     s.TotalQty,
		TotalRevenue: s.TotalRevenue,
		TotalCost:    s.TotalCost,
		TotalProfit:  s.TotalProfit,
	}
}
