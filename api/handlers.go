/*
handlers.go - HTTP handlers over the stock ledger engine

PURPOSE:
  Thin presentation shell: parse and validate the request, call the
  engine or the report aggregator, serialize the result. No business
  rule lives here; the engine and store enforce the invariants.

ENDPOINTS:
  GET  /api/stocks          Current balance
  POST /api/stocks/filled   Add filled stock (debits empties)
  POST /api/stocks/empty    Add empty stock
  GET  /api/stocks/events   Movement history (date filter + paging)
  POST /api/sales           Record a sale
  GET  /api/sales           Sales history (name/date/method + paging)
  GET  /api/reports/summary Turnover / cost / margin over a filter
  GET  /api/ledger/verify   Replay check: projection vs rebuilt balance
  POST /api/admin/reset     Destructive reset (X-Admin-Token)

ERROR MAPPING:
  400 invalid input        422 insufficient stock
  403 not authorized       409 write conflict (after engine retries)
  503 store unavailable    500 anything else
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/pangkalan/gasledger/config"
	"github.com/pangkalan/gasledger/ledger"
	"github.com/pangkalan/gasledger/report"
)

// Handler holds all dependencies for the HTTP layer.
type Handler struct {
	Engine *ledger.Engine
	Store  ledger.Store
	Cfg    config.Config
	Log    *logrus.Logger

	validate *validator.Validate
}

// NewHandler wires the handler with its collaborators.
func NewHandler(engine *ledger.Engine, store ledger.Store, cfg config.Config, log *logrus.Logger) *Handler {
	return &Handler{
		Engine:   engine,
		Store:    store,
		Cfg:      cfg,
		Log:      log,
		validate: validator.New(),
	}
}

// =============================================================================
// STOCK HANDLERS
// =============================================================================

// GetStocks returns the current balance.
// A store outage is a 503, never a fabricated zero balance.
func (h *Handler) GetStocks(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Engine.Balance(r.Context())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// AddFilled records refilled cylinders coming back from the depot.
func (h *Handler) AddFilled(w http.ResponseWriter, r *http.Request) {
	req, date, ok := h.decodeStockRequest(w, r)
	if !ok {
		return
	}

	balance, err := h.Engine.AddFilled(r.Context(), req.Qty, date, req.Note)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"stocks": toBalanceDTO(balance)})
}

// AddEmpty records newly purchased empty cylinders.
func (h *Handler) AddEmpty(w http.ResponseWriter, r *http.Request) {
	req, date, ok := h.decodeStockRequest(w, r)
	if !ok {
		return
	}

	balance, err := h.Engine.AddEmpty(r.Context(), req.Qty, date, req.Note)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"stocks": toBalanceDTO(balance)})
}

// ListStockEvents returns the movement history, filtered and paged.
// Query: from, to (YYYY-MM-DD), page, page_size (number or ALL).
func (h *Handler) ListStockEvents(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseDateRange(w, r)
	if !ok {
		return
	}

	events, err := h.Store.StockEvents(r.Context(), from, to)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	filtered := report.FilterStockEvents(events, report.StockFilter{From: from, To: to})
	page, size, ok := h.parsePaging(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": toStockEventDTOs(report.Paginate(filtered, page, size)),
		"total":  len(filtered),
		"page":   page,
	})
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// CreateSale records a customer transaction; the matching stock debit
// commits in the same store transaction.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format (use YYYY-MM-DD)", err)
		return
	}

	balance, sale, err := h.Engine.RecordSale(r.Context(), req.Customer, req.Qty, req.Price, ledger.PaymentMethod(req.Method), date)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"stocks": toBalanceDTO(balance),
		"sale":   toSaleDTO(sale, h.Cfg.UnitCost),
	})
}

// ListSales returns the sales history, filtered and paged.
// Query: name, from, to, method, page, page_size.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseSalesFilter(w, r)
	if !ok {
		return
	}

	sales, err := h.Store.Sales(r.Context(), filter.From, filter.To)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	filtered := report.FilterSales(sales, filter)
	page, size, ok := h.parsePaging(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sales": toSaleDTOs(report.Paginate(filtered, page, size), h.Cfg.UnitCost),
		"total": len(filtered),
		"page":  page,
	})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetSummary computes turnover, cost of goods and margin over the same
// filter the sales listing takes.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseSalesFilter(w, r)
	if !ok {
		return
	}

	sales, err := h.Store.Sales(r.Context(), filter.From, filter.To)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	summary := report.Summarize(report.FilterSales(sales, filter), h.Cfg.UnitCost)
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// VerifyLedger replays the full event log and compares it against the
// balance projection.
func (h *Handler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Engine.VerifyReplay(r.Context())
	if err != nil {
		var corrupt *ledger.CorruptLogError
		if errors.As(err, &corrupt) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"consistent": false,
				"error":      corrupt.Error(),
			})
			return
		}
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"consistent": true,
		"stocks":     toBalanceDTO(balance),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetAll wipes the ledger. The admin capability is resolved here from
// the X-Admin-Token header, but enforcement happens in the store, so a
// client talking to the store directly gets the same refusal.
func (h *Handler) ResetAll(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Admin-Token")
	isAdmin := h.Cfg.AdminToken != "" && token == h.Cfg.AdminToken

	balance, err := h.Engine.ResetAll(r.Context(), isAdmin)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.Log.Warn("ledger reset via API")
	writeJSON(w, http.StatusOK, map[string]any{"stocks": toBalanceDTO(balance)})
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func (h *Handler) decodeStockRequest(w http.ResponseWriter, r *http.Request) (AddStockRequest, time.Time, bool) {
	var req AddStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return req, time.Time{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err)
		return req, time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format (use YYYY-MM-DD)", err)
		return req, time.Time{}, false
	}
	return req, date, true
}

func (h *Handler) parseDateRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	q := r.URL.Query()
	for _, pair := range []struct {
		key string
		dst *time.Time
	}{{"from", &from}, {"to", &to}} {
		if v := q.Get(pair.key); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+pair.key+" date (use YYYY-MM-DD)", err)
				return from, to, false
			}
			*pair.dst = t
		}
	}
	return from, to, true
}

func (h *Handler) parseSalesFilter(w http.ResponseWriter, r *http.Request) (report.SalesFilter, bool) {
	from, to, ok := h.parseDateRange(w, r)
	if !ok {
		return report.SalesFilter{}, false
	}

	filter := report.SalesFilter{
		NameContains: r.URL.Query().Get("name"),
		From:         from,
		To:           to,
	}
	if m := r.URL.Query().Get("method"); m != "" {
		method := ledger.PaymentMethod(m)
		if !method.Valid() {
			writeError(w, http.StatusBadRequest, "invalid method (use TUNAI or HUTANG)", nil)
			return report.SalesFilter{}, false
		}
		filter.Method = &method
	}
	return filter, true
}

func (h *Handler) parsePaging(w http.ResponseWriter, r *http.Request) (int, report.PageSize, bool) {
	q := r.URL.Query()

	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page", err)
			return 0, 0, false
		}
		page = n
	}

	size := report.SizeAll
	if v := q.Get("page_size"); v != "" {
		parsed, ok := report.ParsePageSize(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid page_size (use a positive number or ALL)", nil)
			return 0, 0, false
		}
		size = parsed
	}
	return page, size, true
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeLedgerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidPrice),
		errors.Is(err, ledger.ErrInvalidDate),
		errors.Is(err, ledger.ErrInvalidCustomerName):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientStock):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		h.Log.WithError(err).Error("request failed")
	}
	writeError(w, status, err.Error(), nil)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
