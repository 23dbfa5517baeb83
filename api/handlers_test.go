package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pangkalan/gasledger/api"
	"github.com/pangkalan/gasledger/config"
	"github.com/pangkalan/gasledger/ledger"
	"github.com/pangkalan/gasledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testAdminToken = "test-admin-token"

func newTestServer(t *testing.T) *httptest.Server {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Config{
		MinYear:    2025,
		MaxYear:    2050,
		UnitCost:   decimal.NewFromInt(15500),
		FilledNote: "isi dari agen",
		EmptyNote:  "beli tabung",
		AdminToken: testAdminToken,
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	engine := ledger.NewEngine(store, ledger.Config{
		Rules:             ledger.Rules{MinYear: cfg.MinYear, MaxYear: cfg.MaxYear},
		DefaultFilledNote: cfg.FilledNote,
		DefaultEmptyNote:  cfg.EmptyNote,
	}, log)

	server := httptest.NewServer(api.NewRouter(api.NewHandler(engine, store, cfg, log)))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func addStock(t *testing.T, server *httptest.Server, kind string, qty int) {
	t.Helper()
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/stocks/"+kind,
		map[string]any{"qty": qty, "date": "2025-06-15"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func stocksOf(t *testing.T, body map[string]any) (filled, empty int) {
	t.Helper()
	stocks, ok := body["stocks"].(map[string]any)
	require.True(t, ok, "response missing stocks: %v", body)
	return int(stocks["isi"].(float64)), int(stocks["kosong"].(float64))
}

// =============================================================================
// STOCK ENDPOINTS
// =============================================================================

func TestAPI_GetStocks_InitiallyZero(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/stocks", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["isi"])
	assert.Equal(t, float64(0), body["kosong"])
}

func TestAPI_AddFilled_Flow(t *testing.T) {
	// GIVEN: 5 empties in stock
	// WHEN: POSTing 3 filled
	// THEN: 201 with balance (3, 2)

	server := newTestServer(t)
	addStock(t, server, "empty", 5)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/stocks/filled",
		map[string]any{"qty": 3, "date": "2025-06-15"}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	filled, empty := stocksOf(t, body)
	assert.Equal(t, 3, filled)
	assert.Equal(t, 2, empty)
}

func TestAPI_AddFilled_InsufficientEmpties_422(t *testing.T) {
	server := newTestServer(t)
	addStock(t, server, "empty", 2)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/stocks/filled",
		map[string]any{"qty": 3, "date": "2025-06-15"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "insufficient")
}

func TestAPI_AddStock_BadInput_400(t *testing.T) {
	server := newTestServer(t)

	cases := []map[string]any{
		{"qty": 0, "date": "2025-06-15"},
		{"qty": -2, "date": "2025-06-15"},
		{"qty": 3, "date": "15/06/2025"},
		{"qty": 3, "date": "2024-06-15"}, // year below the window
		{"qty": 3},
	}
	for i, payload := range cases {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/stocks/empty", payload, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "case %d: %v", i, payload)
	}
}

func TestAPI_ListStockEvents_Paged(t *testing.T) {
	server := newTestServer(t)
	addStock(t, server, "empty", 5)
	addStock(t, server, "filled", 3) // two more events (transfer)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/stocks/events?page=1&page_size=2", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), body["total"])
	assert.Len(t, body["events"].([]any), 2)

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/stocks/events?page_size=ALL", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["events"].([]any), 3)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/stocks/events?page_size=bogus", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// SALES ENDPOINTS
// =============================================================================

func TestAPI_CreateSale_Flow(t *testing.T) {
	// GIVEN: 13 filled, 2 empty
	// WHEN: selling 5 at 20000
	// THEN: 201 with balance (8, 2) and the sale echo including profit

	server := newTestServer(t)
	addStock(t, server, "empty", 15)
	addStock(t, server, "filled", 13)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/sales", map[string]any{
		"customer": "Ayu",
		"qty":      5,
		"price":    "20000",
		"method":   "TUNAI",
		"date":     "2025-06-15",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	filled, empty := stocksOf(t, body)
	assert.Equal(t, 8, filled)
	assert.Equal(t, 2, empty)

	sale := body["sale"].(map[string]any)
	assert.Equal(t, "Ayu", sale["customer"])
	assert.Equal(t, "100000", fmt.Sprint(sale["total"]))
	// profit = (20000 - 15500) x 5
	assert.Equal(t, "22500", fmt.Sprint(sale["profit"]))
}

func TestAPI_CreateSale_InsufficientStock_422(t *testing.T) {
	server := newTestServer(t)
	addStock(t, server, "empty", 10)
	addStock(t, server, "filled", 10)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/sales", map[string]any{
		"customer": "Budi",
		"qty":      20,
		"price":    "20000",
		"date":     "2025-06-15",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAPI_CreateSale_BadInput_400(t *testing.T) {
	server := newTestServer(t)
	addStock(t, server, "empty", 5)
	addStock(t, server, "filled", 5)

	cases := []map[string]any{
		{"customer": "Ayu2", "qty": 1, "price": "20000", "date": "2025-06-15"}, // digit in name
		{"customer": "Ayu", "qty": 1, "price": "20000", "method": "TRANSFER", "date": "2025-06-15"},
		{"customer": "Ayu", "qty": 1, "date": "2025-06-15"}, // missing price
		{"customer": "Ayu", "qty": 1, "price": "20000", "date": "2025-13-45"},
	}
	for i, payload := range cases {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/sales", payload, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "case %d: %v", i, payload)
	}
}

func TestAPI_ListSales_Filtered(t *testing.T) {
	server := newTestServer(t)
	addStock(t, server, "empty", 10)
	addStock(t, server, "filled", 10)

	for _, s := range []map[string]any{
		{"customer": "Ayu Lestari", "qty": 2, "price": "20000", "method": "TUNAI", "date": "2025-06-10"},
		{"customer": "Budi", "qty": 1, "price": "20000", "method": "HUTANG", "date": "2025-06-12"},
	} {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/sales", s, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/sales?name=ayu", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/sales?method=HUTANG", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	sales := body["sales"].([]any)
	require.Len(t, sales, 1)
	assert.Equal(t, "Budi", sales[0].(map[string]any)["customer"])

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/sales?method=BARTER", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestAPI_GetSummary(t *testing.T) {
	server := newTestServer(t)
	addStock(t, server, "empty", 10)
	addStock(t, server, "filled", 10)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/sales", map[string]any{
		"customer": "Ayu", "qty": 4, "price": "20000", "date": "2025-06-15",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/reports/summary", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, float64(4), body["total_qty"])
	assert.Equal(t, "80000", fmt.Sprint(body["total_revenue"]))
	assert.Equal(t, "62000", fmt.Sprint(body["total_cost"]))
	assert.Equal(t, "18000", fmt.Sprint(body["total_profit"]))
}

func TestAPI_VerifyLedger_Consistent(t *testing.T) {
	server := newTestServer(t)
	addStock(t, server, "empty", 5)
	addStock(t, server, "filled", 3)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/ledger/verify", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["consistent"])
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAPI_ResetAll_TokenRequired(t *testing.T) {
	server := newTestServer(t)
	addStock(t, server, "empty", 5)

	// No token: refused, nothing changes.
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/admin/reset", nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Wrong token: still refused.
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/admin/reset", nil,
		map[string]string{"X-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/stocks", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), body["kosong"])

	// Correct token: the ledger is wiped.
	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/admin/reset", nil,
		map[string]string{"X-Admin-Token": testAdminToken})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	filled, empty := stocksOf(t, body)
	assert.Equal(t, 0, filled)
	assert.Equal(t, 0, empty)
}
