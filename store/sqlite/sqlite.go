/*
Package sqlite provides the SQLite-backed implementation of the ledger
store.

PURPOSE:
  Implements ledger.Store (and ledger.ReplayStore) over SQLite. The same
  patterns carry to PostgreSQL with minor dialect changes.

TABLES:
  stock_events:  append-only log of stock movements
  sales:         append-only log of customer transactions
  stock_balance: singleton projection row with a CAS version column

INVARIANT ENFORCEMENT:
  Every write goes through AppendEvents inside a single SQL transaction:
  the expected prior version is compared against the stored row, the new
  quantities are computed and rejected if negative, and the UPDATE on
  stock_balance carries "WHERE version = ?" so a concurrent commit makes
  the whole transaction fail with ledger.ErrConflict. The CHECK (qty >= 0)
  constraints are the database-level backstop behind the same rule.

APPEND-ONLY:
  There are no UPDATE or DELETE statements on the event tables. The only
  truncation is ResetAll, which requires the admin capability and is
  enforced here - the store is the single trusted enforcement point.

WAL MODE:
  SQLite runs with WAL so readers never block the single writer.

NOTIFICATIONS:
  Balance subscribers are invoked on their own goroutines after commit;
  a slow observer cannot stall a mutation.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/pangkalan/gasledger/ledger"
)

const dateLayout = "2006-01-02"

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	subMu       sync.RWMutex
	subscribers []func(ledger.Balance)
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty DB.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Stock movements (append-only log)
	CREATE TABLE IF NOT EXISTS stock_events (
		id TEXT PRIMARY KEY,
		unit TEXT NOT NULL CHECK (unit IN ('ISI', 'KOSONG')),
		delta_qty INTEGER NOT NULL,
		note TEXT,
		sale_id TEXT,
		occurred_on TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stock_events_occurred_on
		ON stock_events(occurred_on DESC);
	CREATE INDEX IF NOT EXISTS idx_stock_events_sale
		ON stock_events(sale_id) WHERE sale_id IS NOT NULL;

	-- Customer transactions (append-only log)
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		customer TEXT NOT NULL,
		qty INTEGER NOT NULL CHECK (qty > 0),
		unit_price TEXT NOT NULL,
		total TEXT NOT NULL,
		method TEXT NOT NULL CHECK (method IN ('TUNAI', 'HUTANG')),
		sale_date TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_sale_date
		ON sales(sale_date DESC);
	CREATE INDEX IF NOT EXISTS idx_sales_customer
		ON sales(customer);

	-- Balance projection: exactly one row, advanced by CAS.
	-- The CHECK constraints are the last line of defense for
	-- non-negativity; the transaction logic rejects earlier.
	CREATE TABLE IF NOT EXISTS stock_balance (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		filled_qty INTEGER NOT NULL CHECK (filled_qty >= 0),
		empty_qty INTEGER NOT NULL CHECK (empty_qty >= 0),
		version INTEGER NOT NULL
	);

	INSERT OR IGNORE INTO stock_balance (id, filled_qty, empty_qty, version)
		VALUES (1, 0, 0, 0);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BALANCE PROJECTION
// =============================================================================

// ReadBalance returns the current projection row.
func (s *Store) ReadBalance(ctx context.Context) (ledger.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readBalance(ctx, s.db)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) readBalance(ctx context.Context, db querier) (ledger.Balance, error) {
	var b ledger.Balance
	err := db.QueryRowContext(ctx,
		"SELECT filled_qty, empty_qty, version FROM stock_balance WHERE id = 1",
	).Scan(&b.Filled, &b.Empty, &b.Version)
	if err != nil {
		return ledger.Balance{}, &ledger.StoreError{Op: "read balance", Err: err}
	}
	return b, nil
}

// =============================================================================
// APPEND (the sole write path)
// =============================================================================

// AppendEvents atomically appends the events, the optional sale, and the
// advanced balance. Rejects stale priors with ledger.ErrConflict and
// negative outcomes with ledger.ErrInsufficientStock; nothing partial is
// ever committed.
func (s *Store) AppendEvents(ctx context.Context, events []ledger.StockEvent, sale *ledger.SaleEvent, expectedPrior ledger.Balance) (ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Balance{}, &ledger.StoreError{Op: "begin", Err: err}
	}
	defer sqlTx.Rollback()

	current, err := s.readBalance(ctx, sqlTx)
	if err != nil {
		return ledger.Balance{}, err
	}
	if current.Version != expectedPrior.Version {
		return ledger.Balance{}, ledger.ErrConflict
	}

	next := current.ApplyAll(events)
	if next.IsNegative() {
		short := ledger.UnitFilled
		if next.Empty < 0 {
			short = ledger.UnitEmpty
		}
		return ledger.Balance{}, &ledger.InsufficientStockError{
			Unit:      short,
			Available: current.Qty(short),
			Requested: current.Qty(short) - next.Qty(short),
		}
	}

	for _, e := range events {
		if err := insertStockEvent(ctx, sqlTx, e); err != nil {
			return ledger.Balance{}, err
		}
	}
	if sale != nil {
		if err := insertSale(ctx, sqlTx, *sale); err != nil {
			return ledger.Balance{}, err
		}
	}

	res, err := sqlTx.ExecContext(ctx,
		"UPDATE stock_balance SET filled_qty = ?, empty_qty = ?, version = version + 1 WHERE id = 1 AND version = ?",
		next.Filled, next.Empty, current.Version,
	)
	if err != nil {
		if isCheckConstraintError(err) {
			return ledger.Balance{}, ledger.ErrInsufficientStock
		}
		return ledger.Balance{}, &ledger.StoreError{Op: "update balance", Err: err}
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ledger.Balance{}, ledger.ErrConflict
	}

	if err := sqlTx.Commit(); err != nil {
		return ledger.Balance{}, &ledger.StoreError{Op: "commit", Err: err}
	}

	next.Version = current.Version + 1
	s.notify(next)
	return next, nil
}

func insertStockEvent(ctx context.Context, tx *sql.Tx, e ledger.StockEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_events (id, unit, delta_qty, note, sale_id, occurred_on, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		string(e.Unit),
		e.DeltaQty,
		e.Note,
		nullString(e.SaleID),
		e.OccurredOn.Format(dateLayout),
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &ledger.StoreError{Op: "append stock event", Err: err}
	}
	return nil
}

func insertSale(ctx context.Context, tx *sql.Tx, sale ledger.SaleEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sales (id, customer, qty, unit_price, total, method, sale_date, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID,
		sale.CustomerName,
		sale.Qty,
		sale.UnitPrice.String(),
		sale.Total.String(),
		string(sale.Method),
		sale.SaleDate.Format(dateLayout),
		sale.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &ledger.StoreError{Op: "append sale", Err: err}
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// StockEvents returns stock events in [from, to] by calendar date, most
// recent first. Zero times leave that bound open.
func (s *Store) StockEvents(ctx context.Context, from, to time.Time) ([]ledger.StockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, unit, delta_qty, note, sale_id, occurred_on, recorded_at FROM stock_events"
	where, args := dateBounds("occurred_on", from, to)
	query += where + " ORDER BY occurred_on DESC, rowid DESC"

	return s.queryStockEvents(ctx, query, args...)
}

// StockEventsInCommitOrder returns the full log oldest first, the order
// replay needs.
func (s *Store) StockEventsInCommitOrder(ctx context.Context) ([]ledger.StockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryStockEvents(ctx,
		"SELECT id, unit, delta_qty, note, sale_id, occurred_on, recorded_at FROM stock_events ORDER BY rowid ASC")
}

// Sales returns sales in [from, to] by sale date, most recent first.
func (s *Store) Sales(ctx context.Context, from, to time.Time) ([]ledger.SaleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, customer, qty, unit_price, total, method, sale_date, recorded_at FROM sales"
	where, args := dateBounds("sale_date", from, to)
	query += where + " ORDER BY sale_date DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StoreError{Op: "query sales", Err: err}
	}
	defer rows.Close()

	var sales []ledger.SaleEvent
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) queryStockEvents(ctx context.Context, query string, args ...any) ([]ledger.StockEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StoreError{Op: "query stock events", Err: err}
	}
	defer rows.Close()

	var events []ledger.StockEvent
	for rows.Next() {
		e, err := scanStockEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanStockEvent(rows *sql.Rows) (ledger.StockEvent, error) {
	var (
		e          ledger.StockEvent
		unit       string
		note       sql.NullString
		saleID     sql.NullString
		occurredOn string
		recordedAt string
	)
	if err := rows.Scan(&e.ID, &unit, &e.DeltaQty, &note, &saleID, &occurredOn, &recordedAt); err != nil {
		return e, &ledger.StoreError{Op: "scan stock event", Err: err}
	}
	e.Unit = ledger.Unit(unit)
	e.Note = note.String
	e.SaleID = saleID.String
	e.OccurredOn, _ = time.Parse(dateLayout, occurredOn)
	e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
	return e, nil
}

func scanSale(rows *sql.Rows) (ledger.SaleEvent, error) {
	var (
		sale       ledger.SaleEvent
		unitPrice  string
		total      string
		method     string
		saleDate   string
		recordedAt string
	)
	if err := rows.Scan(&sale.ID, &sale.CustomerName, &sale.Qty, &unitPrice, &total, &method, &saleDate, &recordedAt); err != nil {
		return sale, &ledger.StoreError{Op: "scan sale", Err: err}
	}
	sale.UnitPrice = mustDecimal(unitPrice)
	sale.Total = mustDecimal(total)
	sale.Method = ledger.PaymentMethod(method)
	sale.SaleDate, _ = time.Parse(dateLayout, saleDate)
	sale.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
	return sale, nil
}

// =============================================================================
// RESET
// =============================================================================

// ResetAll truncates both logs and zeroes the projection. The admin
// capability is checked here: callers cannot bypass it by going around
// the engine.
func (s *Store) ResetAll(ctx context.Context, requesterIsAdmin bool) (ledger.Balance, error) {
	if !requesterIsAdmin {
		return ledger.Balance{}, ledger.ErrNotAuthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Balance{}, &ledger.StoreError{Op: "begin reset", Err: err}
	}
	defer sqlTx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM stock_events",
		"DELETE FROM sales",
		"UPDATE stock_balance SET filled_qty = 0, empty_qty = 0, version = version + 1 WHERE id = 1",
	} {
		if _, err := sqlTx.ExecContext(ctx, stmt); err != nil {
			return ledger.Balance{}, &ledger.StoreError{Op: "reset", Err: err}
		}
	}

	fresh, err := s.readBalance(ctx, sqlTx)
	if err != nil {
		return ledger.Balance{}, err
	}
	if err := sqlTx.Commit(); err != nil {
		return ledger.Balance{}, &ledger.StoreError{Op: "commit reset", Err: err}
	}

	s.notify(fresh)
	return fresh, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// Subscribe registers a balance observer. Delivery is best-effort and
// post-commit; each callback runs on its own goroutine.
func (s *Store) Subscribe(fn func(ledger.Balance)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) notify(b ledger.Balance) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subscribers {
		go fn(b)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func dateBounds(col string, from, to time.Time) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, col+" >= ?")
		args = append(args, from.Format(dateLayout))
	}
	if !to.IsZero() {
		conds = append(conds, col+" <= ?")
		args = append(args, to.Format(dateLayout))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isCheckConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
}
