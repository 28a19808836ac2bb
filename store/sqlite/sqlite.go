/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements toil.LeaveStore using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  toil.Store:           Ledger entry persistence
  toil.RequestStore:    Employees and leave requests
  toil.LeaveStore:      Transactional approve/cancel flows
  toil.HolidayCalendar: Bank holiday lookups for day counting

APPEND-ONLY ENFORCEMENT:
  The Store enforces append-only semantics:
  - No UPDATE statements on toil_entries table
  - No DELETE statements on toil_entries table
  - Corrections via reversal entries only

KEY TABLES:
  toil_entries:   Immutable ledger of all balance changes
  employees:      Directory records
  leave_requests: Redemption workflow (the one mutable table)
  holidays:       Bank holidays excluded from working-day counts
  sweep_runs:     Expiry sweep audit trail

INDEXES:
  - idx_entries_employee:    Balance calculation (hot path)
  - idx_entries_idempotency: UNIQUE, the duplicate-write guard
  - idx_entries_expiry:      Sweep candidate scans

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/toil.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := toil.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - toil/store.go: Interface definitions
  - toil/store/memory.go: In-memory implementation for testing
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
	"github.com/warp/toil-engine/toil"
)

// timestampLayout is RFC3339 with fixed-width nanoseconds. Ledger
// ordering relies on lexicographic comparison of the stored strings,
// which only matches chronological order when the fractional part is
// not variable-width.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- TOIL entries (append-only ledger)
	CREATE TABLE IF NOT EXISTS toil_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		hours TEXT NOT NULL,
		source_reference TEXT,
		accrual_date TEXT,
		expiry_date TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_employee
		ON toil_entries(employee_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_entries_idempotency
		ON toil_entries(idempotency_key) WHERE idempotency_key IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_entries_expiry
		ON toil_entries(expiry_date) WHERE expiry_date IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_entries_reference
		ON toil_entries(source_reference) WHERE source_reference IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_entries_kind
		ON toil_entries(kind);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TEXT NOT NULL
	);

	-- Leave requests (redemption workflow)
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days INTEGER NOT NULL,
		hours TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT,
		reviewed_by TEXT,
		review_comments TEXT,
		reviewed_at TEXT,
		consumption_ref TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON leave_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);

	-- Bank holidays (excluded from working-day counts)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);
	CREATE INDEX IF NOT EXISTS idx_holidays_date
		ON holidays(date);

	-- Sweep runs (expiry sweep audit trail)
	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		ran_at TEXT NOT NULL,
		employees_processed INTEGER NOT NULL,
		employees_affected INTEGER NOT NULL,
		entries_expired INTEGER NOT NULL,
		hours_expired TEXT NOT NULL,
		failures INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sweep_runs_ran_at
		ON sweep_runs(ran_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (toil.Store interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append adds an entry to the ledger.
func (s *Store) Append(ctx context.Context, entry toil.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendEntry(ctx, s.db, entry)
}

func (s *Store) appendEntry(ctx context.Context, db execer, entry toil.Entry) error {
	query := `
		INSERT INTO toil_entries
		(id, employee_id, kind, hours, source_reference, accrual_date, expiry_date,
		 reason, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		string(entry.ID),
		string(entry.EmployeeID),
		string(entry.Kind),
		entry.Hours.Value.String(),
		nullString(entry.SourceReference),
		nullDate(entry.AccrualDate),
		nullDate(entry.ExpiryDate),
		nullString(entry.Reason),
		nullString(entry.IdempotencyKey),
		entry.CreatedAt.UTC().Format(timestampLayout),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return toil.ErrDuplicateIdempotencyKey
		}
		if isBusyError(err) {
			return toil.ErrLedgerWriteConflict
		}
		return fmt.Errorf("failed to append entry: %w", err)
	}

	return nil
}

// AppendBatch adds multiple entries atomically.
func (s *Store) AppendBatch(ctx context.Context, entries []toil.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	keys := make(map[string]bool)
	for _, e := range entries {
		if e.IdempotencyKey != "" {
			if keys[e.IdempotencyKey] {
				return toil.ErrDuplicateIdempotencyKey
			}
			keys[e.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, e := range entries {
		if err := s.appendEntry(ctx, sqlTx, e); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

const entryColumns = `id, employee_id, kind, hours, source_reference, accrual_date, expiry_date,
	       reason, idempotency_key, created_at`

// Load returns all entries for an employee, oldest first.
func (s *Store) Load(ctx context.Context, employeeID toil.EmployeeID) ([]toil.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + entryColumns + `
		FROM toil_entries
		WHERE employee_id = ?
		ORDER BY created_at ASC, id ASC
	`

	return queryEntries(ctx, s.db, query, string(employeeID))
}

// LoadRange returns entries created in [from, to].
func (s *Store) LoadRange(ctx context.Context, employeeID toil.EmployeeID, from, to time.Time) ([]toil.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + entryColumns + `
		FROM toil_entries
		WHERE employee_id = ?
		  AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC, id ASC
	`

	return queryEntries(ctx, s.db, query, string(employeeID),
		from.UTC().Format(timestampLayout), to.UTC().Format(timestampLayout))
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM toil_entries WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// EmployeeIDs returns every employee with at least one ledger entry.
func (s *Store) EmployeeIDs(ctx context.Context) ([]toil.EmployeeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT employee_id FROM toil_entries ORDER BY employee_id ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []toil.EmployeeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, toil.EmployeeID(id))
	}
	return ids, rows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryEntries(ctx context.Context, db querier, query string, args ...any) ([]toil.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []toil.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (toil.Entry, error) {
	var (
		entry           toil.Entry
		id              string
		employeeID      string
		kind            string
		hours           string
		sourceReference sql.NullString
		accrualDate     sql.NullString
		expiryDate      sql.NullString
		reason          sql.NullString
		idempotencyKey  sql.NullString
		createdAt       string
	)

	err := rows.Scan(
		&id, &employeeID, &kind, &hours, &sourceReference,
		&accrualDate, &expiryDate, &reason, &idempotencyKey, &createdAt,
	)
	if err != nil {
		return entry, fmt.Errorf("failed to scan entry: %w", err)
	}

	entry.ID = toil.EntryID(id)
	entry.EmployeeID = toil.EmployeeID(employeeID)
	entry.Kind = toil.EntryKind(kind)
	entry.Hours = toil.Amount{Value: toil.MustParseDecimal(hours), Unit: toil.UnitHours}
	entry.SourceReference = sourceReference.String
	entry.Reason = reason.String
	entry.IdempotencyKey = idempotencyKey.String
	entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if accrualDate.Valid {
		entry.AccrualDate, _ = time.Parse("2006-01-02", accrualDate.String)
	}
	if expiryDate.Valid {
		entry.ExpiryDate, _ = time.Parse("2006-01-02", expiryDate.String)
	}

	return entry, nil
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// SaveEmployee saves an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp toil.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveEmployeeExec(ctx, s.db, emp)
}

func saveEmployeeExec(ctx context.Context, db execer, emp toil.Employee) error {
	query := `
		INSERT INTO employees (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email
	`

	createdAt := emp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, query,
		string(emp.ID), emp.Name, emp.Email,
		createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id toil.EmployeeID) (*toil.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getEmployee(ctx, s.db, id)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getEmployee(ctx context.Context, db rowQuerier, id toil.EmployeeID) (*toil.Employee, error) {
	var emp toil.Employee
	var empID string
	var email sql.NullString
	var createdAt string

	err := db.QueryRowContext(ctx,
		"SELECT id, name, email, created_at FROM employees WHERE id = ?",
		string(id),
	).Scan(&empID, &emp.Name, &email, &createdAt)

	if err == sql.ErrNoRows {
		return nil, toil.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}

	emp.ID = toil.EmployeeID(empID)
	emp.Email = email.String
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &emp, nil
}

// ListEmployees returns all employees.
func (s *Store) ListEmployees(ctx context.Context) ([]toil.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, created_at FROM employees ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []toil.Employee
	for rows.Next() {
		var emp toil.Employee
		var id string
		var email sql.NullString
		var createdAt string
		if err := rows.Scan(&id, &emp.Name, &email, &createdAt); err != nil {
			return nil, err
		}
		emp.ID = toil.EmployeeID(id)
		emp.Email = email.String
		emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// LEAVE REQUEST STORE
// =============================================================================

// SaveRequest inserts or updates a leave request.
func (s *Store) SaveRequest(ctx context.Context, req toil.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveRequestExec(ctx, s.db, req)
}

func saveRequestExec(ctx context.Context, db execer, req toil.LeaveRequest) error {
	query := `
		INSERT INTO leave_requests (id, employee_id, start_date, end_date, days, hours,
			status, notes, reviewed_by, review_comments, reviewed_at, consumption_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			reviewed_by = excluded.reviewed_by,
			review_comments = excluded.review_comments,
			reviewed_at = excluded.reviewed_at,
			consumption_ref = excluded.consumption_ref
	`

	var reviewedAt *string
	if !req.ReviewedAt.IsZero() {
		t := req.ReviewedAt.UTC().Format(time.RFC3339)
		reviewedAt = &t
	}

	_, err := db.ExecContext(ctx, query,
		req.ID, string(req.EmployeeID),
		req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"),
		req.Days, req.Hours.String(), string(req.Status),
		nullString(req.Notes), nullString(req.ReviewedBy), nullString(req.ReviewComments),
		reviewedAt, nullString(req.ConsumptionRef),
		req.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil && isBusyError(err) {
		return toil.ErrLedgerWriteConflict
	}
	return err
}

const requestColumns = `id, employee_id, start_date, end_date, days, hours, status, notes,
		reviewed_by, review_comments, reviewed_at, consumption_ref, created_at`

// GetRequest retrieves a leave request by ID.
func (s *Store) GetRequest(ctx context.Context, id string) (*toil.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getRequest(ctx, s.db, id)
}

func getRequest(ctx context.Context, db querier, id string) (*toil.LeaveRequest, error) {
	reqs, err := queryRequests(ctx, db, "SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, toil.ErrRequestNotFound
	}
	return &reqs[0], nil
}

// RequestsByEmployee returns all requests for an employee, oldest first.
func (s *Store) RequestsByEmployee(ctx context.Context, employeeID toil.EmployeeID) ([]toil.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + requestColumns + `
		FROM leave_requests
		WHERE employee_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return queryRequests(ctx, s.db, query, string(employeeID))
}

// PendingRequests returns all requests awaiting review.
func (s *Store) PendingRequests(ctx context.Context) ([]toil.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + requestColumns + `
		FROM leave_requests
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
	`
	return queryRequests(ctx, s.db, query)
}

func queryRequests(ctx context.Context, db querier, query string, args ...any) ([]toil.LeaveRequest, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []toil.LeaveRequest
	for rows.Next() {
		var (
			req            toil.LeaveRequest
			employeeID     string
			startDate      string
			endDate        string
			hours          string
			status         string
			notes          sql.NullString
			reviewedBy     sql.NullString
			reviewComments sql.NullString
			reviewedAt     sql.NullString
			consumptionRef sql.NullString
			createdAt      string
		)
		if err := rows.Scan(
			&req.ID, &employeeID, &startDate, &endDate, &req.Days, &hours,
			&status, &notes, &reviewedBy, &reviewComments, &reviewedAt,
			&consumptionRef, &createdAt,
		); err != nil {
			return nil, err
		}

		req.EmployeeID = toil.EmployeeID(employeeID)
		req.StartDate, _ = time.Parse("2006-01-02", startDate)
		req.EndDate, _ = time.Parse("2006-01-02", endDate)
		req.Hours = toil.MustParseDecimal(hours)
		req.Status = toil.RequestStatus(status)
		req.Notes = notes.String
		req.ReviewedBy = reviewedBy.String
		req.ReviewComments = reviewComments.String
		req.ConsumptionRef = consumptionRef.String
		req.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if reviewedAt.Valid {
			req.ReviewedAt, _ = time.Parse(time.RFC3339, reviewedAt.String)
		}

		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (toil.LeaveStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store toil.LeaveStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		if isBusyError(err) {
			return toil.ErrLedgerWriteConflict
		}
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	view := &txView{tx: sqlTx, parent: s}
	if err := fn(view); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		if isBusyError(err) {
			return toil.ErrLedgerWriteConflict
		}
		return err
	}
	return nil
}

// txView routes all reads and writes through the open sql.Tx, so the
// balance re-check inside an approval sees uncommitted writes.
type txView struct {
	tx     *sql.Tx
	parent *Store
}

func (tv *txView) Append(ctx context.Context, entry toil.Entry) error {
	return tv.parent.appendEntry(ctx, tv.tx, entry)
}

func (tv *txView) AppendBatch(ctx context.Context, entries []toil.Entry) error {
	for _, e := range entries {
		if err := tv.parent.appendEntry(ctx, tv.tx, e); err != nil {
			return err
		}
	}
	return nil
}

func (tv *txView) Load(ctx context.Context, employeeID toil.EmployeeID) ([]toil.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM toil_entries
		WHERE employee_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return queryEntries(ctx, tv.tx, query, string(employeeID))
}

func (tv *txView) LoadRange(ctx context.Context, employeeID toil.EmployeeID, from, to time.Time) ([]toil.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM toil_entries
		WHERE employee_id = ?
		  AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC, id ASC
	`
	return queryEntries(ctx, tv.tx, query, string(employeeID),
		from.UTC().Format(timestampLayout), to.UTC().Format(timestampLayout))
}

func (tv *txView) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := tv.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM toil_entries WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func (tv *txView) EmployeeIDs(ctx context.Context) ([]toil.EmployeeID, error) {
	rows, err := tv.tx.QueryContext(ctx,
		"SELECT DISTINCT employee_id FROM toil_entries ORDER BY employee_id ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []toil.EmployeeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, toil.EmployeeID(id))
	}
	return ids, rows.Err()
}

func (tv *txView) SaveEmployee(ctx context.Context, emp toil.Employee) error {
	return saveEmployeeExec(ctx, tv.tx, emp)
}

func (tv *txView) GetEmployee(ctx context.Context, id toil.EmployeeID) (*toil.Employee, error) {
	return getEmployee(ctx, tv.tx, id)
}

func (tv *txView) ListEmployees(ctx context.Context) ([]toil.Employee, error) {
	rows, err := tv.tx.QueryContext(ctx,
		"SELECT id, name, email, created_at FROM employees ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []toil.Employee
	for rows.Next() {
		var emp toil.Employee
		var id string
		var email sql.NullString
		var createdAt string
		if err := rows.Scan(&id, &emp.Name, &email, &createdAt); err != nil {
			return nil, err
		}
		emp.ID = toil.EmployeeID(id)
		emp.Email = email.String
		emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func (tv *txView) SaveRequest(ctx context.Context, req toil.LeaveRequest) error {
	return saveRequestExec(ctx, tv.tx, req)
}

func (tv *txView) GetRequest(ctx context.Context, id string) (*toil.LeaveRequest, error) {
	return getRequest(ctx, tv.tx, id)
}

func (tv *txView) RequestsByEmployee(ctx context.Context, employeeID toil.EmployeeID) ([]toil.LeaveRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM leave_requests
		WHERE employee_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return queryRequests(ctx, tv.tx, query, string(employeeID))
}

func (tv *txView) PendingRequests(ctx context.Context) ([]toil.LeaveRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM leave_requests
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
	`
	return queryRequests(ctx, tv.tx, query)
}

// WithTx on the view reuses the already-open transaction.
func (tv *txView) WithTx(_ context.Context, fn func(toil.LeaveStore) error) error {
	return fn(tv)
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is a stored bank holiday.
type Holiday struct {
	ID        string
	Date      time.Time
	Name      string
	CreatedAt time.Time
}

// SaveHoliday saves a holiday to the database.
func (s *Store) SaveHoliday(ctx context.Context, h Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holidays (id, date, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date, name) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		h.ID,
		h.Date.Format("2006-01-02"),
		h.Name,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

// ListHolidays returns all holidays, earliest first.
func (s *Store) ListHolidays(ctx context.Context) ([]Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, date, name, created_at FROM holidays ORDER BY date ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []Holiday
	for rows.Next() {
		var h Holiday
		var dateStr, createdAt string
		if err := rows.Scan(&h.ID, &dateStr, &h.Name, &createdAt); err != nil {
			return nil, err
		}
		h.Date, _ = time.Parse("2006-01-02", dateStr)
		h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		holidays = append(holidays, h)
	}

	return holidays, rows.Err()
}

// IsHoliday implements toil.HolidayCalendar.
func (s *Store) IsHoliday(date time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM holidays WHERE date = ?",
		date.Format("2006-01-02"),
	).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

// SweepRun is one recorded execution of the expiry sweep.
type SweepRun struct {
	ID                 string
	RanAt              time.Time
	EmployeesProcessed int
	EmployeesAffected  int
	EntriesExpired     int
	HoursExpired       string
	Failures           int
	CreatedAt          time.Time
}

// SaveSweepRun records a sweep execution for the audit trail.
func (s *Store) SaveSweepRun(ctx context.Context, r SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sweep_runs (id, ran_at, employees_processed, employees_affected,
			entries_expired, hours_expired, failures, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.RanAt.UTC().Format(time.RFC3339),
		r.EmployeesProcessed, r.EmployeesAffected, r.EntriesExpired,
		r.HoursExpired, r.Failures,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListSweepRuns returns sweep executions, newest first.
func (s *Store) ListSweepRuns(ctx context.Context, limit int) ([]SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ran_at, employees_processed, employees_affected,
		       entries_expired, hours_expired, failures, created_at
		FROM sweep_runs
		ORDER BY ran_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SweepRun
	for rows.Next() {
		var r SweepRun
		var ranAt, createdAt string
		if err := rows.Scan(&r.ID, &ranAt, &r.EmployeesProcessed, &r.EmployeesAffected,
			&r.EntriesExpired, &r.HoursExpired, &r.Failures, &createdAt); err != nil {
			return nil, err
		}
		r.RanAt, _ = time.Parse(time.RFC3339, ranAt)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"toil_entries", "leave_requests", "holidays", "sweep_runs", "employees"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format("2006-01-02"), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isBusyError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "database table is locked"))
}
