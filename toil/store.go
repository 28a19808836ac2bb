/*
store.go - Persistence interface for ledger entries and related data

PURPOSE:
  Defines the interface between the domain logic and the database.
  The Store handles persistence while maintaining append-only semantics.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:        Core entry persistence (append, load, exists)
  LeaveStore:   Store plus leave request and employee records, with
                transaction support for atomic approve/cancel flows

APPEND-ONLY CONTRACT:
  The Store interface enforces append-only semantics:
  - Append(): Single entry write
  - AppendBatch(): Atomic multi-entry write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Every write includes an idempotency key. If the key already exists,
  the write is rejected. This prevents duplicate entries from network
  retries, replayed webhooks, or user double-clicks.

ATOMIC BATCHES:
  AppendBatch() ensures all-or-nothing semantics. When an expiry sweep
  forfeits three accruals for one employee, either all three expiry
  entries are written or none are.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - toil/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
  - leave.go: Uses LeaveStore.WithTx for redemption
*/
package toil

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Interface for ledger persistence (append-only)
// =============================================================================

// Store handles persistence of ledger entries.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
// Corrections are made via reversal entries.
type Store interface {
	// Append persists an entry. Returns ErrDuplicateIdempotencyKey if the
	// idempotency key exists. This is the ONLY single-entry write operation.
	Append(ctx context.Context, entry Entry) error

	// AppendBatch persists multiple entries atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, entries []Entry) error

	// Load returns all entries for an employee, ordered by CreatedAt.
	Load(ctx context.Context, employeeID EmployeeID) ([]Entry, error)

	// LoadRange returns entries with CreatedAt in [from, to].
	LoadRange(ctx context.Context, employeeID EmployeeID, from, to time.Time) ([]Entry, error)

	// Exists checks if an idempotency key has already been written.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)

	// EmployeeIDs returns every employee that has at least one ledger
	// entry. The expiry sweep iterates this set.
	EmployeeIDs(ctx context.Context) ([]EmployeeID, error)
}

// =============================================================================
// EMPLOYEES AND LEAVE REQUESTS
// =============================================================================

// Employee is the minimal directory record the engine needs. Payroll
// and HR detail live elsewhere.
type Employee struct {
	ID        EmployeeID
	Name      string
	Email     string
	CreatedAt time.Time
}

// RequestStore persists leave requests and employee records. Requests
// are the one mutable table in the system: their status field moves
// through the lifecycle while the ledger remains append-only.
type RequestStore interface {
	SaveEmployee(ctx context.Context, emp Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)

	SaveRequest(ctx context.Context, req LeaveRequest) error
	GetRequest(ctx context.Context, id string) (*LeaveRequest, error)
	RequestsByEmployee(ctx context.Context, employeeID EmployeeID) ([]LeaveRequest, error)
	PendingRequests(ctx context.Context) ([]LeaveRequest, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// LeaveStore combines ledger and request persistence with transaction
// support. Approving a leave request must re-check the balance, flip the
// request status, and append the consumption entry as one atomic unit;
// WithTx provides that unit.
type LeaveStore interface {
	Store
	RequestStore

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(LeaveStore) error) error
}
