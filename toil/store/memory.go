// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/toil-engine/toil"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	entries     map[toil.EmployeeID][]toil.Entry
	idempotency map[string]bool
	employees   map[toil.EmployeeID]toil.Employee
	requests    map[string]toil.LeaveRequest
}

func NewMemory() *Memory {
	return &Memory{
		entries:     make(map[toil.EmployeeID][]toil.Entry),
		idempotency: make(map[string]bool),
		employees:   make(map[toil.EmployeeID]toil.Employee),
		requests:    make(map[string]toil.LeaveRequest),
	}
}

// Append adds a single entry. Append-only.
func (m *Memory) Append(_ context.Context, entry toil.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(entry)
}

// AppendBatch adds multiple entries atomically.
func (m *Memory) AppendBatch(_ context.Context, entries []toil.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all idempotency keys first (atomic check)
	for _, e := range entries {
		if e.IdempotencyKey != "" && m.idempotency[e.IdempotencyKey] {
			return toil.ErrDuplicateIdempotencyKey
		}
	}

	// Append all (atomic write)
	for _, e := range entries {
		if err := m.appendLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) appendLocked(entry toil.Entry) error {
	if entry.IdempotencyKey != "" && m.idempotency[entry.IdempotencyKey] {
		return toil.ErrDuplicateIdempotencyKey
	}
	list := m.entries[entry.EmployeeID]

	// Binary search for insertion point: keeps Load ordered by CreatedAt
	i := sort.Search(len(list), func(i int) bool {
		return list[i].CreatedAt.After(entry.CreatedAt)
	})

	list = append(list, toil.Entry{})
	copy(list[i+1:], list[i:])
	list[i] = entry
	m.entries[entry.EmployeeID] = list

	if entry.IdempotencyKey != "" {
		m.idempotency[entry.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Load(_ context.Context, employeeID toil.EmployeeID) ([]toil.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]toil.Entry, len(m.entries[employeeID]))
	copy(result, m.entries[employeeID])
	return result, nil
}

func (m *Memory) LoadRange(_ context.Context, employeeID toil.EmployeeID, from, to time.Time) ([]toil.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []toil.Entry
	for _, e := range m.entries[employeeID] {
		if !e.CreatedAt.Before(from) && !e.CreatedAt.After(to) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

func (m *Memory) EmployeeIDs(_ context.Context) ([]toil.EmployeeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]toil.EmployeeID, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// =============================================================================
// EMPLOYEES AND REQUESTS
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, emp toil.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id toil.EmployeeID) (*toil.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	emp, ok := m.employees[id]
	if !ok {
		return nil, toil.ErrEmployeeNotFound
	}
	return &emp, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]toil.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]toil.Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) SaveRequest(_ context.Context, req toil.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*toil.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, toil.ErrRequestNotFound
	}
	return &req, nil
}

func (m *Memory) RequestsByEmployee(_ context.Context, employeeID toil.EmployeeID) ([]toil.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []toil.LeaveRequest
	for _, req := range m.requests {
		if req.EmployeeID == employeeID {
			result = append(result, req)
		}
	}
	sortRequests(result)
	return result, nil
}

func (m *Memory) PendingRequests(_ context.Context) ([]toil.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []toil.LeaveRequest
	for _, req := range m.requests {
		if req.Status == toil.RequestPending {
			result = append(result, req)
		}
	}
	sortRequests(result)
	return result, nil
}

func sortRequests(reqs []toil.LeaveRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
		}
		return reqs[i].ID < reqs[j].ID
	})
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(toil.LeaveStore) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	view := &txMemoryView{parent: tm}
	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	entriesCopy := make(map[toil.EmployeeID][]toil.Entry)
	for k, v := range tm.entries {
		entriesCopy[k] = append([]toil.Entry{}, v...)
	}
	idempCopy := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idempCopy[k] = v
	}
	empCopy := make(map[toil.EmployeeID]toil.Employee, len(tm.employees))
	for k, v := range tm.employees {
		empCopy[k] = v
	}
	reqCopy := make(map[string]toil.LeaveRequest, len(tm.requests))
	for k, v := range tm.requests {
		reqCopy[k] = v
	}
	return memorySnapshot{entries: entriesCopy, idempotency: idempCopy, employees: empCopy, requests: reqCopy}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.entries = s.entries
	tm.idempotency = s.idempotency
	tm.employees = s.employees
	tm.requests = s.requests
}

type memorySnapshot struct {
	entries     map[toil.EmployeeID][]toil.Entry
	idempotency map[string]bool
	employees   map[toil.EmployeeID]toil.Employee
	requests    map[string]toil.LeaveRequest
}

// txMemoryView bypasses the parent's mutex; the lock is already held
// for the duration of WithTx.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, entry toil.Entry) error {
	return tv.parent.appendLocked(entry)
}

func (tv *txMemoryView) AppendBatch(_ context.Context, entries []toil.Entry) error {
	for _, e := range entries {
		if err := tv.parent.appendLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (tv *txMemoryView) Load(_ context.Context, employeeID toil.EmployeeID) ([]toil.Entry, error) {
	return tv.parent.entries[employeeID], nil
}

func (tv *txMemoryView) LoadRange(_ context.Context, employeeID toil.EmployeeID, from, to time.Time) ([]toil.Entry, error) {
	var result []toil.Entry
	for _, e := range tv.parent.entries[employeeID] {
		if !e.CreatedAt.Before(from) && !e.CreatedAt.After(to) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}

func (tv *txMemoryView) EmployeeIDs(_ context.Context) ([]toil.EmployeeID, error) {
	ids := make([]toil.EmployeeID, 0, len(tv.parent.entries))
	for id := range tv.parent.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (tv *txMemoryView) SaveEmployee(_ context.Context, emp toil.Employee) error {
	tv.parent.employees[emp.ID] = emp
	return nil
}

func (tv *txMemoryView) GetEmployee(_ context.Context, id toil.EmployeeID) (*toil.Employee, error) {
	emp, ok := tv.parent.employees[id]
	if !ok {
		return nil, toil.ErrEmployeeNotFound
	}
	return &emp, nil
}

func (tv *txMemoryView) ListEmployees(_ context.Context) ([]toil.Employee, error) {
	result := make([]toil.Employee, 0, len(tv.parent.employees))
	for _, emp := range tv.parent.employees {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tv *txMemoryView) SaveRequest(_ context.Context, req toil.LeaveRequest) error {
	tv.parent.requests[req.ID] = req
	return nil
}

func (tv *txMemoryView) GetRequest(_ context.Context, id string) (*toil.LeaveRequest, error) {
	req, ok := tv.parent.requests[id]
	if !ok {
		return nil, toil.ErrRequestNotFound
	}
	return &req, nil
}

func (tv *txMemoryView) RequestsByEmployee(_ context.Context, employeeID toil.EmployeeID) ([]toil.LeaveRequest, error) {
	var result []toil.LeaveRequest
	for _, req := range tv.parent.requests {
		if req.EmployeeID == employeeID {
			result = append(result, req)
		}
	}
	sortRequests(result)
	return result, nil
}

func (tv *txMemoryView) PendingRequests(_ context.Context) ([]toil.LeaveRequest, error) {
	var result []toil.LeaveRequest
	for _, req := range tv.parent.requests {
		if req.Status == toil.RequestPending {
			result = append(result, req)
		}
	}
	sortRequests(result)
	return result, nil
}

// WithTx on the view reuses the already-open transaction.
func (tv *txMemoryView) WithTx(_ context.Context, fn func(toil.LeaveStore) error) error {
	return fn(tv)
}
