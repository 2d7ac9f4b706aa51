package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and single-process runs
type MemoryStore struct {
	mu   sync.Mutex
	reqs []*Request
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds a new pending request
func (m *MemoryStore) Append(ctx context.Context, req *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	req.Status = StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now
	m.reqs = append(m.reqs, req)
	return nil
}

// Get returns one request by id
func (m *MemoryStore) Get(ctx context.Context, id string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.find(id)
	if err != nil {
		return nil, err
	}
	cp := *r
	return &cp, nil
}

// Pending returns all requests still waiting for provisioning
func (m *MemoryStore) Pending(ctx context.Context) ([]*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*Request
	for _, r := range m.reqs {
		if r.Status == StatusPending {
			cp := *r
			pending = append(pending, &cp)
		}
	}
	return pending, nil
}

// Complete records a successful provisioning result
func (m *MemoryStore) Complete(ctx context.Context, id string, result RoomResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.find(id)
	if err != nil {
		return err
	}
	r.Status = StatusCompleted
	r.Result = &result
	r.UpdatedAt = time.Now()
	return nil
}

// Fail records a provisioning failure
func (m *MemoryStore) Fail(ctx context.Context, id string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.find(id)
	if err != nil {
		return err
	}
	r.Status = StatusFailed
	r.Error = reason
	r.UpdatedAt = time.Now()
	return nil
}

// MarkDelivered flips the delivered flag exactly once
func (m *MemoryStore) MarkDelivered(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.find(id)
	if err != nil {
		return false, err
	}
	if r.Delivered {
		return false, nil
	}
	r.Delivered = true
	r.UpdatedAt = time.Now()
	return true, nil
}

// All returns every request, oldest first
func (m *MemoryStore) All(ctx context.Context) ([]*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Request, 0, len(m.reqs))
	for _, r := range m.reqs {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) find(id string) (*Request, error) {
	for _, r := range m.reqs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrNotFound
}
