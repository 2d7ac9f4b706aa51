package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps the mailbox as a single JSON array on disk. Both
// agents point at the same file; every mutation rewrites the whole
// document through a temp file and rename so a crash mid-write never
// leaves a torn document.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore opens (or lazily creates) the mailbox at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) load() ([]*Request, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading queue file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var reqs []*Request
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("parsing queue file: %w", err)
	}
	return reqs, nil
}

func (f *FileStore) save(reqs []*Request) error {
	data, err := json.MarshalIndent(reqs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding queue file: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".queue-*.json")
	if err != nil {
		return fmt.Errorf("creating temp queue file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp queue file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing queue file: %w", err)
	}
	return nil
}

// mutate runs fn against the loaded document and persists the result
func (f *FileStore) mutate(fn func(reqs []*Request) ([]*Request, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	reqs, err := f.load()
	if err != nil {
		return err
	}
	reqs, err = fn(reqs)
	if err != nil {
		return err
	}
	return f.save(reqs)
}

// Append adds a new pending request
func (f *FileStore) Append(ctx context.Context, req *Request) error {
	now := time.Now()
	req.Status = StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now

	return f.mutate(func(reqs []*Request) ([]*Request, error) {
		return append(reqs, req), nil
	})
}

// Get returns one request by id
func (f *FileStore) Get(ctx context.Context, id string) (*Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reqs, err := f.load()
	if err != nil {
		return nil, err
	}
	for _, r := range reqs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

// Pending returns all requests still waiting for provisioning
func (f *FileStore) Pending(ctx context.Context) ([]*Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reqs, err := f.load()
	if err != nil {
		return nil, err
	}
	var pending []*Request
	for _, r := range reqs {
		if r.Status == StatusPending {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// Complete records a successful provisioning result
func (f *FileStore) Complete(ctx context.Context, id string, result RoomResult) error {
	return f.update(id, func(r *Request) {
		r.Status = StatusCompleted
		r.Result = &result
	})
}

// Fail records a provisioning failure
func (f *FileStore) Fail(ctx context.Context, id string, reason string) error {
	return f.update(id, func(r *Request) {
		r.Status = StatusFailed
		r.Error = reason
	})
}

// MarkDelivered flips the delivered flag exactly once
func (f *FileStore) MarkDelivered(ctx context.Context, id string) (bool, error) {
	flipped := false
	err := f.update(id, func(r *Request) {
		if !r.Delivered {
			r.Delivered = true
			flipped = true
		}
	})
	return flipped, err
}

// All returns every request, oldest first
func (f *FileStore) All(ctx context.Context) ([]*Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *FileStore) update(id string, fn func(r *Request)) error {
	return f.mutate(func(reqs []*Request) ([]*Request, error) {
		for _, r := range reqs {
			if r.ID == id {
				fn(r)
				r.UpdatedAt = time.Now()
				return reqs, nil
			}
		}
		return nil, ErrNotFound
	})
}
