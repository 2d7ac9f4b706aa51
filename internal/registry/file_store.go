package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// FileStore keeps the registry as a JSON object keyed by room id.
// Writes go through a temp file and rename so the document is never
// torn by a crash.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore opens (or lazily creates) the registry at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) load() (map[string]*Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Record{}, nil
		}
		return nil, fmt.Errorf("reading registry file: %w", err)
	}
	if len(data) == 0 {
		return map[string]*Record{}, nil
	}

	var records map[string]*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing registry file: %w", err)
	}
	if records == nil {
		records = map[string]*Record{}
	}
	return records, nil
}

func (f *FileStore) save(records map[string]*Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry file: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".rooms-*.json")
	if err != nil {
		return fmt.Errorf("creating temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp registry file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing registry file: %w", err)
	}
	return nil
}

func key(roomID int64) string {
	return strconv.FormatInt(roomID, 10)
}

// Put stores or replaces a record
func (f *FileStore) Put(ctx context.Context, r *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return err
	}
	records[key(r.RoomID)] = r
	return f.save(records)
}

// Get returns the record for a room
func (f *FileStore) Get(ctx context.Context, roomID int64) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, err
	}
	r, ok := records[key(roomID)]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// List returns all records, oldest first
func (f *FileStore) List(ctx context.Context) ([]*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, err
	}
	return sorted(records), nil
}

// Unprocessed returns rooms the interactive agent has not picked up
func (f *FileStore) Unprocessed(ctx context.Context) ([]*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, r := range sorted(records) {
		if !r.Processed {
			out = append(out, r)
		}
	}
	return out, nil
}

// MarkProcessed flags a room as picked up
func (f *FileStore) MarkProcessed(ctx context.Context, roomID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return err
	}
	r, ok := records[key(roomID)]
	if !ok {
		return ErrNotFound
	}
	if r.Processed {
		return nil
	}
	r.Processed = true
	return f.save(records)
}

// Count returns the number of registered rooms
func (f *FileStore) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func sorted(records map[string]*Record) []*Record {
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Compile-time assertion that FileStore implements Store.
var _ Store = (*FileStore)(nil)
