package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "rooms.json"))
}

func testRecord(roomID int64, name string) *Record {
	return &Record{
		RoomID:       roomID,
		Name:         name,
		Initiator:    "alice",
		Counterparty: "bob",
		InviteLink:   "https://t.me/+abc",
		CreatedAt:    time.Now(),
	}
}

func TestFileStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Put(ctx, testRecord(-1001, "MM ROOM 1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	r, err := store.Get(ctx, -1001)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if r.Name != "MM ROOM 1" || r.Initiator != "alice" {
		t.Errorf("Unexpected record: %+v", r)
	}

	if _, err := store.Get(ctx, -9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rooms.json")

	store := NewFileStore(path)
	store.Put(ctx, testRecord(-1001, "MM ROOM 1"))

	reopened := NewFileStore(path)
	r, err := reopened.Get(ctx, -1001)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if r.Name != "MM ROOM 1" {
		t.Errorf("Expected MM ROOM 1, got %q", r.Name)
	}
}

func TestFileStore_UnprocessedAndMark(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	r1 := testRecord(-1001, "MM ROOM 1")
	r1.CreatedAt = time.Now().Add(-time.Hour)
	r2 := testRecord(-1002, "MM ROOM 2")
	store.Put(ctx, r1)
	store.Put(ctx, r2)

	unprocessed, err := store.Unprocessed(ctx)
	if err != nil {
		t.Fatalf("Unprocessed failed: %v", err)
	}
	if len(unprocessed) != 2 {
		t.Fatalf("Expected 2 unprocessed rooms, got %d", len(unprocessed))
	}
	// Oldest first
	if unprocessed[0].RoomID != -1001 {
		t.Errorf("Expected oldest room first, got %d", unprocessed[0].RoomID)
	}

	if err := store.MarkProcessed(ctx, -1001); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	unprocessed, _ = store.Unprocessed(ctx)
	if len(unprocessed) != 1 || unprocessed[0].RoomID != -1002 {
		t.Errorf("Expected only room -1002 unprocessed, got %+v", unprocessed)
	}

	// Marking twice is harmless
	if err := store.MarkProcessed(ctx, -1001); err != nil {
		t.Errorf("Second MarkProcessed errored: %v", err)
	}

	if err := store.MarkProcessed(ctx, -9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_Count(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	n, err := store.Count(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Expected empty count, got %d (err %v)", n, err)
	}

	store.Put(ctx, testRecord(-1001, "MM ROOM 1"))
	store.Put(ctx, testRecord(-1002, "MM ROOM 2"))

	n, _ = store.Count(ctx)
	if n != 2 {
		t.Errorf("Expected count 2, got %d", n)
	}
}

// failingStore always errors; used to prove cache failures stay silent
type failingStore struct{}

func (failingStore) Put(ctx context.Context, r *Record) error       { return errors.New("db down") }
func (failingStore) Get(ctx context.Context, id int64) (*Record, error) {
	return nil, errors.New("db down")
}
func (failingStore) List(ctx context.Context) ([]*Record, error) { return nil, errors.New("db down") }
func (failingStore) Unprocessed(ctx context.Context) ([]*Record, error) {
	return nil, errors.New("db down")
}
func (failingStore) MarkProcessed(ctx context.Context, id int64) error { return errors.New("db down") }
func (failingStore) Count(ctx context.Context) (int, error)            { return 0, errors.New("db down") }

func TestTeeStore_CacheFailureIsSilent(t *testing.T) {
	ctx := context.Background()
	primary := newTestStore(t)
	tee := NewTeeStore(primary, failingStore{}, discardLogger())

	if err := tee.Put(ctx, testRecord(-1001, "MM ROOM 1")); err != nil {
		t.Fatalf("Put must not surface cache failure: %v", err)
	}
	if err := tee.MarkProcessed(ctx, -1001); err != nil {
		t.Fatalf("MarkProcessed must not surface cache failure: %v", err)
	}

	r, err := tee.Get(ctx, -1001)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !r.Processed {
		t.Error("Expected processed flag set in primary")
	}
}
