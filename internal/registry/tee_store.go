package registry

import (
	"context"
	"log/slog"
)

// TeeStore layers a best-effort cache (PostgreSQL) over the primary
// store (the registry file). Reads always come from the primary; writes
// go to both, and a cache failure is logged but never surfaced.
type TeeStore struct {
	primary Store
	cache   Store
	logger  *slog.Logger
}

// NewTeeStore wraps primary with a write-through cache
func NewTeeStore(primary, cache Store, logger *slog.Logger) *TeeStore {
	return &TeeStore{primary: primary, cache: cache, logger: logger}
}

func (t *TeeStore) Put(ctx context.Context, r *Record) error {
	if err := t.primary.Put(ctx, r); err != nil {
		return err
	}
	if err := t.cache.Put(ctx, r); err != nil {
		t.logger.Warn("registry cache put failed", "room_id", r.RoomID, "error", err)
	}
	return nil
}

func (t *TeeStore) Get(ctx context.Context, roomID int64) (*Record, error) {
	return t.primary.Get(ctx, roomID)
}

func (t *TeeStore) List(ctx context.Context) ([]*Record, error) {
	return t.primary.List(ctx)
}

func (t *TeeStore) Unprocessed(ctx context.Context) ([]*Record, error) {
	return t.primary.Unprocessed(ctx)
}

func (t *TeeStore) MarkProcessed(ctx context.Context, roomID int64) error {
	if err := t.primary.MarkProcessed(ctx, roomID); err != nil {
		return err
	}
	if err := t.cache.MarkProcessed(ctx, roomID); err != nil && err != ErrNotFound {
		t.logger.Warn("registry cache mark failed", "room_id", roomID, "error", err)
	}
	return nil
}

func (t *TeeStore) Count(ctx context.Context) (int, error) {
	return t.primary.Count(ctx)
}

// Compile-time assertion that TeeStore implements Store.
var _ Store = (*TeeStore)(nil)
