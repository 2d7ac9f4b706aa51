// Package registry is the durable record of every provisioned room.
//
// The file store is the source of truth: a single JSON object keyed by
// room id that both agents read on startup. A PostgreSQL cache can sit
// behind it for querying and for rehydrating deal data after a restart,
// but registry writes never fail because the database is down.
package registry

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound = errors.New("room not found")
)

// Record is one provisioned room
type Record struct {
	RoomID       int64     `json:"room_id"`
	Name         string    `json:"name"`
	Initiator    string    `json:"initiator"`
	Counterparty string    `json:"counterparty"`
	InviteLink   string    `json:"invite_link"`
	RequestID    string    `json:"request_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	// Processed means the interactive agent has picked the room up.
	// Rooms already present at startup are marked processed so old
	// rooms are never greeted twice.
	Processed bool `json:"processed"`

	// Deal data cached for rehydration
	BuyerUsername  string `json:"buyer_username,omitempty"`
	SellerUsername string `json:"seller_username,omitempty"`
	BuyerAddress   string `json:"buyer_address,omitempty"`
	SellerAddress  string `json:"seller_address,omitempty"`
}

// Store persists room records
type Store interface {
	// Put stores or replaces a record
	Put(ctx context.Context, r *Record) error
	// Get returns the record for a room
	Get(ctx context.Context, roomID int64) (*Record, error)
	// List returns all records
	List(ctx context.Context) ([]*Record, error)
	// Unprocessed returns rooms the interactive agent has not picked up
	Unprocessed(ctx context.Context) ([]*Record, error)
	// MarkProcessed flags a room as picked up
	MarkProcessed(ctx context.Context, roomID int64) error
	// Count returns the number of registered rooms
	Count(ctx context.Context) (int, error)
}
