// Package queue is the durable mailbox between the interactive agent
// and the provisioning agent.
//
// Flow:
//  1. The interactive agent appends a room request and polls for its
//     result.
//  2. The provisioning agent scans for pending requests, creates the
//     room, and writes the result back.
//  3. The interactive agent marks the result delivered after it has
//     notified the initiator, so redelivery never double-posts.
//
// Requests survive restarts of either agent; delivery is at least once
// and consumers are expected to be idempotent.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrNotFound    = errors.New("request not found")
	ErrPollTimeout = errors.New("no result within the poll budget")
)

// Status of a room request
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// RoomResult is what provisioning produced for a completed request
type RoomResult struct {
	RoomID        int64  `json:"room_id"`
	RoomName      string `json:"room_name"`
	InviteLink    string `json:"invite_link"`
	BotInviteLink string `json:"bot_invite_link,omitempty"`
}

// Request is one room-provisioning order
type Request struct {
	ID           string      `json:"id"`
	Initiator    string      `json:"initiator"`
	Counterparty string      `json:"counterparty"`
	OriginChatID int64       `json:"origin_chat_id"` // where to deliver the invite
	Status       Status      `json:"status"`
	Result       *RoomResult `json:"result,omitempty"`
	Error        string      `json:"error,omitempty"`
	Delivered    bool        `json:"delivered"` // initiator already notified
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Store is the mailbox. Exactly one process writes results (the
// provisioner) and one appends requests (the agent); each mutation is a
// whole-document read-modify-write.
type Store interface {
	// Append adds a new pending request
	Append(ctx context.Context, req *Request) error
	// Get returns one request by id
	Get(ctx context.Context, id string) (*Request, error)
	// Pending returns all requests still waiting for provisioning
	Pending(ctx context.Context) ([]*Request, error)
	// Complete records a successful provisioning result
	Complete(ctx context.Context, id string, result RoomResult) error
	// Fail records a provisioning failure
	Fail(ctx context.Context, id string, reason string) error
	// MarkDelivered flips the delivered flag exactly once; it reports
	// whether this call was the one that flipped it
	MarkDelivered(ctx context.Context, id string) (bool, error)
	// All returns every request, oldest first
	All(ctx context.Context) ([]*Request, error)
}

// PollResult waits for a request to leave pending, checking at a fixed
// interval up to a bounded number of attempts. The budget keeps a lost
// provisioner from wedging the interactive agent forever.
func PollResult(ctx context.Context, store Store, id string, interval time.Duration, attempts int) (*Request, error) {
	for i := 0; i < attempts; i++ {
		req, err := store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("polling request %s: %w", id, err)
		}
		if req.Status != StatusPending {
			return req, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("request %s: %w", id, ErrPollTimeout)
}
