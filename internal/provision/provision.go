// Package provision runs the provisioning agent: it drains pending
// room requests from the queue, creates a private chat room for each
// pair of participants, and writes the result back for the interactive
// agent to deliver.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/p2pmart/dealroom/internal/metrics"
	"github.com/p2pmart/dealroom/internal/queue"
	"github.com/p2pmart/dealroom/internal/registry"
	"github.com/p2pmart/dealroom/internal/retry"
	"github.com/p2pmart/dealroom/internal/traces"
)

// Room is a freshly created chat room
type Room struct {
	ID            int64
	InviteLink    string
	BotInviteLink string
}

// RoomCreator creates chat rooms. Room creation needs a user account
// rather than a bot token, so it lives behind its own interface.
type RoomCreator interface {
	CreateRoom(ctx context.Context, name string) (*Room, error)
}

// Provisioner drains the request queue
type Provisioner struct {
	requests queue.Store
	rooms    registry.Store
	creator  RoomCreator
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// New creates a provisioner polling at the given interval
func New(requests queue.Store, rooms registry.Store, creator RoomCreator, interval time.Duration, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		requests: requests,
		rooms:    rooms,
		creator:  creator,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the drain loop is actively running.
func (p *Provisioner) Running() bool {
	return p.running.Load()
}

// Start begins the drain loop. Call in a goroutine.
func (p *Provisioner) Start(ctx context.Context) {
	p.running.Store(true)
	defer p.running.Store(false)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.safeDrain(ctx)
		}
	}
}

// Stop signals the provisioner to stop.
func (p *Provisioner) Stop() {
	select {
	case p.stop <- struct{}{}:
	default:
	}
}

func (p *Provisioner) safeDrain(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in provisioner", "panic", fmt.Sprint(r))
		}
	}()
	p.Drain(ctx)
}

// Drain handles every pending request once. Exported so tests and a
// one-shot CLI mode can run a single pass.
func (p *Provisioner) Drain(ctx context.Context) {
	pending, err := p.requests.Pending(ctx)
	if err != nil {
		p.logger.Warn("failed to list pending requests", "error", err)
		return
	}

	for _, req := range pending {
		p.handle(ctx, req)
	}
}

func (p *Provisioner) handle(ctx context.Context, req *queue.Request) {
	ctx, span := traces.StartSpan(ctx, "provision.handle", traces.RequestID(req.ID))
	defer span.End()

	name, err := p.nextRoomName(ctx)
	if err != nil {
		p.logger.Warn("failed to derive room name", "requestId", req.ID, "error", err)
		return
	}

	var room *Room
	err = retry.Do(ctx, 3, 500*time.Millisecond, func() error {
		var cerr error
		room, cerr = p.creator.CreateRoom(ctx, name)
		return cerr
	})
	if err != nil {
		p.logger.Error("room creation failed",
			"requestId", req.ID, "initiator", req.Initiator, "error", err)
		if ferr := p.requests.Fail(ctx, req.ID, err.Error()); ferr != nil {
			p.logger.Error("failed to record failure", "requestId", req.ID, "error", ferr)
			return
		}
		metrics.ProvisionRequestsTotal.WithLabelValues(string(queue.StatusFailed)).Inc()
		return
	}

	// The registry write comes first: a crash after room creation but
	// before Complete leaves a registered room and a pending request,
	// and re-running the request just creates a second room. A crash
	// after Complete loses nothing.
	rec := &registry.Record{
		RoomID:       room.ID,
		Name:         name,
		Initiator:    req.Initiator,
		Counterparty: req.Counterparty,
		InviteLink:   room.InviteLink,
		RequestID:    req.ID,
		CreatedAt:    time.Now(),
	}
	if err := p.rooms.Put(ctx, rec); err != nil {
		p.logger.Error("registry write failed", "requestId", req.ID, "roomId", room.ID, "error", err)
		return
	}

	result := queue.RoomResult{
		RoomID:        room.ID,
		RoomName:      name,
		InviteLink:    room.InviteLink,
		BotInviteLink: room.BotInviteLink,
	}
	if err := p.requests.Complete(ctx, req.ID, result); err != nil {
		p.logger.Error("failed to record completion", "requestId", req.ID, "error", err)
		return
	}

	metrics.ProvisionRequestsTotal.WithLabelValues(string(queue.StatusCompleted)).Inc()
	p.logger.Info("room provisioned",
		"requestId", req.ID, "roomId", room.ID, "name", name,
		"initiator", req.Initiator, "counterparty", req.Counterparty)
}

// nextRoomName numbers rooms sequentially across the registry
func (p *Provisioner) nextRoomName(ctx context.Context) (string, error) {
	n, err := p.rooms.Count(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MM ROOM %d", n+1), nil
}
