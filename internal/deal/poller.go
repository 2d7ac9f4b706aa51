package deal

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/p2pmart/dealroom/internal/metrics"
	"github.com/p2pmart/dealroom/internal/queue"
	"github.com/p2pmart/dealroom/internal/realtime"
	"github.com/p2pmart/dealroom/internal/session"
)

// RoomPoller periodically scans the registry for freshly provisioned
// rooms and opens a session for each. It also sweeps the request queue
// for completed results whose invite was never delivered, which covers
// an agent that crashed between provisioning and notification.
type RoomPoller struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewRoomPoller creates a poller over the service's registry and queue.
func NewRoomPoller(service *Service, interval time.Duration, logger *slog.Logger) *RoomPoller {
	return &RoomPoller{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the poll loop is actively running.
func (p *RoomPoller) Running() bool {
	return p.running.Load()
}

// Start begins the poll loop. Call in a goroutine.
func (p *RoomPoller) Start(ctx context.Context) {
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
			p.safePoll(ctx)
		}
	}
}

// MarkExisting flags every room already in the registry as processed.
// Called once before Start so an agent restart never greets old rooms.
func (p *RoomPoller) MarkExisting(ctx context.Context) error {
	records, err := p.service.rooms.Unprocessed(ctx)
	if err != nil {
		return fmt.Errorf("listing unprocessed rooms: %w", err)
	}
	for _, rec := range records {
		if err := p.service.rooms.MarkProcessed(ctx, rec.RoomID); err != nil {
			return fmt.Errorf("marking room %d: %w", rec.RoomID, err)
		}
		p.logger.Info("skipping pre-existing room", "roomId", rec.RoomID, "name", rec.Name)
	}
	return nil
}

// Stop signals the poller to stop.
func (p *RoomPoller) Stop() {
	select {
	case p.stop <- struct{}{}:
	default:
	}
}

func (p *RoomPoller) safePoll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in room poller", "panic", fmt.Sprint(r))
		}
	}()
	p.pickUpRooms(ctx)
	p.sweepUndelivered(ctx)
}

// pickUpRooms opens a session for every room the agent has not seen yet
func (p *RoomPoller) pickUpRooms(ctx context.Context) {
	records, err := p.service.rooms.Unprocessed(ctx)
	if err != nil {
		p.logger.Warn("failed to list unprocessed rooms", "error", err)
		return
	}

	for _, rec := range records {
		sess := session.New(rec.RoomID, rec.Name, rec.Initiator, rec.Counterparty, p.service.now())
		if err := p.service.sessions.Put(sess); err != nil {
			p.logger.Warn("failed to open session", "roomId", rec.RoomID, "error", err)
			continue
		}
		metrics.ActiveSessions.Inc()

		if err := p.service.rooms.MarkProcessed(ctx, rec.RoomID); err != nil {
			p.logger.Warn("failed to mark room processed", "roomId", rec.RoomID, "error", err)
		}

		p.service.send(roomCtx(ctx, rec.RoomID), rec.RoomID, textWelcome(rec.Name))
		p.service.publish(realtime.EventRoomProvisioned, rec.RoomID, map[string]any{
			"name": rec.Name,
		})
		p.logger.Info("picked up room",
			"roomId", rec.RoomID, "name", rec.Name,
			"initiator", rec.Initiator, "counterparty", rec.Counterparty)
	}
}

// sweepUndelivered posts invites for completed requests whose inline
// poll timed out or whose agent died before notifying
func (p *RoomPoller) sweepUndelivered(ctx context.Context) {
	reqs, err := p.service.requests.All(ctx)
	if err != nil {
		p.logger.Warn("failed to list requests", "error", err)
		return
	}

	for _, req := range reqs {
		if req.Delivered || req.Status == queue.StatusPending {
			continue
		}
		p.service.deliverResult(ctx, req)
	}
}
