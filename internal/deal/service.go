// Package deal runs the interactive escrow agent: it consumes chat
// updates for provisioned rooms and walks each room's session through
// the deal flow, from join tracking to fund release.
package deal

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/p2pmart/dealroom/internal/chat"
	"github.com/p2pmart/dealroom/internal/logging"
	"github.com/p2pmart/dealroom/internal/metrics"
	"github.com/p2pmart/dealroom/internal/queue"
	"github.com/p2pmart/dealroom/internal/realtime"
	"github.com/p2pmart/dealroom/internal/registry"
	"github.com/p2pmart/dealroom/internal/session"
	"github.com/p2pmart/dealroom/internal/verifier"
)

// Service is the interactive agent. One instance serves every room;
// per-room state lives in the session store.
type Service struct {
	sessions session.Store
	rooms    registry.Store
	requests queue.Store
	msgr     chat.Messenger
	verify   *verifier.Verifier
	book     *AddressBook
	hub      *realtime.Hub
	logger   *slog.Logger

	rateFloor          int64
	resultPollInterval time.Duration
	resultPollAttempts int
	admins             map[string]bool
	announceChatID     int64

	now func() time.Time
}

// NewService wires the agent. The hub is optional; everything else is
// required.
func NewService(
	sessions session.Store,
	rooms registry.Store,
	requests queue.Store,
	msgr chat.Messenger,
	v *verifier.Verifier,
	book *AddressBook,
	logger *slog.Logger,
) *Service {
	return &Service{
		sessions:           sessions,
		rooms:              rooms,
		requests:           requests,
		msgr:               msgr,
		verify:             v,
		book:               book,
		logger:             logger,
		rateFloor:          85,
		resultPollInterval: 200 * time.Millisecond,
		resultPollAttempts: 60,
		admins:             map[string]bool{},
		now:                time.Now,
	}
}

// WithHub attaches a realtime hub for dashboard events
func (s *Service) WithHub(hub *realtime.Hub) *Service {
	s.hub = hub
	return s
}

// WithRateFloor sets the minimum acceptable exchange rate
func (s *Service) WithRateFloor(floor int64) *Service {
	s.rateFloor = floor
	return s
}

// WithResultPoll tunes how long /deal waits inline for provisioning
func (s *Service) WithResultPoll(interval time.Duration, attempts int) *Service {
	s.resultPollInterval = interval
	s.resultPollAttempts = attempts
	return s
}

// WithAdmins sets the usernames allowed to run moderation commands
func (s *Service) WithAdmins(usernames []string) *Service {
	for _, u := range usernames {
		u = strings.TrimPrefix(strings.TrimSpace(u), "@")
		if u != "" {
			s.admins[strings.ToLower(u)] = true
		}
	}
	return s
}

// WithAnnounceChat sets an operator chat that hears about new deals
// once buyer, seller, coin and network are all known. Zero disables
// announcements.
func (s *Service) WithAnnounceChat(chatID int64) *Service {
	s.announceChatID = chatID
	return s
}

func (s *Service) isAdmin(username string) bool {
	return s.admins[strings.ToLower(username)]
}

// publish forwards a room event to the hub if one is attached
func (s *Service) publish(eventType realtime.EventType, roomID int64, data map[string]any) {
	if s.hub != nil {
		s.hub.Publish(eventType, roomID, data)
	}
}

// advance moves a session forward and records the step metric. A step
// order violation here is a programming error, so it is logged loudly.
func (s *Service) advance(ctx context.Context, sess *session.Session, to session.Step) bool {
	if err := sess.Advance(to); err != nil {
		logging.L(ctx).Error("step advance rejected",
			"room_id", sess.RoomID, "from", sess.Step, "to", to, "error", err)
		return false
	}
	metrics.StepAdvancesTotal.WithLabelValues(string(to)).Inc()
	s.publish(realtime.EventStepAdvanced, sess.RoomID, map[string]any{"step": string(to)})
	return true
}

// send posts a message, logging instead of surfacing transport errors.
// The flow must keep moving even when a single message is lost.
func (s *Service) send(ctx context.Context, chatID int64, text string) int64 {
	id, err := s.msgr.Send(ctx, chatID, text)
	if err != nil {
		logging.L(ctx).Error("send failed", "chat_id", chatID, "error", err)
		return 0
	}
	return id
}

func (s *Service) sendKeyboard(ctx context.Context, chatID int64, text string, kb chat.Keyboard) int64 {
	id, err := s.msgr.SendKeyboard(ctx, chatID, text, kb)
	if err != nil {
		logging.L(ctx).Error("send keyboard failed", "chat_id", chatID, "error", err)
		return 0
	}
	return id
}

func (s *Service) editKeyboard(ctx context.Context, chatID, messageID int64, text string, kb chat.Keyboard) {
	if messageID == 0 {
		return
	}
	if err := s.msgr.EditKeyboard(ctx, chatID, messageID, text, kb); err != nil {
		logging.L(ctx).Error("edit keyboard failed",
			"chat_id", chatID, "message_id", messageID, "error", err)
	}
}

// sessionFor loads the session for a room, or nil when the room has no
// active deal
func (s *Service) sessionFor(ctx context.Context, roomID int64) *session.Session {
	sess, err := s.sessions.Get(roomID)
	if err != nil {
		return nil
	}
	return sess
}

// saveRehydration caches the deal's durable fields on the room record,
// so a restarted agent can reconstruct who holds which role
func (s *Service) saveRehydration(ctx context.Context, sess *session.Session) {
	rec, err := s.rooms.Get(ctx, sess.RoomID)
	if err != nil {
		logging.L(ctx).Warn("rehydration skipped, room not in registry",
			"room_id", sess.RoomID, "error", err)
		return
	}
	rec.BuyerUsername = sess.BuyerUsername
	rec.SellerUsername = sess.SellerUsername
	rec.BuyerAddress = sess.BuyerAddress
	rec.SellerAddress = sess.SellerAddress
	if err := s.rooms.Put(ctx, rec); err != nil {
		logging.L(ctx).Warn("rehydration write failed",
			"room_id", sess.RoomID, "error", err)
	}
}

// roomCtx attaches the room id to the logging context
func roomCtx(ctx context.Context, roomID int64) context.Context {
	return logging.WithRoomID(ctx, strconv.FormatInt(roomID, 10))
}
