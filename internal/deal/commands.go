package deal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/p2pmart/dealroom/internal/chat"
	"github.com/p2pmart/dealroom/internal/idgen"
	"github.com/p2pmart/dealroom/internal/logging"
	"github.com/p2pmart/dealroom/internal/queue"
	"github.com/p2pmart/dealroom/internal/realtime"
	"github.com/p2pmart/dealroom/internal/session"
	"github.com/p2pmart/dealroom/internal/validation"
)

// handleCommand dispatches slash commands. Unknown commands are
// ignored so the agent stays quiet in rooms it shares with other bots.
func (s *Service) handleCommand(ctx context.Context, msg *chat.Message) {
	ctx = roomCtx(ctx, msg.Chat.ID)

	cmd, arg := splitCommand(msg.Text)
	switch cmd {
	case "/deal":
		s.cmdDeal(ctx, msg, arg)
	case "/release":
		s.cmdRelease(ctx, msg)
	case "/restart":
		s.cmdRestart(ctx, msg)
	case "/balance":
		s.cmdBalance(ctx, msg)
	case "/verify":
		s.cmdVerify(ctx, msg, arg)
	case "/kick":
		s.cmdKick(ctx, msg)
	case "/link":
		s.cmdLink(ctx, msg, arg)
	}
}

// splitCommand separates "/cmd@botname arg rest" into "/cmd" and
// "arg rest"
func splitCommand(text string) (string, string) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(text), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

// cmdDeal requests a fresh escrow room for the sender and a
// counterparty, named by @mention or by replying to their message.
func (s *Service) cmdDeal(ctx context.Context, msg *chat.Message, arg string) {
	if msg.From == nil || msg.From.Username == "" {
		return
	}
	initiator := msg.From.Username

	counterparty := validation.NormalizeUsername(arg)
	if counterparty == "" && msg.ReplyTo != nil && msg.ReplyTo.From != nil {
		counterparty = msg.ReplyTo.From.Username
	}
	if counterparty == "" {
		s.send(ctx, msg.Chat.ID, "Usage: /deal @counterparty, or reply to their message with /deal.")
		return
	}
	if strings.EqualFold(counterparty, initiator) {
		s.send(ctx, msg.Chat.ID, "You cannot open a deal with yourself.")
		return
	}

	req := &queue.Request{
		ID:           idgen.WithPrefix("req_"),
		Initiator:    initiator,
		Counterparty: counterparty,
		OriginChatID: msg.Chat.ID,
		Status:       queue.StatusPending,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}
	if err := s.requests.Append(ctx, req); err != nil {
		logging.L(ctx).Error("request append failed", "error", err)
		s.send(ctx, msg.Chat.ID, textProvisionFailed("could not record the request"))
		return
	}
	s.send(ctx, msg.Chat.ID, "Setting up a private deal room for @"+initiator+" and @"+counterparty+"...")

	// Wait a bounded time for the provisioner. If it is slow, the room
	// discovery poller delivers the invite later instead.
	done, err := queue.PollResult(ctx, s.requests, req.ID, s.resultPollInterval, s.resultPollAttempts)
	if err != nil {
		if errors.Is(err, queue.ErrPollTimeout) {
			s.send(ctx, msg.Chat.ID, "Room setup is taking longer than usual. The invite will be posted here when it is ready.")
			return
		}
		logging.L(ctx).Error("result poll failed", "request_id", req.ID, "error", err)
		return
	}

	s.deliverResult(ctx, done)
}

// deliverResult posts a finished request's outcome to its origin chat,
// at most once
func (s *Service) deliverResult(ctx context.Context, req *queue.Request) {
	first, err := s.requests.MarkDelivered(ctx, req.ID)
	if err != nil {
		logging.L(ctx).Error("mark delivered failed", "request_id", req.ID, "error", err)
		return
	}
	if !first {
		return
	}

	switch {
	case req.Status == queue.StatusCompleted && req.Result != nil:
		s.send(ctx, req.OriginChatID, textProvisioned(req.Result.RoomName, req.Result.InviteLink))
	case req.Status == queue.StatusFailed:
		reason := req.Error
		if reason == "" {
			reason = "provisioning failed"
		}
		s.send(ctx, req.OriginChatID, textProvisionFailed(reason))
	}
}

// cmdRelease re-posts the release gate so its live state is visible
// after it scrolled away
func (s *Service) cmdRelease(ctx context.Context, msg *chat.Message) {
	sess := s.sessionFor(ctx, msg.Chat.ID)
	if sess == nil || msg.From == nil || !sess.IsParticipant(msg.From.Username) {
		return
	}
	if sess.Step != session.StepReleaseApproval {
		s.send(ctx, msg.Chat.ID, "There is nothing to release yet.")
		return
	}

	sess.ReleaseMessageID = s.sendKeyboard(ctx, msg.Chat.ID, textReleaseGate(sess), releaseKeyboard(sess.RoomID))
	if err := s.sessions.Put(sess); err != nil {
		logging.L(ctx).Error("session save failed", "error", err)
	}
}

// cmdRestart wipes the deal back to role selection for the same pair
func (s *Service) cmdRestart(ctx context.Context, msg *chat.Message) {
	sess := s.sessionFor(ctx, msg.Chat.ID)
	if sess == nil || msg.From == nil || !sess.IsParticipant(msg.From.Username) {
		return
	}
	if sess.Step == session.StepAwaitingJoin {
		return
	}

	sess.Restart()
	s.publish(realtime.EventDealRestarted, sess.RoomID, nil)
	s.send(ctx, msg.Chat.ID, "🔄 Deal restarted by @"+msg.From.Username+". Starting over from role selection.")
	sess.RoleMessageID = s.sendKeyboard(ctx, msg.Chat.ID, textRolePrompt, roleKeyboard(sess.RoomID))

	if err := s.sessions.Put(sess); err != nil {
		logging.L(ctx).Error("session save failed", "error", err)
	}
}

// cmdBalance reports the confirmed escrow balance for the room. Before
// an escrow address has been issued there is nothing to report and the
// command stays silent.
func (s *Service) cmdBalance(ctx context.Context, msg *chat.Message) {
	sess := s.sessionFor(ctx, msg.Chat.ID)
	if sess == nil || msg.From == nil || !sess.IsParticipant(msg.From.Username) {
		return
	}
	if sess.DepositAddress == "" {
		return
	}

	s.send(ctx, msg.Chat.ID, textBalance(sess.DepositAmount, sess.Coin))
}

// cmdVerify reports whether an address belongs to the escrow service,
// so users can check an address pasted to them out of band
func (s *Service) cmdVerify(ctx context.Context, msg *chat.Message, arg string) {
	addr := validation.SanitizeAddress(arg)
	if addr == "" {
		s.send(ctx, msg.Chat.ID, "Usage: /verify 0x...")
		return
	}

	if coin, ok := s.book.Find(addr); ok {
		s.send(ctx, msg.Chat.ID, fmt.Sprintf("✅ This is a genuine escrow address (%s on BSC).", coin))
	} else {
		s.send(ctx, msg.Chat.ID, "❌ This is NOT one of our escrow addresses. Do not send funds to it.")
	}
}

// cmdKick removes the user whose message the admin replied to
func (s *Service) cmdKick(ctx context.Context, msg *chat.Message) {
	if msg.From == nil || !s.isAdmin(msg.From.Username) {
		return
	}
	if msg.ReplyTo == nil || msg.ReplyTo.From == nil {
		s.send(ctx, msg.Chat.ID, "Reply to the user's message with /kick.")
		return
	}

	target := msg.ReplyTo.From
	if err := s.msgr.BanMember(ctx, msg.Chat.ID, target.ID); err != nil {
		logging.L(ctx).Error("kick failed", "user_id", target.ID, "error", err)
		s.send(ctx, msg.Chat.ID, "Could not remove that user.")
		return
	}
	s.send(ctx, msg.Chat.ID, "Removed @"+target.Username+".")
}

// cmdLink mints a fresh invite link for a room by id
func (s *Service) cmdLink(ctx context.Context, msg *chat.Message, arg string) {
	if msg.From == nil || !s.isAdmin(msg.From.Username) {
		return
	}

	roomID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		s.send(ctx, msg.Chat.ID, "Usage: /link <roomId>")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	link, err := s.msgr.CreateInviteLink(ctx, roomID)
	if err != nil {
		logging.L(ctx).Error("invite link failed", "room_id", roomID, "error", err)
		s.send(ctx, msg.Chat.ID, "Could not create an invite link for that room.")
		return
	}
	s.send(ctx, msg.Chat.ID, link)
}
