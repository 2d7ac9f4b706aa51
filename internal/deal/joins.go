package deal

import (
	"context"

	"github.com/p2pmart/dealroom/internal/action"
	"github.com/p2pmart/dealroom/internal/chat"
	"github.com/p2pmart/dealroom/internal/logging"
	"github.com/p2pmart/dealroom/internal/realtime"
	"github.com/p2pmart/dealroom/internal/session"
)

// handleJoin processes new members entering a room. Registered
// participants are greeted and tracked; anyone else is removed.
func (s *Service) handleJoin(ctx context.Context, msg *chat.Message) {
	roomID := msg.Chat.ID
	ctx = roomCtx(ctx, roomID)

	sess := s.sessionFor(ctx, roomID)
	if sess == nil {
		return
	}

	for _, u := range msg.NewChatMembers {
		if u.IsBot {
			continue
		}

		if err := sess.MarkJoined(u.Username, u.ID); err != nil {
			// Not one of the two registered participants. Remove them;
			// the session itself is untouched.
			logging.L(ctx).Warn("unregistered joiner removed",
				"username", u.Username, "user_id", u.ID)
			if err := s.msgr.BanMember(ctx, roomID, u.ID); err != nil {
				logging.L(ctx).Error("ban failed", "user_id", u.ID, "error", err)
			}
			continue
		}

		// Greet each participant once even if the platform redelivers
		// the join event
		if sess.MarkPrompted("joined_" + u.Username) {
			s.send(ctx, roomID, textJoined(u.Username))
		}
		s.publish(realtime.EventParticipantJoined, roomID, map[string]any{
			"username": u.Username,
		})
	}

	if sess.TryBothJoined() {
		s.send(ctx, roomID, textDisclaimer)
		if s.advance(ctx, sess, session.StepRoleSelection) {
			sess.RoleMessageID = s.sendKeyboard(ctx, roomID, textRolePrompt, roleKeyboard(roomID))
		}
	}

	if err := s.sessions.Put(sess); err != nil {
		logging.L(ctx).Error("session save failed", "error", err)
	}
}

func roleKeyboard(roomID int64) chat.Keyboard {
	return chat.Keyboard{
		chat.Row(
			chat.Button{Text: "I'm buying", Data: action.Encode(action.KindRoleBuyer, roomID)},
			chat.Button{Text: "I'm selling", Data: action.Encode(action.KindRoleSeller, roomID)},
		),
	}
}
