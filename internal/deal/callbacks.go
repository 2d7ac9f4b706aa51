package deal

import (
	"context"
	"errors"

	"github.com/p2pmart/dealroom/internal/action"
	"github.com/p2pmart/dealroom/internal/approval"
	"github.com/p2pmart/dealroom/internal/chat"
	"github.com/p2pmart/dealroom/internal/logging"
	"github.com/p2pmart/dealroom/internal/metrics"
	"github.com/p2pmart/dealroom/internal/realtime"
	"github.com/p2pmart/dealroom/internal/session"
)

// handleCallback dispatches a button press. Every path answers the
// callback so the pressed button stops spinning in the client.
func (s *Service) handleCallback(ctx context.Context, cb *chat.CallbackQuery) {
	act, err := action.Parse(cb.Data)
	if err != nil {
		s.answer(ctx, cb, "This button is no longer valid.", false)
		return
	}

	ctx = roomCtx(ctx, act.RoomID)
	sess := s.sessionFor(ctx, act.RoomID)
	if sess == nil {
		s.answer(ctx, cb, textNoActiveDeal, true)
		return
	}

	from := cb.From.Username
	if !sess.IsParticipant(from) && act.Kind != action.KindCloseDeal {
		s.answer(ctx, cb, "Only deal participants can use this.", true)
		return
	}

	switch act.Kind {
	case action.KindRoleBuyer:
		s.cbRole(ctx, cb, sess, from, session.RoleBuyer)
	case action.KindRoleSeller:
		s.cbRole(ctx, cb, sess, from, session.RoleSeller)
	case action.KindBlockchainBSC:
		s.cbBlockchain(ctx, cb, sess, "BSC")
	case action.KindCoinUSDT:
		s.cbCoin(ctx, cb, sess, "USDT")
	case action.KindCoinUSDC:
		s.cbCoin(ctx, cb, sess, "USDC")
	case action.KindApproveDeal:
		s.cbApproveDeal(ctx, cb, sess, from)
	case action.KindPaymentSent:
		s.cbPaymentSent(ctx, cb, sess, from)
	case action.KindApproveRelease:
		s.cbRelease(ctx, cb, sess, from, true)
	case action.KindDeclineRelease:
		s.cbRelease(ctx, cb, sess, from, false)
	case action.KindCloseDeal:
		s.cbCloseDeal(ctx, cb, sess, from)
		return // session deleted, nothing to save
	default:
		s.answer(ctx, cb, "This button is no longer valid.", false)
		return
	}

	if err := s.sessions.Put(sess); err != nil {
		logging.L(ctx).Error("session save failed", "error", err)
	}
}

func (s *Service) answer(ctx context.Context, cb *chat.CallbackQuery, text string, alert bool) {
	if err := s.msgr.AnswerCallback(ctx, cb.ID, text, alert); err != nil {
		logging.L(ctx).Error("answer callback failed", "callback_id", cb.ID, "error", err)
	}
}

func (s *Service) cbRole(ctx context.Context, cb *chat.CallbackQuery, sess *session.Session, from string, role session.Role) {
	if sess.Step != session.StepRoleSelection {
		s.answer(ctx, cb, "Role selection is already over.", false)
		return
	}

	switch err := sess.AssignRole(from, role); {
	case errors.Is(err, session.ErrRoleTaken):
		s.answer(ctx, cb, "That role is already taken by the other participant.", true)
		return
	case err != nil:
		s.answer(ctx, cb, "You are not part of this deal.", true)
		return
	}
	s.answer(ctx, cb, "Role recorded.", false)

	if sess.RolesFilled() {
		// Freeze the role message and move to deal terms
		s.editKeyboard(ctx, sess.RoomID, sess.RoleMessageID, rolesText(sess), nil)
		if s.advance(ctx, sess, session.StepAmount) {
			s.send(ctx, sess.RoomID, textAmountPrompt)
		}
		return
	}

	// Re-render with the current pick so both participants see it
	s.editKeyboard(ctx, sess.RoomID, sess.RoleMessageID,
		textRolePrompt+"\n\n"+rolesText(sess), roleKeyboard(sess.RoomID))
}

func rolesText(sess *session.Session) string {
	buyer, seller := "—", "—"
	if sess.BuyerUsername != "" {
		buyer = "@" + sess.BuyerUsername
	}
	if sess.SellerUsername != "" {
		seller = "@" + sess.SellerUsername
	}
	return "Buyer: " + buyer + "\nSeller: " + seller
}

func (s *Service) cbBlockchain(ctx context.Context, cb *chat.CallbackQuery, sess *session.Session, network string) {
	if sess.Step != session.StepBlockchain {
		// Pressing the same button twice is harmless
		if sess.Blockchain == network {
			s.answer(ctx, cb, network+" already selected.", false)
			return
		}
		s.answer(ctx, cb, "Blockchain selection is already over.", false)
		return
	}

	sess.Blockchain = network
	s.answer(ctx, cb, network+" selected.", false)
	if s.advance(ctx, sess, session.StepCoin) {
		s.sendKeyboard(ctx, sess.RoomID, textCoinPrompt, coinKeyboard(sess.RoomID))
	}
}

func (s *Service) cbCoin(ctx context.Context, cb *chat.CallbackQuery, sess *session.Session, coin string) {
	if sess.Step != session.StepCoin {
		if sess.Coin == coin {
			s.answer(ctx, cb, coin+" already selected.", false)
			return
		}
		s.answer(ctx, cb, "Coin selection is already over.", false)
		return
	}

	sess.Coin = coin
	s.answer(ctx, cb, coin+" selected.", false)
	if s.advance(ctx, sess, session.StepBuyerAddress) {
		s.send(ctx, sess.RoomID, textBuyerAddressPrompt(sess.BuyerUsername))
		// Buyer, seller, coin and network are all settled here
		if s.announceChatID != 0 {
			s.send(ctx, s.announceChatID, textDealAnnounce(sess))
		}
	}
}

func (s *Service) cbApproveDeal(ctx context.Context, cb *chat.CallbackQuery, sess *session.Session, from string) {
	if sess.Step != session.StepDealApproval {
		s.answer(ctx, cb, "There is nothing to approve right now.", false)
		return
	}

	role, ok := sess.RoleOf(from)
	if !ok {
		s.answer(ctx, cb, "You do not hold a role in this deal.", true)
		return
	}

	if err := sess.DealGate.Decide(approval.Party(role), true); err != nil {
		s.answer(ctx, cb, "You have already approved this deal.", true)
		return
	}
	s.answer(ctx, cb, "Approval recorded.", false)

	if sess.DealGate.TryFire() {
		// Both approved. Freeze the summary, issue the escrow address,
		// and start the clock.
		s.editKeyboard(ctx, sess.RoomID, sess.ApprovalMessageID, textSummary(sess), nil)

		addr, err := s.book.Next(sess.Coin)
		if err != nil {
			logging.L(ctx).Error("no escrow address pool", "coin", sess.Coin, "error", err)
			s.send(ctx, sess.RoomID, "Escrow is temporarily unavailable for this coin. Use /restart and pick another coin.")
			return
		}
		sess.DepositAddress = addr
		sess.DealStartedAt = s.now()

		if s.advance(ctx, sess, session.StepAwaitingDepositHash) {
			s.send(ctx, sess.RoomID, textDepositPrompt(sess.SellerUsername, sess.Coin, addr, sess.Amount))
		}
		return
	}

	// One side approved; re-render the summary with live statuses
	s.editKeyboard(ctx, sess.RoomID, sess.ApprovalMessageID, textSummary(sess), approvalKeyboard(sess.RoomID))
}

func (s *Service) cbPaymentSent(ctx context.Context, cb *chat.CallbackQuery, sess *session.Session, from string) {
	if sess.Step != session.StepReleaseApproval {
		s.answer(ctx, cb, "There is no payment to mark right now.", false)
		return
	}

	if role, ok := sess.RoleOf(from); !ok || role != session.RoleBuyer {
		s.answer(ctx, cb, "Only the buyer can mark the payment as sent.", true)
		return
	}

	if !sess.MarkPrompted("payment_sent") {
		s.answer(ctx, cb, "Payment is already marked as sent.", false)
		return
	}
	s.answer(ctx, cb, "Marked as sent.", false)
	s.send(ctx, sess.RoomID, textPaymentSentNote)
}

func (s *Service) cbRelease(ctx context.Context, cb *chat.CallbackQuery, sess *session.Session, from string, approve bool) {
	if sess.Step != session.StepReleaseApproval {
		s.answer(ctx, cb, "There is nothing to release right now.", false)
		return
	}

	role, ok := sess.RoleOf(from)
	if !ok {
		s.answer(ctx, cb, "You do not hold a role in this deal.", true)
		return
	}

	if err := sess.ReleaseGate.Decide(approval.Party(role), approve); err != nil {
		s.answer(ctx, cb, "You have already decided on the release.", true)
		return
	}
	s.answer(ctx, cb, "Decision recorded.", false)

	if sess.ReleaseGate.TryFire() {
		s.completeDeal(ctx, sess)
		return
	}

	// Conflict or still waiting: re-render with live statuses. The
	// controls stay actionable; a rejecting party can still come back
	// and approve.
	s.editKeyboard(ctx, sess.RoomID, sess.ReleaseMessageID, textReleaseGate(sess), releaseKeyboard(sess.RoomID))
}

func (s *Service) completeDeal(ctx context.Context, sess *session.Session) {
	sess.CompletedAt = s.now()
	if !s.advance(ctx, sess, session.StepComplete) {
		return
	}

	metrics.DealsCompletedTotal.Inc()
	if !sess.DealStartedAt.IsZero() {
		metrics.DealDuration.Observe(sess.CompletedAt.Sub(sess.DealStartedAt).Seconds())
	}

	s.saveRehydration(ctx, sess)
	s.publish(realtime.EventDealCompleted, sess.RoomID, map[string]any{
		"coin":   sess.Coin,
		"amount": sess.DepositAmount,
	})

	s.editKeyboard(ctx, sess.RoomID, sess.ReleaseMessageID, textReleaseGate(sess), nil)
	elapsed := sess.CompletedAt.Sub(sess.DealStartedAt)
	s.sendKeyboard(ctx, sess.RoomID, textComplete(sess, elapsed), closeKeyboard(sess.RoomID))
}

// cbCloseDeal tears the room down after completion: both participants
// are banned so the room cannot be reused for an unescrowed deal.
func (s *Service) cbCloseDeal(ctx context.Context, cb *chat.CallbackQuery, sess *session.Session, from string) {
	if sess.Step != session.StepComplete {
		s.answer(ctx, cb, "The deal is not complete yet.", true)
		return
	}
	if !sess.IsParticipant(from) {
		s.answer(ctx, cb, "Only deal participants can close the room.", true)
		return
	}
	s.answer(ctx, cb, "Closing the room.", false)

	for _, userID := range []int64{sess.InitiatorID, sess.CounterpartyID} {
		if userID == 0 {
			continue
		}
		if err := s.msgr.BanMember(ctx, sess.RoomID, userID); err != nil {
			logging.L(ctx).Error("close ban failed", "user_id", userID, "error", err)
		}
	}

	if err := s.sessions.Delete(sess.RoomID); err != nil {
		logging.L(ctx).Error("session delete failed", "error", err)
		return
	}
	metrics.ActiveSessions.Dec()
}

func blockchainKeyboard(roomID int64) chat.Keyboard {
	return chat.Keyboard{
		chat.Row(chat.Button{Text: "BSC", Data: action.Encode(action.KindBlockchainBSC, roomID)}),
	}
}

func coinKeyboard(roomID int64) chat.Keyboard {
	return chat.Keyboard{
		chat.Row(
			chat.Button{Text: "USDT", Data: action.Encode(action.KindCoinUSDT, roomID)},
			chat.Button{Text: "USDC", Data: action.Encode(action.KindCoinUSDC, roomID)},
		),
	}
}

func approvalKeyboard(roomID int64) chat.Keyboard {
	return chat.Keyboard{
		chat.Row(chat.Button{Text: "✅ Approve deal", Data: action.Encode(action.KindApproveDeal, roomID)}),
	}
}

func releaseKeyboard(roomID int64) chat.Keyboard {
	return chat.Keyboard{
		chat.Row(chat.Button{Text: "💸 Payment sent", Data: action.Encode(action.KindPaymentSent, roomID)}),
		chat.Row(
			chat.Button{Text: "✅ Approve release", Data: action.Encode(action.KindApproveRelease, roomID)},
			chat.Button{Text: "❌ Decline release", Data: action.Encode(action.KindDeclineRelease, roomID)},
		),
	}
}

func closeKeyboard(roomID int64) chat.Keyboard {
	return chat.Keyboard{
		chat.Row(chat.Button{Text: "🔒 Close room", Data: action.Encode(action.KindCloseDeal, roomID)}),
	}
}
