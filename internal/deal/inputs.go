package deal

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/p2pmart/dealroom/internal/chat"
	"github.com/p2pmart/dealroom/internal/logging"
	"github.com/p2pmart/dealroom/internal/metrics"
	"github.com/p2pmart/dealroom/internal/realtime"
	"github.com/p2pmart/dealroom/internal/session"
	"github.com/p2pmart/dealroom/internal/validation"
	"github.com/p2pmart/dealroom/internal/verifier"
)

// handleText feeds free-form input into whatever step the room's deal
// is at. Input from non-participants, and input at steps that take no
// text, is dropped without comment.
func (s *Service) handleText(ctx context.Context, msg *chat.Message) {
	roomID := msg.Chat.ID
	ctx = roomCtx(ctx, roomID)

	sess := s.sessionFor(ctx, roomID)
	if sess == nil || msg.From == nil || !sess.IsParticipant(msg.From.Username) {
		return
	}

	text := strings.TrimSpace(msg.Text)
	from := msg.From.Username

	switch sess.Step {
	case session.StepAmount:
		s.inputAmount(ctx, sess, text)
	case session.StepRate:
		s.inputRate(ctx, sess, text)
	case session.StepPaymentMethod:
		s.inputPaymentMethod(ctx, sess, text)
	case session.StepBuyerAddress:
		s.inputAddress(ctx, sess, from, session.RoleBuyer, text)
	case session.StepSellerAddress:
		s.inputAddress(ctx, sess, from, session.RoleSeller, text)
	case session.StepAwaitingDepositHash:
		s.inputDepositHash(ctx, sess, from, text)
	default:
		return
	}

	if err := s.sessions.Put(sess); err != nil {
		logging.L(ctx).Error("session save failed", "error", err)
	}
}

// reject sends exactly one rejection message for an invalid input and
// leaves the step unchanged
func (s *Service) reject(ctx context.Context, sess *session.Session, text string) {
	metrics.ValidationRejectsTotal.WithLabelValues(string(sess.Step)).Inc()
	s.send(ctx, sess.RoomID, text)
}

func (s *Service) inputAmount(ctx context.Context, sess *session.Session, text string) {
	amount, err := strconv.ParseFloat(text, 64)
	if err != nil || amount < 1 {
		s.reject(ctx, sess, textAmountRejected)
		return
	}

	sess.Amount = amount
	if s.advance(ctx, sess, session.StepRate) {
		s.send(ctx, sess.RoomID, textRatePrompt(s.rateFloor))
	}
}

func (s *Service) inputRate(ctx context.Context, sess *session.Session, text string) {
	rate, err := strconv.ParseFloat(text, 64)
	if err != nil || rate < float64(s.rateFloor) {
		s.reject(ctx, sess, textRateRejected(s.rateFloor))
		return
	}

	sess.Rate = rate
	if s.advance(ctx, sess, session.StepPaymentMethod) {
		s.send(ctx, sess.RoomID, textPaymentPrompt)
	}
}

func (s *Service) inputPaymentMethod(ctx context.Context, sess *session.Session, text string) {
	method, ok := validation.NormalizePaymentMethod(text)
	if !ok {
		s.reject(ctx, sess, textPaymentRejected)
		return
	}

	sess.PaymentMethod = method
	if s.advance(ctx, sess, session.StepBlockchain) {
		s.sendKeyboard(ctx, sess.RoomID, textBlockchainPrompt, blockchainKeyboard(sess.RoomID))
	}
}

// inputAddress accepts a payout or refund address from the party that
// owns the current step. Text from the other participant is ignored so
// chatter cannot fail the step.
func (s *Service) inputAddress(ctx context.Context, sess *session.Session, from string, want session.Role, text string) {
	role, ok := sess.RoleOf(from)
	if !ok || role != want {
		return
	}

	addr := validation.SanitizeAddress(text)
	if !validation.IsValidAddress(addr) {
		s.reject(ctx, sess, textAddressRejected)
		return
	}

	if want == session.RoleBuyer {
		sess.BuyerAddress = addr
		if s.advance(ctx, sess, session.StepSellerAddress) {
			s.send(ctx, sess.RoomID, textSellerAddressPrompt(sess.SellerUsername))
		}
		return
	}

	sess.SellerAddress = addr
	if s.advance(ctx, sess, session.StepDealApproval) {
		s.saveRehydration(ctx, sess)
		sess.ApprovalMessageID = s.sendKeyboard(ctx, sess.RoomID, textSummary(sess), approvalKeyboard(sess.RoomID))
	}
}

// inputDepositHash verifies the seller's pasted transaction hash
// against the escrow address and deal amount
func (s *Service) inputDepositHash(ctx context.Context, sess *session.Session, from, text string) {
	role, ok := sess.RoleOf(from)
	if !ok || role != session.RoleSeller {
		return
	}

	dep, err := s.verify.Verify(ctx, text, sess.DepositAddress, sess.Amount)
	if err != nil {
		metrics.DepositsVerifiedTotal.WithLabelValues(verifyFailLabel(err)).Inc()
		s.reject(ctx, sess, verifyFailText(err))
		return
	}

	metrics.DepositsVerifiedTotal.WithLabelValues("verified").Inc()
	sess.DepositHash = dep.Hash
	sess.DepositAmount = dep.Amount
	if dep.Bypassed {
		logging.L(ctx).Warn("deposit accepted via bypass hash", "hash", dep.Hash)
	}

	s.publish(realtime.EventDepositVerified, sess.RoomID, map[string]any{
		"hash":   sess.DepositHash,
		"amount": sess.DepositAmount,
	})

	if s.advance(ctx, sess, session.StepReleaseApproval) {
		s.send(ctx, sess.RoomID, textDepositConfirmed(sess.DepositAmount, sess.Coin, sess.BuyerUsername))
		sess.ReleaseMessageID = s.sendKeyboard(ctx, sess.RoomID, textReleaseGate(sess), releaseKeyboard(sess.RoomID))
	}
}

func verifyFailLabel(err error) string {
	switch {
	case errors.Is(err, verifier.ErrHashTooShort), errors.Is(err, verifier.ErrHashNotHex):
		return "malformed"
	case errors.Is(err, verifier.ErrTxNotFound):
		return "not_found"
	case errors.Is(err, verifier.ErrWrongRecipient):
		return "wrong_recipient"
	case errors.Is(err, verifier.ErrZeroValue):
		return "zero_value"
	default:
		return "lookup_failed"
	}
}

func verifyFailText(err error) string {
	switch {
	case errors.Is(err, verifier.ErrHashTooShort):
		return "That transaction hash is too short. Paste the full hash or an explorer link."
	case errors.Is(err, verifier.ErrHashNotHex):
		return "That does not look like a transaction hash. Paste the full hash or an explorer link."
	case errors.Is(err, verifier.ErrTxNotFound):
		return "Transaction not found on chain yet. Wait for it to confirm and paste it again."
	case errors.Is(err, verifier.ErrWrongRecipient):
		return "That transaction does not pay the escrow address for this deal."
	case errors.Is(err, verifier.ErrZeroValue):
		return "That transaction transfers no value."
	default:
		return "Could not verify the transaction right now. Try again in a moment."
	}
}
