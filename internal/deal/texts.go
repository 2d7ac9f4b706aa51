package deal

import (
	"fmt"
	"strings"
	"time"

	"github.com/p2pmart/dealroom/internal/approval"
	"github.com/p2pmart/dealroom/internal/session"
)

// Message texts for every step of the deal flow. Kept together so the
// whole conversation can be reviewed in one place.

const (
	textDisclaimer = "⚠️ Escrow service disclaimer\n\n" +
		"This room is moderated by an automated escrow agent. " +
		"Funds move only after both parties approve the release. " +
		"Never send funds to an address that was not issued in this room, " +
		"and never approve a release before confirming receipt."

	textRolePrompt = "Both parties are here. Who is buying and who is selling?\n" +
		"Tap a button to pick your role. You can change your pick until both roles are taken."

	textAmountPrompt = "Roles are set. 💰\n\nEnter the deal amount (minimum 1):"

	textPaymentPrompt = "Enter the payment method.\n" +
		"Accepted: UPI, CDM, CCW, CASH, ATM, CARDLESS, IMPS, RTGS, NEFT"

	textBlockchainPrompt = "Select the blockchain:"

	textCoinPrompt = "Select the coin:"

	textAmountRejected = "That amount is not valid. Enter a number of at least 1:"

	textPaymentRejected = "That payment method is not supported.\n" +
		"Accepted: UPI, CDM, CCW, CASH, ATM, CARDLESS, IMPS, RTGS, NEFT"

	textAddressRejected = "That does not look like a valid address. " +
		"It must be 0x followed by exactly 40 hex characters."

	textNoActiveDeal = "No active deal in this room."

	textPaymentSentNote = "💸 The buyer has marked the fiat payment as sent. " +
		"Seller, confirm receipt before approving the release."

	textReleaseConflict = "⚠️ Release conflict: one party approved and the other declined. " +
		"The declining party can still approve, an operator can step in, or either party can use /restart."
)

func textWelcome(roomName string) string {
	return fmt.Sprintf("Welcome to %s. Waiting for both parties to join...", roomName)
}

func textJoined(username string) string {
	return fmt.Sprintf("✅ @%s joined the room.", username)
}

func textRatePrompt(floor int64) string {
	return fmt.Sprintf("Enter the exchange rate (minimum %d):", floor)
}

func textRateRejected(floor int64) string {
	return fmt.Sprintf("That rate is below the floor. Enter a rate of at least %d:", floor)
}

func textBuyerAddressPrompt(buyer string) string {
	return fmt.Sprintf("@%s, paste the address where you want to receive the crypto (0x...):", buyer)
}

func textSellerAddressPrompt(seller string) string {
	return fmt.Sprintf("@%s, paste your refund address (0x...):", seller)
}

func textDepositPrompt(seller, coin, addr string, amount float64) string {
	return fmt.Sprintf(
		"🔐 Escrow deposit\n\n@%s, send %.5f %s (BSC) to the escrow address below, "+
			"then paste the transaction hash or explorer link here.\n\n%s",
		seller, amount, coin, addr,
	)
}

func textDepositConfirmed(amount float64, coin string, buyer string) string {
	return fmt.Sprintf(
		"✅ Deposit confirmed: %.5f %s (BSC) received in escrow.\n\n"+
			"@%s, send the fiat payment now and tap the button when done.",
		amount, coin, buyer,
	)
}

func textBalance(amount float64, coin string) string {
	return fmt.Sprintf("Confirmed escrow balance: %.5f %s (BSC)", amount, coin)
}

// textSummary echoes every negotiated term, addresses verbatim
func textSummary(s *session.Session) string {
	var b strings.Builder
	b.WriteString("📋 Deal summary\n\n")
	fmt.Fprintf(&b, "Buyer: @%s\n", s.BuyerUsername)
	fmt.Fprintf(&b, "Seller: @%s\n", s.SellerUsername)
	fmt.Fprintf(&b, "Amount: %.5f %s\n", s.Amount, s.Coin)
	fmt.Fprintf(&b, "Rate: %g\n", s.Rate)
	fmt.Fprintf(&b, "Payment method: %s\n", s.PaymentMethod)
	fmt.Fprintf(&b, "Network: %s\n", s.Blockchain)
	fmt.Fprintf(&b, "Buyer address: %s\n", s.BuyerAddress)
	fmt.Fprintf(&b, "Seller address: %s\n\n", s.SellerAddress)
	b.WriteString(gateStatusLine("Approval", &s.DealGate, s.BuyerUsername, s.SellerUsername))
	return b.String()
}

func textReleaseGate(s *session.Session) string {
	var b strings.Builder
	b.WriteString("🔓 Fund release\n\n")
	fmt.Fprintf(&b, "Escrow holds %.5f %s for this deal.\n", s.DepositAmount, s.Coin)
	b.WriteString("Both parties must approve before escrow releases to the buyer address.\n\n")
	b.WriteString(gateStatusLine("Release", &s.ReleaseGate, s.BuyerUsername, s.SellerUsername))
	if s.ReleaseGate.Outcome() == approval.OutcomeConflict {
		b.WriteString("\n\n" + textReleaseConflict)
	}
	return b.String()
}

func gateStatusLine(label string, g *approval.Gate, buyer, seller string) string {
	return fmt.Sprintf("%s status:\n  Buyer @%s: %s\n  Seller @%s: %s",
		label, buyer, statusIcon(g.StatusOf(approval.PartyBuyer)),
		seller, statusIcon(g.StatusOf(approval.PartySeller)))
}

func statusIcon(s approval.Status) string {
	switch s {
	case approval.StatusApproved:
		return "✅ approved"
	case approval.StatusRejected:
		return "❌ declined"
	default:
		return "⏳ waiting"
	}
}

func textComplete(s *session.Session, elapsed time.Duration) string {
	return fmt.Sprintf(
		"🎉 Deal complete!\n\n%.5f %s released to %s.\nElapsed time: %s\n\n"+
			"Thank you for trading with escrow. You can close this room below.",
		s.DepositAmount, s.Coin, s.BuyerAddress, formatElapsed(elapsed),
	)
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func textProvisioned(roomName, inviteLink string) string {
	return fmt.Sprintf("🏠 Your deal room %s is ready.\nJoin here: %s", roomName, inviteLink)
}

func textProvisionFailed(reason string) string {
	return fmt.Sprintf("❌ Could not set up a deal room: %s", reason)
}

func textDealAnnounce(sess *session.Session) string {
	return fmt.Sprintf("🆕 New deal in %s: @%s buying %s from @%s on %s",
		sess.RoomName, sess.BuyerUsername, sess.Coin, sess.SellerUsername, sess.Blockchain)
}
