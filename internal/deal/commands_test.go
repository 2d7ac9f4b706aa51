package deal

import (
	"context"
	"testing"
	"time"

	"github.com/p2pmart/dealroom/internal/action"
	"github.com/p2pmart/dealroom/internal/chat"
	"github.com/p2pmart/dealroom/internal/queue"
	"github.com/p2pmart/dealroom/internal/session"
)

const originChatID = int64(5555)

// originText sends a command from the escrow group rather than a deal room
func (f *fixture) originText(from chat.User, text string) {
	f.svc.HandleUpdate(context.Background(), chat.Update{Message: &chat.Message{
		Chat: chat.Chat{ID: originChatID, Type: "supergroup"},
		From: &from,
		Text: text,
	}})
}

func TestCmdDeal_AppendsRequest(t *testing.T) {
	f := newFixture(t)

	f.originText(alice, "/deal @bob")

	reqs, err := f.requests.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	req := reqs[0]
	if req.Initiator != "alice" || req.Counterparty != "bob" {
		t.Fatalf("request = %q -> %q", req.Initiator, req.Counterparty)
	}
	if req.OriginChatID != originChatID {
		t.Fatalf("origin = %d, want %d", req.OriginChatID, originChatID)
	}

	// The inline poll budget expired with the request still pending
	if f.msgr.countTexts("taking longer than usual") != 1 {
		t.Fatal("expected the slow-provisioner notice")
	}
}

func TestCmdDeal_DeliversCompletedResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Complete the request as soon as it appears, inside the poll budget
	f.svc.WithResultPoll(time.Millisecond, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			reqs, _ := f.requests.Pending(ctx)
			if len(reqs) == 1 {
				_ = f.requests.Complete(ctx, reqs[0].ID, queue.RoomResult{
					RoomID:     testRoomID,
					RoomName:   "MM ROOM 1",
					InviteLink: "https://chat.example/join/room1",
				})
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	f.originText(alice, "/deal @bob")
	<-done

	if f.msgr.countTexts("https://chat.example/join/room1") != 1 {
		t.Fatal("invite link not delivered")
	}

	// The sweep must not deliver a second copy
	f.poller.sweepUndelivered(ctx)
	if f.msgr.countTexts("https://chat.example/join/room1") != 1 {
		t.Fatal("invite delivered twice")
	}
}

func TestSweepDeliversMissedResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := &queue.Request{
		ID:           "req_missed",
		Initiator:    "alice",
		Counterparty: "bob",
		OriginChatID: originChatID,
		Status:       queue.StatusPending,
		CreatedAt:    time.Now(),
	}
	if err := f.requests.Append(ctx, req); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := f.requests.Fail(ctx, req.ID, "no capacity"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	f.poller.sweepUndelivered(ctx)
	if f.msgr.countTexts("no capacity") != 1 {
		t.Fatal("failure not delivered to the origin chat")
	}

	f.poller.sweepUndelivered(ctx)
	if f.msgr.countTexts("no capacity") != 1 {
		t.Fatal("failure delivered twice")
	}
}

func TestCmdDeal_RejectsSelfDeal(t *testing.T) {
	f := newFixture(t)

	f.originText(alice, "/deal @alice")

	reqs, _ := f.requests.All(context.Background())
	if len(reqs) != 0 {
		t.Fatal("self-deal request was queued")
	}
}

func TestCmdBalance(t *testing.T) {
	f := newFixture(t)
	f.driveToStep(t, session.StepDealApproval)

	// No escrow address issued yet: stay silent
	before := len(f.msgr.sent)
	f.text(alice, "/balance")
	if len(f.msgr.sent) != before {
		t.Fatal("balance answered before an escrow address existed")
	}

	f.press(alice, action.KindApproveDeal)
	f.press(bob, action.KindApproveDeal)

	// Address issued, nothing deposited yet
	f.text(alice, "/balance")
	if f.msgr.countTexts("Confirmed escrow balance: 0.00000") != 1 {
		t.Fatal("expected a zero balance")
	}
}

func TestCmdVerify(t *testing.T) {
	f := newFixture(t)
	f.provisionRoom(t)

	f.text(alice, "/verify 0xDA4c2a5B876b0c7521e1c752690D8705080000fE")
	if f.msgr.countTexts("genuine escrow address") != 1 {
		t.Fatal("pool address not recognized")
	}

	f.text(alice, "/verify 0x1111111111111111111111111111111111111111")
	if f.msgr.countTexts("NOT one of our escrow addresses") != 1 {
		t.Fatal("foreign address not flagged")
	}
}

func TestCmdKick_AdminOnly(t *testing.T) {
	f := newFixture(t)
	f.provisionRoom(t)

	root := chat.User{ID: 1, Username: "root"}
	target := &chat.Message{From: &mal}

	// Non-admins get nothing
	f.svc.HandleUpdate(context.Background(), chat.Update{Message: &chat.Message{
		Chat:    chat.Chat{ID: testRoomID},
		From:    &alice,
		Text:    "/kick",
		ReplyTo: target,
	}})
	if len(f.msgr.banned) != 0 {
		t.Fatal("non-admin kicked someone")
	}

	f.svc.HandleUpdate(context.Background(), chat.Update{Message: &chat.Message{
		Chat:    chat.Chat{ID: testRoomID},
		From:    &root,
		Text:    "/kick",
		ReplyTo: target,
	}})
	if len(f.msgr.banned) != 1 || f.msgr.banned[0] != mal.ID {
		t.Fatalf("banned = %v, want [%d]", f.msgr.banned, mal.ID)
	}
}

func TestCmdLink_AdminOnly(t *testing.T) {
	f := newFixture(t)

	f.originText(alice, "/link -1001234")
	if f.msgr.countTexts(f.msgr.invite) != 0 {
		t.Fatal("non-admin minted an invite link")
	}

	root := chat.User{ID: 1, Username: "root"}
	f.originText(root, "/link -1001234")
	if f.msgr.countTexts(f.msgr.invite) != 1 {
		t.Fatal("admin link not posted")
	}
}

func TestCmdRelease_RepostsGate(t *testing.T) {
	f := newFixture(t)
	f.driveToStep(t, session.StepReleaseApproval)

	sess := f.session(t)
	oldID := sess.ReleaseMessageID

	f.text(alice, "/release")
	sess = f.session(t)
	if sess.ReleaseMessageID == oldID || sess.ReleaseMessageID == 0 {
		t.Fatal("release gate not re-posted")
	}
}
