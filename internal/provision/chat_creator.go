package provision

import (
	"context"
	"fmt"
)

// ChatClient is the slice of the chat transport room creation needs
type ChatClient interface {
	CreateRoom(ctx context.Context, title, template string) (int64, error)
	SetDescription(ctx context.Context, chatID int64, description string) error
	CreateInviteLink(ctx context.Context, chatID int64) (string, error)
}

// roomDescription is pinned on every new room so participants can see
// the command surface without scrolling back
const roomDescription = "Escrow deal room. Commands: /restart /balance /verify <address> /release"

// ChatCreator creates rooms through the chat gateway. Two invite links
// are minted per room: one posted to the participants and a spare kept
// on the result for operators.
type ChatCreator struct {
	client   ChatClient
	template string
}

// NewChatCreator wraps a chat client as a RoomCreator
func NewChatCreator(client ChatClient) *ChatCreator {
	return &ChatCreator{client: client}
}

// WithTemplate sets the group whose permission set new rooms inherit
func (c *ChatCreator) WithTemplate(group string) *ChatCreator {
	c.template = group
	return c
}

// CreateRoom creates one room and mints its invite links
func (c *ChatCreator) CreateRoom(ctx context.Context, name string) (*Room, error) {
	id, err := c.client.CreateRoom(ctx, name, c.template)
	if err != nil {
		return nil, fmt.Errorf("creating room %q: %w", name, err)
	}

	// Best effort: a room without its description is still usable
	_ = c.client.SetDescription(ctx, id, roomDescription)

	link, err := c.client.CreateInviteLink(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("minting invite link for room %d: %w", id, err)
	}

	// Best effort: the spare link is convenience, not correctness
	spare, err := c.client.CreateInviteLink(ctx, id)
	if err != nil {
		spare = ""
	}

	return &Room{ID: id, InviteLink: link, BotInviteLink: spare}, nil
}
