// Package chat is the transport boundary to the chat platform.
//
// The Messenger interface is everything the deal service needs to talk
// to a room; the HTTP client in this package implements it against a
// Telegram-compatible Bot API. Handlers only ever see the typed Update
// structs, never raw transport payloads.
package chat

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrSendFailed = errors.New("message send failed")
)

// User is a chat platform account
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsBot    bool   `json:"is_bot"`
}

// Chat is a room or direct conversation
type Chat struct {
	ID    int64  `json:"id"`
	Title string `json:"title,omitempty"`
	Type  string `json:"type"` // "private", "group", "supergroup"
}

// Entity marks a span of message text, e.g. an @mention
type Entity struct {
	Type   string `json:"type"` // "mention", "text_mention", ...
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	User   *User  `json:"user,omitempty"`
}

// Message is one chat message
type Message struct {
	MessageID      int64    `json:"message_id"`
	From           *User    `json:"from,omitempty"`
	Chat           Chat     `json:"chat"`
	Text           string   `json:"text,omitempty"`
	Entities       []Entity `json:"entities,omitempty"`
	ReplyTo        *Message `json:"reply_to_message,omitempty"`
	NewChatMembers []User   `json:"new_chat_members,omitempty"`
}

// CallbackQuery is a button press
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

// Update is one event from the platform. Exactly one field is set.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Button is one inline keyboard button
type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

// Keyboard is rows of inline buttons
type Keyboard [][]Button

// Row builds a single-row keyboard fragment
func Row(buttons ...Button) []Button {
	return buttons
}

// Messenger is the outbound surface the deal service talks through
type Messenger interface {
	// Send posts a plain message and returns its id
	Send(ctx context.Context, chatID int64, text string) (int64, error)
	// SendKeyboard posts a message with inline buttons
	SendKeyboard(ctx context.Context, chatID int64, text string, kb Keyboard) (int64, error)
	// EditKeyboard replaces the buttons under an existing message
	EditKeyboard(ctx context.Context, chatID, messageID int64, text string, kb Keyboard) error
	// AnswerCallback acknowledges a button press, optionally with an alert
	AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error
	// BanMember removes a user from a room permanently
	BanMember(ctx context.Context, chatID, userID int64) error
	// CreateInviteLink mints a fresh invite link for a room
	CreateInviteLink(ctx context.Context, chatID int64) (string, error)
}

// UpdateSource is the inbound surface: a long-poll cursor over updates
type UpdateSource interface {
	// Updates blocks up to the configured timeout and returns the next
	// batch of updates after offset
	Updates(ctx context.Context, offset int64) ([]Update, error)
}
