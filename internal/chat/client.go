package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/p2pmart/dealroom/internal/retry"
)

const (
	defaultTimeout     = 35 * time.Second // long poll timeout plus slack
	longPollSeconds    = 30
	sendRetryAttempts  = 3
	sendRetryBaseDelay = 300 * time.Millisecond
)

// Client talks to a Telegram-compatible Bot API over HTTP
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Bot API client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// WithHTTPClient overrides the underlying HTTP client (used in tests)
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// apiResponse is the Bot API envelope
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// call posts one API method and decodes the result envelope.
// Server errors and rate limits are retried; 4xx rejections are not.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	return retry.Do(ctx, sendRetryAttempts, sendRetryBaseDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("calling %s: %w", method, err)
		}
		defer func() { _ = resp.Body.Close() }()

		var envelope apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("decoding %s response: %w", method, err)
		}

		if !envelope.OK {
			err := fmt.Errorf("%w: %s: %s (code %d)",
				ErrSendFailed, method, envelope.Description, envelope.ErrorCode)
			// 429 and 5xx are worth retrying; everything else is a
			// rejection that will not change
			if envelope.ErrorCode == http.StatusTooManyRequests || envelope.ErrorCode >= 500 {
				return err
			}
			return retry.Permanent(err)
		}

		if out != nil {
			if err := json.Unmarshal(envelope.Result, out); err != nil {
				return retry.Permanent(fmt.Errorf("decoding %s result: %w", method, err))
			}
		}
		return nil
	})
}

// Send posts a plain message and returns its id
func (c *Client) Send(ctx context.Context, chatID int64, text string) (int64, error) {
	var msg Message
	err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	}, &msg)
	return msg.MessageID, err
}

// SendKeyboard posts a message with inline buttons
func (c *Client) SendKeyboard(ctx context.Context, chatID int64, text string, kb Keyboard) (int64, error) {
	var msg Message
	err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id":      chatID,
		"text":         text,
		"reply_markup": map[string]any{"inline_keyboard": kb},
	}, &msg)
	return msg.MessageID, err
}

// EditKeyboard replaces an existing message's text and buttons
func (c *Client) EditKeyboard(ctx context.Context, chatID, messageID int64, text string, kb Keyboard) error {
	return c.call(ctx, "editMessageText", map[string]any{
		"chat_id":      chatID,
		"message_id":   messageID,
		"text":         text,
		"reply_markup": map[string]any{"inline_keyboard": kb},
	}, nil)
}

// AnswerCallback acknowledges a button press
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
		"show_alert":        showAlert,
	}, nil)
}

// BanMember removes a user from a room permanently
func (c *Client) BanMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "banChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

// SetDescription sets a room's description text
func (c *Client) SetDescription(ctx context.Context, chatID int64, description string) error {
	return c.call(ctx, "setChatDescription", map[string]any{
		"chat_id":     chatID,
		"description": description,
	}, nil)
}

// CreateInviteLink mints a fresh invite link for a room
func (c *Client) CreateInviteLink(ctx context.Context, chatID int64) (string, error) {
	var result struct {
		InviteLink string `json:"invite_link"`
	}
	err := c.call(ctx, "createChatInviteLink", map[string]any{
		"chat_id": chatID,
	}, &result)
	return result.InviteLink, err
}

// CreateRoom creates a private group chat and returns its id. The
// stock Bot API has no such method; this targets the gateway's
// createRoom extension, which provisions a group on the operator's
// user account and admits the bot. When template is non-empty the
// gateway copies that group's permission set onto the new room.
func (c *Client) CreateRoom(ctx context.Context, title, template string) (int64, error) {
	params := map[string]any{
		"title": title,
	}
	if template != "" {
		params["template_chat"] = template
	}
	var room Chat
	err := c.call(ctx, "createRoom", params, &room)
	return room.ID, err
}

// Updates long-polls for the next batch of updates after offset
func (c *Client) Updates(ctx context.Context, offset int64) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":  offset,
		"timeout": longPollSeconds,
	}, &updates)
	return updates, err
}

// Compile-time assertions
var (
	_ Messenger    = (*Client)(nil)
	_ UpdateSource = (*Client)(nil)
)
