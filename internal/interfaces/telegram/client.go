package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	ParseModeHTML = "HTML"

	// MaxMessageLength is the Bot API limit for sendMessage text, in characters.
	MaxMessageLength = 4096
)

var ErrAPI = errors.New("telegram api error")

// APIError is a call Telegram answered with ok=false. It matches ErrAPI.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s: %d %s", ErrAPI, e.Method, e.StatusCode, e.Description)
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }

// User is the sender of a message.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// FullName joins the first and last name the way Telegram clients display it.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is the subset of the Bot API message object the bot reads.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// Update is one entry returned by getUpdates or pushed to the webhook.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Client calls the Telegram Bot API.
type Client struct {
	httpClient *resty.Client
	log        zerolog.Logger
}

// NewClient creates a Resty-backed Bot API client. timeout must exceed the
// long-poll timeout used with GetUpdates.
func NewClient(apiURL, token string, timeout time.Duration, log zerolog.Logger) *Client {
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: resty.New().
			SetBaseURL(strings.TrimRight(apiURL, "/")+"/bot"+token).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
		log: log.With().Str("component", "telegram-client").Logger(),
	}
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	}, &updates)
	return updates, err
}

// SendMessage sends text as HTML, split into several messages when it exceeds
// the Bot API length limit. A chunk Telegram cannot parse as HTML is resent as
// plain text.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, MaxMessageLength) {
		err := c.sendChunk(ctx, chatID, chunk, ParseModeHTML)
		if isEntityParseError(err) {
			c.log.Warn().Err(err).Int64("chat_id", chatID).Msg("reply is not valid HTML, resending as plain text")
			err = c.sendChunk(ctx, chatID, chunk, "")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendChunk(ctx context.Context, chatID int64, text, parseMode string) error {
	body := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		body["parse_mode"] = parseMode
	}
	var sent Message
	return c.call(ctx, "sendMessage", body, &sent)
}

func isEntityParseError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Description), "can't parse entities")
}

// SetWebhook registers url with Telegram; updates carry secret in the
// X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	var ok bool
	return c.call(ctx, "setWebhook", map[string]any{
		"url":             url,
		"secret_token":    secret,
		"allowed_updates": []string{"message"},
	}, &ok)
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	var ok bool
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false}, &ok)
}

func (c *Client) call(ctx context.Context, method string, body any, result any) error {
	envelope := apiResponse[any]{Result: result}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&envelope).
		SetError(&envelope).
		Post("/" + method)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	if resp.IsError() || !envelope.OK {
		return &APIError{Method: method, StatusCode: resp.StatusCode(), Description: envelope.Description}
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit runes, preferring line
// breaks and never cutting inside an HTML tag.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		cut = outsideTag(runes, cut)
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// outsideTag moves cut back to the start of a tag left open by runes[:cut].
func outsideTag(runes []rune, cut int) int {
	for i := cut - 1; i >= 0; i-- {
		switch runes[i] {
		case '>':
			return cut
		case '<':
			if i > 0 {
				return i
			}
			return cut
		}
	}
	return cut
}
