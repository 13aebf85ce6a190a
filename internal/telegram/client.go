// Package telegram is a minimal Bot API client covering the calls the bot
// needs: long-polled updates, messages with optional inline keyboards,
// message edits, and callback answers.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jlaasanen/dealflow/internal/errors"
)

const defaultBaseURL = "https://api.telegram.org"

// maxMessageLength is the Bot API limit for message text.
const maxMessageLength = 4096

type Client struct {
	// BaseURL can be overridden in tests.
	BaseURL string

	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(token string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		token:   token,
		// The timeout leaves headroom over the long-poll window.
		httpClient: &http.Client{Timeout: 90 * time.Second},
		logger:     logger.With("source", "telegram.Client"),
	}
}

// GetMe returns the bot's own identity, used to detect mentions.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return nil, errors.Wrap(err, "get me")
	}
	return &me, nil
}

// GetUpdates long-polls for updates starting at offset, blocking server-side
// for up to timeout seconds.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	payload := struct {
		Offset  int64 `json:"offset"`
		Timeout int   `json:"timeout"`
	}{Offset: offset, Timeout: timeout}

	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, errors.Wrap(err, "get updates", slog.Int64("offset", offset))
	}
	return updates, nil
}

// SendMessage sends plain text to a chat. Text beyond the API limit is
// truncated with an ellipsis.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.sendMessage(ctx, chatID, text, nil)
}

// SendPoll sends text with the yes/no vote keyboard attached.
func (c *Client) SendPoll(ctx context.Context, chatID int64, text string) error {
	return c.sendMessage(ctx, chatID, text, &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{
				{Text: "Yes", CallbackData: "yes"},
				{Text: "No", CallbackData: "no"},
			},
		},
	})
}

func (c *Client) sendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) error {
	if len(text) > maxMessageLength {
		text = text[:maxMessageLength-3] + "..."
	}
	payload := struct {
		ChatID      int64                 `json:"chat_id"`
		Text        string                `json:"text"`
		ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	}{ChatID: chatID, Text: text, ReplyMarkup: markup}

	if err := c.call(ctx, "sendMessage", payload, nil); err != nil {
		return errors.Wrap(err, "send message", slog.Int64("chat_id", chatID))
	}
	return nil
}

// EditMessage replaces the text of a previously sent message.
func (c *Client) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	payload := struct {
		ChatID    int64  `json:"chat_id"`
		MessageID int    `json:"message_id"`
		Text      string `json:"text"`
	}{ChatID: chatID, MessageID: messageID, Text: text}

	if err := c.call(ctx, "editMessageText", payload, nil); err != nil {
		return errors.Wrap(err, "edit message",
			slog.Int64("chat_id", chatID), slog.Int("message_id", messageID))
	}
	return nil
}

// AnswerCallback acknowledges a callback query, optionally with a
// notification text.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	payload := struct {
		CallbackQueryID string `json:"callback_query_id"`
		Text            string `json:"text,omitempty"`
	}{CallbackQueryID: callbackID, Text: text}

	if err := c.call(ctx, "answerCallbackQuery", payload, nil); err != nil {
		return errors.Wrap(err, "answer callback query")
	}
	return nil
}

// call posts payload to a Bot API method and decodes the result envelope into
// result when it is non-nil.
func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request", slog.String("method", method))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "could not close response body", errors.SlogError(closeErr))
		}
	}()

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description,omitempty"`
		Result      json.RawMessage `json:"result,omitempty"`
	}
	if err = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err != nil {
		return errors.Wrap(err, "decode response", slog.String("method", method))
	}
	if !envelope.OK {
		return errors.New("bot api error",
			slog.String("method", method),
			slog.Int("status", resp.StatusCode),
			slog.String("description", envelope.Description))
	}
	if result != nil {
		if err = json.Unmarshal(envelope.Result, result); err != nil {
			return errors.Wrap(err, "decode result", slog.String("method", method))
		}
	}
	return nil
}
