// Package telegram delivers operator notifications through the Telegram Bot API
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultAPIURL  = "https://api.telegram.org"
	DefaultTimeout = 10 * time.Second

	parseModeHTML = "HTML"
)

var errSendFailed = errors.New("unable to deliver message")

type Option func(n *Notifier)

// WithLogger specifies the logger for the notifier
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = l
	}
}

// WithAPIURL overrides the Bot API base URL
func WithAPIURL(url string) Option {
	return func(n *Notifier) {
		n.apiURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient specifies the HTTP client used for requests
func WithHTTPClient(hc *http.Client) Option {
	return func(n *Notifier) {
		n.client = hc
	}
}

// Notifier sends HTML messages to a single chat
type Notifier struct {
	client *http.Client
	logger *slog.Logger

	apiURL string
	token  string
	chatID string
}

// New creates a new Telegram notifier.
// The notifier is disabled if either the token or the chat ID is empty
func New(token, chatID string, opts ...Option) *Notifier {
	n := &Notifier{
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		apiURL: DefaultAPIURL,
		token:  strings.TrimSpace(token),
		chatID: strings.TrimSpace(chatID),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Enabled returns true if the notifier is configured
func (n *Notifier) Enabled() bool {
	return n != nil && n.token != "" && n.chatID != ""
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	Description string `json:"description"`
	OK          bool   `json:"ok"`
}

// Notify sends the HTML formatted text. It is a no-op when the notifier is disabled
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if !n.Enabled() {
		if n != nil {
			n.logger.Debug("notifier disabled, dropping message")
		}

		return nil
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: parseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("unable to encode message, %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.token),
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("unable to create request, %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// the request URL carries the token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}

		return fmt.Errorf("%w, %w", errSendFailed, err)
	}

	defer resp.Body.Close()

	var res sendMessageResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&res); decodeErr != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("unable to decode response, %w", decodeErr)
	}

	if resp.StatusCode != http.StatusOK || !res.OK {
		return fmt.Errorf("%w: %d %s", errSendFailed, resp.StatusCode, res.Description)
	}

	n.logger.Debug("notification sent", "chat_id", n.chatID)

	return nil
}
