// Package email posts outbound mail to the storefront's external mail API.
// Sending is always best-effort: callers log failures and move on, an
// undeliverable email never fails the business operation that caused it.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/config"
)

var ErrNotConfigured = errors.New("email API secret is not set")

type Message struct {
	Subject string   `json:"subject"`
	To      []string `json:"to"`
	From    string   `json:"from"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
}

type Client struct {
	apiURL string
	secret string
	from   string
	httpc  *http.Client
	logger *zap.Logger
}

func NewClient(cfg *config.EmailConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiURL: cfg.APIURL + "/api/send-email",
		secret: cfg.APISecret,
		from:   cfg.From,
		httpc:  &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Send posts one message to the mail API.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c.secret == "" {
		return ErrNotConfigured
	}
	if msg.From == "" {
		msg.From = c.from
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach email API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email API returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// SendAsync fires Send on a goroutine so a slow mail transport never
// blocks the request path. Failures are logged and swallowed.
func (c *Client) SendAsync(msg Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.httpc.Timeout)
		defer cancel()
		if err := c.Send(ctx, msg); err != nil {
			c.logger.Error("Failed to send email",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
		}
	}()
}
