package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client posts JSON bodies to the downstream webhook (map display, chat
// bot, whatever consumes attendance events).
type Client struct {
	client *http.Client
	url    string
}

// New creates a webhook client for url.
func New(url string) *Client {
	return &Client{
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		url: url,
	}
}

// SendMessage implements messaging.MessageSender. An empty destination
// means the client's own URL.
func (c *Client) SendMessage(ctx context.Context, destination string, body []byte) error {
	if destination == "" {
		destination = c.url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-successful status code: %d", resp.StatusCode)
	}

	log.Ctx(ctx).Debug().Str("url", destination).Msg("Webhook delivered")
	return nil
}

// Post sends body to the client's URL.
func (c *Client) Post(ctx context.Context, body []byte) error {
	return c.SendMessage(ctx, "", body)
}
