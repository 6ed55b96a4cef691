package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"AlertWatch/internal/model"
)

// DiscordNotifier posts signals to a Discord channel webhook.
type DiscordNotifier struct {
	WebhookURL string
	Formatter  Formatter
	Client     *http.Client
}

// NewDiscordNotifier creates a webhook notifier.
func NewDiscordNotifier(webhookURL string, f Formatter, timeout time.Duration) *DiscordNotifier {
	f.Style = StyleMarkdown
	return &DiscordNotifier{
		WebhookURL: webhookURL,
		Formatter:  f,
		Client:     &http.Client{Timeout: timeout},
	}
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) Send(ctx context.Context, sig *model.Signal) error {
	return d.SendText(ctx, d.Formatter.Format(sig))
}

// SendText posts raw content to the webhook.
func (d *DiscordNotifier) SendText(ctx context.Context, content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("discord: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
