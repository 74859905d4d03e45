package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/halcyonlabs/carousel-pipeline/internal/domain"
	"github.com/halcyonlabs/carousel-pipeline/internal/pkg/ctxutil"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
)

const (
	colorGreen = 0x00FF00
	colorRed   = 0xFF0000
)

// Notifier delivers one webhook message per terminal run outcome.
// Delivery failures are logged and swallowed; notification must never
// break the run that produced the event.
type Notifier interface {
	Notify(ctx context.Context, webhookURL string, event domain.RunEvent)
}

type notifier struct {
	log        *logger.Logger
	httpClient *http.Client
}

func NewNotifier(log *logger.Logger, timeout time.Duration) Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &notifier{
		log:        log.With("client", "DiscordNotifier"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

func (n *notifier) Notify(ctx context.Context, webhookURL string, event domain.RunEvent) {
	if strings.TrimSpace(webhookURL) == "" {
		n.log.Debug("No webhook configured, skipping notification", "account", event.AccountID)
		return
	}

	title, desc, color := formatEvent(event)
	payload := webhookPayload{Embeds: []embed{{
		Title:       title,
		Description: desc,
		Color:       color,
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
	}}}

	if err := n.post(ctx, webhookURL, payload); err != nil {
		n.log.Warn("Webhook embed delivery failed, falling back to plain content",
			"account", event.AccountID, "error", err)
		fallback := webhookPayload{Content: fmt.Sprintf("**%s**\n%s", title, desc)}
		if err := n.post(ctx, webhookURL, fallback); err != nil {
			n.log.Warn("Webhook delivery failed", "account", event.AccountID, "error", err)
		}
	}
}

func formatEvent(event domain.RunEvent) (title, desc string, color int) {
	if event.Success {
		title = fmt.Sprintf("Carousel posted (%s)", event.AccountID)
		desc = fmt.Sprintf("Published after %d attempt(s).", event.Attempts)
		if event.PostURL != "" {
			desc += "\n" + event.PostURL
		}
		return title, desc, colorGreen
	}
	title = fmt.Sprintf("Carousel run failed (%s)", event.AccountID)
	desc = fmt.Sprintf("Error: %s after %d attempt(s).", event.ErrorKind, event.Attempts)
	if event.Detail != "" {
		desc += "\n```" + event.Detail + "```"
	}
	return title, desc, colorRed
}

func (n *notifier) post(ctx context.Context, url string, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
