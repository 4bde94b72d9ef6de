// Package notify delivers best-effort notifications to an external workflow
// webhook. Delivery failures are logged and swallowed; callers never depend
// on the webhook for correctness.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

const webhookTimeout = 5 * time.Second

// WebhookNotifier posts review events to a configured URL.
type WebhookNotifier struct {
	httpClient *http.Client
	url        string
}

// NewWebhookNotifier creates a notifier. An empty URL disables delivery.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		httpClient: &http.Client{
			Timeout: webhookTimeout,
		},
	}
}

// reviewEvent is the payload delivered for an invoice needing review.
type reviewEvent struct {
	Event     string    `json:"event"`
	InvoiceID string    `json:"invoiceId"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NotifyReview sends a review-needed event. Fire-and-forget: any failure is
// logged at warn level and discarded.
func (n *WebhookNotifier) NotifyReview(ctx context.Context, invoiceID, reason string) {
	if n.url == "" {
		return
	}

	payload, err := json.Marshal(reviewEvent{
		Event:     "invoice.review_needed",
		InvoiceID: invoiceID,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	if err != nil {
		slog.Warn("Failed to encode webhook payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		slog.Warn("Failed to create webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		slog.Warn("Webhook delivery failed", "invoice_id", invoiceID, "error", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		slog.Warn("Webhook delivery rejected",
			"invoice_id", invoiceID, "status", resp.StatusCode)
	}
}
