package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Digest summarises notifications over a time period.
type Digest struct {
	Period        string                   `json:"period"`
	Counts        map[NotificationType]int `json:"counts"`
	Pending       int                      `json:"pending"`
	Notifications []Notification           `json:"notifications"`
	Summary       string                   `json:"summary"`
}

// Dispatcher persists notifications and delivers them to a webhook.
type Dispatcher struct {
	store      *Store
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher backed by the given store. An empty
// webhookURL disables delivery; notifications are still stored.
func NewDispatcher(store *Store, webhookURL string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:      store,
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With("component", "notifications"),
	}
}

// Store returns the dispatcher's store.
func (d *Dispatcher) Store() *Store { return d.store }

// Dispatch persists a notification and, when a webhook is configured, posts
// it there. A failed delivery leaves the notification pending and is not an
// error.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) (*Notification, error) {
	created, err := d.store.Create(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	if d.webhookURL == "" {
		return created, nil
	}

	payload, err := json.Marshal(created)
	if err != nil {
		return created, nil
	}
	if err := d.SendWebhook(ctx, d.webhookURL, payload); err != nil {
		d.logger.Warn("webhook delivery failed", "notification_id", created.ID, "error", err)
		return created, nil
	}
	if err := d.store.MarkDelivered(ctx, created.ID); err != nil {
		return created, err
	}
	created.Delivered = true
	return created, nil
}

// GenerateDigest builds a summary of notifications since the given time.
func (d *Dispatcher) GenerateDigest(ctx context.Context, since time.Time) (*Digest, error) {
	all, err := d.store.List(ctx, ListFilter{Since: since})
	if err != nil {
		return nil, fmt.Errorf("listing notifications for digest: %w", err)
	}

	counts := map[NotificationType]int{}
	pending := 0
	for _, n := range all {
		counts[n.Type]++
		if !n.Delivered {
			pending++
		}
	}
	if all == nil {
		all = []Notification{}
	}

	period := fmt.Sprintf("%s to %s",
		since.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339))

	return &Digest{
		Period:        period,
		Counts:        counts,
		Pending:       pending,
		Notifications: all,
		Summary:       fmt.Sprintf("%d notification(s), %d awaiting delivery", len(all), pending),
	}, nil
}

// SendWebhook POSTs payload to the given URL.
func (d *Dispatcher) SendWebhook(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
