package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
)

// WebhookSink POSTs each record as JSON to a third-party URL.
type WebhookSink struct {
	url        string
	client     *http.Client
	retryCount int
}

// NewWebhookSink creates a sink posting to url with up to retryCount
// retries per delivery.
func NewWebhookSink(url string, retryCount int) *WebhookSink {
	return &WebhookSink{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		retryCount: retryCount,
	}
}

// Name implements Sink.
func (w *WebhookSink) Name() string { return "webhook" }

// Deliver implements Sink.
func (w *WebhookSink) Deliver(ctx context.Context, rec models.MessageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.retryCount; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt*attempt) * 100 * time.Millisecond)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if lastErr = w.post(ctx, data); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("post %s: %w", w.url, lastErr)
}

func (w *WebhookSink) post(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return nil
}
