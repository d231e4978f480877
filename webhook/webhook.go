// Package webhook notifies the downstream preprocessing service about
// checkpoint files as they are written.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Event types.
const (
	EventCheckpoint = "checkpoint.flushed"
	EventCompleted  = "crawl.completed"
	EventFailed     = "crawl.failed"
)

// SignatureHeader carries "sha256=<hex>" when a secret is configured.
const SignatureHeader = "X-Reviewcrawl-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Site      string `json:"site"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// CheckpointData describes a flushed checkpoint file.
type CheckpointData struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
}

// RunData summarises a finished crawler run.
type RunData struct {
	Path     string `json:"path,omitempty"`
	Records  int    `json:"records"`
	Skipped  int    `json:"skipped"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, client *http.Client, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Reviewcrawl-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(secret, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Notifier delivers events in the background with retries. Wait blocks
// until every pending delivery has finished, so a short-lived CLI process
// does not exit with notifications still in flight.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	delays []time.Duration
	now    func() time.Time
	wg     sync.WaitGroup
}

// NewNotifier returns nil when url is empty; a nil *Notifier ignores events.
func NewNotifier(url, secret string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second},
		now:    time.Now,
	}
}

// Notify stamps and queues event for delivery.
func (n *Notifier) Notify(event Event) {
	if n == nil {
		return
	}
	event.Timestamp = n.now().Unix()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for attempt, delay := range n.delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
			err := Deliver(ctx, n.client, n.url, n.secret, &event)
			cancel()
			if err == nil {
				slog.Debug("webhook delivered",
					"event", event.Type,
					"site", event.Site,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", n.url,
				"event", event.Type,
				"site", event.Site,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", n.url,
			"event", event.Type,
			"run_id", event.RunID,
		)
	}()
}

// Wait blocks until pending deliveries finish or timeout elapses.
// It reports whether everything was drained.
func (n *Notifier) Wait(timeout time.Duration) bool {
	if n == nil {
		return true
	}
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
