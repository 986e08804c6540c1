// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package notify delivers human-readable messages to operators.
//
// All sinks are fire-and-forget: Notify never blocks on delivery and never
// reports failures to the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/H0llyW00dzZ/blockwatch/src/logging"
)

// Default webhook settings.
const (
	defaultSendTimeout = 10 * time.Second
	defaultPerMinute   = 30
	mentionPrefix      = "@everyone "
)

// ErrUnexpectedStatus is returned when the webhook endpoint answers with a
// non-2xx status.
var ErrUnexpectedStatus = errors.New("notify: unexpected webhook status")

// payload is the Discord-compatible webhook body.
type payload struct {
	Content         string          `json:"content"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

// Webhook posts messages to a Discord-compatible webhook.
type Webhook struct {
	url     string
	mention bool
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
	logger  logging.Logger
	wg      sync.WaitGroup

	// closing ends rate-limit waits once Close is called.
	closing context.Context
	stop    context.CancelFunc
}

// WebhookOption is a functional option for configuring a [Webhook].
type WebhookOption func(*Webhook)

// WithHTTPClient sets the HTTP client used for delivery.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) {
		if c != nil {
			w.client = c
		}
	}
}

// WithMention prefixes every message with an @everyone ping.
func WithMention(enabled bool) WebhookOption {
	return func(w *Webhook) {
		w.mention = enabled
	}
}

// WithRatePerMinute limits delivery to n messages per minute with bursts of
// up to n. Messages over the limit are delayed until the limiter allows them.
func WithRatePerMinute(n int) WebhookOption {
	return func(w *Webhook) {
		if n > 0 {
			w.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
		}
	}
}

// WithLimiter sets a custom rate limiter.
func WithLimiter(l *rate.Limiter) WebhookOption {
	return func(w *Webhook) {
		if l != nil {
			w.limiter = l
		}
	}
}

// WithSendTimeout bounds a single delivery attempt.
func WithSendTimeout(d time.Duration) WebhookOption {
	return func(w *Webhook) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) WebhookOption {
	return func(w *Webhook) {
		w.logger = l
	}
}

// NewWebhook creates a [Webhook] posting to url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:     url,
		timeout: defaultSendTimeout,
		client:  http.DefaultClient,
		limiter: rate.NewLimiter(rate.Every(time.Minute/defaultPerMinute), defaultPerMinute),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logging.NewNoopLogger()
	}
	w.closing, w.stop = context.WithCancel(context.Background())

	return w
}

// Notify queues message for asynchronous delivery. It returns immediately.
//
// A message over the rate limit waits for its turn in the background. It is
// dropped only if ctx ends or [Webhook.Close] is called while it waits.
func (w *Webhook) Notify(ctx context.Context, message string) {
	allowed := w.limiter.Allow()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if !allowed {
			if err := w.waitTurn(ctx); err != nil {
				w.logger.Warn(map[string]any{
					"message": message,
					"error":   err.Error(),
				}, "notification dropped while rate limited")
				return
			}
		}
		if err := w.Send(ctx, message); err != nil {
			w.logger.Warn(map[string]any{
				"message": message,
				"error":   err.Error(),
			}, "notification delivery failed")
		}
	}()
}

// Send delivers message synchronously, bypassing the rate limit.
func (w *Webhook) Send(ctx context.Context, message string) error {
	if w.mention {
		message = mentionPrefix + message
	}

	body, err := json.Marshal(payload{
		Content:         message,
		AllowedMentions: allowedMentions{Parse: []string{"everyone"}},
	})
	if err != nil {
		return fmt.Errorf("notify: encoding payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: posting webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	return nil
}

// waitTurn blocks until the limiter admits one message, ctx ends, or the
// webhook is closed.
func (w *Webhook) waitTurn(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(w.closing, cancel)
	defer stop()

	return w.limiter.Wait(ctx)
}

// Close waits for in-flight deliveries to finish. Messages still waiting
// on the rate limit are dropped and logged.
func (w *Webhook) Close() error {
	w.stop()
	w.wg.Wait()
	return nil
}

// Log writes every message to a logger instead of delivering it.
type Log struct {
	Logger logging.Logger
}

// Notify implements the notifier contract.
func (l Log) Notify(_ context.Context, message string) {
	if l.Logger != nil {
		l.Logger.Info(map[string]any{"notification": message}, "notification")
	}
}

// Nop discards every message.
type Nop struct{}

// Notify implements the notifier contract.
func (Nop) Notify(context.Context, string) {}
