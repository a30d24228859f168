package app

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vulnscan/api/internal/metrics"
	"github.com/vulnscan/api/pkg/domain/event"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/domain/webhook"
	"github.com/vulnscan/api/pkg/logger"
)

// SignatureHeader carries the HMAC-SHA256 signature of the request body when
// the webhook has a secret configured.
const SignatureHeader = "X-Webhook-Signature"

// WebhookDispatcherConfig holds delivery tuning.
type WebhookDispatcherConfig struct {
	// DeliveryTimeout bounds each individual delivery (default: 10s).
	DeliveryTimeout time.Duration
	// RatePerSecond limits outbound deliveries process-wide.
	RatePerSecond float64
	// RateBurst is the limiter burst size.
	RateBurst int
}

// WebhookDispatcher delivers signed event callbacks to organization-registered
// endpoints. Deliveries run in parallel with independent timeouts; each
// endpoint's outcome is recorded on the webhook row and failures never affect
// sibling deliveries.
type WebhookDispatcher struct {
	repo    webhook.Repository
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *logger.Logger
}

// NewWebhookDispatcher creates a new WebhookDispatcher.
func NewWebhookDispatcher(repo webhook.Repository, cfg WebhookDispatcherConfig, log *logger.Logger) *WebhookDispatcher {
	timeout := cfg.DeliveryTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ratePerSecond := cfg.RatePerSecond
	if ratePerSecond <= 0 {
		ratePerSecond = 20
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = int(ratePerSecond) * 2
	}

	return &WebhookDispatcher{
		repo:    repo,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		timeout: timeout,
		logger:  log.With("component", "webhook_dispatcher"),
	}
}

// Dispatch delivers the event to every active webhook of the organization
// subscribed to it and returns a per-endpoint result list. Dispatch never
// returns an error for delivery failures; only the aggregate list reflects
// them.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, orgID shared.ID, eventType event.Type, data any) []webhook.DeliveryResult {
	hooks, err := d.repo.ListActiveForEvent(ctx, orgID, eventType)
	if err != nil {
		d.logger.Error("failed to list webhooks",
			"org_id", orgID.String(),
			"event_type", string(eventType),
			"error", err,
		)
		return nil
	}
	if len(hooks) == 0 {
		return nil
	}

	body, err := json.Marshal(event.Envelope{
		Event:     eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		d.logger.Error("failed to marshal webhook envelope",
			"org_id", orgID.String(),
			"event_type", string(eventType),
			"error", err,
		)
		return nil
	}

	// Each goroutine writes its own slot, so no locking is needed.
	results := make([]webhook.DeliveryResult, len(hooks))

	g, gctx := errgroup.WithContext(ctx)
	for i, hook := range hooks {
		i, hook := i, hook
		g.Go(func() error {
			results[i] = d.deliver(gctx, hook, body)
			return nil
		})
	}
	_ = g.Wait()

	d.record(ctx, results)
	return results
}

// deliver posts the body to one endpoint with its own timeout.
func (d *WebhookDispatcher) deliver(ctx context.Context, hook *webhook.Webhook, body []byte) webhook.DeliveryResult {
	result := webhook.DeliveryResult{WebhookID: hook.ID, URL: hook.URL}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		metrics.WebhookDeliveryDuration.Observe(result.Duration.Seconds())
	}()

	if err := d.limiter.Wait(ctx); err != nil {
		result.Error = fmt.Sprintf("rate limit wait: %v", err)
		return result
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		result.Error = fmt.Sprintf("build request: %v", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	if hook.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(hook.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Error = fmt.Sprintf("endpoint returned %d", resp.StatusCode)
		return result
	}

	result.Delivered = true
	return result
}

// record writes per-endpoint bookkeeping. Uses the parent context so results
// are recorded even when one delivery's context timed out.
func (d *WebhookDispatcher) record(ctx context.Context, results []webhook.DeliveryResult) {
	now := time.Now().UTC()
	for _, res := range results {
		outcome := "delivered"
		if !res.Delivered {
			outcome = "failed"
			d.logger.Warn("webhook delivery failed",
				"webhook_id", res.WebhookID.String(),
				"url", res.URL,
				"error", res.Error,
			)
		}
		metrics.WebhookDeliveriesTotal.WithLabelValues(outcome).Inc()

		if err := d.repo.RecordDelivery(ctx, res.WebhookID, res.Delivered, res.Error, now); err != nil {
			d.logger.Error("failed to record webhook delivery",
				"webhook_id", res.WebhookID.String(),
				"error", err,
			)
		}
	}
}

// Sign computes the signature header value for a body: "sha256=" followed by
// the hex HMAC-SHA256 of the body under the secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
