// Package webhook implements the Webhook Trigger Client (§4.I): outbound
// HTTP delivery of CARE events to tenant-configured workflow endpoints, with
// HMAC signing, bounded concurrency, retries with backoff, and a circuit
// breaker per destination host.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/codeready-toolchain/care-orchestrator/pkg/metrics"
)

const (
	headerEventID   = "X-AISHA-EVENT-ID"
	headerSignature = "X-AISHA-SIGNATURE"
	userAgent       = "AiSHA-CARE/1.0"

	defaultTimeout    = 3 * time.Second
	defaultRetries    = 2
	defaultBatchSize  = 50
	defaultConcurrent = 5
)

// Payload is one event body the client delivers, already matching the
// bit-exact wire format in §6.
type Payload struct {
	EventID  string         `json:"event_id"`
	Type     string         `json:"type"`
	TS       string         `json:"ts"`
	TenantID string         `json:"tenant_id"`
	Entity   PayloadEntity  `json:"entity"`
	Body     map[string]any `json:"payload"`
}

// PayloadEntity identifies the CRM record an event concerns.
type PayloadEntity struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Request bounds one triggerCareWorkflow call.
type Request struct {
	URL       string
	Secret    string
	Payload   Payload
	TimeoutMS int
	Retries   int
}

// Result is the structured, always-returned outcome of a trigger attempt.
// The client never returns a Go error: a delivery failure and a payload
// that cannot be marshaled are both reported here.
type Result struct {
	Success    bool
	StatusCode int
	Attempts   int
	Error      string
}

// Client delivers webhook requests under a shared, process-wide concurrency
// semaphore and a per-destination-host circuit breaker.
type Client struct {
	httpClient *http.Client
	sem        chan struct{}
	breakers   sync.Map // host -> *gobreaker.CircuitBreaker
	metrics    *metrics.Registry
	logger     *slog.Logger
}

// NewClient constructs a Client with the given process-wide concurrency cap
// (default 5 when <= 0).
func NewClient(maxConcurrency int, logger *slog.Logger) *Client {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultConcurrent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{},
		sem:        make(chan struct{}, maxConcurrency),
		logger:     logger,
	}
}

// WithMetrics attaches the Prometheus registry the client reports
// deliveries_total and delivery_duration_seconds against. Leaving this
// unset is safe; m is nil-checked before use.
func (c *Client) WithMetrics(m *metrics.Registry) *Client {
	c.metrics = m
	return c
}

func (c *Client) breakerFor(host string) *gobreaker.CircuitBreaker {
	if b, ok := c.breakers.Load(host); ok {
		return b.(*gobreaker.CircuitBreaker)
	}
	settings := gobreaker.Settings{
		Name:        "webhook:" + host,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	b := gobreaker.NewCircuitBreaker(settings)
	actual, _ := c.breakers.LoadOrStore(host, b)
	return actual.(*gobreaker.CircuitBreaker)
}

// TriggerCareWorkflow delivers a single event, retrying with exponential
// backoff on non-2xx responses or timeouts. It never returns an error: every
// outcome, including acquiring the semaphore, is reported in the Result.
func (c *Client) TriggerCareWorkflow(ctx context.Context, req Request) Result {
	timeout := defaultTimeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	retries := defaultRetries
	if req.Retries >= 0 {
		retries = req.Retries
	}

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("marshal payload: %v", err)}
	}

	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	breakerKey := req.URL
	if u, err := url.Parse(req.URL); err == nil && u.Host != "" {
		breakerKey = u.Host
	}
	breaker := c.breakerFor(breakerKey)
	start := time.Now()

	var lastErr string
	var lastStatus int
	totalAttempts := retries + 1
	for attempt := 1; attempt <= totalAttempts; attempt++ {
		status, attemptErr := c.attempt(ctx, req, body, timeout, breaker)
		if attemptErr == "" && status >= 200 && status < 300 {
			result := Result{Success: true, StatusCode: status, Attempts: attempt}
			c.recordDelivery(result, time.Since(start))
			return result
		}

		lastErr = attemptErr
		lastStatus = status
		if attempt < totalAttempts {
			c.backoff(ctx, attempt)
		}
	}

	result := Result{Success: false, StatusCode: lastStatus, Attempts: totalAttempts, Error: lastErr}
	c.recordDelivery(result, time.Since(start))
	return result
}

func (c *Client) recordDelivery(result Result, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	label := deliveryResultLabel(result)
	c.metrics.WebhookDeliveries.WithLabelValues(label).Inc()
	c.metrics.WebhookLatency.WithLabelValues(label).Observe(elapsed.Seconds())
}

func deliveryResultLabel(result Result) string {
	switch {
	case result.Success:
		return "success"
	case result.StatusCode != 0:
		return "non_2xx"
	default:
		return "error"
	}
}

func (c *Client) attempt(ctx context.Context, req Request, body []byte, timeout time.Duration, breaker *gobreaker.CircuitBreaker) (int, string) {
	result, err := breaker.Execute(func() (any, error) {
		return c.doRequest(ctx, req, body, timeout)
	})
	if err != nil {
		return 0, err.Error()
	}
	status := result.(int)
	if status < 200 || status >= 300 {
		return status, fmt.Sprintf("non-2xx response: %d", status)
	}
	return status, ""
}

func (c *Client) doRequest(ctx context.Context, req Request, body []byte, timeout time.Duration) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(headerEventID, req.Payload.EventID)
	httpReq.Header.Set("User-Agent", userAgent)
	if req.Secret != "" {
		httpReq.Header.Set(headerSignature, sign(body, req.Secret))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	return resp.StatusCode, nil
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	delay := time.Duration(100*pow2(attempt-1)) * time.Millisecond
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func pow2(n int) int64 {
	result := int64(1)
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
