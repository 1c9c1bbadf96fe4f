package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/modcheck/pkg/finding"
)

// EventType represents the type of webhook event
type EventType string

const (
	// EventRunSucceeded is sent when a run leaves nothing unfixed.
	EventRunSucceeded EventType = "run.succeeded"
	// EventRunFailed is sent when a run has unfixed findings, module errors
	// or a fatal error.
	EventRunFailed EventType = "run.failed"
)

// Payload formats.
const (
	FormatJSON  = "json"
	FormatSlack = "slack"
)

// Header names of generic deliveries.
const (
	HeaderEvent     = "X-Modcheck-Event"
	HeaderEventID   = "X-Modcheck-Event-ID"
	HeaderSignature = "X-Modcheck-Signature"
)

// Webhook is one notification endpoint.
type Webhook struct {
	URL    string `yaml:"url" json:"url"`
	Secret string `yaml:"secret" json:"-"`
	// Events filters the delivered event types. Empty means all.
	Events []EventType `yaml:"events" json:"events,omitempty"`
	Format string      `yaml:"format" json:"format,omitempty"`
}

// Validate checks the endpoint settings.
func (w Webhook) Validate() error {
	if w.URL == "" {
		return errors.New("webhook url is required")
	}
	switch w.Format {
	case "", FormatJSON, FormatSlack:
	default:
		return fmt.Errorf("unknown webhook format %q", w.Format)
	}
	for _, e := range w.Events {
		if e != EventRunSucceeded && e != EventRunFailed {
			return fmt.Errorf("unknown webhook event %q", e)
		}
	}
	return nil
}

// wants reports whether the hook subscribes to t.
func (w Webhook) wants(t EventType) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == t {
			return true
		}
	}
	return false
}

// Event represents a webhook event
type Event struct {
	ID        string     `json:"id"`
	Type      EventType  `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Data      RunSummary `json:"data"`
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID        string           `json:"runId"`
	Root         string           `json:"root"`
	Duration     string           `json:"duration"`
	Results      int              `json:"results"`
	Fixed        int              `json:"fixed"`
	Unfixed      int              `json:"unfixed"`
	ModuleErrors []string         `json:"moduleErrors,omitempty"`
	Error        string           `json:"error,omitempty"`
	Findings     []finding.Result `json:"findings,omitempty"`
}

// NewEvent builds the event of a finished run. Findings holds the unfixed
// results only.
func NewEvent(root string, o *finding.Outcome, duration time.Duration) *Event {
	summary := RunSummary{
		RunID:    o.RunID,
		Root:     root,
		Duration: duration.Round(time.Millisecond).String(),
		Results:  len(o.Results),
		Fixed:    o.Fixed(),
		Unfixed:  o.Unfixed,
	}
	for _, me := range o.ModuleErrors {
		summary.ModuleErrors = append(summary.ModuleErrors, me.Error())
	}
	if o.Err != nil {
		summary.Error = o.Err.Error()
	}
	for _, r := range o.Results {
		if r.Fails() {
			summary.Findings = append(summary.Findings, r)
		}
	}

	t := EventRunSucceeded
	if o.Failed() {
		t = EventRunFailed
	}
	return &Event{ID: uuid.NewString(), Type: t, Timestamp: time.Now().UTC(), Data: summary}
}

// Notifier delivers run events to the configured webhooks.
type Notifier struct {
	hooks  []Webhook
	root   string
	client *http.Client
	retry  *RetryPolicy
	log    logrus.FieldLogger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// WithRetryConfig sets the delivery retry policy.
func WithRetryConfig(c RetryConfig) Option {
	return func(n *Notifier) { n.retry = NewRetryPolicy(c) }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(n *Notifier) { n.log = log }
}

// NewNotifier creates a notifier for the workspace at root.
func NewNotifier(root string, hooks []Webhook, opts ...Option) *Notifier {
	n := &Notifier{
		hooks: hooks,
		root:  root,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry: NewRetryPolicy(DefaultRetryConfig()),
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// RunFinished delivers the run's event to every subscribed hook. Delivery
// failures are logged.
func (n *Notifier) RunFinished(ctx context.Context, o *finding.Outcome, duration time.Duration) {
	event := NewEvent(n.root, o, duration)
	for _, hook := range n.hooks {
		if !hook.wants(event.Type) {
			continue
		}
		log := n.log.WithFields(logrus.Fields{"url": hook.URL, "event": event.Type, "run_id": o.RunID})
		if err := n.Deliver(ctx, hook, event); err != nil {
			log.WithError(err).Warn("webhook delivery failed")
			continue
		}
		log.Debug("webhook delivered")
	}
}

// Deliver sends event to hook, retrying transient failures.
func (n *Notifier) Deliver(ctx context.Context, hook Webhook, event *Event) error {
	body, err := payload(hook, event)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err = n.send(ctx, hook, event, body)
		if !n.retry.ShouldRetry(attempt, err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.retry.NextRetryDelay(attempt)):
		}
	}
}

func payload(hook Webhook, event *Event) ([]byte, error) {
	if hook.Format == FormatSlack {
		return json.Marshal(FormatSlackMessage(event))
	}
	return json.Marshal(event)
}

// statusError is a non-2xx response. Client errors other than 429 are not retried.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook returned status %d: %s", e.code, e.body)
}

func (e *statusError) Permanent() bool {
	return e.code >= 400 && e.code < 500 && e.code != http.StatusTooManyRequests
}

func (n *Notifier) send(ctx context.Context, hook Webhook, event *Event, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return &statusError{code: http.StatusBadRequest, body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "modcheck-webhooks")
	if hook.Format != FormatSlack {
		req.Header.Set(HeaderEvent, string(event.Type))
		req.Header.Set(HeaderEventID, event.ID)
		if hook.Secret != "" {
			req.Header.Set(HeaderSignature, Sign(body, hook.Secret))
		}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{code: resp.StatusCode, body: string(msg)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Sign returns the signature header value of body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies a webhook signature
func VerifySignature(body []byte, signature, secret string) bool {
	return hmac.Equal([]byte(signature), []byte(Sign(body, secret)))
}
