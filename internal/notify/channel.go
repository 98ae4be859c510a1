package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kozaktomas/lookout/internal/config"
	"github.com/kozaktomas/lookout/internal/constants"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const userAgent = "lookout/1.0"

// Message is one outgoing notification push.
type Message struct {
	RecipientID string
	Phone       string
	Email       string
	Title       string
	Body        string
}

// MessageChannel delivers messages to an external sink. The pipeline treats
// every channel as fire-and-forget.
type MessageChannel interface {
	Send(ctx context.Context, msg Message) error
}

// NoopChannel drops every message.
type NoopChannel struct{}

// Send implements MessageChannel.
func (NoopChannel) Send(context.Context, Message) error { return nil }

// NtfyChannel publishes messages to an ntfy topic URL.
type NtfyChannel struct {
	endpoint string
	client   *http.Client
}

// NewNtfyChannel creates a channel posting to the given topic URL.
func NewNtfyChannel(endpoint string, timeout time.Duration) *NtfyChannel {
	if timeout <= 0 {
		timeout = constants.DefaultChannelTimeout
	}
	return &NtfyChannel{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: timeout},
	}
}

// Send implements MessageChannel.
func (n *NtfyChannel) Send(ctx context.Context, msg Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("User-Agent", userAgent)
	// HTTP headers must be ASCII.
	req.Header.Set("Title", FoldASCII(msg.Title))
	req.Header.Set("Tags", "lookout,missing-person")
	req.Header.Set("Priority", "high")

	return doRequest(n.client, req, "ntfy")
}

// SMSWebhookChannel posts {to, body} JSON to an SMS gateway webhook.
type SMSWebhookChannel struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewSMSWebhookChannel creates an SMS channel. token is sent as a bearer token when set.
func NewSMSWebhookChannel(endpoint, token string, timeout time.Duration) *SMSWebhookChannel {
	if timeout <= 0 {
		timeout = constants.DefaultChannelTimeout
	}
	return &SMSWebhookChannel{
		endpoint: strings.TrimSpace(endpoint),
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

type smsPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Send implements MessageChannel. Recipients without a phone number are skipped.
func (s *SMSWebhookChannel) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.Phone) == "" {
		return nil
	}

	body := msg.Body
	if msg.Title != "" {
		body = msg.Title + ": " + body
	}
	data, err := json.Marshal(smsPayload{To: strings.TrimSpace(msg.Phone), Body: FoldASCII(body)})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	return doRequest(s.client, req, "sms webhook")
}

// statusError is returned for non-2xx responses. 4xx responses are not retried.
type statusError struct {
	sink   string
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("%s responded with status %d", e.sink, e.status)
	}
	return fmt.Sprintf("%s responded with status %d: %s", e.sink, e.status, e.body)
}

func (e *statusError) permanent() bool {
	return e.status >= 400 && e.status < 500 && e.status != http.StatusTooManyRequests
}

func doRequest(client *http.Client, req *http.Request, sink string) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", sink, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &statusError{sink: sink, status: resp.StatusCode, body: strings.TrimSpace(string(body))}
}

// MultiChannel sends every message to all channels and joins their errors.
type MultiChannel []MessageChannel

// Send implements MessageChannel.
func (m MultiChannel) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, ch := range m {
		if err := ch.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResilientChannel wraps a channel with a rate limiter, a circuit breaker and
// exponential backoff retries, applied in that order.
type ResilientChannel struct {
	next           MessageChannel
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	maxElapsedTime time.Duration
	initialBackoff time.Duration
}

// ResilientOption configures a ResilientChannel.
type ResilientOption func(*ResilientChannel)

// WithMaxElapsedTime bounds the total retry time of one Send.
func WithMaxElapsedTime(d time.Duration) ResilientOption {
	return func(r *ResilientChannel) { r.maxElapsedTime = d }
}

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(d time.Duration) ResilientOption {
	return func(r *ResilientChannel) { r.initialBackoff = d }
}

// NewResilientChannel wraps next. ratePerSecond <= 0 disables rate limiting.
// The breaker opens after 5 consecutive failures and probes again after 30s.
func NewResilientChannel(name string, next MessageChannel, ratePerSecond int, opts ...ResilientOption) *ResilientChannel {
	r := &ResilientChannel{
		next:           next,
		limiter:        rate.NewLimiter(rate.Inf, 0),
		maxElapsedTime: constants.ChannelMaxElapsedRetry,
		initialBackoff: 500 * time.Millisecond,
	}
	if ratePerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond)
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send implements MessageChannel.
func (r *ResilientChannel) Send(ctx context.Context, msg Message) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.initialBackoff
	bo.MaxElapsedTime = r.maxElapsedTime

	operation := func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		_, err := r.breaker.Execute(func() (interface{}, error) {
			return nil, r.next.Send(ctx, msg)
		})
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && se.permanent() {
			return backoff.Permanent(err)
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// State returns the circuit breaker state.
func (r *ResilientChannel) State() gobreaker.State {
	return r.breaker.State()
}

// NewChannelFromConfig builds the configured channels, each wrapped in a
// ResilientChannel. Without any configured sink it returns NoopChannel.
func NewChannelFromConfig(cfg config.ChannelConfig) MessageChannel {
	var channels MultiChannel
	if cfg.NtfyURL != "" {
		channels = append(channels, NewResilientChannel("ntfy",
			NewNtfyChannel(cfg.NtfyURL, constants.DefaultChannelTimeout), cfg.RatePerSecond))
	}
	if cfg.SMSWebhookURL != "" {
		channels = append(channels, NewResilientChannel("sms",
			NewSMSWebhookChannel(cfg.SMSWebhookURL, cfg.SMSWebhookToken, constants.DefaultChannelTimeout), cfg.RatePerSecond))
	}

	switch len(channels) {
	case 0:
		return NoopChannel{}
	case 1:
		return channels[0]
	default:
		return channels
	}
}
