// Package transmit delivers JSON payloads to remote endpoints with bounded
// retries and per-endpoint outcome tracking.
package transmit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxAttempts is the attempt budget used by SendToAll.
	DefaultMaxAttempts = 3

	defaultTimeout = 10 * time.Second
)

// Sender posts JSON payloads. It holds no per-payload state and is safe for
// concurrent use.
type Sender struct {
	client      *http.Client
	policy      Policy
	token       string
	maxAttempts int
	timeout     time.Duration
	logger      *zap.Logger
	metrics     *Metrics

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Sender.
type Option func(*Sender)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) { s.client = c }
}

// WithTimeout sets the per-request timeout. A client passed with
// WithHTTPClient is copied rather than modified.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) { s.timeout = d }
}

// WithPolicy sets the backoff policy between attempts.
func WithPolicy(p Policy) Option {
	return func(s *Sender) { s.policy = p }
}

// WithBearerToken sets the token sent in the Authorization header.
func WithBearerToken(token string) Option {
	return func(s *Sender) { s.token = token }
}

// WithMaxAttempts sets the attempt budget used by SendToAll.
func WithMaxAttempts(n int) Option {
	return func(s *Sender) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sender) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(s *Sender) { s.metrics = m }
}

// WithRand sets the jitter source.
func WithRand(r *rand.Rand) Option {
	return func(s *Sender) { s.rng = r }
}

// NewSender returns a Sender with the default policy and a 10s timeout.
func NewSender(opts ...Option) *Sender {
	s := &Sender{
		client:      &http.Client{Timeout: defaultTimeout},
		policy:      DefaultPolicy(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeout > 0 {
		c := *s.client
		c.Timeout = s.timeout
		s.client = &c
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

func (s *Sender) jitter() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

// Send posts payload as JSON to endpoint, making up to maxAttempts attempts
// (at least one). It reports whether any attempt got a 2xx response.
// Failures are logged, never returned.
func (s *Sender) Send(ctx context.Context, endpoint string, payload any, headers map[string]string, maxAttempts int) bool {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	log := s.logger.With(zap.String("endpoint", endpoint), zap.Int("max_attempts", maxAttempts))

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("encode payload", zap.Error(err))
		s.metrics.observeDelivery(false)
		return false
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.post(ctx, endpoint, body, headers)
		s.metrics.observeAttempt(err == nil)
		if err == nil {
			log.Info("payload delivered", zap.Int("attempt", attempt))
			s.metrics.observeDelivery(true)
			return true
		}
		log.Warn("delivery attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, s.policy.Delay(attempt, s.jitter())); err != nil {
			log.Warn("delivery cancelled", zap.Int("attempt", attempt), zap.Error(err))
			break
		}
	}

	log.Error("delivery failed, attempts exhausted")
	s.metrics.observeDelivery(false)
	return false
}

// SendToAll sends payload to every distinct endpoint concurrently with the
// sender's attempt budget. One endpoint failing never affects the others.
// A repeated endpoint is delivered to once and has one entry in the result.
func (s *Sender) SendToAll(ctx context.Context, endpoints []string, payload any, headers map[string]string) map[string]bool {
	endpoints = dedupe(endpoints)
	results := make([]bool, len(endpoints))

	var g errgroup.Group
	for i, endpoint := range endpoints {
		g.Go(func() error {
			results[i] = s.Send(ctx, endpoint, payload, headers, s.maxAttempts)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]bool, len(endpoints))
	for i, endpoint := range endpoints {
		out[endpoint] = results[i]
	}
	return out
}

func dedupe(endpoints []string) []string {
	seen := make(map[string]bool, len(endpoints))
	out := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

func (s *Sender) post(ctx context.Context, endpoint string, body []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
