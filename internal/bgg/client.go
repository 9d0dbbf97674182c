// Package bgg implements the BoardGameGeek XMLAPI2 integration: a polling
// HTTP client for the queue-and-retry upstream, a chunked bulk fetcher for
// item details, and the aggregation of listings, plays and user data into
// serving views.
package bgg

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/rs/zerolog"
)

const (
	defaultMaxAttempts = 6

	// retryUnit is the base delay between polling attempts; attempt n waits
	// n * retryUnit before reissuing the request.
	retryUnit = 2 * time.Second

	// sketchAccuracy is the relative accuracy of the latency sketches.
	sketchAccuracy = 0.01
)

// ErrTooManyAttempts indicates a request stayed queued upstream through the
// full retry budget. Aggregation paths treat it as "no data from this
// source" rather than a failure.
var ErrTooManyAttempts = errors.New("bgg: too many attempts, upstream still processing")

// UpstreamError is a non-success, non-queued response from BGG. Messages
// holds the provider's structured error messages, always as a slice even
// when the provider returned a single message.
type UpstreamError struct {
	Status   int
	Messages []string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("bgg: upstream status %d: %s", e.Status, strings.Join(e.Messages, "; "))
}

// Request describes one logical upstream request. It is never mutated while
// polling; every retry reissues the identical request.
type Request struct {
	Endpoint string
	Query    url.Values
}

// Client talks to the BGG XMLAPI2. BGG queues expensive requests and
// answers 202 until the result is ready, so every call polls with a
// linearly growing delay up to a bounded number of attempts.
type Client struct {
	baseURL     string
	httpc       *http.Client
	logger      zerolog.Logger
	maxAttempts int
	retryUnit   time.Duration

	mu       sync.Mutex
	latency  map[string]*ddsketch.DDSketch
	requests atomic.Int64
	queued   atomic.Int64
	giveUps  atomic.Int64
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithMaxAttempts overrides the polling attempt budget.
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// WithRetryUnit overrides the base polling delay. Tests shrink it so the
// full retry schedule runs in milliseconds.
func WithRetryUnit(d time.Duration) Option {
	return func(c *Client) { c.retryUnit = d }
}

// NewClient creates a BGG client rooted at baseURL.
func NewClient(baseURL string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpc:       &http.Client{Timeout: 30 * time.Second},
		logger:      logger.With().Str("component", "bgg-client").Logger(),
		maxAttempts: defaultMaxAttempts,
		retryUnit:   retryUnit,
		latency:     make(map[string]*ddsketch.DDSketch),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do issues req and polls until the upstream produces a terminal response.
// A 200 returns the raw payload. A 202 means the request is queued; the
// client sleeps attempt*retryUnit and reissues the same request, giving up
// with ErrTooManyAttempts after the attempt budget. Any other status is an
// UpstreamError carrying the provider's error messages.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	u := c.baseURL + "/" + req.Endpoint
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, status, err := c.issue(ctx, req.Endpoint, u)
		if err != nil {
			return nil, err
		}

		switch status {
		case http.StatusOK:
			return body, nil

		case http.StatusAccepted:
			c.queued.Add(1)
			delay := time.Duration(attempt) * c.retryUnit
			c.logger.Debug().
				Str("endpoint", req.Endpoint).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("response queued upstream, retrying after delay")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		default:
			return nil, &UpstreamError{Status: status, Messages: parseErrorMessages(body)}
		}
	}

	c.giveUps.Add(1)
	c.logger.Warn().
		Str("endpoint", req.Endpoint).
		Int("attempts", c.maxAttempts).
		Msg("giving up on queued upstream request")
	return nil, ErrTooManyAttempts
}

// issue performs a single HTTP round trip and records its latency.
func (c *Client) issue(ctx context.Context, endpoint, u string) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.observe(endpoint, time.Since(start))
	c.requests.Add(1)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.StatusCode, nil
}

// GetRaw fetches an absolute URL outside the XMLAPI2 base, such as the
// browse page used for the top-ranked listing.
func (c *Client) GetRaw(ctx context.Context, u string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &UpstreamError{Status: resp.StatusCode, Messages: parseErrorMessages(body)}
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) observe(endpoint string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sketch, ok := c.latency[endpoint]
	if !ok {
		var err error
		sketch, err = ddsketch.NewDefaultDDSketch(sketchAccuracy)
		if err != nil {
			return
		}
		c.latency[endpoint] = sketch
	}
	// Ignored: Add only fails for non-finite values.
	_ = sketch.Add(d.Seconds())
}

// LogStats logs per-endpoint request latency quantiles and polling
// counters. Called once at shutdown.
func (c *Client) LogStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for endpoint, sketch := range c.latency {
		quantiles, err := sketch.GetValuesAtQuantiles([]float64{0.5, 0.95, 0.99})
		if err != nil {
			continue
		}
		c.logger.Info().
			Str("endpoint", endpoint).
			Float64("count", sketch.GetCount()).
			Float64("p50_s", quantiles[0]).
			Float64("p95_s", quantiles[1]).
			Float64("p99_s", quantiles[2]).
			Msg("upstream latency")
	}
	c.logger.Info().
		Int64("requests", c.requests.Load()).
		Int64("queued_responses", c.queued.Load()).
		Int64("give_ups", c.giveUps.Load()).
		Msg("upstream request counters")
}

// errorEnvelope matches BGG's <errors><error><message>...</message></error></errors>.
type errorEnvelope struct {
	XMLName xml.Name `xml:"errors"`
	Errors  []struct {
		Message string `xml:"message"`
	} `xml:"error"`
}

// singleError matches the single <error><message>.. form some endpoints use.
type singleError struct {
	XMLName xml.Name `xml:"error"`
	Message string   `xml:"message"`
}

// parseErrorMessages unwraps the provider's error envelope. The result is
// always a non-empty slice so callers can treat messages uniformly.
func parseErrorMessages(body []byte) []string {
	var envelope errorEnvelope
	if err := xml.Unmarshal(body, &envelope); err == nil && len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			messages = append(messages, strings.TrimSpace(e.Message))
		}
		return messages
	}

	var single singleError
	if err := xml.Unmarshal(body, &single); err == nil && single.Message != "" {
		return []string{strings.TrimSpace(single.Message)}
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		trimmed = "unknown upstream error"
	}
	return []string{trimmed}
}
