package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"
)

// Client is the shared HTTP client for all remote registry sources. It
// retries rate-limit and server errors with jittered exponential delay,
// caches DNS lookups, and trips a per-host circuit breaker after repeated
// failures so a dead upstream stops costing request latency.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	authFn     func(url string) (headerName, headerValue string)

	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client (tests use httptest clients).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxRetries sets the maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseDelay sets the base delay for retry backoff.
func WithBaseDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithAuthFunc sets a function that returns an auth header for a given URL.
// Return empty strings to skip authentication for that URL.
func WithAuthFunc(fn func(url string) (headerName, headerValue string)) ClientOption {
	return func(c *Client) {
		c.authFn = fn
	}
}

// NewClient creates a Client with DNS caching and sensible defaults.
func NewClient(opts ...ClientOption) *Client {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	c := &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved IP")
				},
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		userAgent:  "upmls",
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
		breakers:   make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON fetches url and decodes the response body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{Kind: KindParse, URL: rawURL, cause: err}
	}
	return nil
}

// GetText fetches url and returns the raw response body.
func (c *Client) GetText(ctx context.Context, rawURL string) ([]byte, error) {
	return c.get(ctx, rawURL)
}

// get wraps the retrying fetch with the per-host circuit breaker.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	host := hostOf(rawURL)
	breaker := c.getBreaker(host)

	if !breaker.Ready() {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, cause: fmt.Errorf("circuit breaker open for %s", host)}
	}

	var body []byte
	var notFound bool
	err := breaker.Call(func() error {
		b, fetchErr := c.doWithRetry(ctx, rawURL)
		// Absence must not trip the breaker: the upstream is healthy.
		if IsNotFound(fetchErr) {
			notFound = true
			return nil
		}
		body = b
		return fetchErr
	}, 0)
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, &Error{Kind: KindNotFound, URL: rawURL}
	}
	return body, nil
}

func (c *Client) doWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with 10% jitter to prevent thundering herd.
			delay := c.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(float64(delay) * (rand.Float64() * 0.1))
			delay += jitter

			select {
			case <-ctx.Done():
				return nil, &Error{Kind: KindTimeout, URL: rawURL, cause: ctx.Err()}
			case <-time.After(delay):
			}
		}

		body, err := c.doFetch(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var regErr *Error
		if errors.As(err, &regErr) {
			switch regErr.Kind {
			case KindNotFound, KindUnauthorized, KindParse:
				return nil, err
			case KindRateLimited, KindNetwork:
				continue
			default:
				return nil, err
			}
		}
		return nil, err
	}
	return nil, lastErr
}

func (c *Client) doFetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, cause: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, */*")
	if c.authFn != nil {
		if name, value := c.authFn(rawURL); name != "" && value != "" {
			req.Header.Set(name, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &Error{Kind: KindTimeout, URL: rawURL, cause: err}
		}
		return nil, &Error{Kind: KindNetwork, URL: rawURL, cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, errorFromStatus(resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, cause: err}
	}
	return body, nil
}

// getBreaker returns or creates the circuit breaker for a host.
func (c *Client) getBreaker(host string) *circuit.Breaker {
	c.mu.RLock()
	breaker, exists := c.breakers[host]
	c.mu.RUnlock()
	if exists {
		return breaker
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if breaker, exists := c.breakers[host]; exists {
		return breaker
	}

	// Trips after 5 consecutive failures, retries with exponential backoff.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	c.breakers[host] = breaker
	return breaker
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
