package netx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotFound reports a 404 from a station feed. Callers treat it as "no data".
var ErrNotFound = errors.New("feed not found")

// FetchError is a transient feed failure: a transport error or a non-2xx
// status other than 404.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options tunes a Client. Zero values fall back to defaults.
type Options struct {
	Timeout time.Duration
	Retry   RetryOptions
	// RequestsPerSecond caps outbound requests across all feeds; 0 disables it.
	RequestsPerSecond float64
	UserAgent         string
}

// Client wraps an http.Client with retry behavior for transient failures and
// an optional outbound rate limit shared by every station feed.
type Client struct {
	httpClient *http.Client
	retry      RetryOptions
	limiter    *rate.Limiter
	userAgent  string
}

// NewClient builds a Client with a tuned transport and timeout.
//
// A zero or negative timeout becomes 30 seconds.
func NewClient(opts Options) *Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewClientWithHTTPClient(&http.Client{Timeout: timeout, Transport: tr}, opts)
}

// NewClientWithHTTPClient builds a Client from an existing http.Client.
//
// A nil client is replaced with a default client, and a non-positive timeout is
// normalized to 30 seconds.
func NewClientWithHTTPClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 30 * time.Second
	}
	c := &Client{
		httpClient: httpClient,
		retry:      opts.Retry,
		userAgent:  opts.UserAgent,
	}
	if opts.RequestsPerSecond > 0 {
		// Burst of one keeps requests evenly paced.
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	if c.userAgent == "" {
		c.userAgent = "onair/1.0"
	}
	return c
}

// Do executes req with RetryOperation.
//
// Retryable transport errors and HTTP 5xx/429 responses are retried. Every
// attempt first waits on the rate limiter, if configured.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	return RetryOperation(ctx, c.retry, func() (*http.Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &permanentError{err: err}
			}
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() == nil && isRetryableError(err) {
				return nil, err
			}
			return nil, &permanentError{err: err}
		}
		if resp.StatusCode >= 500 || resp.StatusCode == 429 {
			_ = resp.Body.Close()
			return nil, &FetchError{URL: req.URL.String(), StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}

// GetBytes sends a GET request and returns status code plus raw response body.
//
// Any permanentError from Do is unwrapped before returning.
func (c *Client) GetBytes(ctx context.Context, rawURL string, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(req)
	if err != nil {
		return 0, nil, unwrapPermanent(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}

// Fetch GETs rawURL and returns the body of a 2xx response.
//
// A 404 yields ErrNotFound. Other failures come back as *FetchError, except
// context cancellation, which is returned as the context's own error so callers
// can tell an aborted fetch apart from a broken feed.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	status, body, err := c.GetBytes(ctx, rawURL, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status < 200 || status >= 300 {
		return nil, &FetchError{URL: rawURL, StatusCode: status}
	}
	return body, nil
}

// IsAborted reports whether err comes from a cancelled or expired context.
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type permanentError struct{ err error }

// permanentError marks failures that should bypass retry logic.
func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func unwrapPermanent(err error) error {
	var p *permanentError
	if errors.As(err, &p) {
		return p.err
	}
	return err
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection reset") || strings.Contains(s, "connection refused") ||
		strings.Contains(s, "timeout") || strings.Contains(s, "eof")
}
