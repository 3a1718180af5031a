// Package fetch performs JSON HTTP requests with linear-backoff retries and an
// optional time-to-live cache kept in the persistent key-value store.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"fundboard/pkg/logging"
	"fundboard/pkg/storage"
)

const (
	DefaultMaxRetries     = 3
	DefaultBackoff        = time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Doer is the transport used for each attempt. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options describe the request. They are part of the cache key.
type Options struct {
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// StatusError is returned for a response with a non-2xx status.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
}

// NetworkError is returned once every attempt has failed. Err is the cause of
// the last attempt.
type NetworkError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Client issues requests. The zero value is not usable; use New.
type Client struct {
	http    Doer
	store   *storage.Store
	logger  *zap.Logger
	backoff time.Duration
	retries int
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
	group   singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(d Doer) Option { return func(c *Client) { c.http = d } }

func WithStore(s *storage.Store) Option { return func(c *Client) { c.store = s } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = logging.OrNop(l) } }

// WithMaxRetries sets the attempt budget FetchCached passes to Fetch.
// Values below 1 keep DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 1 {
			c.retries = n
		}
	}
}

// WithBackoff sets the unit of the linear backoff (attempt i waits unit*(i+1)).
func WithBackoff(d time.Duration) Option { return func(c *Client) { c.backoff = d } }

func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// New creates a Client. Without WithStore the cache lives in memory only.
func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultRequestTimeout},
		logger:  zap.NewNop(),
		backoff: DefaultBackoff,
		retries: DefaultMaxRetries,
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = storage.New(storage.NewMemoryBackend(), c.logger)
	}
	return c
}

// MaxRetries is the attempt budget used by FetchCached.
func (c *Client) MaxRetries() int { return c.retries }

// Fetch requests url up to maxRetries times and returns the JSON body of the
// first successful response. Between attempt i and i+1 it waits
// backoff*(i+1); there is no wait after the last attempt. A cancelled ctx
// stops the retry loop.
func (c *Client) Fetch(ctx context.Context, url string, opts Options, maxRetries int) (json.RawMessage, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		data, err := c.attempt(ctx, url, opts)
		if err == nil {
			return data, nil
		}
		lastErr = err
		c.logger.Debug("Fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", i+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if i == maxRetries-1 {
			break
		}
		if err := c.sleep(ctx, c.backoff*time.Duration(i+1)); err != nil {
			return nil, &NetworkError{URL: url, Attempts: i + 1, Err: err}
		}
	}
	return nil, &NetworkError{URL: url, Attempts: maxRetries, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, url string, opts Options) (json.RawMessage, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Status: statusText(resp)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON body from %s", url)
	}
	return json.RawMessage(data), nil
}

func statusText(resp *http.Response) string {
	if s := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); s != "" && s != resp.Status {
		return s
	}
	return http.StatusText(resp.StatusCode)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
