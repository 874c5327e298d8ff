package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	// DefaultPageTimeout bounds a single page fetch.
	DefaultPageTimeout = 10 * time.Second
	// DefaultDownloadTimeout bounds a single PDF download, which may be
	// much larger than a page.
	DefaultDownloadTimeout = 15 * time.Second
	// DefaultDelay is the politeness interval between page fetches.
	DefaultDelay = 1 * time.Second
	// DefaultRetryWait is the first backoff interval when retries are on.
	DefaultRetryWait = 500 * time.Millisecond
	// DefaultUserAgent identifies the harvester to the target site.
	DefaultUserAgent = "harvest/1.0 (single-site corpus harvester)"
)

// ErrDisallowed is returned for URLs that the site's robots.txt excludes.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError reports a response with an unexpected HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %s (%s)", e.Status, e.URL)
}

// Response is a fully read page.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsHTML reports whether the response looks like an HTML document. A missing
// Content-Type header is given the benefit of the doubt.
func (r *Response) IsHTML() bool {
	if r.ContentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// Config holds fetcher settings.
type Config struct {
	// Timeout for each page request, including reading the body
	PageTimeout time.Duration
	// Timeout for each PDF download, including streaming the body
	DownloadTimeout time.Duration
	// Minimum spacing between page fetches; zero disables throttling
	Delay time.Duration
	// Number of extra attempts after a transient failure
	Retries int
	// First backoff interval between attempts
	RetryWait time.Duration
	// Check robots.txt before each fetch
	RespectRobots bool
	// User-Agent header sent with every request
	UserAgent string
}

// DefaultConfig returns the settings used when none are given. They match a
// plain sequential crawl: no retries and robots.txt is not consulted.
func DefaultConfig() *Config {
	return &Config{
		PageTimeout:     DefaultPageTimeout,
		DownloadTimeout: DefaultDownloadTimeout,
		Delay:           DefaultDelay,
		Retries:         0,
		RetryWait:       DefaultRetryWait,
		RespectRobots:   false,
		UserAgent:       DefaultUserAgent,
	}
}

// Fetcher performs HTTP GETs for the harvester. A single Fetcher is shared by
// every worker of a run so that its limiter spaces requests globally.
type Fetcher struct {
	client  *http.Client
	config  *Config
	limiter *rate.Limiter
	robots  *robotsCache
}

// New creates a Fetcher with its own HTTP client.
func New(config *Config) *Fetcher {
	return NewWithClient(&http.Client{}, config)
}

// NewWithClient creates a Fetcher around an existing client. Timeouts come
// from config rather than the client.
func NewWithClient(client *http.Client, config *Config) *Fetcher {
	if config == nil {
		config = DefaultConfig()
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.RetryWait <= 0 {
		config.RetryWait = DefaultRetryWait
	}

	limit := rate.Inf
	if config.Delay > 0 {
		limit = rate.Every(config.Delay)
	}

	return &Fetcher{
		client:  client,
		config:  config,
		limiter: rate.NewLimiter(limit, 1),
		robots:  newRobotsCache(),
	}
}

// Config returns the fetcher's settings.
func (f *Fetcher) Config() *Config {
	return f.config
}

// Wait blocks until the politeness interval since the previous page fetch
// has elapsed.
func (f *Fetcher) Wait(ctx context.Context) error {
	return f.limiter.Wait(ctx)
}

// Get fetches a page and reads its whole body. Any HTTP status is returned as
// a Response; server errors are retried when retries are configured, and the
// last such response is returned once they run out.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Response, error) {
	if err := f.checkRobots(ctx, rawURL); err != nil {
		return nil, err
	}

	var last *Response
	err := f.retry(ctx, func() error {
		resp, err := f.get(ctx, rawURL)
		if err != nil {
			return err
		}
		last = resp
		if resp.StatusCode >= 500 {
			return &StatusError{
				URL:        rawURL,
				StatusCode: resp.StatusCode,
				Status:     fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			}
		}
		return nil
	})

	var statusErr *StatusError
	if err != nil && errors.As(err, &statusErr) && last != nil {
		return last, nil
	}
	if err != nil {
		return nil, err
	}

	return last, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.PageTimeout)
	defer cancel()

	resp, err := f.do(reqCtx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Download streams a document into w. Non-2xx statuses fail with a
// *StatusError. Only the request is retried; once bytes have been written to
// w a failure is returned as-is.
func (f *Fetcher) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	if err := f.checkRobots(ctx, rawURL); err != nil {
		return 0, err
	}

	var (
		resp   *http.Response
		cancel context.CancelFunc = func() {}
	)
	err := f.retry(ctx, func() error {
		reqCtx, reqCancel := context.WithTimeout(ctx, f.config.DownloadTimeout)
		r, err := f.do(reqCtx, rawURL)
		if err != nil {
			reqCancel()
			return err
		}

		if r.StatusCode < 200 || r.StatusCode > 299 {
			r.Body.Close()
			reqCancel()
			statusErr := &StatusError{URL: rawURL, StatusCode: r.StatusCode, Status: r.Status}
			if r.StatusCode < 500 {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}

		resp, cancel = r, reqCancel
		return nil
	})
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read download body: %w", err)
	}

	return n, nil
}

func (f *Fetcher) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("invalid url: %w", err))
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	return resp, nil
}

// retry runs op once plus up to Retries more times with exponential backoff.
// Errors wrapped with backoff.Permanent are returned immediately, unwrapped.
func (f *Fetcher) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.config.RetryWait
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(f.config.Retries, 0))), ctx)
	return backoff.Retry(op, policy)
}
