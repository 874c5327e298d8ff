package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsCache holds parsed robots.txt files by scheme and host. Only
// definitive answers are cached: a fetched file or a 4xx, which allows
// everything.
type robotsCache struct {
	mu    sync.Mutex
	hosts map[string]*robotstxt.RobotsData
}

func newRobotsCache() *robotsCache {
	return &robotsCache{hosts: make(map[string]*robotstxt.RobotsData)}
}

// checkRobots returns ErrDisallowed when robots.txt checks are on and the
// site excludes rawURL for our user agent.
func (f *Fetcher) checkRobots(ctx context.Context, rawURL string) error {
	if !f.config.RespectRobots {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}

	data := f.robotsFor(ctx, u)
	if data == nil {
		return nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if !data.TestAgent(path, f.config.UserAgent) {
		return fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
	}

	return nil
}

func (f *Fetcher) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	f.robots.mu.Lock()
	defer f.robots.mu.Unlock()

	if data, ok := f.robots.hosts[key]; ok {
		return data
	}

	data, final := f.fetchRobots(ctx, key+"/robots.txt")
	if final {
		f.robots.hosts[key] = data
	}
	return data
}

// fetchRobots fetches and parses a robots.txt file. A nil result allows
// everything. final is false when the answer may change on a later attempt:
// transport errors, cancellations and server errors.
func (f *Fetcher) fetchRobots(ctx context.Context, robotsURL string) (data *robotstxt.RobotsData, final bool) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.PageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, true
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		return nil, resp.StatusCode < 500
	}

	return data, resp.StatusCode < 500
}
