// Package soundcloud is a small client for the public SoundCloud API v2,
// able to reach it directly or through an sc-proxy deployment.
package soundcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/andesco/sc-proxy/pkg/proxy"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIURL = "https://api-v2.soundcloud.com"
	DefaultWebURL = "https://soundcloud.com"

	// DefaultPageDelay is the pause between two paginated requests.
	DefaultPageDelay = 500 * time.Millisecond
)

// StatusError is returned when SoundCloud answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("soundcloud: %s returned status %d", e.URL, e.StatusCode)
}

type Client struct {
	http      *http.Client
	apiURL    string
	webURL    string
	proxyURL  string
	userAgent string
	pages     *rate.Limiter
	log       logrus.FieldLogger

	mu       sync.Mutex
	clientID string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithClientID skips client id discovery.
func WithClientID(id string) Option {
	return func(cl *Client) { cl.clientID = id }
}

// WithProxy sends every request as GET {base}?url=<target>.
func WithProxy(base string) Option {
	return func(cl *Client) { cl.proxyURL = base }
}

// WithBaseURLs points the client at different API and web hosts.
func WithBaseURLs(api, web string) Option {
	return func(cl *Client) {
		cl.apiURL = api
		cl.webURL = web
	}
}

// WithPageDelay sets the minimum spacing between paginated requests. Zero
// disables pacing.
func WithPageDelay(d time.Duration) Option {
	return func(cl *Client) {
		if d <= 0 {
			cl.pages = rate.NewLimiter(rate.Inf, 1)
			return
		}
		cl.pages = rate.NewLimiter(rate.Every(d), 1)
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(cl *Client) { cl.log = l }
}

func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		apiURL:    DefaultAPIURL,
		webURL:    DefaultWebURL,
		userAgent: proxy.DefaultUserAgent,
		pages:     rate.NewLimiter(rate.Every(DefaultPageDelay), 1),
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// requestURL applies the proxy prefix, if any.
func (c *Client) requestURL(target string) string {
	if c.proxyURL == "" {
		return target
	}
	return c.proxyURL + "?url=" + url.QueryEscape(target)
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(target), nil)
	if err != nil {
		return nil, fmt.Errorf("error building request for %s: %w", target, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response from %s: %w", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, target string, v interface{}) error {
	body, err := c.get(ctx, target)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("error decoding response from %s: %w", target, err)
	}
	return nil
}
