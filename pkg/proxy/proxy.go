// Package proxy is the environment-agnostic core of sc-proxy: it turns one
// inbound request into one reply, forwarding allow-listed targets upstream.
// Adapters for Fiber, AWS Lambda and the edge worker live elsewhere and only
// translate to and from Request and Response.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	msgMissingURL    = "Missing url parameter"
	msgInvalidDomain = "Invalid domain"
	msgProxyError    = "Proxy error: "
)

// Request is the part of an inbound request the forwarder looks at.
type Request struct {
	Method string
	Query  url.Values
}

// NewRequest builds a Request from a method and a raw query string. Parsing
// is lenient: semicolons are ordinary characters and a '%' that does not start
// a valid escape is kept as is, so no pair is ever dropped.
func NewRequest(method, rawQuery string) Request {
	return Request{Method: method, Query: parseQuery(rawQuery)}
}

func parseQuery(rawQuery string) url.Values {
	q := make(url.Values)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		q.Add(unescape(key), unescape(value))
	}
	return q
}

// unescape decodes '+' and valid %XX escapes, leaving anything else intact.
func unescape(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c <= '9':
		return c - '0'
	case c >= 'a':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// Response is the reply an adapter writes back to the caller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Forwarder holds the immutable settings shared by every invocation.
type Forwarder struct {
	allow            *AllowList
	userAgent        string
	corsOnRejections bool
	logURLs          bool
	client           *http.Client
	log              logrus.FieldLogger
}

type Option func(*Forwarder)

// WithClient replaces the outbound HTTP client. The configured timeout is
// not applied to a supplied client.
func WithClient(c *http.Client) Option {
	return func(f *Forwarder) {
		f.client = c
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Forwarder) {
		f.log = l
	}
}

// New creates a Forwarder from a validated configuration.
func New(cfg Config, opts ...Option) (*Forwarder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	allow, err := NewAllowList(cfg.AllowList.Match, cfg.AllowList.Domains)
	if err != nil {
		return nil, err
	}

	f := &Forwarder{
		allow:            allow,
		userAgent:        cfg.UserAgent,
		corsOnRejections: cfg.CORSOnRejections,
		logURLs:          cfg.LogURLs,
		client:           &http.Client{Timeout: cfg.Timeout},
		log:              logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// AllowList returns the allow-list the forwarder checks targets against.
func (f *Forwarder) AllowList() *AllowList {
	return f.allow
}

// Handle answers a single inbound request. It always returns a Response;
// upstream failures become a 500 carrying the cause.
func (f *Forwarder) Handle(ctx context.Context, req Request) Response {
	if req.Method == http.MethodOptions {
		return preflight()
	}

	target := req.Query.Get("url")
	if target == "" {
		return f.reject(http.StatusBadRequest, msgMissingURL)
	}
	if !f.allow.Allows(target) {
		f.log.WithField("url", target).Warn("rejected target outside allow-list")
		return f.reject(http.StatusForbidden, msgInvalidDomain)
	}

	if f.logURLs {
		f.log.WithField("url", target).Info("forwarding")
	}

	resp, err := f.fetch(ctx, target)
	if err != nil {
		f.log.WithError(err).WithField("url", target).Error("upstream request failed")
		h := withAllowOrigin(make(http.Header))
		h.Set(headerContentType, plainTextType)
		return Response{
			StatusCode: http.StatusInternalServerError,
			Header:     h,
			Body:       []byte(msgProxyError + errorMessage(err)),
		}
	}
	return resp
}

func (f *Forwarder) fetch(ctx context.Context, target string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set(headerUserAgent, f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	h := withAllowOrigin(make(http.Header))
	contentType := resp.Header.Get(headerContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	h.Set(headerContentType, contentType)

	return Response{StatusCode: resp.StatusCode, Header: h, Body: body}, nil
}

func (f *Forwarder) reject(status int, msg string) Response {
	h := make(http.Header)
	h.Set(headerContentType, plainTextType)
	if f.corsOnRejections {
		withAllowOrigin(h)
	}
	return Response{StatusCode: status, Header: h, Body: []byte(msg)}
}

// errorMessage strips the `Get "<url>": ` prefix net/http puts on client
// errors so the caller sees the underlying cause.
func errorMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}
