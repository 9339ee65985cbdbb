package soundcloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrClientIDNotFound is returned when none of the scripts referenced by the
// SoundCloud home page contain a client id.
var ErrClientIDNotFound = errors.New("soundcloud: could not find client_id")

var clientIDPattern = regexp.MustCompile(`client_id[=:]"([a-zA-Z0-9]+)"`)

// ClientID returns the configured client id, discovering one from the
// SoundCloud web app bundles on first use.
func (c *Client) ClientID(ctx context.Context) (string, error) {
	c.mu.Lock()
	id := c.clientID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}

	id, err := c.discoverClientID(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.clientID = id
	c.mu.Unlock()
	return id, nil
}

func (c *Client) discoverClientID(ctx context.Context) (string, error) {
	page, err := c.get(ctx, c.webURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract client_id: %w", err)
	}

	scripts, err := scriptSources(page, c.webURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract client_id: %w", err)
	}

	for _, src := range scripts {
		if !strings.Contains(src, "sndcdn.com") {
			continue
		}
		script, err := c.get(ctx, src)
		if err != nil {
			c.log.WithError(err).WithField("script", src).Debug("skipping script")
			continue
		}
		if m := clientIDPattern.FindSubmatch(script); m != nil {
			return string(m[1]), nil
		}
	}

	return "", ErrClientIDNotFound
}

// scriptSources lists the absolute src of every <script> in page, resolved
// against base.
func scriptSources(page []byte, base string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, err
	}

	var sources []string
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		ref, err := url.Parse(strings.TrimSpace(src))
		if err != nil {
			return
		}
		sources = append(sources, baseURL.ResolveReference(ref).String())
	})
	return sources, nil
}
