package proxy

import (
	"fmt"
	"net/url"
	"strings"
)

// MatchMode selects how a target URL is compared against the allowed domains.
type MatchMode string

const (
	// MatchHost compares the parsed hostname against each domain, accepting
	// an exact match or a proper subdomain.
	MatchHost MatchMode = "host"
	// MatchSubstring accepts any target that contains a domain anywhere in
	// the raw string. This is the legacy behaviour and lets through URLs
	// such as https://evil.com/?x=soundcloud.com.
	MatchSubstring MatchMode = "substring"
)

// DefaultDomains are the SoundCloud hosts the proxy forwards to out of the box.
var DefaultDomains = []string{"soundcloud.com", "sndcdn.com"}

// AllowList decides which targets the proxy is willing to forward to.
type AllowList struct {
	mode    MatchMode
	domains []string
}

// NewAllowList builds an AllowList. Domains are normalised, and an empty
// list or an unknown mode is an error.
func NewAllowList(mode MatchMode, domains []string) (*AllowList, error) {
	if mode == "" {
		mode = MatchHost
	}
	if mode != MatchHost && mode != MatchSubstring {
		return nil, fmt.Errorf("unknown domain match mode %q", mode)
	}

	var normalised []string
	for _, d := range domains {
		if d = normaliseDomain(d); d != "" {
			normalised = append(normalised, d)
		}
	}
	if len(normalised) == 0 {
		return nil, fmt.Errorf("allow-list has no domains")
	}

	return &AllowList{mode: mode, domains: normalised}, nil
}

// Mode returns the match mode in use.
func (a *AllowList) Mode() MatchMode {
	return a.mode
}

// Domains returns a copy of the normalised domain list.
func (a *AllowList) Domains() []string {
	return append([]string(nil), a.domains...)
}

// Allows reports whether target may be forwarded.
func (a *AllowList) Allows(target string) bool {
	if a.mode == MatchSubstring {
		for _, d := range a.domains {
			if strings.Contains(target, d) {
				return true
			}
		}
		return false
	}

	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return false
	}
	for _, d := range a.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func normaliseDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	return strings.Trim(d, ".")
}
