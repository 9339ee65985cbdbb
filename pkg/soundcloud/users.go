package soundcloud

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MaxPageSize is the largest page the followings endpoint will return.
const MaxPageSize = 200

type User struct {
	ID             int64  `json:"id"`
	Permalink      string `json:"permalink"`
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	City           string `json:"city"`
	CountryCode    string `json:"country_code"`
	FollowersCount int    `json:"followers_count"`
	PermalinkURL   string `json:"permalink_url"`
}

// Location is "city, country code", or just the city. It is empty when the
// user has no city set.
func (u User) Location() string {
	if u.City == "" {
		return ""
	}
	if u.CountryCode != "" {
		return u.City + ", " + u.CountryCode
	}
	return u.City
}

type usersPage struct {
	Collection []User `json:"collection"`
	NextHref   string `json:"next_href"`
}

// ResolveUser looks up a user by permalink.
func (c *Client) ResolveUser(ctx context.Context, username string) (*User, error) {
	clientID, err := c.ClientID(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("url", c.webURL+"/"+username)
	q.Set("client_id", clientID)

	var user User
	if err := c.getJSON(ctx, c.apiURL+"/resolve?"+q.Encode(), &user); err != nil {
		return nil, fmt.Errorf("failed to resolve user %q: %w", username, err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("failed to resolve user %q: response has no id", username)
	}
	return &user, nil
}

// Followings returns every user that userID follows, walking next_href until
// the last page. Requests after the first wait on the page limiter.
func (c *Client) Followings(ctx context.Context, userID int64, limit int) ([]User, error) {
	clientID, err := c.ClientID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("limit", strconv.Itoa(limit))
	next := c.apiURL + "/users/" + strconv.FormatInt(userID, 10) + "/followings?" + q.Encode()

	var all []User
	for next != "" {
		if err := c.pages.Wait(ctx); err != nil {
			return all, err
		}

		var page usersPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return all, fmt.Errorf("failed to fetch followings of %d: %w", userID, err)
		}
		all = append(all, page.Collection...)
		c.log.Debugf("fetched %d followings so far", len(all))

		next = withClientID(page.NextHref, clientID)
	}
	return all, nil
}

// FollowingsByUsername resolves username and returns its followings.
func (c *Client) FollowingsByUsername(ctx context.Context, username string) ([]User, error) {
	user, err := c.ResolveUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return c.Followings(ctx, user.ID, MaxPageSize)
}

// FilterByLocation keeps the users whose Location contains location, ignoring
// case and surrounding whitespace.
func FilterByLocation(users []User, location string) []User {
	needle := strings.ToLower(strings.TrimSpace(location))
	var matched []User
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Location()), needle) {
			matched = append(matched, u)
		}
	}
	return matched
}

// withClientID adds client_id to href unless it already has one.
func withClientID(href, clientID string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	q := u.Query()
	if q.Get("client_id") != "" {
		return href
	}
	q.Set("client_id", clientID)
	u.RawQuery = q.Encode()
	return u.String()
}
