package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Helix API root.
	DefaultBaseURL = "https://api.twitch.tv/helix"

	httpClientTimeout = 5 * time.Second

	// Helix allows 800 points per minute for an app token.
	defaultRate  = rate.Limit(800.0 / 60.0)
	defaultBurst = 10

	maxPageSize = 100
)

var (
	// ErrUnauthorized is returned when Helix rejects the client id or token.
	ErrUnauthorized = errors.New("twitch: unauthorized")

	// ErrStatus is returned for any other non-200 answer.
	ErrStatus = errors.New("twitch: unexpected status")
)

// Client is a minimal Helix client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	token      string
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit replaces the default request limiter.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// NewClient returns a client authenticating with clientID and an app access token.
func NewClient(clientID, token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: httpClientTimeout},
		baseURL:    DefaultBaseURL,
		clientID:   clientID,
		token:      strings.TrimPrefix(token, "oauth:"),
		limiter:    rate.NewLimiter(defaultRate, defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", c.clientID)
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case res.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%w %d: %s", ErrStatus, res.StatusCode, strings.TrimSpace(string(msg)))
	}

	return json.NewDecoder(res.Body).Decode(out)
}

// GetStreams returns one page of live streams and the cursor of the next page.
// The cursor is empty on the last page.
func (c *Client) GetStreams(ctx context.Context, q StreamsQuery) ([]Stream, string, error) {
	query := url.Values{}
	query.Set("type", "live")
	if q.GameID != "" {
		query.Set("game_id", q.GameID)
	}
	if q.Language != "" {
		query.Set("language", q.Language)
	}
	first := q.First
	if first <= 0 || first > maxPageSize {
		first = maxPageSize
	}
	query.Set("first", strconv.Itoa(first))
	if q.After != "" {
		query.Set("after", q.After)
	}

	var res streamsResponse
	if err := c.doRequest(ctx, "/streams", query, &res); err != nil {
		return nil, "", err
	}
	return res.Data, res.Pagination.Cursor, nil
}
