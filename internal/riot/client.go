package riot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	// APIVersion is substituted into every path template
	APIVersion = "3"

	pathSummonerByName = "summoner/v{version}/summoners/by-name/{summonerName}"
	pathMatchlist      = "match/v{version}/matchlists/by-account/{accountId}"
	pathMatch          = "match/v{version}/matches/{matchId}"
	pathTimeline       = "match/v{version}/timelines/by-match/{matchId}"
)

// Client is a rate-limited Riot API client
type Client struct {
	keyMu     sync.RWMutex
	apiKey    string
	region    Region
	baseURL   string // overrides region host when set
	transport Transport
	limiter   *Limiter
	logger    *log.Entry
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithTransport sets the transport (default: net/http)
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithLimiter shares a limiter between clients
func WithLimiter(l *Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithClientBaseURL points the client at another host (useful for testing)
func WithClientBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithLogger sets the logger
func WithLogger(l *log.Entry) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new Riot API client for one platform region
func NewClient(apiKey string, region Region, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	c := &Client{
		apiKey: apiKey,
		region: region,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = NewHTTPTransport(DefaultRequestTimeout)
	}
	if c.limiter == nil {
		l, err := NewLimiter(DefaultRequestsPerSecond)
		if err != nil {
			return nil, err
		}
		c.limiter = l
	}
	if c.logger == nil {
		c.logger = log.WithField("component", "riot")
	}
	return c, nil
}

// SetAPIKey swaps the key used by subsequent requests
func (c *Client) SetAPIKey(key string) {
	c.keyMu.Lock()
	c.apiKey = key
	c.keyMu.Unlock()
}

// FetchSummonerByName resolves a display name to identity fields
func (c *Client) FetchSummonerByName(ctx context.Context, name string) (*Summoner, error) {
	var s Summoner
	err := c.get(ctx, pathSummonerByName, map[string]string{"summonerName": name}, nil, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FetchMatchHistory fetches the match references of an account
func (c *Client) FetchMatchHistory(ctx context.Context, accountID int64) ([]MatchReference, error) {
	var list Matchlist
	params := map[string]string{"accountId": strconv.FormatInt(accountID, 10)}
	if err := c.get(ctx, pathMatchlist, params, nil, &list); err != nil {
		return nil, err
	}
	return list.Matches, nil
}

// FetchMatchDetail fetches match details
func (c *Client) FetchMatchDetail(ctx context.Context, matchID int64) (*MatchDetail, error) {
	var m MatchDetail
	params := map[string]string{"matchId": strconv.FormatInt(matchID, 10)}
	if err := c.get(ctx, pathMatch, params, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// FetchMatchTimeline fetches match timeline
func (c *Client) FetchMatchTimeline(ctx context.Context, matchID int64) (*Timeline, error) {
	var t Timeline
	params := map[string]string{"matchId": strconv.FormatInt(matchID, 10)}
	if err := c.get(ctx, pathTimeline, params, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// get makes a rate-limited request and decodes a 2xx body into result
func (c *Client) get(ctx context.Context, tpl string, pathParams map[string]string, query url.Values, result interface{}) error {
	endpoint, err := c.endpoint(tpl, pathParams)
	if err != nil {
		return err
	}
	fullURL := endpoint + "?" + c.query(query).Encode()

	var resp *Response
	sent := false
	err = c.limiter.Do(ctx, func() error {
		sent = true
		var reqErr error
		resp, reqErr = c.transport.Get(ctx, fullURL)
		return reqErr
	})
	if err != nil {
		if !sent {
			// cancelled while waiting for the limiter
			return err
		}
		return &TransportError{URL: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.Penalize(resp.RetryAfter)
			c.logger.WithFields(log.Fields{
				"url":         endpoint,
				"retry_after": resp.RetryAfter,
			}).Warn("rate limited by API")
		}
		return &RemoteError{StatusCode: resp.StatusCode, URL: endpoint, RetryAfter: resp.RetryAfter}
	}

	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// endpoint expands a path template into an absolute URL without query string
func (c *Client) endpoint(tpl string, pathParams map[string]string) (string, error) {
	params := map[string]string{"version": APIVersion}
	for k, v := range pathParams {
		params[k] = v
	}
	path, err := expandTemplate(tpl, params)
	if err != nil {
		return "", err
	}

	base := c.baseURL
	if base == "" {
		base = c.region.BaseURL()
	}
	return base + "/lol/" + path, nil
}

// query attaches the API key; extra parameters never override it
func (c *Client) query(extra url.Values) url.Values {
	c.keyMu.RLock()
	key := c.apiKey
	c.keyMu.RUnlock()

	q := url.Values{}
	q.Set("api_key", key)
	for k, vs := range extra {
		if k == "api_key" {
			continue
		}
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return q
}

// expandTemplate substitutes {name} placeholders with path-escaped values
func expandTemplate(tpl string, params map[string]string) (string, error) {
	var b strings.Builder
	rest := tpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", tpl)
		}
		name := rest[open+1 : open+end]
		value, ok := params[name]
		if !ok {
			return "", fmt.Errorf("missing path parameter %q for %q", name, tpl)
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(value))
		rest = rest[open+end+1:]
	}
}
