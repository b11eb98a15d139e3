// Package xapi implements lookup.Source against the X API v2.
package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/lookup"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/metrics"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public X API host.
	DefaultBaseURL        = "https://api.twitter.com"
	defaultRequestTimeout = 15 * time.Second
	maxResponseBytes      = 4 << 20

	minTimelineResults = 5
	minSearchResults   = 10
	maxResults         = 100
)

const (
	opResolve     = "resolve"
	opRecentPosts = "recent_posts"
	opSearch      = "search"
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	BearerToken       string
	RequestTimeout    time.Duration // Per-call ceiling.
	RequestsPerMinute int           // Client-side pacing; <= 0 disables it.
	HTTPClient        *http.Client
}

// Client talks to the X API v2 with bearer-token auth.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient constructs a Client.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1)
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(opts.BearerToken),
		timeout: timeout,
		http:    httpClient,
		limiter: limiter,
	}
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

type apiUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type userResponse struct {
	Data   *apiUser   `json:"data"`
	Errors []apiError `json:"errors"`
}

type apiTweet struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type tweetsResponse struct {
	Data   []apiTweet `json:"data"`
	Errors []apiError `json:"errors"`
}

// Resolve looks up an account by handle.
func (c *Client) Resolve(ctx context.Context, handle string) (lookup.AccountProfile, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return lookup.AccountProfile{}, lookup.NewError(lookup.KindNotFound, opResolve, 0, fmt.Errorf("empty handle"))
	}
	query := url.Values{}
	query.Set("user.fields", "created_at,name")

	var payload userResponse
	if err := c.get(ctx, opResolve, "/2/users/by/username/"+url.PathEscape(handle), query, &payload); err != nil {
		return lookup.AccountProfile{}, err
	}
	if payload.Data == nil || payload.Data.ID == "" {
		if len(payload.Errors) > 0 && !isNotFoundError(payload.Errors) {
			return lookup.AccountProfile{}, lookup.NewError(lookup.KindTransport, opResolve, http.StatusOK, fmt.Errorf("%s", describeErrors(payload.Errors)))
		}
		return lookup.AccountProfile{}, lookup.NewError(lookup.KindNotFound, opResolve, http.StatusOK, fmt.Errorf("user %q not found", handle))
	}
	return lookup.AccountProfile{
		ID:          payload.Data.ID,
		Handle:      payload.Data.Username,
		DisplayName: payload.Data.Name,
		CreatedAt:   payload.Data.CreatedAt.UTC(),
	}, nil
}

// RecentPosts returns up to limit of the account's most recent posts.
func (c *Client) RecentPosts(ctx context.Context, accountID string, limit int) ([]lookup.Post, error) {
	query := url.Values{}
	query.Set("max_results", strconv.Itoa(clamp(limit, minTimelineResults, maxResults)))
	query.Set("tweet.fields", "conversation_id,created_at")

	var payload tweetsResponse
	if err := c.get(ctx, opRecentPosts, "/2/users/"+url.PathEscape(accountID)+"/tweets", query, &payload); err != nil {
		return nil, err
	}
	return toPosts(payload.Data, limit), nil
}

// Search runs a recent-search query and returns up to limit posts.
func (c *Client) Search(ctx context.Context, q string, limit int) ([]lookup.Post, error) {
	query := url.Values{}
	query.Set("query", q)
	query.Set("max_results", strconv.Itoa(clamp(limit, minSearchResults, maxResults)))
	query.Set("tweet.fields", "conversation_id,created_at")

	var payload tweetsResponse
	if err := c.get(ctx, opSearch, "/2/tweets/search/recent", query, &payload); err != nil {
		return nil, err
	}
	return toPosts(payload.Data, limit), nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) (errGet error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	defer func() {
		result := "ok"
		if errGet != nil {
			result = lookup.KindOf(errGet).String()
		}
		metrics.ObserveUpstream(op, result, time.Since(start))
	}()

	if c.limiter != nil {
		if errWait := c.limiter.Wait(ctx); errWait != nil {
			return lookup.NewError(lookup.KindTransport, op, 0, fmt.Errorf("pacing: %w", errWait))
		}
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return lookup.NewError(lookup.KindTransport, op, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return lookup.NewError(lookup.KindTransport, op, 0, fmt.Errorf("request failed: %w", err))
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("xapi: close response body failed")
		}
	}()
	status := resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return lookup.NewError(lookup.KindTransport, op, status, fmt.Errorf("read response: %w", err))
	}

	switch {
	case status == http.StatusTooManyRequests:
		return lookup.NewError(lookup.KindRateLimited, op, status, fmt.Errorf("reset at %s", resp.Header.Get("x-rate-limit-reset")))
	case status == http.StatusNotFound:
		return lookup.NewError(lookup.KindNotFound, op, status, nil)
	case status < http.StatusOK || status >= http.StatusMultipleChoices:
		return lookup.NewError(lookup.KindTransport, op, status, fmt.Errorf("unexpected status: %s", snippet(body)))
	}

	if errUnmarshal := json.Unmarshal(body, out); errUnmarshal != nil {
		return lookup.NewError(lookup.KindTransport, op, status, fmt.Errorf("decode response: %w", errUnmarshal))
	}
	return nil
}

func toPosts(tweets []apiTweet, limit int) []lookup.Post {
	if limit > 0 && len(tweets) > limit {
		tweets = tweets[:limit]
	}
	posts := make([]lookup.Post, 0, len(tweets))
	for _, tweet := range tweets {
		posts = append(posts, lookup.Post{
			ID:             tweet.ID,
			Text:           tweet.Text,
			ConversationID: tweet.ConversationID,
			CreatedAt:      tweet.CreatedAt.UTC(),
		})
	}
	return posts
}

func isNotFoundError(errs []apiError) bool {
	for _, e := range errs {
		if strings.Contains(e.Title, "Not Found") || strings.HasSuffix(e.Type, "/resource-not-found") {
			return true
		}
	}
	return false
}

func describeErrors(errs []apiError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, strings.TrimSpace(e.Title+": "+e.Detail))
	}
	return strings.Join(parts, "; ")
}

func snippet(body []byte) string {
	const maxSnippet = 200
	text := strings.TrimSpace(string(body))
	if len(text) > maxSnippet {
		return text[:maxSnippet] + "..."
	}
	return text
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
