// Package reddit implements a thin Reddit API wrapper: OAuth2
// client-credentials auth, submission/comment-tree fetch, and retry with
// Retry-After honoring.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/therealityreport/socializer/internal/adapter/observability"
	"github.com/therealityreport/socializer/internal/domain"
)

// RateLimiter is the subset of ratelimiter.Limiter the client depends on.
type RateLimiter interface {
	Acquire(ctx context.Context) error
	BlockFor(ctx context.Context, d time.Duration)
}

// Config configures the Client.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	BaseURL      string // e.g. https://oauth.reddit.com
	AuthURL      string // e.g. https://www.reddit.com/api/v1/access_token
}

// Client wraps the Reddit API with rate-limiting and retry.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter RateLimiter
	logger  *slog.Logger

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// New constructs a Client.
func New(cfg Config, limiter RateLimiter) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "reddit." + r.Method + " " + r.URL.Path
				}),
			),
		},
		limiter: limiter,
		logger:  slog.Default().With(slog.String("component", "reddit_client")),
	}
}

var _ domain.RedditClient = (*Client)(nil)

func (c *Client) token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("op=reddit.token: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("op=reddit.token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("op=reddit.token: %w", domain.ErrAuthFailure)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("op=reddit.token: unexpected status %d: %w", resp.StatusCode, domain.ErrUpstreamTimeout)
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("op=reddit.token decode: %w", err)
	}
	c.accessToken = body.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn-30) * time.Second)
	return c.accessToken, nil
}

// doJSON performs a rate-limited, retried GET against the Reddit API,
// implementing the retry policy: up to 3 attempts with exponential backoff
// min(30, 2^(n-1)) between them; a 429's Retry-After (minimum 1s) is passed
// to the limiter's BlockFor, so the next attempt's Acquire waits it out.
func (c *Client) doJSON(ctx context.Context, path string, query url.Values, out any) error {
	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Acquire(ctx); err != nil {
			return backoff.Permanent(err)
		}
		tok, err := c.token(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		u := strings.TrimRight(c.cfg.BaseURL, "/") + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "bearer "+tok)
		req.Header.Set("User-Agent", c.cfg.UserAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			observability.RedditRequestsTotal.WithLabelValues(path, "error").Inc()
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			if retryAfter <= 0 {
				retryAfter = 1
			}
			c.limiter.BlockFor(ctx, time.Duration(retryAfter*float64(time.Second)))
			observability.RedditRequestsTotal.WithLabelValues(path, "rate_limited").Inc()
			return &domain.RateLimitError{RetryAfter: retryAfter}
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			observability.RedditRequestsTotal.WithLabelValues(path, "auth_failure").Inc()
			return backoff.Permanent(fmt.Errorf("op=reddit.request status=%d: %w", resp.StatusCode, domain.ErrAuthFailure))
		}
		if resp.StatusCode >= 500 {
			observability.RedditRequestsTotal.WithLabelValues(path, "upstream_error").Inc()
			return fmt.Errorf("op=reddit.request status=%d: %w", resp.StatusCode, domain.ErrUpstreamTimeout)
		}
		if resp.StatusCode != http.StatusOK {
			observability.RedditRequestsTotal.WithLabelValues(path, "client_error").Inc()
			return backoff.Permanent(fmt.Errorf("op=reddit.request status=%d", resp.StatusCode))
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("op=reddit.request decode: %w", err))
			}
		}
		observability.RedditRequestsTotal.WithLabelValues(path, "ok").Inc()
		return nil
	}

	bo := &retryWait{attempt: &attempt}
	err := backoff.Retry(op, backoff.WithMaxRetries(bo, 2))
	if err != nil {
		c.logger.Warn("reddit request failed after retries", slog.String("path", path), slog.Any("error", err))
	}
	return err
}

func parseRetryAfter(h string) float64 {
	if h == "" {
		return 0
	}
	v, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return 0
	}
	return v
}

// retryWait implements the wait strategy: exponential backoff
// min(30, 2^(attempt-1)) seconds. It does not inspect the failing call's
// error (lastErr is never set); Retry-After is honored through the limiter.
type retryWait struct {
	attempt *int
	lastErr error
}

func (r *retryWait) NextBackOff() time.Duration {
	n := *r.attempt
	if n < 1 {
		n = 1
	}
	secs := float64(int64(1) << uint(n-1))
	if secs > 30 {
		secs = 30
	}
	return time.Duration(secs * float64(time.Second))
}

func (r *retryWait) Reset() {}

// GetSubmission fetches headline metadata and hydrates the full payload.
func (c *Client) GetSubmission(ctx context.Context, redditID string) (domain.RedditSubmission, error) {
	var raw apiThingList
	if err := c.doJSON(ctx, "/api/info", url.Values{"id": {"t3_" + redditID}, "raw_json": {"1"}}, &raw); err != nil {
		return domain.RedditSubmission{}, err
	}
	if len(raw.Data.Children) == 0 {
		return domain.RedditSubmission{}, fmt.Errorf("op=reddit.GetSubmission id=%s: %w", redditID, domain.ErrNotFound)
	}
	d := raw.Data.Children[0].Data
	return domain.RedditSubmission{
		RedditID:    d.ID,
		Subreddit:   d.Subreddit,
		Title:       d.Title,
		URL:         d.URL,
		CreatedUTC:  time.Unix(int64(d.CreatedUTC), 0).UTC(),
		NumComments: d.NumComments,
		IsArchived:  d.Archived,
	}, nil
}

// FetchSubmissionRaw returns the raw JSON payload, used for archival.
func (c *Client) FetchSubmissionRaw(ctx context.Context, redditID string) (map[string]any, error) {
	var raw map[string]any
	if err := c.doJSON(ctx, "/api/info", url.Values{"id": {"t3_" + redditID}, "raw_json": {"1"}}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// FetchComments requests the comment listing (limit=500) and flattens the
// returned tree depth-first. "more" placeholders are skipped, so comments
// behind a load-more link are not fetched.
func (c *Client) FetchComments(ctx context.Context, redditID string) ([]domain.RedditComment, error) {
	var raw []apiListing
	if err := c.doJSON(ctx, "/comments/"+redditID, url.Values{"raw_json": {"1"}, "limit": {"500"}}, &raw); err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, nil
	}
	var out []domain.RedditComment
	var walk func(children []apiThing)
	walk = func(children []apiThing) {
		for _, ch := range children {
			if ch.Kind == "more" {
				continue
			}
			d := ch.Data
			author := d.Author
			if author == "" {
				author = "[deleted]"
			}
			out = append(out, domain.RedditComment{
				ID:         d.ID,
				Author:     author,
				Body:       d.Body,
				Score:      d.Score,
				CreatedUTC: time.Unix(int64(d.CreatedUTC), 0).UTC(),
				ParentID:   d.ParentID,
			})
			if d.Replies.Data.Children != nil {
				walk(d.Replies.Data.Children)
			}
		}
	}
	walk(raw[1].Data.Children)
	return out, nil
}

type apiThingList struct {
	Data struct {
		Children []apiThing `json:"children"`
	} `json:"data"`
}

type apiListing struct {
	Data struct {
		Children []apiThing `json:"children"`
	} `json:"data"`
}

type apiThing struct {
	Kind string      `json:"kind"`
	Data apiThingData `json:"data"`
}

type apiThingData struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	CreatedUTC  float64 `json:"created_utc"`
	NumComments int     `json:"num_comments"`
	Archived    bool    `json:"archived"`
	Author      string  `json:"author"`
	Body        string  `json:"body"`
	Score       int     `json:"score"`
	ParentID    string  `json:"parent_id"`
	Replies     struct {
		Data struct {
			Children []apiThing `json:"children"`
		} `json:"data"`
	} `json:"replies"`
}
