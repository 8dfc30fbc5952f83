package reddit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type noopLimiter struct{}

func (noopLimiter) Acquire(ctx context.Context) error           { return nil }
func (noopLimiter) BlockFor(ctx context.Context, d time.Duration) {}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok123", "expires_in": 3600})
	})
	mux.HandleFunc("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		UserAgent:    "socializer-test/1.0",
		BaseURL:      srv.URL,
		AuthURL:      srv.URL + "/api/v1/access_token",
	}, noopLimiter{})
	return c, srv
}

func TestGetSubmission_ParsesHeadlineMetadata(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/info" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"children": []map[string]any{
					{"data": map[string]any{
						"id": "abc123", "subreddit": "realitytv", "title": "Live Thread",
						"url": "https://reddit.com/x", "created_utc": 1700000000,
						"num_comments": 42, "archived": false,
					}},
				},
			},
		})
	})

	sub, err := c.GetSubmission(context.Background(), "abc123")
	require.NoError(t, err)
	require.Equal(t, "abc123", sub.RedditID)
	require.Equal(t, "realitytv", sub.Subreddit)
	require.Equal(t, 42, sub.NumComments)
	require.False(t, sub.IsArchived)
}

func TestFetchComments_FlattensNestedTree(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"data": map[string]any{"children": []map[string]any{}}},
			{"data": map[string]any{"children": []map[string]any{
				{"kind": "t1", "data": map[string]any{
					"id": "c1", "author": "alice", "body": "great episode",
					"score": 10, "created_utc": 1700000100, "parent_id": "t3_abc123",
					"replies": map[string]any{"data": map[string]any{"children": []map[string]any{
						{"kind": "t1", "data": map[string]any{
							"id": "c2", "author": "bob", "body": "agreed",
							"score": 3, "created_utc": 1700000200, "parent_id": "t1_c1",
						}},
					}}},
				}},
				{"kind": "more", "data": map[string]any{}},
			}}},
		})
	})

	comments, err := c.FetchComments(context.Background(), "abc123")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, "c1", comments[0].ID)
	require.Equal(t, "c2", comments[1].ID)
	require.Equal(t, "t1_c1", comments[1].ParentID)
}

func TestFetchComments_DefaultsMissingAuthorToDeleted(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"data": map[string]any{"children": []map[string]any{}}},
			{"data": map[string]any{"children": []map[string]any{
				{"kind": "t1", "data": map[string]any{
					"id": "c1", "body": "[removed]", "score": 0, "created_utc": 1700000100,
				}},
			}}},
		})
	})

	comments, err := c.FetchComments(context.Background(), "abc123")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.Equal(t, "[deleted]", comments[0].Author)
}

func TestDoJSON_RetriesOnRateLimitThenSucceeds(t *testing.T) {
	attempts := 0
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"children": []map[string]any{
				{"data": map[string]any{"id": "abc123", "subreddit": "realitytv"}},
			}},
		})
	})

	_, err := c.GetSubmission(context.Background(), "abc123")
	require.NoError(t, err)
	require.GreaterOrEqual(t, attempts, 2)
}

func TestGetSubmission_NotFoundWhenNoChildren(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"children": []map[string]any{}},
		})
	})

	_, err := c.GetSubmission(context.Background(), "missing")
	require.Error(t, err)
}
