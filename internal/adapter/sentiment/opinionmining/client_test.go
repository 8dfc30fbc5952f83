package opinionmining

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/therealityreport/socializer/internal/domain"
)

func TestAnalyzeDocument_ParsesDocumentAndTargets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/sentiment", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Documents, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"documents": []map[string]any{
				{
					"sentiment":  "mixed",
					"confidence": 0.7,
					"targets": []map[string]any{
						{"text": "Jane", "sentiment": "positive", "confidence": 0.9},
						{"text": "John", "sentiment": "negative", "confidence": 0.85},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "test-key"})
	result, err := c.AnalyzeDocument(context.Background(), "I love Jane but John is terrible.")
	require.NoError(t, err)
	require.Equal(t, domain.SentimentLabel("mixed"), result.Document.Label)
	require.Len(t, result.Targets, 2)
	require.Equal(t, "Jane", result.Targets[0].Text)
	require.Equal(t, domain.SentimentPositive, result.Targets[0].Sentiment.Label)
}

func TestAnalyzeDocument_TooManyRequestsIsRateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.AnalyzeDocument(context.Background(), "x")
	require.ErrorIs(t, err, domain.ErrUpstreamRateLimit)
}

func TestAnalyzeDocument_EmptyDocumentsIsModelFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"documents": []map[string]any{}})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.AnalyzeDocument(context.Background(), "x")
	require.ErrorIs(t, err, domain.ErrModelFailure)
}

func TestBudget_TruncatesWhenOverMaxTokens(t *testing.T) {
	c := New(Config{BaseURL: "http://example.invalid", MaxTokens: 3})
	if c.encoding == nil {
		t.Skip("tiktoken encoder unavailable in this environment")
	}
	long := strings.Repeat("word ", 50)
	truncated := c.budget(long)
	tokens := c.encoding.Encode(truncated, nil, nil)
	require.LessOrEqual(t, len(tokens), 3)
}

func TestCanary_ReturnsErrorOnUnreachableHost(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:0"})
	err := c.Canary(context.Background())
	require.Error(t, err)
}
