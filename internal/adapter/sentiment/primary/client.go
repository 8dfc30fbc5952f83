// Package primary implements domain.SentimentScorer against a configurable
// HTTP inference endpoint serving the fine-tuned primary transformer
// classifier.
package primary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/therealityreport/socializer/internal/domain"
)

// Config configures the Client.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	ModelVersion string
}

// Client is a fixed-timeout http.Client wrapping a single JSON POST
// endpoint, with typed error translation.
type Client struct {
	cfg  Config
	http *http.Client
}

// New constructs a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

var _ domain.SentimentScorer = (*Client)(nil)

type scoreRequest struct {
	Text string `json:"text"`
}

type scoreResponse struct {
	Label  string             `json:"label"`
	Score  float64            `json:"score"`
	Margin float64            `json:"margin"`
	Probs  map[string]float64 `json:"probs"`
}

// Score implements domain.SentimentScorer.
func (c *Client) Score(ctx domain.Context, text string) (domain.PrimaryPrediction, error) {
	body, err := json.Marshal(scoreRequest{Text: text})
	if err != nil {
		return domain.PrimaryPrediction{}, fmt.Errorf("op=primary.Score marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return domain.PrimaryPrediction{}, fmt.Errorf("op=primary.Score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.PrimaryPrediction{}, fmt.Errorf("op=primary.Score do: %w: %w", domain.ErrUpstreamTimeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.PrimaryPrediction{}, fmt.Errorf("op=primary.Score status=%d: %w", resp.StatusCode, domain.ErrModelFailure)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.PrimaryPrediction{}, fmt.Errorf("op=primary.Score decode: %w", err)
	}

	probs := make(map[domain.SentimentLabel]float64, len(out.Probs))
	for k, v := range out.Probs {
		probs[domain.SentimentLabel(k)] = v
	}

	return domain.PrimaryPrediction{
		Label:  domain.SentimentLabel(out.Label),
		Score:  out.Score,
		Margin: out.Margin,
		Probs:  probs,
	}, nil
}

// ModelVersion implements domain.SentimentScorer.
func (c *Client) ModelVersion() string { return c.cfg.ModelVersion }
