// Package opinionmining implements domain.OpinionMiner against a cloud
// document-level opinion-mining REST API, the confidence-gated fallback.
// Payloads are budgeted by token count before being sent to stay within the
// provider's prompt-size limit.
package opinionmining

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/therealityreport/socializer/internal/domain"
)

// Config configures the Client.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	MaxTokens int
}

// Client is a hand-rolled HTTP client for the cloud opinion-mining provider.
type Client struct {
	cfg      Config
	http     *http.Client
	encoding *tiktoken.Tiktoken
}

// New constructs a Client. Token-budget encoding falls back to a no-op
// truncation pass if the encoder cannot be loaded (offline test envs).
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, encoding: enc}
}

var _ domain.OpinionMiner = (*Client)(nil)

// budget truncates text so its token count stays within MaxTokens.
func (c *Client) budget(text string) string {
	if c.encoding == nil {
		return text
	}
	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= c.cfg.MaxTokens {
		return text
	}
	return c.encoding.Decode(tokens[:c.cfg.MaxTokens])
}

type analyzeRequest struct {
	Documents []string `json:"documents"`
}

type analyzeResponse struct {
	Documents []struct {
		Sentiment  string  `json:"sentiment"`
		Confidence float64 `json:"confidence"`
		Targets    []struct {
			Text       string  `json:"text"`
			Sentiment  string  `json:"sentiment"`
			Confidence float64 `json:"confidence"`
		} `json:"targets"`
	} `json:"documents"`
}

// AnalyzeDocument implements domain.OpinionMiner.
func (c *Client) AnalyzeDocument(ctx domain.Context, text string) (domain.OpinionMiningResult, error) {
	body, err := json.Marshal(analyzeRequest{Documents: []string{c.budget(text)}})
	if err != nil {
		return domain.OpinionMiningResult{}, fmt.Errorf("op=opinionmining.AnalyzeDocument marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/sentiment", bytes.NewReader(body))
	if err != nil {
		return domain.OpinionMiningResult{}, fmt.Errorf("op=opinionmining.AnalyzeDocument request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.OpinionMiningResult{}, fmt.Errorf("op=opinionmining.AnalyzeDocument do: %w: %w", domain.ErrUpstreamTimeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.OpinionMiningResult{}, fmt.Errorf("op=opinionmining.AnalyzeDocument: %w", domain.ErrUpstreamRateLimit)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.OpinionMiningResult{}, fmt.Errorf("op=opinionmining.AnalyzeDocument status=%d: %w", resp.StatusCode, domain.ErrUnavailable)
	}

	var out analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.OpinionMiningResult{}, fmt.Errorf("op=opinionmining.AnalyzeDocument decode: %w", err)
	}
	if len(out.Documents) == 0 {
		return domain.OpinionMiningResult{}, fmt.Errorf("op=opinionmining.AnalyzeDocument: empty response: %w", domain.ErrModelFailure)
	}
	d := out.Documents[0]

	result := domain.OpinionMiningResult{
		Document: domain.NormalizedSentiment{
			Label:      domain.SentimentLabel(d.Sentiment),
			Score:      d.Confidence,
			Confidence: d.Confidence,
			Source:     "opinion_mining",
		},
	}
	for _, t := range d.Targets {
		result.Targets = append(result.Targets, domain.OpinionTarget{
			Text: t.Text,
			Sentiment: domain.NormalizedSentiment{
				Label:      domain.SentimentLabel(t.Sentiment),
				Score:      t.Confidence,
				Confidence: t.Confidence,
				Source:     "opinion_mining",
			},
		})
	}
	return result, nil
}

// Canary implements domain.OpinionMiner's one-shot connectivity check.
func (c *Client) Canary(ctx domain.Context) error {
	_, err := c.AnalyzeDocument(ctx, "connectivity check")
	return err
}
