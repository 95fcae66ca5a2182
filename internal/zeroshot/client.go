// Package zeroshot provides a client for a zero-shot text classification
// endpoint: the text and a candidate label set go in, sum-normalized
// confidence scores come back. Scores are requested fresh on every call;
// nothing is cached between requests.
package zeroshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kasymbek/spendbot/internal/common"
	"github.com/kasymbek/spendbot/internal/model"
	"github.com/kasymbek/spendbot/internal/service"
)

// Config holds configuration for the zero-shot classifier client.
type Config struct {
	Endpoint   string
	APIKey     string
	MaxRetries int
	RetryDelay time.Duration
	RateLimit  int
	Timeout    time.Duration
}

// Client calls the classification endpoint and implements service.Classifier.
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	endpoint    string
	apiKey      string
	retryOpts   service.RetryOptions
}

// NewClient creates a new zero-shot classification client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: classifier endpoint is required", common.ErrMissingConfig)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Client{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}, nil
}

type classifyRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters classifyParameters `json:"parameters"`
}

type classifyParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
}

type classifyResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Classify scores the text against the candidate labels.
func (c *Client) Classify(ctx context.Context, text string, labels []string) (model.LabelScores, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("candidate label set is empty")
	}

	if err := c.rateLimiter.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var scores model.LabelScores

	err := common.WithRetry(ctx, func() error {
		result, err := c.doClassify(ctx, text, labels)
		if err != nil {
			c.logger.Warn("classification attempt failed", "error", err)
			return &common.RetryableError{Err: err, Retryable: true}
		}

		if len(result) == 0 {
			c.logger.Warn("classifier returned no scores")
			return &common.RetryableError{Err: fmt.Errorf("classifier returned no scores"), Retryable: true}
		}

		if err := result.Validate(); err != nil {
			c.logger.Warn("invalid scores from classifier", "error", err)
			return &common.RetryableError{Err: fmt.Errorf("invalid scores: %w", err), Retryable: true}
		}

		scores = result
		return nil
	}, c.retryOpts)

	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	scores.Sort()

	c.logger.Debug("text classified",
		"labels", len(scores),
		"top_label", scores.Top().Label,
		"top_score", scores.Top().Score)

	return scores, nil
}

func (c *Client) doClassify(ctx context.Context, text string, labels []string) (model.LabelScores, error) {
	body, err := json.Marshal(classifyRequest{
		Inputs:     text,
		Parameters: classifyParameters{CandidateLabels: labels},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, common.ErrRateLimit
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, payload)
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Labels) != len(parsed.Scores) {
		return nil, fmt.Errorf("mismatched labels (%d) and scores (%d)", len(parsed.Labels), len(parsed.Scores))
	}

	scores := make(model.LabelScores, len(parsed.Labels))
	for i, label := range parsed.Labels {
		scores[i] = model.LabelScore{Label: label, Score: parsed.Scores[i]}
	}

	return scores, nil
}

// Close stops background goroutines and cleans up resources.
func (c *Client) Close() error {
	if c.rateLimiter != nil {
		c.rateLimiter.Close()
	}
	return nil
}
