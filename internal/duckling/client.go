// Package duckling provides a client for a Duckling-style entity extraction
// service, which finds dates, money amounts and bare numbers in free text.
package duckling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kasymbek/spendbot/internal/common"
	"github.com/kasymbek/spendbot/internal/service"
	"github.com/shopspring/decimal"
)

// Dimensions the pipeline cares about.
const (
	DimTime  = "time"
	DimMoney = "amount-of-money"
	DimNum   = "number"
)

// Config holds configuration for the entity parser client.
type Config struct {
	Endpoint string
	Locale   string
	Timeout  time.Duration
}

// Client calls the parse endpoint and implements service.EntityParser.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	locale     string
	retryOpts  service.RetryOptions
}

// NewClient creates a new entity parser client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: parser endpoint is required", common.ErrMissingConfig)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	locale := cfg.Locale
	if locale == "" {
		locale = "en_US"
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		locale:     locale,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// Wire types. Time values come either as a single instant or as a from/to
// interval; money and number values carry a magnitude and an optional unit.
type entity struct {
	Dim    string          `json:"dim"`
	Latent bool            `json:"latent"`
	Value  json.RawMessage `json:"value"`
}

type timeValue struct {
	Type  string     `json:"type"`
	Value string     `json:"value"`
	Grain string     `json:"grain"`
	From  *timePoint `json:"from"`
	To    *timePoint `json:"to"`
}

type timePoint struct {
	Value string `json:"value"`
	Grain string `json:"grain"`
}

type numberValue struct {
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
}

// Parse extracts entities from the text.
func (c *Client) Parse(ctx context.Context, text string) ([]service.Entity, error) {
	var entities []service.Entity

	err := common.WithRetry(ctx, func() error {
		result, err := c.doParse(ctx, text)
		if err != nil {
			c.logger.Warn("entity parse attempt failed", "error", err)
			return &common.RetryableError{Err: err, Retryable: true}
		}
		entities = result
		return nil
	}, c.retryOpts)

	if err != nil {
		return nil, fmt.Errorf("entity extraction failed: %w", err)
	}

	c.logger.Debug("text parsed", "entities", len(entities))

	return entities, nil
}

func (c *Client) doParse(ctx context.Context, text string) ([]service.Entity, error) {
	form := url.Values{}
	form.Set("locale", c.locale)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parser request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("parser returned status %d: %s", resp.StatusCode, payload)
	}

	var raw []entity
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	entities := make([]service.Entity, 0, len(raw))
	for _, e := range raw {
		value, err := decodeValue(e)
		if err != nil {
			// Dimensions we don't understand are skipped, not fatal
			c.logger.Debug("skipping entity", "dim", e.Dim, "error", err)
			continue
		}
		entities = append(entities, service.Entity{
			Dim:    e.Dim,
			Latent: e.Latent,
			Value:  value,
		})
	}

	return entities, nil
}

func decodeValue(e entity) (service.EntityValue, error) {
	switch e.Dim {
	case DimTime:
		var tv timeValue
		if err := json.Unmarshal(e.Value, &tv); err != nil {
			return service.EntityValue{}, fmt.Errorf("bad time value: %w", err)
		}
		return decodeTimeValue(tv)
	case DimMoney, DimNum:
		var nv numberValue
		if err := json.Unmarshal(e.Value, &nv); err != nil {
			return service.EntityValue{}, fmt.Errorf("bad %s value: %w", e.Dim, err)
		}
		return service.EntityValue{Number: nv.Value, Unit: nv.Unit}, nil
	default:
		return service.EntityValue{}, fmt.Errorf("unsupported dimension %q", e.Dim)
	}
}

func decodeTimeValue(tv timeValue) (service.EntityValue, error) {
	if tv.Type == "interval" {
		if tv.From == nil && tv.To == nil {
			return service.EntityValue{}, fmt.Errorf("interval missing endpoints")
		}
		if tv.From == nil || tv.To == nil {
			// Open interval ("since yesterday"): keep the one known
			// endpoint as a plain instant.
			point := tv.From
			if point == nil {
				point = tv.To
			}
			instant, err := parseInstant(point.Value)
			if err != nil {
				return service.EntityValue{}, err
			}
			return service.EntityValue{Instant: instant, Grain: point.Grain}, nil
		}
		from, err := parseInstant(tv.From.Value)
		if err != nil {
			return service.EntityValue{}, err
		}
		to, err := parseInstant(tv.To.Value)
		if err != nil {
			return service.EntityValue{}, err
		}
		return service.EntityValue{From: from, To: to, Grain: tv.From.Grain}, nil
	}

	instant, err := parseInstant(tv.Value)
	if err != nil {
		return service.EntityValue{}, err
	}
	return service.EntityValue{Instant: instant, Grain: tv.Grain}, nil
}

// parseInstant parses the service's ISO-8601 timestamps, which carry
// millisecond precision and a timezone offset.
func parseInstant(value string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02T15:04:05.000-07:00",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable instant %q", value)
}
