// Package nws fetches gridded forecasts from the National Weather Service
// API.
package nws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/lake-telemetry-etl/internal/adapter/fetch"
	"github.com/couchcryptid/lake-telemetry-etl/internal/domain"
)

// Client fetches one gridpoint's raw forecast series.
type Client struct {
	fetcher   *fetch.Client
	baseURL   string
	office    string
	gridX     int
	gridY     int
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a gridpoint client. The NWS API rejects anonymous
// traffic, so userAgent must identify the caller.
func NewClient(baseURL, office string, gridX, gridY int, userAgent string, fetcher *fetch.Client, logger *slog.Logger) *Client {
	return &Client{
		fetcher:   fetcher,
		baseURL:   baseURL,
		office:    office,
		gridX:     gridX,
		gridY:     gridY,
		userAgent: userAgent,
		logger:    logger,
	}
}

// FetchForecast returns the consumed forecast series in gridpoint property
// order. A response missing any of them is malformed and fails whole.
func (c *Client) FetchForecast(ctx context.Context) ([]domain.ForecastSeries, error) {
	fullURL := fmt.Sprintf("%s/gridpoints/%s/%d,%d", c.baseURL, c.office, c.gridX, c.gridY)

	resp, err := c.fetcher.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/geo+json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("gridpoint request: %w", err)
	}
	defer resp.Body.Close()

	var doc gridpointResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode gridpoint response: %w", err)
	}

	series := make([]domain.ForecastSeries, 0, len(domain.ForecastLabels))
	samples := 0
	for _, label := range domain.ForecastLabels {
		raw, ok := doc.Properties[label.Property]
		if !ok {
			return nil, fmt.Errorf("gridpoint response is missing series %q", label.Property)
		}
		var prop gridpointSeries
		if err := json.Unmarshal(raw, &prop); err != nil {
			return nil, fmt.Errorf("decode series %q: %w", label.Property, err)
		}
		series = append(series, domain.ForecastSeries{Feature: label.Feature, Values: prop.Values})
		samples += len(prop.Values)
	}
	c.logger.Debug("gridpoint forecast fetched", "series", len(series), "samples", samples)
	return series, nil
}

// NWS API response types. The properties object mixes forecast series with
// document metadata, so series are picked out by name.

type gridpointResponse struct {
	Properties map[string]json.RawMessage `json:"properties"`
}

type gridpointSeries struct {
	Values []domain.ForecastSample `json:"values"`
}
