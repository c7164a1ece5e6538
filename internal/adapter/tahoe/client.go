// Package tahoe fetches raw station reports from the TERC report API.
package tahoe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/lake-telemetry-etl/internal/adapter/fetch"
	"github.com/couchcryptid/lake-telemetry-etl/internal/domain"
)

// Report endpoints, one per station. The API keys stations by a numeric id
// passed alongside the report window.
const (
	buoyEndpoint  = "report/nasa-tb"
	shoreEndpoint = "report/met-uscg2020"
)

// queryDateLayout is the report window format. The API resolves windows at
// day granularity only; callers get whole days back and trim locally.
const queryDateLayout = "20060102"

// Client fetches buoy and shore station reports.
type Client struct {
	fetcher *fetch.Client
	baseURL string
	buoyID  int
	shoreID int
	logger  *slog.Logger
}

// NewClient creates a station report client on top of a resilient fetcher.
func NewClient(baseURL string, buoyID, shoreID int, fetcher *fetch.Client, logger *slog.Logger) *Client {
	return &Client{
		fetcher: fetcher,
		baseURL: baseURL,
		buoyID:  buoyID,
		shoreID: shoreID,
		logger:  logger,
	}
}

// FetchBuoy returns the buoy's raw reports for the days covering [start, end].
func (c *Client) FetchBuoy(ctx context.Context, start, end time.Time) ([]domain.BuoyRecord, error) {
	var records []domain.BuoyRecord
	if err := c.getReports(ctx, buoyEndpoint, c.buoyID, start, end, &records); err != nil {
		return nil, err
	}
	c.logger.Debug("buoy reports fetched", "count", len(records))
	return records, nil
}

// FetchShore returns the shore station's raw reports for the days covering
// [start, end].
func (c *Client) FetchShore(ctx context.Context, start, end time.Time) ([]domain.ShoreRecord, error) {
	var records []domain.ShoreRecord
	if err := c.getReports(ctx, shoreEndpoint, c.shoreID, start, end, &records); err != nil {
		return nil, err
	}
	c.logger.Debug("shore reports fetched", "count", len(records))
	return records, nil
}

func (c *Client) getReports(ctx context.Context, endpoint string, id int, start, end time.Time, out any) error {
	params := url.Values{
		"id":      {strconv.Itoa(id)},
		"rptdate": {start.UTC().Format(queryDateLayout)},
		"rptend":  {end.UTC().Format(queryDateLayout)},
	}
	fullURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	resp, err := c.fetcher.Do(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, fullURL, nil)
	})
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
