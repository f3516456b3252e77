package smhi

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

	"github.com/couchcryptid/station-telemetry-ingest/internal/domain"
)

// Client implements domain.MeasurementSource using the SMHI Open Data
// Meteorological Observations API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	period     string
	logger     *slog.Logger
}

// NewClient creates an SMHI observations client. period is the SMHI period
// name, normally "latest-hour".
func NewClient(baseURL, period string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		period:  period,
		logger:  logger,
	}
}

// LatestSample returns the newest sample of a parameter series for a station.
// ok is false when the series has no samples in the configured period.
func (c *Client) LatestSample(ctx context.Context, parameterID, stationID string) (domain.Sample, bool, error) {
	u := fmt.Sprintf("%s/api/version/latest/parameter/%s/station/%s/period/%s/data.json",
		c.baseURL, url.PathEscape(parameterID), url.PathEscape(stationID), url.PathEscape(c.period))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Sample{}, false, fmt.Errorf("%w: smhi parameter %s: %v", domain.ErrRequestBuild, parameterID, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Sample{}, false, fmt.Errorf("smhi parameter %s request: %w", parameterID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Sample{}, false, fmt.Errorf("smhi API error: parameter %s: status %d: %s", parameterID, resp.StatusCode, body)
	}

	var data response
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.Sample{}, false, fmt.Errorf("decode smhi parameter %s: %w", parameterID, err)
	}

	if len(data.Value) == 0 {
		c.logger.Debug("smhi series empty", "parameter_id", parameterID, "station_id", stationID)
		return domain.Sample{}, false, nil
	}

	// SMHI lists samples oldest first.
	v := data.Value[len(data.Value)-1]
	return domain.Sample{
		Date:    time.UnixMilli(v.Date).UTC(),
		Value:   v.Value,
		Quality: v.Quality,
	}, true, nil
}

// SMHI API response types.

type response struct {
	Value []value `json:"value"`
}

type value struct {
	Date    int64  `json:"date"` // epoch milliseconds
	Value   string `json:"value"`
	Quality string `json:"quality"`
}
