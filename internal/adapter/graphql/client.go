package graphql

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/couchcryptid/station-telemetry-ingest/internal/domain"
	"github.com/couchcryptid/station-telemetry-ingest/internal/observability"
)

// Client posts GraphQL operations to an AppSync-style endpoint authenticated
// with an x-api-key header.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a GraphQL client. Queries are retried up to maxRetries
// times on transport failures; mutations are never retried.
func NewClient(endpoint, apiKey string, timeout time.Duration, maxRetries int, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		backoff:    200 * time.Millisecond,
		maxBackoff: 5 * time.Second,
		logger:     logger,
		metrics:    metrics,
	}
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// response keeps errors as encoding/json raw values so they can be carried
// verbatim into domain.ValidationError.
type response struct {
	Data   stdjson.RawMessage   `json:"data"`
	Errors []stdjson.RawMessage `json:"errors"`
}

// transportError is a failure to get a usable answer from the endpoint.
type transportError struct {
	err       error
	retryable bool
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// Query runs a read-only operation, retrying transport failures with
// exponential backoff. A GraphQL error list is returned as
// *domain.ValidationError and is not retried.
func (c *Client) Query(ctx context.Context, op, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}

	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		err = c.do(ctx, op, body, out)

		var te *transportError
		if err == nil || !errors.As(err, &te) || !te.retryable || attempt >= c.maxRetries {
			return err
		}

		c.logger.Warn("graphql query failed, retrying",
			"operation", op,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		c.metrics.BackendRetries.Inc()
		if !sleepWithContext(ctx, backoff) {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		backoff = nextBackoff(backoff, c.maxBackoff)
	}
}

// Mutate runs a write operation exactly once.
func (c *Client) Mutate(ctx context.Context, op, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}
	return c.do(ctx, op, body, out)
}

func (c *Client) do(ctx context.Context, op string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrRequestBuild, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.BackendRequests.WithLabelValues(op, "error").Inc()
		return &transportError{err: fmt.Errorf("%s request: %w", op, err), retryable: ctx.Err() == nil}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.BackendRequests.WithLabelValues(op, "error").Inc()
		return &transportError{err: fmt.Errorf("%s read response: %w", op, err), retryable: true}
	}

	var gqlResp response
	decodeErr := json.Unmarshal(raw, &gqlResp)

	// A GraphQL error list wins over the HTTP status: AppSync reports
	// rejected requests with 4xx codes and a structured body.
	if decodeErr == nil && len(gqlResp.Errors) > 0 {
		c.metrics.BackendRequests.WithLabelValues(op, "rejected").Inc()
		return &domain.ValidationError{Op: op, Errors: gqlResp.Errors}
	}

	if resp.StatusCode != http.StatusOK {
		c.metrics.BackendRequests.WithLabelValues(op, "error").Inc()
		return &transportError{
			err:       fmt.Errorf("%s: backend status %d: %s", op, resp.StatusCode, truncate(raw, 512)),
			retryable: resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	if decodeErr != nil {
		c.metrics.BackendRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("decode %s response: %w", op, decodeErr)
	}

	if out != nil && len(gqlResp.Data) > 0 {
		if err := json.Unmarshal(gqlResp.Data, out); err != nil {
			c.metrics.BackendRequests.WithLabelValues(op, "error").Inc()
			return fmt.Errorf("decode %s data: %w", op, err)
		}
	}

	c.metrics.BackendRequests.WithLabelValues(op, "success").Inc()
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
