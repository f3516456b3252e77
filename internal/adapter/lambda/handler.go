package lambda

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/couchcryptid/station-telemetry-ingest/internal/domain"
)

// Runner executes one ingestion run for a station.
type Runner interface {
	Run(ctx context.Context, stationID string) domain.Outcome
}

// Event is the resolver-style invocation payload. An absent stationId selects
// the default station.
type Event struct {
	Arguments struct {
		StationID string `json:"stationId"`
	} `json:"arguments"`
}

// Handler adapts a Runner to the Lambda runtime.
type Handler struct {
	runner Runner
	logger *slog.Logger
}

// NewHandler creates a Lambda handler around runner.
func NewHandler(runner Runner, logger *slog.Logger) *Handler {
	return &Handler{runner: runner, logger: logger}
}

// Handle runs the pipeline and returns the outcome as a status code plus a
// JSON string body. The returned error is always nil; failures are carried in
// the response.
func (h *Handler) Handle(ctx context.Context, event Event) (events.APIGatewayProxyResponse, error) {
	out := h.runner.Run(ctx, event.Arguments.StationID)
	out, body := out.MarshalBody()

	h.logger.Debug("lambda invocation finished", "station_id", event.Arguments.StationID, "status", out.StatusCode)
	return events.APIGatewayProxyResponse{
		StatusCode: out.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}
