package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	lambdaadapter "github.com/couchcryptid/station-telemetry-ingest/internal/adapter/lambda"
	"github.com/couchcryptid/station-telemetry-ingest/internal/app"
	"github.com/couchcryptid/station-telemetry-ingest/internal/config"
	"github.com/couchcryptid/station-telemetry-ingest/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	a := app.New(cfg, logger, metrics)

	lambda.Start(lambdaadapter.NewHandler(a.Pipeline, logger).Handle)
}
