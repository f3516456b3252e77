// Command ingestonce performs a single ingestion run and prints the outcome
// body to stdout. It exits 0 when the record was committed and 1 otherwise.
//
// Usage:
//
//	go run ./cmd/ingestonce -station 99280
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/station-telemetry-ingest/internal/app"
	"github.com/couchcryptid/station-telemetry-ingest/internal/config"
	"github.com/couchcryptid/station-telemetry-ingest/internal/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	station := flag.String("station", "", "SMHI station id (defaults to DEFAULT_STATION_ID)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	a := app.New(cfg, logger, metrics)
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := a.Pipeline.Run(ctx, *station)
	out, body := out.MarshalBody()
	fmt.Println(string(body))

	if out.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}
