// Package main is the entry point for the supplier-sync server.
package main

import (
	"log/slog"
	"os"

	"github.com/stacklok/supplier-sync/cmd/supplier-sync/app"
	"github.com/stacklok/supplier-sync/internal/config"
	"github.com/stacklok/supplier-sync/internal/logging"
)

func main() {
	// JSON logs go to stderr so that stdout stays clean for commands that
	// print data (e.g. version --format json)
	handler, flush := logging.NewHandler(logging.WithLevel(logging.LevelFromEnv(config.EnvPrefix)))
	slog.SetDefault(slog.New(handler))

	err := app.NewRootCmd().Execute()
	_ = flush()
	if err != nil {
		os.Exit(1)
	}
}
