package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"medrecords/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Relay the audit outbox and index the audit trail until signalled.
func main() {
	if err := run(); err != nil {
		slog.Error("worker stopped with error", "event", "worker_run_failed", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("worker shutdown close failed", "event", "worker_close_failed", "error", err.Error())
		}
	}()

	return app.Run(ctx)
}
