// Package main starts the Advanced AI Backend HTTP server.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/advanced-ai/backend/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := runtime.NewApplication()
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("server failed: %v", err)
	}

	if err := app.Shutdown(context.Background()); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
}
