package main

import (
	"context"
	"github.com/langowen/oxrbank/deploy/config"
	fetcherApp "github.com/langowen/oxrbank/internal/currency_fetcher/app"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg := config.NewConfig()

	ctx, cancel := context.WithCancel(context.Background())

	app := fetcherApp.NewFetcherApp(cfg)

	stopped := make(chan struct{})
	go func() {
		app.Start(ctx)
		close(stopped)
	}()

	done := make(chan os.Signal, 1)

	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-done:
		slog.Info("Gracefully shutting down")
		cancel()
		<-stopped
	case <-stopped:
		cancel()
	}

	slog.Info("fetcher stopped")
}
