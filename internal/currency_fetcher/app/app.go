package fetcherApp

import (
	"context"
	"errors"
	"github.com/langowen/oxrbank/deploy/config"
	"github.com/langowen/oxrbank/internal/currency_fetcher/fetcher"
	"github.com/langowen/oxrbank/internal/metrics"
	"github.com/langowen/oxrbank/internal/setup"
	"github.com/prometheus/client_golang/prometheus"
	"log"
	"log/slog"
	"os"
)

type FetcherApp struct {
	cfg *config.Config
}

func NewFetcherApp(cfg *config.Config) *FetcherApp {
	return &FetcherApp{cfg: cfg}
}

// Start runs the fetcher until ctx is done.
func (f *FetcherApp) Start(ctx context.Context) {
	f.initLogger()
	slog.Info("Logger initialized")

	slog.Info("starting fetcher", "interval", f.cfg.Fetcher.TimeTickers, "cache", f.cfg.Cache.Backend)

	deps := f.initBank(ctx)
	defer deps.Close()
	slog.Info("Bank initialized")

	if err := f.initFetcher(ctx, deps); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func (f *FetcherApp) initLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     f.cfg.Log.SlogLevel(),
		AddSource: false,
	}))
	slog.SetDefault(logger)
}

func (f *FetcherApp) initBank(ctx context.Context) *setup.Dependencies {
	if f.cfg.Cache.Backend == setup.BackendNone {
		log.Fatalln("Fetcher needs a cache backend to save rates into")
	}

	deps, err := setup.NewBank(ctx, f.cfg)
	if err != nil {
		log.Fatalln("Failed to initialize rate bank", "error", err)
	}

	return deps
}

func (f *FetcherApp) initFetcher(ctx context.Context, deps *setup.Dependencies) error {
	var publisher fetcher.RedisStorage
	if deps.Redis != nil {
		publisher = deps.Redis
	}

	fetch := fetcher.NewFetcher(deps.Bank, publisher, metrics.New(prometheus.DefaultRegisterer),
		f.cfg.Fetcher.TimeTickers, f.cfg.Fetcher.Timeout)

	if err := fetch.StartFetcher(ctx); err != nil {
		slog.Error("Failed to fetcher", "error", err)
		return err
	}

	return nil
}
