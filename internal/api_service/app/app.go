package apiApp

import (
	"context"
	"github.com/langowen/oxrbank/deploy/config"
	"github.com/langowen/oxrbank/internal/api_service/adapter/storage/redis"
	"github.com/langowen/oxrbank/internal/api_service/ports/http/public"
	"github.com/langowen/oxrbank/internal/api_service/service"
	"github.com/langowen/oxrbank/internal/metrics"
	"github.com/langowen/oxrbank/internal/setup"
	"github.com/prometheus/client_golang/prometheus"
	redisPack "github.com/redis/go-redis/v9"
	"log"
	"log/slog"
	"os"
)

type ApiApp struct {
	cfg *config.Config
}

func NewApiApp(cfg *config.Config) *ApiApp {
	return &ApiApp{cfg: cfg}
}

func (a *ApiApp) Start(ctx context.Context) <-chan struct{} {
	a.initLogger()
	slog.Info("Logger initialized")

	slog.Info("starting server", "port", a.cfg.HTTPServer.Port, "cache", a.cfg.Cache.Backend)

	deps := a.initBank(ctx)
	slog.Info("Bank initialized")

	appMetrics := metrics.New(prometheus.DefaultRegisterer)

	var listener *redis.Storage
	if deps.Redis != nil {
		listener = a.initRedis(ctx)
		slog.Info("Redis listener initialized")
	}

	apiService := a.initService(deps, listener, appMetrics)
	slog.Info("Service initialized")

	if err := apiService.Load(ctx); err != nil {
		slog.Error("Failed to load rates, serving without them until the next refresh", "error", err)
	}

	go apiService.WatchUpdates(ctx)

	serverDone := public.StartServer(ctx, apiService, appMetrics, a.cfg)
	slog.Info("server started")

	done := make(chan struct{})
	go func() {
		<-serverDone
		if listener != nil {
			if err := listener.Close(); err != nil {
				slog.Error("Failed to close Redis listener", "error", err)
			}
		}
		deps.Close()
		close(done)
	}()

	return done
}

func (a *ApiApp) initLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     a.cfg.Log.SlogLevel(),
		AddSource: false,
	}))
	slog.SetDefault(logger)
}

func (a *ApiApp) initBank(ctx context.Context) *setup.Dependencies {
	deps, err := setup.NewBank(ctx, a.cfg)
	if err != nil {
		log.Fatalln("Failed to initialize rate bank", "error", err)
	}

	return deps
}

// initService hands the listener to the service only when it is set, so the
// service sees a nil interface otherwise.
func (a *ApiApp) initService(deps *setup.Dependencies, listener *redis.Storage, m *metrics.Metrics) *service.Service {
	var updates service.RedisStorage
	if listener != nil {
		updates = listener
	}

	apiService, err := service.NewService(deps.Bank, updates, m)
	if err != nil {
		log.Fatalln("Failed to initialize service rate", "error", err)
	}

	return apiService
}

func (a *ApiApp) initRedis(ctx context.Context) *redis.Storage {
	options := &redisPack.Options{
		Addr:     a.cfg.Redis.Host,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	}

	rdStorage, err := redis.InitStorage(ctx, options)
	if err != nil {
		log.Fatalln("Failed to initialize Redis storage", "error", err)
	}

	return rdStorage
}
