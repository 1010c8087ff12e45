package public

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/langowen/oxrbank/deploy/config"
	mwLogger "github.com/langowen/oxrbank/internal/api_service/ports/http/public/middleware/logger"
	"github.com/langowen/oxrbank/internal/entities"
	"github.com/langowen/oxrbank/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Server struct {
	Server  *http.Server
	service Service
}

func NewServer(server *http.Server, service Service) *Server {
	return &Server{
		Server:  server,
		service: service,
	}
}

// NewRouter mounts the rates API on a chi router. m may be nil.
func NewRouter(service Service, m *metrics.Metrics) http.Handler {
	s := NewServer(nil, service)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mwLogger.New())
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
	}

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", s.Health)

	r.Get("/rates", s.GetAllRates)
	r.Get("/rates/{from}/{to}", s.GetRate)
	r.Post("/rates/refresh", s.RefreshRates)

	return r
}

func StartServer(ctx context.Context, service Service, m *metrics.Metrics, cfg *config.Config) <-chan struct{} {
	serverConfig := &http.Server{
		Addr:         ":" + cfg.HTTPServer.Port,
		Handler:      NewRouter(service, m),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	server := NewServer(serverConfig, service)

	doneChan := make(chan struct{})

	go func() {
		if err := server.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to stop server", "error", err)
		}

		close(doneChan)
	}()

	return doneChan
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) GetAllRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rates, err := s.service.FetchAllRates(ctx)
	if err != nil {
		RespondWithError(w, statusFor(err), err.Error())
		return
	}

	RespondWithJSON(w, http.StatusOK, rates)
}

func (s *Server) GetRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from := strings.ToUpper(chi.URLParam(r, "from"))
	to := strings.ToUpper(chi.URLParam(r, "to"))

	rateType, ok := entities.ParseRateType(r.URL.Query().Get("type"))
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "invalid rate type", "expected mid, bid or ask")
		return
	}

	rate, err := s.service.FetchRate(ctx, from, to, rateType)
	if err != nil {
		RespondWithError(w, statusFor(err), err.Error())
		return
	}

	RespondWithJSON(w, http.StatusOK, rate)
}

func (s *Server) RefreshRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rates, err := s.service.Refresh(ctx)
	if err != nil {
		RespondWithError(w, statusFor(err), err.Error())
		return
	}

	RespondWithJSON(w, http.StatusOK, rates)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrNoRate):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrZeroRate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entities.ErrNoCredential),
		errors.Is(err, entities.ErrInvalidCredential),
		errors.Is(err, entities.ErrAccessRestricted),
		errors.Is(err, entities.ErrCredentialInactive),
		errors.Is(err, entities.ErrFetch):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func RespondWithJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func RespondWithError(w http.ResponseWriter, code int, message string, details ...string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)

	errorText := message
	if len(details) > 0 {
		errorText += "\nDetails: " + details[0]
	}

	if _, err := w.Write([]byte(errorText)); err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}
