package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/garage/internal/auth"
	"github.com/ukydev/garage/internal/config"
	"github.com/ukydev/garage/internal/db"
	"github.com/ukydev/garage/internal/events"
	"github.com/ukydev/garage/internal/garage"
	"github.com/ukydev/garage/internal/handlers"
	"github.com/ukydev/garage/internal/metrics"
	"github.com/ukydev/garage/internal/middleware"
	"github.com/ukydev/garage/internal/models"
)

// healthResponse is served on /health.
type healthResponse struct {
	Status           string `json:"status"`
	Garage           string `json:"garage"`
	Vehicles         int    `json:"vehicles"`
	LastPersistError string `json:"last_persist_error,omitempty"`
}

func healthHandler(g *garage.Garage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "healthy", Garage: g.Name(), Vehicles: g.Len()}
		if err := g.LastPersistError(); err != nil {
			resp.Status = "degraded"
			resp.LastPersistError = err.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// newHandler wires the API, health and metrics endpoints. A nil authService
// leaves the API open.
func newHandler(g *garage.Garage, authService *auth.Service, m *metrics.Metrics, logger log.FieldLogger, limiter func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	handlers.Register(mux,
		handlers.NewGarageHandler(g, logger),
		handlers.NewAuthHandler(authService, logger),
		middleware.NewAuthMiddleware(authService),
	)
	mux.HandleFunc("GET /health", healthHandler(g))
	mux.Handle("GET /metrics", m.Handler())

	return middleware.RequestLogger(logger, m)(limiter(mux))
}

func newPublisher(cfg *config.Config, logger log.FieldLogger) events.Publisher {
	if cfg.MQTT.Broker == "" {
		return events.NopPublisher{}
	}
	client, err := events.ConnectMQTT(cfg.MQTT.Broker, "garage-"+uuid.NewString()[:8])
	if err != nil {
		logger.WithError(err).Warn("MQTT unavailable, change events are disabled")
		return events.NopPublisher{}
	}
	logger.WithFields(log.Fields{"broker": cfg.MQTT.Broker, "topic": cfg.MQTT.Topic}).Info("Publishing change events")
	return events.NewMQTTPublisher(client, cfg.MQTT.Topic)
}

func newAuthService(cfg *config.Config, logger log.FieldLogger) (*auth.Service, error) {
	if !cfg.Auth.Enabled {
		logger.Warn("Authentication is disabled, the API is open to anyone who can reach it")
		return nil, nil
	}
	if cfg.DefaultSecret() {
		logger.Warn("JWT_SECRET is not set, using the built-in development secret")
	}
	return auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Operators)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	logger := config.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := config.OpenStore(ctx, cfg)
	if err != nil {
		logger.WithError(err).WithField("store", cfg.Store).Fatal("Failed to open store")
	}
	if closer, ok := store.(db.Closer); ok {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := closer.Close(closeCtx); err != nil {
				logger.WithError(err).Warn("Failed to close store")
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	g := garage.New(store, models.NewRegistry(),
		garage.WithName(cfg.GarageName),
		garage.WithLogger(logger),
		garage.WithPublisher(newPublisher(cfg, logger)),
		garage.WithMetrics(m),
	)
	report := g.Load(ctx)
	logger.WithFields(log.Fields{
		"garage":  g.Name(),
		"store":   cfg.Store,
		"loaded":  report.Loaded,
		"skipped": len(report.Skipped),
	}).Info("Garage ready")

	authService, err := newAuthService(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up authentication")
	}

	proxies, err := cfg.ProxyPrefixes()
	if err != nil {
		logger.WithError(err).Fatal("Invalid trusted proxies")
	}
	limiter := middleware.NewRateLimitMiddleware(proxies...).RateLimit(cfg.RateLimit, 60)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newHandler(g, authService, m, logger, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Graceful shutdown failed")
		}
	}()

	logger.WithField("port", cfg.Port).Info("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("HTTP server failed")
	}
	logger.Info("HTTP server stopped")
}
