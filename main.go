package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/wevote/wevote-server/analytics"
	"github.com/wevote/wevote-server/cache"
	"github.com/wevote/wevote-server/cliparse"
	"github.com/wevote/wevote-server/db"
	"github.com/wevote/wevote-server/handlers"
	"github.com/wevote/wevote-server/logging"
	"github.com/wevote/wevote-server/metrics"
	"github.com/wevote/wevote-server/middleware"
	"github.com/wevote/wevote-server/outbound"
	"github.com/wevote/wevote-server/router"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logger)

	ctx := context.Background()

	// Connect to the database
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	links, err := cache.New(ctx, cfg)
	if err != nil {
		slog.Error("device link cache unavailable", "error", err, "backend", cfg.CacheBackend)
		os.Exit(1)
	}
	defer links.Close()

	apiMetrics := metrics.NewAPIMetrics("wevote")
	publisher := analytics.New(cfg, func(error) { apiMetrics.AnalyticsErrors.Inc() })
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("analytics publisher close failed", "error", err)
		}
	}()

	deps := handlers.Deps{
		DB:        dbConn,
		Config:    cfg,
		Cache:     links,
		Email:     outbound.NewEmailSender(cfg.SMTP),
		SMS:       outbound.LogSender{},
		Analytics: publisher,
		Metrics:   apiMetrics,
	}

	// Create router
	mux := router.NewRouter(deps)

	// Create server
	server := http.Server{
		Handler:           middleware.CORS(cfg.AllowedOrigins)(mux),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-stop
		slog.Info("Shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}
}
