// Package main runs the wallet backend HTTP server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/agilewallet/backend/internal/app"
	"github.com/agilewallet/backend/internal/app/httpapi"
	"github.com/agilewallet/backend/internal/config"
	"github.com/agilewallet/backend/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	if v := os.Getenv("CONFIG_PATH"); v != "" && *configPath == "" {
		*configPath = v
	}

	// Missing .env files are fine; environment variables still apply.
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("walletserver").WithError(err).Fatal("load configuration")
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}).WithField("component", "walletserver")

	application, err := app.New(app.Stores{}, app.Config{
		AuthSecret:       cfg.Auth.Secret,
		TokenTTL:         cfg.Auth.TokenTTL,
		RateFeedURL:      cfg.RateFeed.URL,
		RateFeedKey:      cfg.RateFeed.APIKey,
		RateFeedInterval: cfg.RateFeed.Interval,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start application")
	}

	if cfg.SeedDemo {
		if err := application.SeedDemoData(ctx); err != nil {
			log.WithError(err).Fatal("seed demo data")
		}
		log.Info("demo data seeded")
	}

	handler := httpapi.NewHandler(application, httpapi.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         log,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application stop")
	}

	log.Info("stopped")
}
