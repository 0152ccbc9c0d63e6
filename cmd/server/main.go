package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fittrainer/pro/internal/api"
	"fittrainer/pro/internal/app"
	"fittrainer/pro/internal/config"
	"fittrainer/pro/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// @title FitTrainer Pro API
// @version 1.0
// @description API for coaches and clients: training plans, workout sessions, progress and invoices.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("could not load config: %s", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.Log.File,
		LogToStdout:   cfg.Log.Stdout,
		LogLevel:      cfg.Log.Level,
		LogFormatJSON: cfg.Log.JSON,
	})
	log.Infof("starting FitTrainer Pro server, store: %s", cfg.Database.Driver)

	if cfg.JWT.Secret == "" {
		log.Fatal(app.ErrMissingJWTSecret)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Stores, services, metrics ---
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init: %s", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Errorf("close: %s", err)
		}
	}()

	// --- Background sweeper ---
	var wg sync.WaitGroup
	if cfg.Sweeper.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Sweeper.Run(ctx)
		}()
		log.Infof("sweeper started, interval %s", cfg.Sweeper.Interval)
	}

	// --- HTTP ---
	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	var gatherer prometheus.Gatherer
	if a.Registry != nil {
		gatherer = a.Registry
	}
	router := api.NewRouter(a.Services, cfg.JWT.Secret, a.Metrics, gatherer)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infof("server listening on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen and serve: %s", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Errorf("server forced to shutdown: %s", err)
	}

	cancel()
	wg.Wait()
	log.Info("server exiting")
}
