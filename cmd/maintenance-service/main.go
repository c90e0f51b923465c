package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"maintenance-service/internal/api"
	"maintenance-service/internal/app"
	"maintenance-service/internal/config"
	"maintenance-service/internal/kafka"
	"maintenance-service/internal/logging"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Errorf("Failed to start: %v", err)
		log.Fatalf("Startup failed: %v", err)
	}
	defer a.Close()

	var wg sync.WaitGroup
	a.Driver.Start(ctx, &wg)
	logger.Infof("Sweep scheduler started, interval %s", cfg.Sweep.Interval)

	// Kafka trigger consumer
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer(kafka.Config{
			Broker:  cfg.Kafka.Broker,
			Topic:   cfg.Kafka.TriggerTopic,
			GroupID: cfg.Kafka.GroupID,
		}, a.Driver, logger)
		consumer.Start(ctx, &wg)
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.TriggerTopic)
	}

	// Start API server
	handler := api.NewHandler(a.DB, a.Driver, a.Hub, a.DB, logger)
	srv := &http.Server{
		Addr:    cfg.API.Port,
		Handler: api.NewRouter(handler, logger, cfg.API.BasePath),
	}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Infof("Shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API shutdown failed: %v", err)
	}
	if consumer != nil {
		consumer.Close()
	}
	wg.Wait()
	logger.Infof("Service stopped")
}
