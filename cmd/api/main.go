package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/LJTian/MedNewsHub/internal/app"
	"github.com/LJTian/MedNewsHub/internal/config"
	"github.com/LJTian/MedNewsHub/internal/logging"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal("init app failed", zap.Error(err))
	}
	defer a.Close()

	// 每周定时发帖，周期内重叠的触发会被跳过
	s, err := a.Scheduler()
	if err != nil {
		logger.Fatal("init scheduler failed", zap.Error(err))
	}
	s.Start()
	defer s.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exit", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}
