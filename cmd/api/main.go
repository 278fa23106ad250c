package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"topic_importer/internal/config"
	"topic_importer/internal/logger"
	"topic_importer/internal/server"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to start server")
	}
	defer srv.Close()

	go func() {
		logger.Log.WithField("addr", srv.HTTP.Addr).Info("server listening")
		if err := srv.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Error("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.HTTP.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server shutdown")
	}
	logger.Log.Info("server exiting")
}
