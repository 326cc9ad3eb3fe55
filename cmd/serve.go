package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/healthgw/internal/config"
	"github.com/tejusbharadwaj/healthgw/internal/gateway"
	server "github.com/tejusbharadwaj/healthgw/internal/grpc"
	"github.com/tejusbharadwaj/healthgw/internal/scheduler"
)

func loadConfig(path string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(ctx, cfg, logger, registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.WithError(err).Error("Failed to release resources")
		}
	}()

	// History needs storage; leave the interface nil without it.
	var history server.DataRepository
	if a.repo != nil {
		history = a.repo
	}

	svc := server.NewHealthGatewayService(a.gateway, history, a.broadcaster, logger)
	srv, err := server.SetupServer(svc, server.ServerConfig{
		CacheSize:       cfg.Server.CacheSize,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		SubscribeBuffer: cfg.Server.SubscribeBuffer,
	}, logger, registry)
	if err != nil {
		return fmt.Errorf("failed to setup server: %w", err)
	}
	a.late.Set(srv)

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var sched *scheduler.Scheduler
	if cfg.Refresh.Schedule != "" {
		sched = scheduler.NewScheduler(a.gateway, cfg.Refresh.Schedule, cfg.Refresh.Timeout, logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("scheduler error: %w", err)
		}
		defer sched.Stop()
	}

	config.Watch(configPath, func(next *config.Config, err error) {
		if err != nil {
			logger.WithError(err).Warn("Ignoring invalid configuration change")
			return
		}
		if next.Gateway.ReadWindowMonths != cfg.Gateway.ReadWindowMonths {
			if err := a.gateway.SetReadWindow(next.Gateway.ReadWindowMonths); err != nil {
				logger.WithError(err).Warn("Failed to apply read window")
				return
			}
			cfg.Gateway.ReadWindowMonths = next.Gateway.ReadWindowMonths
		}
	})

	errChan := make(chan error, 2)

	go func() {
		logger.WithFields(logrus.Fields{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		}).Info("Starting gRPC server")
		if err := srv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	go func() {
		logger.WithField("port", cfg.Server.MetricsPort).Info("Serving metrics")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	case err = <-errChan:
		logger.WithError(err).Error("Service error")
	}

	// Perform graceful shutdown
	logger.Info("Gracefully stopping server...")
	srv.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := metricsSrv.Shutdown(shutdownCtx); serr != nil {
		logger.WithError(serr).Warn("Metrics server shutdown failed")
	}
	logger.Info("Server stopped")

	return err
}

func runRefresh(ctx context.Context, configPath string, out io.Writer) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Refresh.Timeout)
	defer cancel()

	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.gateway.Refresh(ctx)
	if errors.Is(err, gateway.ErrPermissionPending) {
		// The cycle issued a permission request; one retry picks up an
		// immediate grant.
		logger.WithError(err).Info("Retrying after permission request")
		res, err = a.gateway.Refresh(ctx)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Series())
}
