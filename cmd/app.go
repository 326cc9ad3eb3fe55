package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/healthgw/internal/bridge"
	"github.com/tejusbharadwaj/healthgw/internal/config"
	"github.com/tejusbharadwaj/healthgw/internal/database"
	"github.com/tejusbharadwaj/healthgw/internal/events"
	"github.com/tejusbharadwaj/healthgw/internal/gateway"
)

// app holds the components shared by the serve and refresh commands.
type app struct {
	cfg         *config.Config
	logger      *logrus.Logger
	gateway     *gateway.Gateway
	repo        *database.PostgresRepo
	broadcaster *events.Broadcaster
	late        *events.Late
	redis       *redis.Client
}

// newApp wires the bridge, storage, publishers and gateway. reg may be nil
// to skip gateway metrics.
func newApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger, reg prometheus.Registerer) (*app, error) {
	a := &app{
		cfg:         cfg,
		logger:      logger,
		broadcaster: events.NewBroadcaster(logger.WithField("component", "broadcaster")),
		late:        &events.Late{},
	}

	b, err := newBridge(cfg.Bridge, logger)
	if err != nil {
		return nil, err
	}

	var store, remote events.Publisher

	if cfg.Database.Enabled {
		repo, err := database.NewPostgresRepo(cfg.Database.DSN())
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to create repository: %w", err)
		}
		repo.SetMaxConnections(cfg.Database.MaxConnections)
		if err := repo.EnsureSchema(ctx, cfg.Database.Hypertable); err != nil {
			repo.Close()
			b.Close()
			return nil, err
		}
		a.repo = repo
		store = events.NewStoreSink(repo)
	}

	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable at startup")
		}
		remote = events.NewRedisPublisher(a.redis, cfg.Redis.Channel)
	}

	publishers := datasetPublishers(store, a.late, a.broadcaster, remote)
	opts := []gateway.Option{gateway.WithPublisher(publishers)}
	if reg != nil {
		opts = append(opts, gateway.WithMetrics(gateway.NewMetrics(reg)))
	}

	gw, err := gateway.New(b, gateway.Config{
		ReadWindowMonths: cfg.Gateway.ReadWindowMonths,
		Locale:           cfg.Gateway.Locale,
	}, logger, opts...)
	if err != nil {
		a.closeStores()
		b.Close()
		return nil, err
	}
	a.gateway = gw
	return a, nil
}

// datasetPublishers orders the event sinks. Samples are stored, then cached
// History answers are dropped, and only then are subscribers and Redis told.
// Nil sinks are skipped.
func datasetPublishers(store, invalidator, local, remote events.Publisher) events.Multi {
	return events.Multi{store, invalidator, local, remote}
}

func newBridge(cfg config.BridgeConfig, logger *logrus.Logger) (bridge.Invoker, error) {
	switch cfg.Mode {
	case config.BridgeHTTP:
		return bridge.NewHTTPBridge(bridge.HTTPConfig{
			URL:             cfg.URL,
			Timeout:         cfg.Timeout,
			BreakerFailures: cfg.BreakerFailures,
			BreakerCooldown: cfg.BreakerCooldown,
		}, logger.WithField("component", "bridge"))
	case config.BridgeSimulated:
		logger.Warn("Using the simulated health bridge")
		return bridge.NewSimulator(), nil
	}
	return nil, fmt.Errorf("unknown bridge mode %q", cfg.Mode)
}

// Close releases the bridge handle, the database and the Redis client.
func (a *app) Close() error {
	errs := []error{a.gateway.Close()}
	errs = append(errs, a.closeStores())
	return errors.Join(errs...)
}

func (a *app) closeStores() error {
	var errs []error
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
