package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/wagerpool/internal/auth"
	s3blob "github.com/alanyoungcy/wagerpool/internal/blob/s3"
	"github.com/alanyoungcy/wagerpool/internal/cache/redis"
	"github.com/alanyoungcy/wagerpool/internal/config"
	"github.com/alanyoungcy/wagerpool/internal/domain"
	"github.com/alanyoungcy/wagerpool/internal/ledger"
	"github.com/alanyoungcy/wagerpool/internal/notify"
	"github.com/alanyoungcy/wagerpool/internal/pool"
	"github.com/alanyoungcy/wagerpool/internal/service"
	"github.com/alanyoungcy/wagerpool/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Registry *pool.Registry
	Service  *service.MarketService

	// Bus carries serialized pool events between processes.
	Bus domain.SignalBus

	// Stores (nil outside full mode)
	MarketStore domain.MarketStore
	EventStore  domain.EventStore
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	return mode == "full"
}

// needsS3 returns true for modes that require object storage.
func needsS3(mode string) bool {
	return mode == "full"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Asset ledger ---
	// The in-memory ledger backs both run modes; a custody adapter would be
	// wired here instead in a production deployment.
	mem := ledger.NewMemory()
	for addr, amount := range cfg.Pool.SeedBalances {
		if err := mem.Credit(common.HexToAddress(addr), uint64(amount)); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: seed ledger: %w", err)
		}
	}

	// --- Admin allowlist ---
	allow, err := auth.NewAllowlist(cfg.Pool.Admins)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: admin allowlist: %w", err)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	bus := redis.NewEventBus(redisClient)
	deps.Bus = bus
	statsCache := redis.NewStatsCache(redisClient)

	// --- PostgreSQL (only for modes that need persistence) ---
	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pgPool := pgClient.Pool()
		deps.MarketStore = postgres.NewMarketStore(pgPool)
		deps.EventStore = postgres.NewEventStore(pgPool)
	}

	// --- Event sinks ---
	sinks := []domain.EventSink{
		notify.NewLogSink(logger),
		redis.NewBusSink(bus),
	}
	if deps.EventStore != nil {
		sinks = append(sinks, notify.NewStoreSink(deps.EventStore))
	}
	fanout := notify.NewFanout(sinks, cfg.Notify.Events, logger)

	// --- Pool registry ---
	var feeRecipient common.Address
	if cfg.Pool.FeeCollector != "" {
		feeRecipient = common.HexToAddress(cfg.Pool.FeeCollector)
	}
	registry, err := pool.NewRegistry(mem, allow, fanout, logger, pool.Options{
		DefaultFeeBps: cfg.Pool.DefaultFeeBps,
		FeeRecipient:  feeRecipient,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: registry: %w", err)
	}
	deps.Registry = registry

	// --- S3 blob storage (only for modes that need object storage) ---
	var archiver service.MarketArchiver
	if needsS3(mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.EventStore)
	}

	// --- Service ---
	deps.Service = service.NewMarketService(
		registry,
		deps.MarketStore,
		deps.EventStore,
		statsCache,
		archiver,
		logger,
	)

	return deps, cleanup, nil
}
