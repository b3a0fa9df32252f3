package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benx421/smartcards/internal/cache"
	"github.com/benx421/smartcards/internal/config"
	"github.com/benx421/smartcards/internal/db"
	"github.com/benx421/smartcards/internal/events"
	"github.com/benx421/smartcards/internal/handlers"
	"github.com/benx421/smartcards/internal/ledger"
	"github.com/benx421/smartcards/internal/metrics"
	"github.com/benx421/smartcards/internal/middleware"
	"github.com/benx421/smartcards/internal/models"
	"github.com/benx421/smartcards/internal/repository"
	"github.com/benx421/smartcards/internal/service"
	"github.com/benx421/smartcards/internal/session"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// devSigner owns every card on the memory ledger when no wallet is configured.
// It is the first account of the standard local development mnemonic.
var devSigner = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type publisher interface {
	service.PortfolioPublisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting smartcards api",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
		"ledger_backend", cfg.Ledger.Backend,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer l.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	blockTimes, err := openBlockTimes(ctx, cfg, l.ChainID(), logger)
	if err != nil {
		return err
	}

	var (
		snapshots   service.SnapshotRepository
		idempotency middleware.IdempotencyRepository
	)
	if cfg.Database.Enabled {
		database, err := db.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		snapshots = repository.NewSnapshotRepository(database)
		idempotency = repository.NewIdempotencyRepository(database)
	} else {
		logger.Info("database disabled, keeping snapshots and idempotency keys in memory")
		snapshots = repository.NewMemorySnapshotRepository()
		idempotency = repository.NewMemoryIdempotencyRepository()
	}

	var pub publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafkaPublisher(&cfg.Kafka, logger)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Error("failed to close publisher", "error", err)
		}
	}()

	loc, err := cfg.App.Location()
	if err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	portfolios := service.NewPortfolioService(
		service.NewCardEnumerator(l, cfg.Ledger.ProbeCeiling, logger, m),
		service.NewEventFetcher(l, logger, m),
		service.NewTimestampResolver(l, blockTimes, cfg.Ledger.MaxConcurrency, m),
		service.NewAggregator(loc, cfg.Ledger.Decimals),
		m,
		logger,
	)
	cards := service.NewCardService(l, l, cfg.Ledger.Decimals, m, logger)
	tracker := service.NewPortfolioTracker(portfolios, snapshots, pub, m, logger)

	sess := session.New(l.ChainID(), logger)
	changes := sess.Subscribe()
	defer sess.Unsubscribe(changes)
	go tracker.Watch(ctx, changes)

	if cfg.App.WalletAddress != "" {
		wallet := common.HexToAddress(cfg.App.WalletAddress)
		// The watcher seeds the tracker from the persisted snapshot
		if err := sess.Connect(wallet, l.ChainID()); err != nil {
			return fmt.Errorf("failed to connect configured wallet: %w", err)
		}
	}

	units := models.Units{Symbol: cfg.Ledger.UnitSymbol, Decimals: cfg.Ledger.Decimals}
	handler := handlers.NewHandler(portfolios, cards, l, tracker, sess, units, loc, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(handler, idempotency, registry, cfg, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	return nil
}

func openLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Ledger, error) {
	if cfg.Ledger.Backend == config.LedgerBackendMemory {
		signer := devSigner
		if cfg.App.WalletAddress != "" {
			signer = common.HexToAddress(cfg.App.WalletAddress)
		}
		logger.Warn("using in-memory ledger, state is lost on restart", "signer", signer.Hex())
		return ledger.NewMemoryLedger(cfg.Ledger.ChainID, signer), nil
	}

	l, err := ledger.DialEVM(ctx, &cfg.Ledger, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return l, nil
}

func openBlockTimes(ctx context.Context, cfg *config.Config, chainID uint64, logger *slog.Logger) (cache.BlockTimes, error) {
	if cfg.Redis.Addr == "" {
		lru, err := cache.NewLRUBlockTimes(cfg.App.BlockCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to build block time cache: %w", err)
		}
		return lru, nil
	}

	client, err := cache.ConnectRedis(ctx, &cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return cache.NewRedisBlockTimes(client, chainID, cfg.Redis.BlockTTL, logger), nil
}
