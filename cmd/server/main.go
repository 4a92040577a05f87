package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/rl1809/nft-marketplace/internal/adapter/events"
	"github.com/rl1809/nft-marketplace/internal/adapter/handler"
	"github.com/rl1809/nft-marketplace/internal/adapter/handler/marketpb"
	"github.com/rl1809/nft-marketplace/internal/adapter/registry"
	"github.com/rl1809/nft-marketplace/internal/adapter/storage"
	"github.com/rl1809/nft-marketplace/internal/adapter/wallet"
	"github.com/rl1809/nft-marketplace/internal/config"
	"github.com/rl1809/nft-marketplace/internal/core/domain"
	"github.com/rl1809/nft-marketplace/internal/core/service"
	"github.com/rl1809/nft-marketplace/internal/metrics"
	"github.com/rl1809/nft-marketplace/internal/port"
)

func main() {
	configPath := flag.String("config", os.Getenv("MARKETPLACE_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		logger.Info("connections closed")
	}()

	// Redis is shared by the redis ledger store and redis idempotency.
	var rdb *redis.Client
	if cfg.Storage.Driver == config.StorageRedis || cfg.Idempotency.Driver == config.StorageRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { rdb.Close() })
		logger.Info("connected to redis", zap.String("addr", cfg.Storage.RedisAddr))
	}

	store, err := openLedgerStore(ctx, cfg, rdb, logger, &closers)
	if err != nil {
		return err
	}

	var idempotency port.IdempotencyRepository
	switch cfg.Idempotency.Driver {
	case config.StorageRedis:
		idempotency = storage.NewRedisAdapter(rdb, cfg.Idempotency.TTL)
	default:
		idempotency = storage.NewMemoryIdempotency(cfg.Idempotency.TTL)
	}

	var publisher port.EventPublisher
	switch cfg.Events.Driver {
	case config.EventsKafka:
		kafkaPublisher := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		closers = append(closers, func() { kafkaPublisher.Close() })
		publisher = kafkaPublisher
		logger.Info("publishing events to kafka",
			zap.Strings("brokers", cfg.Events.KafkaBrokers),
			zap.String("topic", cfg.Events.KafkaTopic),
		)
	default:
		publisher = events.NewLogPublisher(logger)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	operator := domain.NewAccount(cfg.Marketplace.Operator)
	assets := registry.NewMemory()
	payouts := wallet.NewMemory(logger.Named("wallet"))

	marketplace := service.NewMarketplaceService(store, assets, payouts, operator,
		service.WithPublisher(publisher),
		service.WithIdempotency(idempotency),
		service.WithLogger(logger.Named("marketplace")),
		service.WithMetrics(metrics.NewRecorder(promRegistry)),
	)

	// gRPC
	grpcServer := grpc.NewServer()
	marketpb.RegisterMarketplaceServer(grpcServer, handler.NewGRPCHandler(marketplace, logger.Named("grpc")))
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// HTTP
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	routerCfg := handler.RouterConfig{
		Logger:      logger.Named("http"),
		RateLimiter: handler.NewRateLimiter(cfg.HTTP.RateLimit.RPS, cfg.HTTP.RateLimit.Burst),
		Metrics:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	}
	if cfg.Dev.Enabled {
		routerCfg.Dev = handler.NewDevHandler(assets, payouts, operator, logger.Named("dev"))
		logger.Warn("dev routes enabled")
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.NewRouter(handler.NewHTTPHandler(marketplace, logger.Named("http")), routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	return nil
}

func openLedgerStore(ctx context.Context, cfg config.Config, rdb *redis.Client, logger *zap.Logger, closers *[]func()) (port.LedgerStore, error) {
	switch cfg.Storage.Driver {
	case config.StoragePebble:
		store, err := storage.OpenPebbleAdapter(cfg.Storage.PebbleDir)
		if err != nil {
			return nil, fmt.Errorf("open pebble: %w", err)
		}
		*closers = append(*closers, func() { store.Close() })
		logger.Info("opened pebble ledger", zap.String("dir", cfg.Storage.PebbleDir))
		return store, nil

	case config.StorageMySQL:
		db, err := sql.Open("mysql", cfg.Storage.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		*closers = append(*closers, func() { db.Close() })

		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping mysql: %w", err)
		}
		store := storage.NewMySQLAdapter(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		logger.Info("connected to mysql")
		return store, nil

	case config.StorageRedis:
		return storage.NewRedisAdapter(rdb, cfg.Idempotency.TTL), nil

	default:
		logger.Warn("using in-memory ledger, state is lost on restart")
		return storage.NewMemoryAdapter(), nil
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
