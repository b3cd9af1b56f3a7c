package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/flenzi/company-service/internal/cache"
	"github.com/flenzi/company-service/internal/config"
	"github.com/flenzi/company-service/internal/domain"
	"github.com/flenzi/company-service/internal/generator"
	companygrpc "github.com/flenzi/company-service/internal/grpc"
	"github.com/flenzi/company-service/internal/handler"
	"github.com/flenzi/company-service/internal/repository"
	"github.com/flenzi/company-service/internal/service"
	"github.com/flenzi/company-service/pkg/database"
	"github.com/flenzi/company-service/pkg/log"
	"github.com/flenzi/company-service/pkg/metrics"
	"github.com/flenzi/company-service/pkg/middleware"
	"github.com/flenzi/company-service/pkg/pubsub"
	"github.com/flenzi/company-service/pkg/uuidv7"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	logger := log.L()

	if err := run(cfg); err != nil {
		logger.Fatal().Err(err).Msg("company-service exited")
	}
	logger.Info().Msg("company-service stopped")
}

func run(cfg *config.Config) error {
	logger := log.L()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	health := map[string]handler.Pinger{"database": pingDB(db)}

	// Cache
	var (
		productCache cache.Cache[domain.Product]
		userCache    cache.Cache[domain.User]
	)
	if cfg.Cache.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()

		productCache = cache.NewRedisCache[domain.Product](client, cfg.Cache.Prefix+":product")
		userCache = cache.NewRedisCache[domain.User](client, cfg.Cache.Prefix+":user")
		health["redis"] = pingRedis(client)
		logger.Info().Str("address", cfg.Redis.Address).Dur("ttl", cfg.Cache.TTL).Msg("redis cache enabled")
	}

	// Events
	bus, err := pubsub.NewPubSub(cfg.Events)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer bus.Close()
	logger.Info().Str("driver", cfg.Events.Driver).Msg("event bus ready")

	// Services
	ids := uuidv7.NewGenerator()
	productService := service.NewProductService(
		repository.NewGormProductRepository(db, ids), productCache, cfg.Cache.TTL, bus,
	)
	userService := service.NewUserService(
		repository.NewGormUserRepository(db, ids), userCache, cfg.Cache.TTL, bus,
	)

	registry, err := generator.NewRegistry(generator.Config{
		NanoIDSize:     cfg.IDs.NanoIDSize,
		NanoIDAlphabet: cfg.IDs.NanoIDAlphabet,
		CUID2Length:    cfg.IDs.CUID2Length,
		MaxBatch:       cfg.IDs.MaxBatch,
	}, ids)
	if err != nil {
		return fmt.Errorf("failed to build id registry: %w", err)
	}

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	routerCfg := handler.RouterConfig{
		Logger:   logger,
		Products: handler.NewProductHandler(productService),
		Users:    handler.NewUserHandler(userService),
		Health:   health,
	}
	var recorder handler.IDRecorder
	if cfg.Metrics.Enabled {
		m := metrics.New(cfg.Metrics.Namespace)
		routerCfg.Metrics = m
		recorder = m
	}
	routerCfg.IDs = handler.NewIDHandler(registry, recorder)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit)
		routerCfg.RateLimiter = limiter
		g.Go(func() error {
			limiter.Sweep(ctx)
			return nil
		})
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// gRPC
	var grpcServer *companygrpc.Server
	if cfg.GRPC.Enabled {
		grpcServer = companygrpc.NewServer(logger)
		checks := make(map[string]companygrpc.Check, len(health))
		for name, ping := range health {
			checks[name] = companygrpc.Check(ping)
		}

		g.Go(func() error {
			return grpcServer.ListenAndServe(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.GRPC.Port))
		})
		g.Go(func() error {
			grpcServer.Watch(ctx, 15*time.Second, checks)
			return nil
		})
	}

	// Shutdown
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if grpcServer != nil {
			grpcServer.Shutdown(shutdownCtx)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func pingDB(db *gorm.DB) handler.Pinger {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func pingRedis(client *redis.Client) handler.Pinger {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
