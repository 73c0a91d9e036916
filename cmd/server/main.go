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

	"github.com/farmlink/api/internal/config"
	"github.com/farmlink/api/internal/database"
	"github.com/farmlink/api/internal/events"
	"github.com/farmlink/api/internal/ratelimit"
	"github.com/farmlink/api/internal/router"
	"github.com/farmlink/api/internal/service"
	"github.com/farmlink/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	radix "github.com/mediocregopher/radix/v3"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	if err := run(cfg); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	zap.L().Info("connected to database")

	hub := ws.NewHub()
	go hub.Run(ctx)

	publishers := events.Multi{hub}
	if cfg.RabbitMQURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.OrderExchange)
		if err != nil {
			return err
		}
		defer amqpPub.Close() //nolint:errcheck
		publishers = append(publishers, amqpPub)
		zap.L().Info("publishing order events", zap.String("exchange", cfg.OrderExchange))
	}

	deps := router.Deps{
		Queries: database.New(pool),
		Hub:     hub,
	}

	if cfg.RedisAddr != "" {
		redisPool, err := radix.NewPool("tcp", cfg.RedisAddr, 10)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisPool.Close() //nolint:errcheck
		deps.Limiter = ratelimit.NewRedisLimiter(redisPool, cfg.CheckoutRateLimit, cfg.CheckoutRateWindow)
		zap.L().Info("checkout rate limiting enabled",
			zap.Int("limit", cfg.CheckoutRateLimit),
			zap.Duration("window", cfg.CheckoutRateWindow),
		)
	}

	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	deps.Orders = service.NewOrderService(pool, newOrderStore, publishers)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
