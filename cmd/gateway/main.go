package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/broadcast"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/gateway"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/journal"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/pricing"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/watchlist"
	"github.com/shubham-shewale/stock-ticker/pkg/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Config + Logger
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	clock := clockwork.NewRealClock()

	// 2. Core components
	registry := watchlist.NewRegistry(cfg.Broadcast.DefaultSymbols)
	generator := pricing.NewGenerator(pricing.NewRealRand(time.Now().UnixNano()))
	wsHub := hub.NewHub(registry, logger)

	// 3. Optional sinks
	var sinks []broadcast.Sink
	var closers []io.Closer

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("Redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		store := repository.NewRedisStore(rdb, clock, cfg.Redis.TTL())
		sinks = append(sinks, store)
		closers = append(closers, store)
		logger.Info("Redis mirror enabled", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.Kafka.Enabled {
		dialer := &journal.RealKafkaDialer{Dialer: &kafka.Dialer{Timeout: 5 * time.Second}}
		journal.NewTopicCreator(logger, dialer, clock).Create(context.Background(), cfg.Kafka.Brokers, cfg.Kafka.Topic)

		writer := &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
			Completion:   journal.OnCompletion(logger),
		}
		pub := journal.NewKafkaPublisher(logger, writer, clock)
		sinks = append(sinks, pub)
		closers = append(closers, pub)
		logger.Info("Kafka journal enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	scheduler := broadcast.NewScheduler(registry, generator, wsHub, logger, clock, broadcast.Options{
		Interval:        cfg.Broadcast.PollInterval(),
		EvictAfterTicks: cfg.Broadcast.EvictAfterTicks,
		Sinks:           sinks,
	})

	ctx, cancel := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(schedulerDone)
	}()

	// 4. HTTP server
	srv := &http.Server{Addr: cfg.App.Addr(), Handler: gateway.NewRouter(wsHub, logger)}

	go func() {
		logger.Info("Server Started", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	// 5. Wait for Shutdown Signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("Shutdown signal received")

	cancel()
	<-schedulerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	wsHub.Shutdown()

	// Flush sinks after the last tick
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("Error closing sink", zap.Error(err))
		}
	}
	logger.Info("Shutdown Complete")
}
