package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tradewell/exchange-core/internal/bookkeeper"
	"github.com/tradewell/exchange-core/internal/config"
	"github.com/tradewell/exchange-core/internal/database"
	"github.com/tradewell/exchange-core/internal/fees"
	"github.com/tradewell/exchange-core/internal/matching"
	"github.com/tradewell/exchange-core/internal/notification"
	"github.com/tradewell/exchange-core/internal/orderbook"
	"github.com/tradewell/exchange-core/internal/scheduler"
	"github.com/tradewell/exchange-core/pkg/logger"
	"github.com/tradewell/exchange-core/pkg/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:]...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	var cache *redis.Client
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warn("redis not available, proceeding without fee config cache", zap.Error(err))
		} else {
			cache = rdb
		}
	}

	var sink notification.Sink = notification.NewStoreSink(db)
	if cfg.Kafka.Enabled {
		kafkaSink := notification.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer kafkaSink.Close()
		sink = notification.Multi{sink, kafkaSink}
	}

	calc := fees.NewCalculator(fees.NewConfigStore(db, cache, log))
	ledger := bookkeeper.NewService(log, db)
	reader := orderbook.NewReader(db)
	engine := matching.NewEngine(log, db, reader, ledger, calc, sink, cfg.MarketList())

	sched := scheduler.New(log, engine, cfg.Matching.Interval)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)
	log.Info("exchange core running", zap.Int("markets", len(cfg.Markets)))

	<-ctx.Done()
	sched.Stop()
	return nil
}
