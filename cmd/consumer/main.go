package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/wellness/internal/cache"
	"example.com/wellness/internal/config"
	"example.com/wellness/internal/consumer"
	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/logging"
	"example.com/wellness/internal/persistence/postgres"
	httptransport "example.com/wellness/internal/transport/http"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).Named("consumer")
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	claimer, closeClaimer := buildClaimer(ctx, cfg, logger)
	defer closeClaimer()

	opts := []domain.Option{domain.WithLogger(logger)}
	achievements := domain.NewAchievementService(postgres.NewAchievementRepository(pool), opts...)
	notifications := domain.NewNotificationService(postgres.NewNotificationRepository(pool), opts...)

	handler := consumer.Chain(
		consumer.NewEventLogHandler(pool),
		consumer.Idempotent("achievements", consumer.NewAchievementHandler(achievements, logger), claimer, consumer.DefaultClaimTTL, logger),
		consumer.Idempotent("notifications", consumer.NewNotificationHandler(notifications), claimer, consumer.DefaultClaimTTL, logger),
	)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := httptransport.Serve(ctx, metricsSrv, 10*time.Second, logger); err != nil {
			logger.Error("metrics server", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger.With(zap.String("topic", topic))))

		wg.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			logger.Info("consumer started", zap.String("topic", topic), zap.String("group", cfg.ConsumerGroupID))
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", zap.String("topic", topic), zap.Error(err))
			}
		}(topic, reader)
	}

	<-ctx.Done()
	logger.Info("consumer shutdown requested")
	wg.Wait()
}

// buildClaimer prefers Redis so claims are shared across replicas.
func buildClaimer(ctx context.Context, cfg config.Config, logger *zap.Logger) (consumer.Claimer, func()) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, event claims are local to this process")
		return cache.NewMemoryCache(), func() {}
	}
	redisCache, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "wellness:")
	if err != nil {
		logger.Warn("redis unavailable, event claims are local to this process", zap.Error(err))
		return cache.NewMemoryCache(), func() {}
	}
	return redisCache, func() { _ = redisCache.Close() }
}
