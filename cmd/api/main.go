package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/wellness/internal/api"
	"example.com/wellness/internal/cache"
	"example.com/wellness/internal/catalog"
	"example.com/wellness/internal/config"
	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/gemini"
	"example.com/wellness/internal/jobs"
	"example.com/wellness/internal/logging"
	"example.com/wellness/internal/outbox"
	"example.com/wellness/internal/persistence/postgres"
	"example.com/wellness/internal/storage"
	httptransport "example.com/wellness/internal/transport/http"
	"example.com/wellness/internal/usda"
	"example.com/wellness/pkg/auth"
)

const shutdownGrace = 15 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).Named("api")
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	kv, closeCache := buildCache(ctx, cfg, logger)
	defer closeCache()

	opts := []domain.Option{domain.WithLogger(logger)}
	catalogRepo := buildCatalog(cfg, logger)
	ledger := postgres.NewLedgerRepository(pool)
	mealRepo := postgres.NewMealRepository(pool)
	workoutRepo := postgres.NewWorkoutRepository(pool)
	statsRepo := postgres.NewBodyStatsRepository(pool)

	meals := domain.NewMealService(mealRepo, opts...)
	profiles := domain.NewProfileService(postgres.NewProfileRepository(pool), opts...)
	bookings := domain.NewBookingService(ledger, catalogRepo, opts...)

	deps := domain.NutritionDeps{
		Cache:    kv,
		CacheTTL: cfg.NutrientCacheTTL,
		Meals:    meals,
		Workouts: workoutRepo,
		Profiles: profiles,
	}
	var generator domain.TextGenerator
	if cfg.GeminiAPIKey != "" {
		client := gemini.NewClient(cfg.GeminiBaseURL, cfg.GeminiModel, cfg.GeminiAPIKey, cfg.HTTPTimeout)
		deps.Recognizer = client
		generator = client
	} else {
		logger.Warn("GEMINI_API_KEY not set, recognition falls back and the assistant is disabled")
	}
	if cfg.USDAAPIKey != "" {
		deps.Foods = usda.NewClient(cfg.USDABaseURL, cfg.USDAAPIKey, cfg.HTTPTimeout)
	} else {
		logger.Warn("USDA_API_KEY not set, nutrient lookups are disabled")
	}
	if cfg.Storage.Enabled() {
		photos, err := storage.NewS3PhotoStore(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		deps.Photos = photos
	}

	svc := api.Services{
		Catalog:       domain.NewCatalogService(catalogRepo),
		Bookings:      bookings,
		Wallet:        domain.NewWalletService(ledger, opts...),
		Meals:         meals,
		Nutrition:     domain.NewNutritionService(deps, opts...),
		BodyStats:     domain.NewBodyStatsService(statsRepo, opts...),
		Profiles:      profiles,
		Workouts:      domain.NewWorkoutService(workoutRepo, statsRepo, opts...),
		Achievements:  domain.NewAchievementService(postgres.NewAchievementRepository(pool), opts...),
		Notifications: domain.NewNotificationService(postgres.NewNotificationRepository(pool), opts...),
		Assistant:     domain.NewAssistantService(generator),
	}

	limiter := api.NewRateLimiter(cfg.AIRatePerMinute, cfg.AIBurst)
	if limiter != nil {
		limiter.StartCleanup(ctx, 10*time.Minute)
	}

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()
	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)
	defer func() {
		stop()
		dispatcher.Wait()
	}()

	scheduler := jobs.NewScheduler(logger.Named("jobs"))
	if err := scheduler.AddBookingSweep(cfg.BookingSweepSchedule, bookings); err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		scheduler.Stop(stopCtx)
	}()

	routes := api.NewHandler(svc, limiter, logger).Routes()

	authMiddleware := auth.NewMiddleware(auth.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}, func(r *http.Request) bool { return r.URL.Path == "/healthz" })

	handler := httptransport.Chain(routes,
		logging.RequestLogger(logger),
		httptransport.CORS(cfg.CORSOrigin),
		authMiddleware.Wrap,
	)
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress, cfg.HTTPTimeout), handler)
	metricsServer := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httptransport.Serve(gctx, server, shutdownGrace, logger) })
	g.Go(func() error { return httptransport.Serve(gctx, metricsServer, shutdownGrace, logger) })
	err = g.Wait()
	stop()
	logger.Info("api shutting down")
	return err
}

func buildCatalog(cfg config.Config, logger *zap.Logger) domain.CatalogRepository {
	if cfg.SupabaseURL == "" {
		logger.Warn("SUPABASE_URL not set, serving the built-in demo catalog")
		return catalog.NewInMemoryRepository()
	}
	return catalog.NewSupabaseRepository(catalog.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.HTTPTimeout))
}

func buildCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (domain.Cache, func()) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(), func() {}
	}
	redisCache, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "wellness:")
	if err != nil {
		logger.Warn("redis unavailable, using in-process cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		return cache.NewMemoryCache(), func() {}
	}
	return redisCache, func() { _ = redisCache.Close() }
}
