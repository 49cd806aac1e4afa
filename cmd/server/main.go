package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/trackflow/trackflow/config"
	appmodel "github.com/trackflow/trackflow/internal/app/model"
	apprepository "github.com/trackflow/trackflow/internal/app/repository"
	appserver "github.com/trackflow/trackflow/internal/app/server"
	appservice "github.com/trackflow/trackflow/internal/app/service"
	httpUtil "github.com/trackflow/trackflow/internal/http/util"
	"github.com/trackflow/trackflow/internal/infra/logger"
	infraNATS "github.com/trackflow/trackflow/internal/infra/nats"
	infraPostgres "github.com/trackflow/trackflow/internal/infra/postgres"
	infraPrometheus "github.com/trackflow/trackflow/internal/infra/prometheus"
	infraRedis "github.com/trackflow/trackflow/internal/infra/redis"
	"go.uber.org/zap"
)

const (
	defaultForwardTimeout = 10 * time.Second
	defaultSendTimeout    = 15 * time.Second
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_user", cfg.Postgres.User),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.Offer{},
		&appmodel.OfferSchedule{},
		&appmodel.SmartRule{},
		&appmodel.PromoCode{},
		&appmodel.Partner{},
		&appmodel.Placement{},
		&appmodel.User{},
		&appmodel.Click{},
		&appmodel.FraudSignal{},
		&appmodel.Conversion{},
		&appmodel.PostbackJob{},
		&appmodel.DeliveryLog{},
		&appmodel.InboundPostbackEvent{},
		&appmodel.ForwardedPostbackRecord{},
		&appmodel.PointsTransaction{},
	); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	offerRepo := apprepository.NewOfferRepository(gormDB, pool)
	clickRepo := apprepository.NewClickRepository(gormDB)
	conversionRepo := apprepository.NewConversionRepository(gormDB)
	jobRepo := apprepository.NewPostbackJobRepository(gormDB, pool)
	inboundRepo := apprepository.NewInboundRepository(gormDB)
	userRepo := apprepository.NewUserRepository(gormDB, pool)

	baseURL := cfg.Server.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	blockedURL := cfg.Tracking.BlockedURL
	if blockedURL == "" {
		blockedURL = baseURL + "/blocked"
	}

	velocity := appservice.NewRedisVelocityStore(redisClient)
	scorer := appservice.NewFraudScorer(log, velocity)
	resolver := appservice.NewRuleResolver(log, blockedURL)
	clickService := appservice.NewClickService(log, offerRepo, clickRepo, scorer, resolver, velocity)
	bonus := appservice.NewPromoBonusCalculator(offerRepo)

	dispatcher := appservice.NewDispatcher(log, js, jobRepo, conversionRepo, clickRepo,
		appservice.NewHTTPSender(parseDuration(cfg.Dispatcher.SendTimeout, defaultSendTimeout)),
		appservice.DispatcherConfig{
			SweepInterval: parseDuration(cfg.Dispatcher.SweepInterval, 0),
			SweepBatch:    cfg.Dispatcher.SweepBatch,
			JobLease:      parseDuration(cfg.Dispatcher.JobLease, 0),
		})
	if err := dispatcher.Start(); err != nil {
		log.Fatal("Failed to start postback dispatcher", zap.Error(err))
	}
	defer dispatcher.Stop()

	conversionService := appservice.NewConversionService(log, offerRepo, clickRepo,
		conversionRepo, jobRepo, bonus, dispatcher.Publisher())

	inboundService := appservice.NewInboundService(log, inboundRepo, clickRepo, offerRepo,
		userRepo, conversionService, bonus,
		appservice.NewHTTPSender(parseDuration(cfg.Tracking.ForwardTimeout, defaultForwardTimeout)))

	issuer := appservice.NewLinkIssuer(offerRepo, baseURL)
	offerService := appservice.NewOfferService(offerRepo)

	server := appserver.New(appserver.Dependencies{
		Logger:       log,
		Redis:        redisClient,
		Offers:       offerRepo,
		Clicks:       clickService,
		Resolver:     resolver,
		Conversions:  conversionService,
		Inbound:      inboundService,
		Issuer:       issuer,
		OfferService: offerService,
		Checksum:     httpUtil.NewChecksumSigner([]byte(cfg.Tracking.LegacySecret)),
	})

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	if err := server.Listen(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
