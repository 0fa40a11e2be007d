package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/fashion-storefront/internal/auth"
	"github.com/vasiliy-maslov/fashion-storefront/internal/cart"
	"github.com/vasiliy-maslov/fashion-storefront/internal/catalog"
	"github.com/vasiliy-maslov/fashion-storefront/internal/config"
	"github.com/vasiliy-maslov/fashion-storefront/internal/dashboard"
	"github.com/vasiliy-maslov/fashion-storefront/internal/db"
	"github.com/vasiliy-maslov/fashion-storefront/internal/events"
	storefrontHttp "github.com/vasiliy-maslov/fashion-storefront/internal/handler/http"
	"github.com/vasiliy-maslov/fashion-storefront/internal/idempotency"
	"github.com/vasiliy-maslov/fashion-storefront/internal/order"
	"github.com/vasiliy-maslov/fashion-storefront/internal/review"
	"github.com/vasiliy-maslov/fashion-storefront/internal/shipping"
	"github.com/vasiliy-maslov/fashion-storefront/internal/user"
)

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", "storefront").Logger()
}

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.App)

	log.Info().Str("env", cfg.App.Env).Msg("Storefront starting...")

	ctx := context.Background()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if err := db.ApplyMigrations(pg.Pool, cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Kafka writer")
			}
		}()
		publisher = kafkaPublisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Order events go to Kafka")
	}

	var keys idempotency.Store = idempotency.NopStore{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, idempotency keys will be skipped until it recovers")
		}
		keys = idempotency.NewRedisStore(rdb, cfg.Redis.IdempotencyTTL)
	}

	userRepository := user.NewRepository(pg.Pool)
	shippingSvc := shipping.NewService(shipping.NewRepository(pg.Pool), cfg.Shop.ShippingFee)
	reviewSvc := review.NewService(review.NewRepository(pg.Pool))
	orderSvc := order.NewService(order.NewRepository(pg.Pool), userRepository, shippingSvc, publisher, keys)

	sqlxDB := pg.SQLX()
	defer sqlxDB.Close()

	limiter := storefrontHttp.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	router := storefrontHttp.NewRouter(storefrontHttp.Handlers{
		Cart:      storefrontHttp.NewCartHandler(cart.NewService(cart.NewRepository(pg.Pool))),
		Orders:    storefrontHttp.NewOrderHandler(orderSvc, limiter),
		Reviews:   storefrontHttp.NewReviewHandler(reviewSvc, limiter),
		Catalog:   storefrontHttp.NewCatalogHandler(catalog.NewService(catalog.NewRepository(pg.Pool), cfg.Shop.FeaturedLimit), reviewSvc),
		Users:     storefrontHttp.NewUserHandler(user.NewService(userRepository)),
		Shipping:  storefrontHttp.NewShippingHandler(shippingSvc),
		Dashboard: storefrontHttp.NewDashboardHandler(dashboard.NewService(dashboard.NewRepository(sqlxDB))),
	}, auth.NewVerifier(cfg.Auth.JWTSecret))

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Storefront stopped gracefully")
}
