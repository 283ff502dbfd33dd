/**
 * @description
 * This is the main entry point for the proximity-service. It loads configuration, connects
 * to PostgreSQL, selects the live session store, wires the matching engine, the live
 * tracker and its notification dispatcher, starts the location event consumer and the
 * idle sweep scheduler, and serves the HTTP API until SIGINT/SIGTERM.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Shared live session store.
 * - github.com/prometheus/client_golang: Metrics registry.
 * - internal/*: The service packages.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/transfa/proximity-service/internal/api"
	"github.com/transfa/proximity-service/internal/app"
	"github.com/transfa/proximity-service/internal/config"
	"github.com/transfa/proximity-service/internal/metrics"
	"github.com/transfa/proximity-service/internal/proximity"
	"github.com/transfa/proximity-service/internal/store"
	"github.com/transfa/proximity-service/pkg/rabbitmq"
)

const locationEventPrefetch = 50

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; relying on environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	log.Printf("level=info component=bootstrap msg=\"starting proximity-service\" port=%s session_store=%s", cfg.ServerPort, cfg.SessionStore)

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to prevent conflicts behind pgbouncer.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	repository := store.NewPostgresRepository(dbpool)

	sessions, closeSessions := newSessionStore(cfg)
	defer closeSessions()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	proximityMetrics, err := metrics.NewProximityMetrics(registry)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"metrics registration failed\" err=%v", err)
	}

	// Matching engine.
	classifier := proximity.NewClassifier(proximity.ParseAccountKind(cfg.AmbiguousAccountPolicy))
	matcher := proximity.NewMatcher(
		proximity.NewSearcher(repository),
		proximity.NewSuggestionExtractor(classifier),
		proximity.Options{
			ExactRadiusMeters:  cfg.ExactMatchRadiusMeters,
			NearbyRadiusMeters: cfg.NearbyRadiusMeters,
			MaxRadiusMeters:    cfg.MaxRadiusMeters,
			NearbyLimit:        cfg.NearbyLimit,
			MinConfidence:      cfg.MinConfidence,
			TieWindowMeters:    cfg.TieWindowMeters,
		},
	)

	var publisher rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; notifications disabled\" err=%v", err)
		publisher = &rabbitmq.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		publisher = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	tracker := app.NewTracker(
		sessions,
		matcher,
		repository,
		app.NewEventDispatcher(publisher, app.EventsExchange),
		proximityMetrics,
		app.TrackerOptions{
			TrackingRadiusMeters: cfg.TrackingRadiusMeters,
			TrackingLimit:        cfg.TrackingLimit,
			Cooldown:             time.Duration(cfg.NotificationCooldownHours) * time.Hour,
		},
	)
	service := app.NewService(repository, matcher, tracker, proximityMetrics)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// The realtime gateway streams positions over RabbitMQ; HTTP updates work without it.
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; location stream disabled\" err=%v", err)
	} else {
		defer consumer.Close()
		locationConsumer := app.NewLocationEventConsumer(tracker)
		if err := consumer.ConsumeWithBindings(rootCtx, app.EventsExchange, cfg.LocationEventQueue, locationEventPrefetch, locationConsumer.Bindings()); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"location consumer start failed\" err=%v", err)
		}
		log.Printf("level=info component=bootstrap msg=\"location consumer started\" queue=%s", cfg.LocationEventQueue)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	sweeper := app.NewSweeper(sessions, proximityMetrics, logger, time.Duration(cfg.IdleTimeoutSeconds)*time.Second)
	scheduler := app.NewScheduler(sweeper, logger, cfg.SweepSchedule)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"idle sweep scheduler start failed\" err=%v", err)
	}

	if strings.TrimSpace(cfg.ClerkJWKSURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"clerk jwks url missing; authenticated routes will reject every request\" env=CLERK_JWKS_URL")
	}
	handlers := api.NewProximityHandlers(service)
	router := api.ProximityRoutes(handlers, api.RouterOptions{
		Auth:           api.ClerkAuthMiddleware(api.NewJWKSKeySource(cfg.ClerkJWKSURL, time.Hour)),
		Gatherer:       registry,
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	cancelRoot()
	<-scheduler.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}

// newSessionStore returns the configured live session store. A redis store that cannot be
// reached degrades to the in-process store so the service still boots.
func newSessionStore(cfg config.Config) (store.SessionStore, func()) {
	noop := func() {}
	if cfg.SessionStore != config.SessionStoreRedis {
		return store.NewMemorySessionStore(), noop
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; using in-memory session store\" env=REDIS_URL")
		return store.NewMemorySessionStore(), noop
	}

	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; using in-memory session store\" err=%v", err)
		return store.NewMemorySessionStore(), noop
	}
	redisClient := redis.NewClient(redisOptions)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using in-memory session store\" err=%v", err)
		redisClient.Close()
		return store.NewMemorySessionStore(), noop
	}

	log.Println("level=info component=bootstrap msg=\"redis connected\"")
	return store.NewRedisSessionStore(redisClient, cfg.SessionKeyPrefix), func() { redisClient.Close() }
}
