package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-storefront/internal/analytics"
	analytics_api "ms-storefront/internal/analytics/api"
	"ms-storefront/internal/auth"
	"ms-storefront/internal/config"
	"ms-storefront/internal/database"
	"ms-storefront/internal/database/migrations"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/order"
	"ms-storefront/internal/order/db"
	"ms-storefront/internal/order/order_api"
	rediswrap "ms-storefront/internal/order/redis"
	"ms-storefront/internal/payment/razorpay"
	"ms-storefront/internal/pricing"
	"ms-storefront/internal/pricing/pricing_api"
	"ms-storefront/internal/push"
	"ms-storefront/internal/push/push_api"
	"ms-storefront/internal/rabbitmq"
	"ms-storefront/internal/receipt"
	"ms-storefront/internal/server"
	"ms-storefront/internal/sse"

	"github.com/joho/godotenv"
)

// startEvents wires the configured broker: a publisher for order events and
// a consumer that turns confirmations into push notifications. The returned
// func releases both.
func startEvents(ctx context.Context, cfg *config.Config, dispatcher *push.Dispatcher, log *logger.Logger) (order.EventPublisher, func()) {
	switch cfg.Events.Broker {
	case "kafka":
		topics := []string{cfg.Kafka.Topics.OrderCreated, cfg.Kafka.Topics.OrderConfirmed}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderConfirmed, cfg.Kafka.GroupID, log)
		go func() {
			if err := consumer.Start(ctx, dispatcher.HandleOrderEvent); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Consumer stopped: %v", err))
			}
		}()
		log.Info("KAFKA", fmt.Sprintf("Kafka producer and consumer ready on %v", cfg.Kafka.Brokers))

		return producer, func() {
			_ = consumer.Close()
			_ = producer.Close()
		}

	case "rabbitmq":
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Error("RABBITMQ", fmt.Sprintf("Publisher unavailable, order events disabled: %v", err))
			return nil, func() {}
		}
		consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, log)
		if err != nil {
			log.Error("RABBITMQ", fmt.Sprintf("Consumer unavailable, push triggers disabled: %v", err))
			return publisher, func() { _ = publisher.Close() }
		}
		go func() {
			// fanout delivers every type; HandleOrderEvent ignores all but confirmations
			if err := consumer.Start(ctx, dispatcher.HandleOrderEvent); err != nil {
				log.Error("RABBITMQ", fmt.Sprintf("Consumer stopped: %v", err))
			}
		}()
		log.Info("RABBITMQ", fmt.Sprintf("Publishing to exchange %s", cfg.RabbitMQ.Exchange))

		return publisher, func() {
			_ = consumer.Close()
			_ = publisher.Close()
		}

	default:
		log.Warn("EVENTS", fmt.Sprintf("Event broker %q: order events are not published", cfg.Events.Broker))
		return nil, func() {}
	}
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Service, cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("APP", "Starting Storefront Service initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(cfg.Database.DSN, cfg.Database.MigrationsDir, log)
		if err := runner.Up(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		_ = runner.Close()
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()

	// --- Push ---
	pushStore := push.NewStore(bunDB)
	dispatcher := push.NewDispatcher(pushStore, log)
	worker := push.NewWorker(pushStore, push.NewWebPushTransport(cfg.Push, &http.Client{Timeout: 15 * time.Second}), cfg.Push, log)
	worker.Start(ctx)
	log.Info("PUSH", "Push queue worker started")

	events, closeEvents := startEvents(ctx, cfg, dispatcher, log)
	defer closeEvents()

	// --- Orders ---
	statusEmitter := sse.NewOrderStatusEmitter()
	orderService := order.NewOrderService(
		&db.DB{Bun: bunDB},
		rediswrap.NewRedis(redisClient, cfg.Redis.PaymentLockTTL, log),
		razorpay.NewVerifier(cfg.Razorpay.KeySecret),
		razorpay.NewClient(&http.Client{Timeout: cfg.Razorpay.Timeout}, cfg.Razorpay, log),
		events,
		statusEmitter,
		cfg.Checkout,
		log,
	)

	// --- Pricing & analytics ---
	pricingService := pricing.NewService(
		pricing.NewStore(bunDB),
		pricing.NewRateCache(redisClient, cfg.Pricing.RateCacheTTL),
		cfg.Checkout,
		cfg.Pricing,
		log,
	)
	analyticsService := analytics.NewService(bunDB)

	authn, err := auth.NewAuthenticator(ctx, cfg.Auth, cfg.Push.ServiceKey, auth.NewRedisTokenCache(redisClient), log)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Failed to initialize auth: %v", err))
	}

	if cfg.Receipt.QRSecret == "" {
		log.Warn("CONFIG", "QR_SECRET_KEY is empty, receipt QR routes will answer 500")
	}

	log.Info("HTTP", "Setting up router and middleware")
	router := server.NewRouter(server.Handlers{
		Orders:    order_api.NewHandler(orderService, receipt.NewQRGenerator(cfg.Receipt.QRSecret, cfg.Receipt.QRSize), statusEmitter, log),
		Push:      push_api.NewHandler(dispatcher, pushStore, cfg.Push.VAPIDPublicKey, log),
		Pricing:   pricing_api.NewHandler(pricingService, log),
		Analytics: analytics_api.NewHandler(analyticsService, log),
		Auth:      authn.Middleware,
		Admin:     authn.RequireAdmin,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		// no WriteTimeout: order status streams stay open
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Storefront Service running on %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Storefront Service shutdown complete")
	}
}
