package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/salonbooking/config"
	"github.com/Domenick1991/salonbooking/internal/bootstrap"
	"github.com/Domenick1991/salonbooking/internal/cache"
	"github.com/Domenick1991/salonbooking/internal/kafka"
	"github.com/Domenick1991/salonbooking/internal/service/reservation"
	"github.com/Domenick1991/salonbooking/internal/telemetry"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		telemetry.NewLogger("salonbooking", config.LogConfig{}.SlogLevel()).Error("load config", "err", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(cfg.Telemetry.ServiceName, cfg.Log.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flush traces", "err", err)
		}
	}()

	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	hours, err := cfg.Booking.BusinessHours.Hours()
	if err != nil {
		return err
	}

	checks := []bootstrap.ReadinessCheck{{Name: "store", Check: store.Reservations.Ping}}

	var idempotency reservation.IdempotencyCache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis)
		defer redisCache.Close()
		idempotency = redisCache
		checks = append(checks, bootstrap.ReadinessCheck{Name: "redis", Check: redisCache.Ping})
	}

	var producer reservation.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer kafkaProducer.Close()
		producer = kafkaProducer
		checks = append(checks, bootstrap.ReadinessCheck{Name: "kafka", Check: kafkaProducer.CheckConnection})
	} else {
		logger.Info("kafka brokers not configured; reservation events are not published")
	}

	reservationService := reservation.NewReservationService(
		store.Reservations,
		idempotency,
		producer,
		cfg.Kafka.ReservationTopic,
		reservation.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		reservation.WithBusinessHours(hours),
		reservation.WithStoreTimeout(cfg.Booking.StoreTimeout()),
		reservation.WithPublishTimeout(cfg.Kafka.PublishTimeout()),
		reservation.WithDefaultDuration(cfg.Booking.DefaultDurationMinutes),
		reservation.WithIdempotencyTTL(cfg.Booking.IdempotencyTTL()),
		reservation.WithLogger(logger),
	)

	return bootstrap.Run(ctx, cfg, reservationService, logger, checks...)
}
