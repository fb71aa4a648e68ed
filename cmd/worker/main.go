package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/salonbooking/config"
	"github.com/Domenick1991/salonbooking/internal/bootstrap"
	"github.com/Domenick1991/salonbooking/internal/kafka"
	"github.com/Domenick1991/salonbooking/internal/notify"
	"github.com/Domenick1991/salonbooking/internal/service/reservation"
	"github.com/Domenick1991/salonbooking/internal/telemetry"
	"github.com/Domenick1991/salonbooking/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		telemetry.NewLogger("salonbooking-worker", config.LogConfig{}.SlogLevel()).Error("load config", "err", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(cfg.Telemetry.ServiceName+"-worker", cfg.Log.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required for the worker")
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Worker.ShutdownTimeoutSeconds)*time.Second)
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

	producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
	defer producer.Close()

	// completion events are not awaited by a client, so the worker retries them
	reservationService := reservation.NewReservationService(
		store.Reservations,
		nil,
		producer.WithRetries(cfg.Kafka.PublishRetries),
		cfg.Kafka.ReservationTopic,
		reservation.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		reservation.WithStoreTimeout(cfg.Booking.StoreTimeout()),
		reservation.WithPublishTimeout(cfg.Kafka.PublishTimeout()*time.Duration(cfg.Kafka.PublishRetries+1)),
		reservation.WithLogger(logger),
	)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Kafka.NotificationsTopic != "" {
		notifications := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logger)
		defer notifications.Close()
		sender := notify.NewSender(logger)
		g.Go(func() error {
			return notifications.Consume(ctx, kafka.JSONHandler(logger, worker.NotificationHandler(sender)))
		})
	} else {
		logger.Info("notifications topic not configured; customer messages are disabled")
	}

	completions := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.CompletionsTopic, logger)
	defer completions.Close()
	g.Go(func() error {
		return completions.Consume(ctx, kafka.JSONHandler(logger, worker.CompletionHandler(reservationService, logger)))
	})

	logger.Info("worker started", "completions", cfg.Kafka.CompletionsTopic, "notifications", cfg.Kafka.NotificationsTopic)
	return g.Wait()
}
