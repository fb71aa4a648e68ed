package worker

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Domenick1991/salonbooking/internal/domain"
	"github.com/Domenick1991/salonbooking/internal/kafka"
)

// Completer is the part of the reservation service the worker drives.
type Completer interface {
	CompleteReservation(ctx context.Context, id string) (*domain.Reservation, error)
}

// Notifier delivers customer-facing messages for reservation events.
type Notifier interface {
	Send(ctx context.Context, event kafka.ReservationEvent) error
}

// CompletionHandler marks reservations completed. Requests for unknown or
// already finished reservations are logged and acknowledged; only store
// failures are returned so the message is redelivered.
func CompletionHandler(completer Completer, logger *slog.Logger) func(context.Context, kafka.CompletionRequest) error {
	return func(ctx context.Context, req kafka.CompletionRequest) error {
		id := strings.TrimSpace(req.ReservationID)
		if id == "" {
			logger.WarnContext(ctx, "completion request without reservation id")
			return nil
		}

		res, err := completer.CompleteReservation(ctx, id)
		switch {
		case err == nil:
			logger.InfoContext(ctx, "reservation completed", "reservation_id", res.ID, "stylist", res.StylistName)
			return nil
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidStateTransition):
			logger.WarnContext(ctx, "completion request ignored", "reservation_id", id, "err", err)
			return nil
		default:
			return err
		}
	}
}

// NotificationHandler forwards events to the notifier.
func NotificationHandler(notifier Notifier) func(context.Context, kafka.ReservationEvent) error {
	return notifier.Send
}
