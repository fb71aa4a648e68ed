package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/salonbooking/internal/kafka"
)

// Sender turns reservation events into customer messages. Delivery is a
// structured log line until an SMS gateway is configured.
type Sender struct {
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.ReservationEvent) error {
	text, ok := Message(event)
	if !ok {
		s.logger.DebugContext(ctx, "no notification for event", "type", event.Type, "reservation_id", event.ReservationID)
		return nil
	}
	s.logger.InfoContext(ctx, "send sms",
		"phone_number", event.PhoneNumber,
		"reservation_id", event.ReservationID,
		"type", event.Type,
		"text", text,
	)
	return nil
}

// Message renders the text sent to the customer. Events without a customer
// facing message report false.
func Message(event kafka.ReservationEvent) (string, bool) {
	when := fmt.Sprintf("%s %s-%s", event.ReservationDate, event.StartTime, event.EndTime)
	switch event.Type {
	case kafka.EventReservationCreated:
		return fmt.Sprintf("%s, your %s with %s is booked for %s.", event.CustomerName, event.ServiceMenu, event.StylistName, when), true
	case kafka.EventReservationModified:
		return fmt.Sprintf("%s, your reservation with %s is now %s.", event.CustomerName, event.StylistName, when), true
	case kafka.EventReservationCancelled:
		return fmt.Sprintf("%s, your reservation with %s on %s was cancelled.", event.CustomerName, event.StylistName, when), true
	case kafka.EventReservationCompleted:
		return fmt.Sprintf("Thank you for visiting, %s. We hope to see you again.", event.CustomerName), true
	}
	return "", false
}
