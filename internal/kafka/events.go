package kafka

import (
	"time"

	"github.com/Domenick1991/salonbooking/internal/calendar"
	"github.com/Domenick1991/salonbooking/internal/domain"
)

const (
	EventReservationCreated   = "reservation.created"
	EventReservationModified  = "reservation.modified"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationCompleted = "reservation.completed"
)

type ReservationEvent struct {
	Type            string    `json:"type"`
	ReservationID   string    `json:"reservation_id"`
	CustomerName    string    `json:"customer_name"`
	PhoneNumber     string    `json:"phone_number"`
	ReservationDate string    `json:"reservation_date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	StylistName     string    `json:"stylist_name"`
	ServiceMenu     string    `json:"service_menu"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func NewReservationEvent(eventType string, r domain.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:            eventType,
		ReservationID:   r.ID,
		CustomerName:    r.CustomerName,
		PhoneNumber:     r.PhoneNumber,
		ReservationDate: calendar.FormatDate(r.Date),
		StartTime:       r.StartTime.String(),
		EndTime:         r.EndTime().String(),
		StylistName:     r.StylistName,
		ServiceMenu:     r.ServiceMenu,
		DurationMinutes: r.DurationMinutes,
		Status:          r.Status.String(),
		OccurredAt:      at.UTC(),
	}
}

// CompletionRequest is posted by the point-of-sale system once a visit is
// paid for.
type CompletionRequest struct {
	ReservationID string `json:"reservation_id"`
}
