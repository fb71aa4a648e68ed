package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/salonbooking/internal/domain"
)

// ReservationRepository is the slot store. It is the only writer of
// reservations, and every mutation is atomic per stylist calendar and date.
type ReservationRepository interface {
	// TryReserve persists candidate as scheduled unless an active reservation
	// on the same stylist and date overlaps it, in which case it returns a
	// *domain.ConflictError. ID, Status and timestamps are filled in.
	TryReserve(ctx context.Context, candidate *domain.Reservation) error
	// TryModify applies changes to a scheduled reservation, re-checking overlap
	// against every other active reservation when the slot moves.
	TryModify(ctx context.Context, id string, changes domain.Changes) (*domain.Reservation, error)
	Cancel(ctx context.Context, id string) (*domain.Reservation, error)
	Complete(ctx context.Context, id string) (*domain.Reservation, error)
	Get(ctx context.Context, id string) (*domain.Reservation, error)
	// ListByPhone and ListByStylistDate return every status in creation order.
	ListByPhone(ctx context.Context, phone string) ([]domain.Reservation, error)
	ListByStylistDate(ctx context.Context, stylist string, date time.Time) ([]domain.Reservation, error)
	Ping(ctx context.Context) error
}
