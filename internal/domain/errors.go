package domain

import (
	"errors"
	"fmt"

	"github.com/Domenick1991/salonbooking/internal/calendar"
)

var (
	// ErrValidation marks malformed or missing input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrConflict marks a requested slot that overlaps an active reservation.
	ErrConflict = errors.New("slot conflict")

	ErrNotFound = errors.New("reservation not found")

	// ErrInvalidStateTransition is returned for operations on a terminal reservation.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrStoreUnavailable marks a timeout or transient persistence failure.
	// Callers may retry; the core never does.
	ErrStoreUnavailable = errors.New("store unavailable")
)

type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ConflictError identifies the active reservation occupying the requested slot.
type ConflictError struct {
	Stylist  string
	Date     string
	Existing calendar.Interval
	// ExistingID may be empty when the collision was detected by the store's
	// constraint and the competing row could not be read back.
	ExistingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("stylist %q is already booked on %s from %s to %s",
		e.Stylist, e.Date, e.Existing.Start, e.Existing.End)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func NewConflictError(existing Reservation) *ConflictError {
	return &ConflictError{
		Stylist:    existing.StylistName,
		Date:       existing.Key().Date,
		Existing:   existing.Interval(),
		ExistingID: existing.ID,
	}
}

type TransitionError struct {
	ID   string
	From ReservationStatus
	To   ReservationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("reservation %s cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// CheckTransition validates a status change of r to next.
func CheckTransition(r Reservation, next ReservationStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return &TransitionError{ID: r.ID, From: r.Status, To: next}
	}
	return nil
}

// CheckModifiable rejects in-place edits of a terminal reservation.
func CheckModifiable(r Reservation) error {
	if !r.Status.Active() {
		return &TransitionError{ID: r.ID, From: r.Status, To: ReservationStatusScheduled}
	}
	return nil
}

func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
