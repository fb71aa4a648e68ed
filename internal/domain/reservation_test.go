package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/salonbooking/internal/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sato(id string, h, m, minutes int) Reservation {
	return Reservation{
		ID:              id,
		CustomerName:    "Tanaka",
		PhoneNumber:     "090-1234-5678",
		Date:            time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC),
		StartTime:       calendar.NewTimeOfDay(h, m),
		StylistName:     "Sato",
		ServiceMenu:     "cut",
		DurationMinutes: minutes,
		Status:          ReservationStatusScheduled,
	}
}

func TestReservationStatusTransitions(t *testing.T) {
	testCases := []struct {
		from, to ReservationStatus
		want     bool
	}{
		{ReservationStatusScheduled, ReservationStatusCancelled, true},
		{ReservationStatusScheduled, ReservationStatusCompleted, true},
		{ReservationStatusScheduled, ReservationStatusScheduled, false},
		{ReservationStatusCancelled, ReservationStatusScheduled, false},
		{ReservationStatusCancelled, ReservationStatusCompleted, false},
		{ReservationStatusCompleted, ReservationStatusCancelled, false},
		{ReservationStatusCompleted, ReservationStatusScheduled, false},
	}

	for _, tc := range testCases {
		t.Run(tc.from.String()+"->"+tc.to.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestReservationStatusText(t *testing.T) {
	status, err := ParseReservationStatus("Cancelled")
	require.NoError(t, err)
	assert.Equal(t, ReservationStatusCancelled, status)

	_, err = ParseReservationStatus("pending")
	assert.Error(t, err)

	var zero ReservationStatus
	assert.False(t, zero.Valid())
	_, err = zero.MarshalText()
	assert.Error(t, err)

	payload, err := json.Marshal(map[string]ReservationStatus{"status": ReservationStatusScheduled})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"scheduled"}`, string(payload))
}

func TestReservation_Interval(t *testing.T) {
	r := sato("a", 15, 0, 60)
	assert.Equal(t, calendar.NewTimeOfDay(16, 0), r.EndTime())
	assert.Equal(t, SlotKey{Stylist: "Sato", Date: "2025-11-06"}, r.Key())
}

func TestValidateSlot(t *testing.T) {
	assert.NoError(t, ValidateSlot(sato("a", 15, 0, 60)))
	assert.ErrorIs(t, ValidateSlot(sato("a", 15, 0, 0)), ErrValidation)
	assert.ErrorIs(t, ValidateSlot(sato("a", 23, 30, 60)), ErrValidation)

	err := ValidateSlot(sato("a", 15, 0, 1<<58))
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, calendar.ErrPastEndOfDay)
}

func TestReservation_Collides(t *testing.T) {
	booked := sato("a", 15, 0, 60)

	assert.True(t, sato("b", 15, 30, 30).Collides(booked))
	assert.False(t, sato("b", 16, 0, 60).Collides(booked))
	assert.False(t, booked.Collides(booked), "a reservation never collides with itself")

	cancelled := booked
	cancelled.Status = ReservationStatusCancelled
	assert.False(t, sato("b", 15, 0, 60).Collides(cancelled))

	other := sato("b", 15, 0, 60)
	other.StylistName = "Suzuki"
	assert.False(t, other.Collides(booked))
}

func TestChanges(t *testing.T) {
	notes := "bring photos"
	assert.False(t, Changes{Notes: &notes}.TouchesSlot())
	assert.False(t, Changes{Notes: &notes}.Empty())
	assert.True(t, Changes{}.Empty())

	stylist := "Suzuki"
	start := calendar.NewTimeOfDay(10, 0)
	c := Changes{StylistName: &stylist, StartTime: &start, Notes: &notes}
	assert.True(t, c.TouchesSlot())

	updated := c.Apply(sato("a", 15, 0, 60))
	assert.Equal(t, "Suzuki", updated.StylistName)
	assert.Equal(t, start, updated.StartTime)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, "Tanaka", updated.CustomerName)
}

func TestErrorKinds(t *testing.T) {
	verr := &ValidationError{Field: "duration_minutes", Reason: "must be positive", Err: calendar.ErrInvalidDuration}
	assert.ErrorIs(t, verr, ErrValidation)
	assert.ErrorIs(t, verr, calendar.ErrInvalidDuration)

	conflict := NewConflictError(sato("a", 15, 0, 60))
	assert.ErrorIs(t, conflict, ErrConflict)
	assert.Contains(t, conflict.Error(), "15:00 to 16:00")

	cancelled := sato("a", 15, 0, 60)
	cancelled.Status = ReservationStatusCancelled
	err := CheckTransition(cancelled, ReservationStatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.ErrorIs(t, CheckModifiable(cancelled), ErrInvalidStateTransition)
	assert.NoError(t, CheckTransition(sato("b", 9, 0, 60), ReservationStatusCompleted))

	cause := errors.New("connection reset")
	wrapped := Unavailable("insert reservation", cause)
	assert.ErrorIs(t, wrapped, ErrStoreUnavailable)
	assert.ErrorIs(t, wrapped, cause)
}
