package reservation

import (
	"strings"

	"github.com/Domenick1991/salonbooking/internal/calendar"
	"github.com/Domenick1991/salonbooking/internal/domain"
)

func validateCreate(input CreateReservationInput, defaultDuration int) (*domain.Reservation, error) {
	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		return nil, domain.NewValidationError("customer_name", "is required")
	}
	phone := strings.TrimSpace(input.PhoneNumber)
	if phone == "" {
		return nil, domain.NewValidationError("phone_number", "is required")
	}
	stylist := strings.TrimSpace(input.StylistName)
	if stylist == "" {
		return nil, domain.NewValidationError("stylist_name", "is required")
	}

	slot, err := normalizeSlot(input.ReservationDate, input.ReservationTime)
	if err != nil {
		return nil, err
	}

	duration := defaultDuration
	if input.DurationMinutes != nil {
		duration = *input.DurationMinutes
	}

	r := &domain.Reservation{
		CustomerName:    name,
		PhoneNumber:     phone,
		Date:            slot.Date,
		StartTime:       slot.Start,
		StylistName:     stylist,
		ServiceMenu:     strings.TrimSpace(input.ServiceMenu),
		DurationMinutes: duration,
		Notes:           input.Notes,
	}
	if err := validateReservation(*r); err != nil {
		return nil, err
	}
	return r, nil
}

// validateChanges parses the supplied fields. Date and time are parsed
// separately so that either one can be changed on its own.
func validateChanges(input ModifyReservationInput) (domain.Changes, error) {
	var changes domain.Changes

	if input.ReservationDate != nil {
		date, err := calendar.ParseDate(*input.ReservationDate)
		if err != nil {
			return changes, &domain.ValidationError{Field: "reservation_date", Reason: err.Error(), Err: err}
		}
		changes.Date = &date
	}
	if input.ReservationTime != nil {
		start, err := calendar.ParseTimeOfDay(*input.ReservationTime)
		if err != nil {
			return changes, &domain.ValidationError{Field: "reservation_time", Reason: err.Error(), Err: err}
		}
		changes.StartTime = &start
	}
	if input.StylistName != nil {
		stylist := strings.TrimSpace(*input.StylistName)
		if stylist == "" {
			return changes, domain.NewValidationError("stylist_name", "must not be empty")
		}
		changes.StylistName = &stylist
	}
	if input.ServiceMenu != nil {
		menu := strings.TrimSpace(*input.ServiceMenu)
		changes.ServiceMenu = &menu
	}
	if input.DurationMinutes != nil {
		if *input.DurationMinutes <= 0 {
			return changes, &domain.ValidationError{Field: "duration_minutes", Reason: "must be positive", Err: calendar.ErrInvalidDuration}
		}
		changes.DurationMinutes = input.DurationMinutes
	}
	changes.Notes = input.Notes

	if changes.Empty() {
		return changes, domain.NewValidationError("reservation", "no modifiable fields supplied")
	}
	return changes, nil
}

func normalizeSlot(date, clock string) (calendar.Slot, error) {
	if _, err := calendar.ParseDate(date); err != nil {
		return calendar.Slot{}, &domain.ValidationError{Field: "reservation_date", Reason: err.Error(), Err: err}
	}
	slot, err := calendar.Normalize(date, clock)
	if err != nil {
		return calendar.Slot{}, &domain.ValidationError{Field: "reservation_time", Reason: err.Error(), Err: err}
	}
	return slot, nil
}

func validateReservation(r domain.Reservation) error {
	if r.StylistName == "" {
		return domain.NewValidationError("stylist_name", "is required")
	}
	return domain.ValidateSlot(r)
}
