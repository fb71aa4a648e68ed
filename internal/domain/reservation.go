package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/salonbooking/internal/calendar"
)

const DefaultDurationMinutes = 60

type ReservationStatus uint8

// The zero value is deliberately not a valid status.
const (
	ReservationStatusScheduled ReservationStatus = iota + 1
	ReservationStatusCompleted
	ReservationStatusCancelled
)

var statusNames = map[ReservationStatus]string{
	ReservationStatusScheduled: "scheduled",
	ReservationStatusCompleted: "completed",
	ReservationStatusCancelled: "cancelled",
}

func ParseReservationStatus(s string) (ReservationStatus, error) {
	for status, name := range statusNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown reservation status %q", s)
}

func (s ReservationStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ReservationStatus(%d)", uint8(s))
}

func (s ReservationStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Active reports whether the reservation still blocks its slot.
func (s ReservationStatus) Active() bool {
	return s == ReservationStatusScheduled
}

func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusCompleted || s == ReservationStatusCancelled
}

// CanTransitionTo allows only scheduled -> completed and scheduled -> cancelled.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	return s == ReservationStatusScheduled && next.Terminal()
}

func (s ReservationStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", s)
	}
	return []byte(s.String()), nil
}

func (s *ReservationStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseReservationStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type Reservation struct {
	ID              string
	CustomerName    string
	PhoneNumber     string
	Date            time.Time
	StartTime       calendar.TimeOfDay
	StylistName     string
	ServiceMenu     string
	DurationMinutes int
	Status          ReservationStatus
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Interval is derived from StartTime and DurationMinutes and never stored.
func (r Reservation) Interval() calendar.Interval {
	return calendar.Interval{
		Start: r.StartTime,
		End:   r.StartTime + calendar.TimeOfDay(r.DurationMinutes*60),
	}
}

func (r Reservation) EndTime() calendar.TimeOfDay {
	return r.Interval().End
}

func (r Reservation) Key() SlotKey {
	return SlotKey{Stylist: r.StylistName, Date: calendar.FormatDate(r.Date)}
}

// Collides reports whether other is an active reservation on the same
// stylist calendar whose interval overlaps r.
func (r Reservation) Collides(other Reservation) bool {
	return other.ID != r.ID &&
		other.Status.Active() &&
		other.Key() == r.Key() &&
		r.Interval().Overlaps(other.Interval())
}

// SlotKey is the unit of mutual exclusion: one stylist calendar on one date.
type SlotKey struct {
	Stylist string
	Date    string
}

func (k SlotKey) String() string {
	return k.Stylist + "|" + k.Date
}

// Changes is a partial update. Nil fields are left untouched.
// Customer name and phone number are not modifiable.
type Changes struct {
	Date            *time.Time
	StartTime       *calendar.TimeOfDay
	StylistName     *string
	ServiceMenu     *string
	DurationMinutes *int
	Notes           *string
}

// TouchesSlot reports whether the change can move the reservation's interval
// or calendar, which requires a fresh overlap check.
func (c Changes) TouchesSlot() bool {
	return c.Date != nil || c.StartTime != nil || c.StylistName != nil || c.DurationMinutes != nil
}

func (c Changes) Empty() bool {
	return !c.TouchesSlot() && c.ServiceMenu == nil && c.Notes == nil
}

func (c Changes) Apply(r Reservation) Reservation {
	if c.Date != nil {
		r.Date = calendar.DateOnly(*c.Date)
	}
	if c.StartTime != nil {
		r.StartTime = *c.StartTime
	}
	if c.StylistName != nil {
		r.StylistName = *c.StylistName
	}
	if c.ServiceMenu != nil {
		r.ServiceMenu = *c.ServiceMenu
	}
	if c.DurationMinutes != nil {
		r.DurationMinutes = *c.DurationMinutes
	}
	if c.Notes != nil {
		r.Notes = *c.Notes
	}
	return r
}

// ValidateSlot checks the fields that define a reservation's interval.
func ValidateSlot(r Reservation) error {
	if r.DurationMinutes <= 0 {
		return &ValidationError{Field: "duration_minutes", Reason: "must be positive", Err: calendar.ErrInvalidDuration}
	}
	if _, err := calendar.NewInterval(r.StartTime, r.DurationMinutes); err != nil {
		return &ValidationError{Field: "reservation_time", Reason: err.Error(), Err: err}
	}
	return nil
}
