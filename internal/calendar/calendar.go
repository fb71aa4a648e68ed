package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"

	// EndOfDay is 24:00, the exclusive upper bound of any interval within a date.
	EndOfDay TimeOfDay = 24 * 60 * 60
)

var (
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidDuration   = errors.New("duration must be positive")
	ErrPastEndOfDay      = errors.New("interval ends after midnight")
)

// TimeOfDay is a wall-clock time expressed in seconds since midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60)
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Second)
}

// String renders HH:MM, or HH:MM:SS when seconds are present.
func (t TimeOfDay) String() string {
	if t.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Clock renders HH:MM:SS, the layout of a SQL time column.
func (t TimeOfDay) Clock() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimeOfDay accepts H:MM, HH:MM, H:MM:SS and HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(parsed.Hour(), parsed.Minute()) + TimeOfDay(parsed.Second()), nil
		}
	}
	return 0, fmt.Errorf("%w: %q is not HH:MM or HH:MM:SS", ErrInvalidTimeFormat, s)
}

// ParseDate parses YYYY-MM-DD into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidTimeFormat, s)
	}
	return d, nil
}

// DateOnly drops the clock part and location of t, keeping its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Slot is a normalized calendar position: a date and a start time on that date.
type Slot struct {
	Date  time.Time
	Start TimeOfDay
}

func Normalize(date, clock string) (Slot, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Slot{}, err
	}
	t, err := ParseTimeOfDay(clock)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Date: d, Start: t}, nil
}

// Interval returns the [start, end) range covered by a booking of durationMinutes.
func (s Slot) Interval(durationMinutes int) (Interval, error) {
	return NewInterval(s.Start, durationMinutes)
}

func (s Slot) String() string {
	return FormatDate(s.Date) + " " + s.Start.String()
}

// Interval is a half-open [Start, End) range within a single day.
type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func NewInterval(start TimeOfDay, durationMinutes int) (Interval, error) {
	if durationMinutes <= 0 {
		return Interval{}, ErrInvalidDuration
	}
	if start < 0 || start >= EndOfDay {
		return Interval{}, fmt.Errorf("%w: start %d is outside the day", ErrInvalidTimeFormat, start)
	}
	// Compare in minutes; durationMinutes*60 can overflow.
	if durationMinutes > int(EndOfDay-start)/60 {
		return Interval{}, ErrPastEndOfDay
	}
	return Interval{Start: start, End: start + TimeOfDay(durationMinutes*60)}, nil
}

func (i Interval) Duration() time.Duration {
	return time.Duration(i.End-i.Start) * time.Second
}

func (i Interval) Empty() bool {
	return i.End <= i.Start
}

func (i Interval) Overlaps(other Interval) bool {
	return Overlaps(i, other)
}

func (i Interval) Contains(other Interval) bool {
	return i.Start <= other.Start && other.End <= i.End
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

// Overlaps uses half-open semantics: touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}
