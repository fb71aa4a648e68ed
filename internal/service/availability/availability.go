package availability

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/Domenick1991/salonbooking/internal/calendar"
	"github.com/Domenick1991/salonbooking/internal/domain"
)

// BusinessHours is the opening template: ordered open intervals per day,
// optionally overridden for specific weekdays. A weekday mapped to an empty
// slice is a closed day.
type BusinessHours struct {
	Default  []calendar.Interval
	Weekdays map[time.Weekday][]calendar.Interval
}

// DefaultBusinessHours opens 09:00-17:00 every day.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		Default: []calendar.Interval{{Start: calendar.NewTimeOfDay(9, 0), End: calendar.NewTimeOfDay(17, 0)}},
	}
}

func (h BusinessHours) For(date time.Time) []calendar.Interval {
	if open, ok := h.Weekdays[date.Weekday()]; ok {
		return open
	}
	return h.Default
}

// Validate requires every day template to be sorted, non-empty per interval
// and non-overlapping.
func (h BusinessHours) Validate() error {
	if err := validateTemplate(h.Default); err != nil {
		return fmt.Errorf("default hours: %w", err)
	}
	for day, open := range h.Weekdays {
		if err := validateTemplate(open); err != nil {
			return fmt.Errorf("%s hours: %w", day, err)
		}
	}
	return nil
}

func validateTemplate(open []calendar.Interval) error {
	for i, iv := range open {
		if iv.Empty() || iv.Start < 0 || iv.End > calendar.EndOfDay {
			return fmt.Errorf("interval %s is empty or outside the day", iv)
		}
		if i > 0 && iv.Start < open[i-1].End {
			return fmt.Errorf("interval %s overlaps or precedes %s", iv, open[i-1])
		}
	}
	return nil
}

// Window is the free-time complement of one stylist's active bookings within
// business hours on one date. It is computed on demand and never stored.
type Window struct {
	Stylist string
	Date    time.Time
	open    []calendar.Interval
	booked  []calendar.Interval
}

// NewWindow keeps only scheduled reservations of the given stylist and date.
func NewWindow(stylist string, date time.Time, hours BusinessHours, reservations []domain.Reservation) *Window {
	date = calendar.DateOnly(date)
	key := domain.SlotKey{Stylist: stylist, Date: calendar.FormatDate(date)}

	booked := make([]calendar.Interval, 0, len(reservations))
	for _, r := range reservations {
		if r.Status.Active() && r.Key() == key {
			booked = append(booked, r.Interval())
		}
	}
	slices.SortFunc(booked, func(a, b calendar.Interval) int {
		if a.Start != b.Start {
			return int(a.Start - b.Start)
		}
		return int(a.End - b.End)
	})

	return &Window{
		Stylist: stylist,
		Date:    date,
		open:    slices.Clone(hours.For(date)),
		booked:  booked,
	}
}

// Booked returns the active intervals sorted by start.
func (w *Window) Booked() []calendar.Interval {
	return slices.Clone(w.booked)
}

// Free yields the free sub-intervals in order. Each call sweeps afresh, so
// the sequence can be ranged over any number of times.
func (w *Window) Free() iter.Seq[calendar.Interval] {
	return func(yield func(calendar.Interval) bool) {
		first := 0
		for _, open := range w.open {
			cursor := open.Start
			for first < len(w.booked) && w.booked[first].End <= open.Start {
				first++
			}
			for _, b := range w.booked[first:] {
				if b.Start >= open.End {
					break
				}
				if b.End <= cursor {
					continue
				}
				if b.Start > cursor {
					if !yield(calendar.Interval{Start: cursor, End: b.Start}) {
						return
					}
				}
				cursor = max(cursor, b.End)
				if cursor >= open.End {
					break
				}
			}
			if cursor < open.End {
				if !yield(calendar.Interval{Start: cursor, End: open.End}) {
					return
				}
			}
		}
	}
}

func (w *Window) FreeIntervals() []calendar.Interval {
	return slices.Collect(w.Free())
}

// StartTimes yields every start time, stepping from each free interval's
// start, at which a booking of durationMinutes fits entirely in free time.
func (w *Window) StartTimes(durationMinutes int, step time.Duration) iter.Seq[calendar.TimeOfDay] {
	return func(yield func(calendar.TimeOfDay) bool) {
		if durationMinutes <= 0 || step < time.Second {
			return
		}
		length := calendar.TimeOfDay(durationMinutes * 60)
		for free := range w.Free() {
			for t := free.Start; t+length <= free.End; t = t.Add(step) {
				if !yield(t) {
					return
				}
			}
		}
	}
}

// Fits reports whether the interval lies entirely in free time.
func (w *Window) Fits(iv calendar.Interval) bool {
	for free := range w.Free() {
		if free.Contains(iv) {
			return true
		}
	}
	return false
}

// FitsAt parses clock and reports whether a booking of durationMinutes
// starting then lies entirely in free time.
func (w *Window) FitsAt(clock string, durationMinutes int) (bool, error) {
	start, err := calendar.ParseTimeOfDay(clock)
	if err != nil {
		return false, &domain.ValidationError{Field: "reservation_time", Reason: err.Error(), Err: err}
	}
	iv, err := calendar.NewInterval(start, durationMinutes)
	if err != nil {
		return false, &domain.ValidationError{Field: "reservation_time", Reason: err.Error(), Err: err}
	}
	return w.Fits(iv), nil
}
