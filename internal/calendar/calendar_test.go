package calendar

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	testCases := []struct {
		in   string
		want TimeOfDay
	}{
		{in: "15:00", want: NewTimeOfDay(15, 0)},
		{in: "9:30", want: NewTimeOfDay(9, 30)},
		{in: "09:30:15", want: NewTimeOfDay(9, 30) + 15},
		{in: "7:05:00", want: NewTimeOfDay(7, 5)},
		{in: " 16:00 ", want: NewTimeOfDay(16, 0)},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseTimeOfDay_Invalid(t *testing.T) {
	for _, in := range []string{"", "noon", "25:00", "10:7", "10", "10:00:00:00"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTimeOfDay(in)
			assert.ErrorIs(t, err, ErrInvalidTimeFormat)
		})
	}
}

func TestTimeOfDay_String(t *testing.T) {
	assert.Equal(t, "15:00", NewTimeOfDay(15, 0).String())
	assert.Equal(t, "09:05:30", (NewTimeOfDay(9, 5) + 30).String())
	assert.Equal(t, "15:00:00", NewTimeOfDay(15, 0).Clock())
}

func TestNormalize(t *testing.T) {
	slot, err := Normalize("2025-11-06", "15:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC), slot.Date)
	assert.Equal(t, NewTimeOfDay(15, 0), slot.Start)
	assert.Equal(t, "2025-11-06 15:00", slot.String())

	_, err = Normalize("06/11/2025", "15:00")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)

	_, err = Normalize("2025-11-06", "3pm")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestSlot_Interval(t *testing.T) {
	slot := Slot{Date: time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC), Start: NewTimeOfDay(15, 0)}

	iv, err := slot.Interval(60)
	require.NoError(t, err)
	assert.Equal(t, Interval{Start: NewTimeOfDay(15, 0), End: NewTimeOfDay(16, 0)}, iv)
	assert.Equal(t, time.Hour, iv.Duration())

	_, err = slot.Interval(0)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = slot.Interval(-30)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestNewInterval_PastEndOfDay(t *testing.T) {
	_, err := NewInterval(NewTimeOfDay(23, 30), 60)
	assert.ErrorIs(t, err, ErrPastEndOfDay)

	iv, err := NewInterval(NewTimeOfDay(23, 0), 60)
	require.NoError(t, err)
	assert.Equal(t, EndOfDay, iv.End)
}

func TestNewInterval_HugeDuration(t *testing.T) {
	for _, minutes := range []int{1 << 58, math.MaxInt, math.MaxInt / 60, 24*60 + 1} {
		_, err := NewInterval(NewTimeOfDay(15, 0), minutes)
		assert.ErrorIs(t, err, ErrPastEndOfDay, "duration %d", minutes)
	}

	iv, err := NewInterval(0, 24*60)
	require.NoError(t, err)
	assert.Equal(t, EndOfDay, iv.End)

	_, err = NewInterval(NewTimeOfDay(23, 59)+30, 1)
	assert.ErrorIs(t, err, ErrPastEndOfDay)
}

func TestOverlaps(t *testing.T) {
	at := func(h, m int) TimeOfDay { return NewTimeOfDay(h, m) }
	base := Interval{Start: at(15, 0), End: at(16, 0)}

	testCases := []struct {
		name  string
		other Interval
		want  bool
	}{
		{name: "inside", other: Interval{Start: at(15, 30), End: at(16, 0)}, want: true},
		{name: "straddles start", other: Interval{Start: at(14, 30), End: at(15, 1)}, want: true},
		{name: "covers", other: Interval{Start: at(14, 0), End: at(17, 0)}, want: true},
		{name: "touches end", other: Interval{Start: at(16, 0), End: at(17, 0)}, want: false},
		{name: "touches start", other: Interval{Start: at(14, 0), End: at(15, 0)}, want: false},
		{name: "disjoint", other: Interval{Start: at(9, 0), End: at(10, 0)}, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(base, tc.other))
			assert.Equal(t, tc.want, tc.other.Overlaps(base))
		})
	}
}

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("JST", 9*3600)
	in := time.Date(2025, 11, 6, 23, 59, 0, 0, loc)
	assert.Equal(t, "2025-11-06", FormatDate(DateOnly(in)))
}
