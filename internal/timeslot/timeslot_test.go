package timeslot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tod, err := Parse("09:30")
	require.NoError(t, err)
	assert.Equal(t, "09:30", tod.String())

	tod, err = Parse("14:00:00")
	require.NoError(t, err)
	assert.Equal(t, "14:00", tod.String())

	_, err = Parse("9 o'clock")
	assert.Error(t, err)

	_, err = Parse("")
	assert.Error(t, err)
}

func TestAddAndCompare(t *testing.T) {
	start := New(11, 30)
	assert.Equal(t, "12:00", start.Add(30).String())
	assert.True(t, start.Before(start.Add(1)))
	assert.False(t, start.Before(start))
	assert.Equal(t, 0, start.Compare(New(11, 30)))
	assert.Equal(t, -1, start.Compare(New(11, 31)))
}

func TestMicrosecondsRoundTrip(t *testing.T) {
	tod := New(16, 45)
	assert.Equal(t, tod, FromMicroseconds(tod.Microseconds()))
}

func TestSlotsMorningWindow(t *testing.T) {
	var got []string
	for s := range Slots(New(9, 0), New(12, 0), 30) {
		got = append(got, s.String())
	}
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}, got)
}

func TestSlotsRestartable(t *testing.T) {
	seq := Slots(New(9, 0), New(10, 0), 30)

	var first, second int
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	assert.Equal(t, 2, first)
	assert.Equal(t, first, second)
}

func TestSlotsEmptyAndInvalid(t *testing.T) {
	count := 0
	for range Slots(New(12, 0), New(9, 0), 30) {
		count++
	}
	assert.Zero(t, count)

	for range Slots(New(9, 0), New(12, 0), 0) {
		count++
	}
	assert.Zero(t, count)
}

func TestWithinBuffer(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	buffer := 20 * time.Minute

	assert.True(t, WithinBuffer(now.Add(10*time.Minute), now, buffer))
	assert.True(t, WithinBuffer(now.Add(-time.Hour), now, buffer))
	assert.False(t, WithinBuffer(now.Add(20*time.Minute), now, buffer))
	assert.False(t, WithinBuffer(now.Add(time.Hour), now, buffer))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-10")
	require.NoError(t, err)
	assert.Equal(t, 2026, d.Year())
	assert.Equal(t, time.February, d.Month())

	_, err = ParseDate("10/02/2026")
	assert.Error(t, err)
}

func TestAt(t *testing.T) {
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	at := New(9, 30).At(date)
	assert.Equal(t, time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC), at)
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 2, 10, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 2, 10, 0, 1, 0, 0, time.UTC)
	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(a, b.AddDate(0, 0, 1)))
}
