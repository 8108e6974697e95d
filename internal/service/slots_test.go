package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/consultlink/api/internal/models"
)

func TestParseClock(t *testing.T) {
	minutes, err := parseClock("09:30")
	require.NoError(t, err)
	require.Equal(t, 570, minutes)

	minutes, err = parseClock("00:00")
	require.NoError(t, err)
	require.Equal(t, 0, minutes)

	for _, invalid := range []string{"24:00", "09:60", "9", "", "ab:cd"} {
		_, err := parseClock(invalid)
		require.Error(t, err, invalid)
	}
}

func TestExpandWindowWholeSlotsOnly(t *testing.T) {
	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	window := models.AvailabilityWindow{
		StartTime:           "09:00",
		EndTime:             "10:00",
		SlotDurationMinutes: 30,
	}

	slots := expandWindow(window, day)
	require.Len(t, slots, 2)
	require.Equal(t, "09:00", slots[0].StartTime)
	require.Equal(t, "09:30", slots[0].EndTime)
	require.Equal(t, "09:30", slots[1].StartTime)
	require.Equal(t, "10:00", slots[1].EndTime)
	require.Equal(t, day.Add(9*time.Hour+30*time.Minute), slots[1].StartsAt)
}

func TestExpandWindowDiscardsRemainder(t *testing.T) {
	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	window := models.AvailabilityWindow{
		StartTime:           "09:00",
		EndTime:             "10:15",
		SlotDurationMinutes: 30,
	}

	// 75 minutes fit only two whole 30-minute slots.
	slots := expandWindow(window, day)
	require.Len(t, slots, 2)
	require.Equal(t, "10:00", slots[1].EndTime)
}

func TestExpandWindowDegenerate(t *testing.T) {
	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	require.Nil(t, expandWindow(models.AvailabilityWindow{StartTime: "10:00", EndTime: "09:00", SlotDurationMinutes: 30}, day))
	require.Nil(t, expandWindow(models.AvailabilityWindow{StartTime: "09:00", EndTime: "10:00", SlotDurationMinutes: 0}, day))
	require.Nil(t, expandWindow(models.AvailabilityWindow{StartTime: "09:00", EndTime: "09:20", SlotDurationMinutes: 30}, day))
}

func TestMatchWindowAlignment(t *testing.T) {
	windows := []models.AvailabilityWindow{{
		ID:                  7,
		StartTime:           "09:00",
		EndTime:             "11:00",
		SlotDurationMinutes: 30,
	}}

	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	matched, ok := matchWindow(windows, day.Add(9*time.Hour+30*time.Minute))
	require.True(t, ok)
	require.Equal(t, uint(7), matched.ID)

	_, ok = matchWindow(windows, day.Add(9*time.Hour+15*time.Minute))
	require.False(t, ok, "off-grid start must not match")

	_, ok = matchWindow(windows, day.Add(10*time.Hour+45*time.Minute))
	require.False(t, ok, "slot overrunning the window end must not match")

	_, ok = matchWindow(windows, day.Add(8*time.Hour+30*time.Minute))
	require.False(t, ok, "start before the window must not match")

	matched, ok = matchWindow(windows, day.Add(10*time.Hour+30*time.Minute))
	require.True(t, ok, "last whole slot of the window must match")
	require.Equal(t, uint(7), matched.ID)
}

func TestMatchWindowRejectsSubMinutePrecision(t *testing.T) {
	windows := []models.AvailabilityWindow{{
		ID:                  7,
		StartTime:           "09:00",
		EndTime:             "11:00",
		SlotDurationMinutes: 30,
	}}

	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	// These would round into the 09:30 slot but carry a distinct timestamp,
	// so the slot-claim index would not catch a duplicate booking.
	_, ok := matchWindow(windows, day.Add(9*time.Hour+30*time.Minute+45*time.Second))
	require.False(t, ok, "seconds within a slot must not match")

	_, ok = matchWindow(windows, day.Add(9*time.Hour+30*time.Minute+time.Nanosecond))
	require.False(t, ok, "nanoseconds within a slot must not match")
}

func TestValidateWindowBounds(t *testing.T) {
	require.NoError(t, validateWindowBounds("09:00", "10:00", 30))
	require.NoError(t, validateWindowBounds("09:00", "09:30", 30))

	require.ErrorIs(t, validateWindowBounds("10:00", "09:00", 30), ErrInvalidWindow)
	require.ErrorIs(t, validateWindowBounds("09:00", "09:00", 30), ErrInvalidWindow)
	require.ErrorIs(t, validateWindowBounds("09:00", "09:20", 30), ErrInvalidWindow)
	require.ErrorIs(t, validateWindowBounds("09:00", "10:00", 0), ErrInvalidWindow)
	require.ErrorIs(t, validateWindowBounds("bad", "10:00", 30), ErrInvalidWindow)
}
