package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/models"
)

// parseClock converts an HH:MM string to minutes since midnight.
func parseClock(value string) (int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", value)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid time %q", value)
	}

	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid time %q", value)
	}

	return hours*60 + minutes, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// expandWindow walks a window in slot-duration steps and emits every whole
// slot. The remainder at the window's end is discarded: a slot is emitted
// only while start+duration still fits inside the window.
func expandWindow(window models.AvailabilityWindow, day time.Time) []dto.SlotResponse {
	startMinutes, err := parseClock(window.StartTime)
	if err != nil {
		return nil
	}
	endMinutes, err := parseClock(window.EndTime)
	if err != nil {
		return nil
	}

	duration := window.SlotDurationMinutes
	if duration <= 0 || endMinutes <= startMinutes {
		return nil
	}

	var slots []dto.SlotResponse
	for current := startMinutes; current+duration <= endMinutes; current += duration {
		startsAt := day.Add(time.Duration(current) * time.Minute)
		slots = append(slots, dto.SlotResponse{
			StartTime:       formatClock(current),
			EndTime:         formatClock(current + duration),
			StartsAt:        startsAt,
			DurationMinutes: duration,
		})
	}

	return slots
}

// matchWindow reports whether startsAt lands exactly on a slot boundary of
// one of the windows, returning the matching window for its duration.
// Slot boundaries are whole minutes; a timestamp with sub-minute precision
// never matches, so it cannot claim a start time distinct from the slot it
// would otherwise round into.
func matchWindow(windows []models.AvailabilityWindow, startsAt time.Time) (models.AvailabilityWindow, bool) {
	if startsAt.Second() != 0 || startsAt.Nanosecond() != 0 {
		return models.AvailabilityWindow{}, false
	}

	requested := startsAt.Hour()*60 + startsAt.Minute()

	for _, window := range windows {
		startMinutes, err := parseClock(window.StartTime)
		if err != nil {
			continue
		}
		endMinutes, err := parseClock(window.EndTime)
		if err != nil {
			continue
		}

		duration := window.SlotDurationMinutes
		if duration <= 0 {
			continue
		}

		if requested < startMinutes || requested+duration > endMinutes {
			continue
		}
		if (requested-startMinutes)%duration != 0 {
			continue
		}

		return window, true
	}

	return models.AvailabilityWindow{}, false
}

// validateWindowBounds enforces the window invariants: the end must be
// strictly after the start and at least one whole slot must fit.
func validateWindowBounds(startTime, endTime string, duration int) error {
	startMinutes, err := parseClock(startTime)
	if err != nil {
		return ErrInvalidWindow
	}
	endMinutes, err := parseClock(endTime)
	if err != nil {
		return ErrInvalidWindow
	}

	if endMinutes <= startMinutes {
		return ErrInvalidWindow
	}
	if duration <= 0 || startMinutes+duration > endMinutes {
		return ErrInvalidWindow
	}

	return nil
}
