package timetable

import (
	"fmt"
	"strconv"
	"strings"
)

// Window is a half-open [Start, End) range in minutes after midnight.
type Window struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Contains reports whether [start, start+minutes) lies inside the window.
func (w Window) Contains(start, minutes int) bool {
	return start >= w.Start && start+minutes <= w.End
}

// Overlaps reports whether [start, start+minutes) intersects the window.
func (w Window) Overlaps(start, minutes int) bool {
	return start < w.End && w.Start < start+minutes
}

// Length returns the window size in minutes.
func (w Window) Length() int {
	if w.End <= w.Start {
		return 0
	}
	return w.End - w.Start
}

var dayNames = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// DayName maps 0=Monday..6=Sunday to its upper-case name.
func DayName(day int) string {
	if day < 0 || day >= len(dayNames) {
		return ""
	}
	return dayNames[day]
}

// DayIndex maps a day name (any case, full or three-letter) to 0..6, or -1.
func DayIndex(name string) int {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return -1
	}
	for idx, day := range dayNames {
		if day == name || (len(name) == 3 && strings.HasPrefix(day, name)) {
			return idx
		}
	}
	return -1
}

// ParseClock converts "HH:MM" or "HH:MM:SS" to minutes after midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", raw, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", raw, err)
	}
	if hours < 0 || hours > 24 || minutes < 0 || minutes > 59 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("clock value %q out of range", raw)
	}
	return hours*60 + minutes, nil
}

// FormatClock renders minutes after midnight as "HH:MM:SS".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}

// ParseWindow converts "HH:MM-HH:MM" to a Window. An empty string is the
// zero window.
func ParseWindow(raw string) (Window, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Window{}, nil
	}
	start, end, ok := strings.Cut(raw, "-")
	if !ok {
		return Window{}, fmt.Errorf("invalid window %q", raw)
	}
	from, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	to, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	if to <= from {
		return Window{}, fmt.Errorf("window %q ends before it starts", raw)
	}
	return Window{Start: from, End: to}, nil
}
