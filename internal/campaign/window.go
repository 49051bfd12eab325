package campaign

import (
	"fmt"
	"time"
)

// Window is the daily calling-hours interval. Campaigns only dial on
// weekdays inside the window; cold calls outside business hours burn
// goodwill before the agent says a word.
type Window struct {
	from  int // minutes since midnight
	until int
}

// ParseWindow parses "HH:MM" bounds into a Window.
func ParseWindow(from, until string) (Window, error) {
	f, err := parseMinutes(from)
	if err != nil {
		return Window{}, fmt.Errorf("parsing calling_from: %w", err)
	}
	u, err := parseMinutes(until)
	if err != nil {
		return Window{}, fmt.Errorf("parsing calling_until: %w", err)
	}
	if f >= u {
		return Window{}, fmt.Errorf("calling window %s-%s is empty", from, until)
	}
	return Window{from: f, until: u}, nil
}

// Contains reports whether t falls on a weekday inside the window.
func (w Window) Contains(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= w.from && minutes < w.until
}

func parseMinutes(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return h*60 + m, nil
}
