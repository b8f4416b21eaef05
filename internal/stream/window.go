package stream

import (
	"fmt"
	"strings"
	"time"
)

// Window is a daily processing window in the form "HH:MM-HH:MM". Sessions
// with a window withhold sampling outside of it; the session itself stays
// alive. The window is interpreted within a single day: start must not be
// after end, so an inverted schedule fails at parse time instead of
// producing a session that can never wake.
type Window struct {
	startMinute int
	endMinute   int
}

// ParseWindow parses a "HH:MM-HH:MM" schedule string.
func ParseWindow(s string) (*Window, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("schedule %q: want HH:MM-HH:MM", s)
	}
	start, err := parseMinute(parts[0])
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", s, err)
	}
	end, err := parseMinute(parts[1])
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", s, err)
	}
	if start > end {
		return nil, fmt.Errorf("schedule %q: start is after end", s)
	}
	return &Window{startMinute: start, endMinute: end}, nil
}

func parseMinute(s string) (int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("bad time %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return hour*60 + minute, nil
}

// Contains reports whether t's time of day falls inside the window,
// inclusive on both ends.
func (w *Window) Contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	return minute >= w.startMinute && minute <= w.endMinute
}
