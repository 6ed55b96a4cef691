package scanner

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Window limits scanning to a daily clock-time range in a fixed time zone.
// Both ends are inclusive at minute resolution. An End before Start wraps
// past midnight.
type Window struct {
	Enabled  bool
	StartMin int
	EndMin   int
	Location *time.Location
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q: bad minute", s)
	}
	return h*60 + m, nil
}

// NewWindow builds an enabled window from "HH:MM" bounds and an IANA zone name.
func NewWindow(start, end, timezone string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Window{}, fmt.Errorf("window timezone: %w", err)
	}
	return Window{Enabled: true, StartMin: s, EndMin: e, Location: loc}, nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Enabled {
		return true
	}
	if w.Location != nil {
		t = t.In(w.Location)
	}
	m := t.Hour()*60 + t.Minute()
	if w.StartMin <= w.EndMin {
		return m >= w.StartMin && m <= w.EndMin
	}
	return m >= w.StartMin || m <= w.EndMin
}

func (w Window) String() string {
	if !w.Enabled {
		return "always"
	}
	zone := "Local"
	if w.Location != nil {
		zone = w.Location.String()
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d %s", w.StartMin/60, w.StartMin%60, w.EndMin/60, w.EndMin%60, zone)
}
