package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a local wall-clock time at minute resolution.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	t := TimeOfDay{Hour: h, Minute: m}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: out of range", s)
	}
	return t, nil
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// JobRule fires Action at At local time on the listed weekdays.
// An empty Weekdays list means every day.
type JobRule struct {
	Name     string         `json:"name"`
	At       TimeOfDay      `json:"at"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
	Action   string         `json:"action"`
}

// AllowsWeekday reports whether the rule may fire on wd.
func (r JobRule) AllowsWeekday(wd time.Weekday) bool {
	if len(r.Weekdays) == 0 {
		return true
	}
	for _, d := range r.Weekdays {
		if d == wd {
			return true
		}
	}
	return false
}
