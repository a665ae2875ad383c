package clock

import (
	"fmt"
	"strings"
	"time"
)

// Clock supplies wall-clock instants.
type Clock interface {
	Now() time.Time
}

// System reads the process wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// Calendar maps instants onto civil dates and local times in one fixed zone.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the IANA zone name. An empty name means UTC.
func NewCalendar(tz string) (*Calendar, error) {
	if tz == "" {
		return &Calendar{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("clock: load timezone %q: %w", tz, err)
	}
	return &Calendar{loc: loc}, nil
}

// NewCalendarIn wraps an already loaded location.
func NewCalendarIn(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc}
}

// Location returns the calendar's zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// Local converts t into the calendar's zone.
func (c *Calendar) Local(t time.Time) time.Time { return t.In(c.loc) }

// Date returns the civil date of t in the calendar's zone.
func (c *Calendar) Date(t time.Time) Date {
	y, m, d := t.In(c.loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// Weekday returns the local weekday of t.
func (c *Calendar) Weekday(t time.Time) time.Weekday {
	return t.In(c.loc).Weekday()
}

// HourMinute returns the local hour and minute of t.
func (c *Calendar) HourMinute(t time.Time) (int, int) {
	local := t.In(c.loc)
	return local.Hour(), local.Minute()
}

// At returns the instant of date d at hh:mm local time.
func (c *Calendar) At(d Date, hour, minute int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, c.loc)
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts a full English day name or its three-letter
// abbreviation, case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if wd, ok := weekdayNames[name]; ok {
		return wd, nil
	}
	if len(name) == 3 {
		for full, wd := range weekdayNames {
			if strings.HasPrefix(full, name) {
				return wd, nil
			}
		}
	}
	return time.Sunday, fmt.Errorf("clock: unknown weekday %q", s)
}
