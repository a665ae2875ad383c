package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"AttendanceBot/config"
	"AttendanceBot/jobs"
	"AttendanceBot/models"
)

func TestWeekdayList(t *testing.T) {
	tests := []struct {
		days []time.Weekday
		want string
	}{
		{nil, "daily"},
		{[]time.Weekday{time.Tuesday}, "tue"},
		{[]time.Weekday{time.Monday, time.Saturday}, "mon,sat"},
	}
	for _, tt := range tests {
		if got := weekdayList(tt.days); got != tt.want {
			t.Errorf("weekdayList(%v) = %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestPrintSchedule(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	rules := []models.JobRule{
		{Name: "weekly-quiz", At: models.TimeOfDay{Hour: 12}, Weekdays: []time.Weekday{time.Saturday}, Action: "weekly_quiz"},
		{Name: "never", At: models.TimeOfDay{Hour: 1}, Action: "noop"},
	}
	var buf bytes.Buffer
	printSchedule(&buf, rules, func(r models.JobRule) time.Time {
		if r.Name == "never" {
			return time.Time{}
		}
		return time.Date(2026, 3, 7, 12, 0, 0, 0, ist)
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[0], "NAME") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "12:00") || !strings.Contains(lines[1], "sat") || !strings.Contains(lines[1], "Sat 2026-03-07 12:00") {
		t.Errorf("row = %q", lines[1])
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[2]), "-") {
		t.Errorf("row = %q", lines[2])
	}
}

func TestCalendarForPrefersScheduleZone(t *testing.T) {
	cfg := &config.Config{Timezone: "Asia/Kolkata"}
	cal, err := calendarFor(cfg, &config.Schedule{Timezone: "UTC"})
	if err != nil {
		t.Fatal(err)
	}
	if cal.Location().String() != "UTC" {
		t.Errorf("zone = %s", cal.Location())
	}

	if _, err := calendarFor(cfg, &config.Schedule{Timezone: "Mars/Olympus"}); err == nil {
		t.Error("unknown zone accepted")
	}
}

func TestDefaultScheduleResolvesEveryAction(t *testing.T) {
	sched, err := loadSchedule(&config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	known := map[string]bool{}
	for _, name := range jobs.ActionNames() {
		known[name] = true
	}
	for _, r := range sched.Rules {
		if !known[r.Action] {
			t.Errorf("rule %s uses unknown action %q", r.Name, r.Action)
		}
	}
}
