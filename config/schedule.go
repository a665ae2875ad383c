package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"AttendanceBot/clock"
	"AttendanceBot/models"
)

//go:embed schedule.yaml
var defaultScheduleYAML []byte

// JobEntry is one row of the schedule file.
type JobEntry struct {
	Name     string   `yaml:"name"`
	Time     string   `yaml:"time"`
	Weekdays []string `yaml:"weekdays,omitempty"`
	Action   string   `yaml:"action"`
}

// ScheduleFile models the YAML schedule table.
type ScheduleFile struct {
	Timezone string     `yaml:"timezone,omitempty"`
	Jobs     []JobEntry `yaml:"jobs"`
}

// Schedule is a parsed, validated schedule table.
type Schedule struct {
	Timezone string
	Rules    []models.JobRule
}

// DefaultSchedule returns the built-in table.
func DefaultSchedule() (*Schedule, error) {
	return ParseSchedule(defaultScheduleYAML)
}

// LoadSchedule reads path, or the built-in table when path is empty.
func LoadSchedule(path string) (*Schedule, error) {
	if path == "" {
		return DefaultSchedule()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read schedule: %w", err)
	}
	return ParseSchedule(data)
}

func ParseSchedule(data []byte) (*Schedule, error) {
	var file ScheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parse schedule: %w", err)
	}
	if len(file.Jobs) == 0 {
		return nil, errors.New("config: schedule has no jobs")
	}

	s := &Schedule{Timezone: file.Timezone}
	seen := make(map[string]bool, len(file.Jobs))
	var errs []error
	for i, j := range file.Jobs {
		rule, err := j.rule()
		if err != nil {
			errs = append(errs, fmt.Errorf("job %d (%s): %w", i+1, j.Name, err))
			continue
		}
		if seen[rule.Name] {
			errs = append(errs, fmt.Errorf("job %d: duplicate name %q", i+1, rule.Name))
			continue
		}
		seen[rule.Name] = true
		s.Rules = append(s.Rules, rule)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: invalid schedule: %w", errors.Join(errs...))
	}
	return s, nil
}

func (j JobEntry) rule() (models.JobRule, error) {
	if j.Name == "" {
		return models.JobRule{}, errors.New("name is required")
	}
	if j.Action == "" {
		return models.JobRule{}, errors.New("action is required")
	}
	at, err := models.ParseTimeOfDay(j.Time)
	if err != nil {
		return models.JobRule{}, err
	}
	var days []time.Weekday
	for _, name := range j.Weekdays {
		wd, err := clock.ParseWeekday(name)
		if err != nil {
			return models.JobRule{}, err
		}
		days = append(days, wd)
	}
	return models.JobRule{Name: j.Name, At: at, Weekdays: days, Action: j.Action}, nil
}
