package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"AttendanceBot/models"
	"AttendanceBot/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "List the job table with each rule's next firing",
	Args:  cobra.NoArgs,
	RunE:  runSchedule,
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigOnly()
	if err != nil {
		return err
	}
	sched, err := loadSchedule(cfg)
	if err != nil {
		return err
	}
	cal, err := calendarFor(cfg, sched)
	if err != nil {
		return err
	}
	s, err := scheduler.New(cal, nil, 0, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Timezone: %s\n\n", cal.Location())
	printSchedule(cmd.OutOrStdout(), sched.Rules, func(r models.JobRule) time.Time {
		return s.NextFire(r, time.Now())
	})
	return nil
}

func printSchedule(w io.Writer, rules []models.JobRule, next func(models.JobRule) time.Time) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTIME\tDAYS\tACTION\tNEXT")
	for _, r := range rules {
		nextStr := "-"
		if t := next(r); !t.IsZero() {
			nextStr = t.Format("Mon 2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.At, weekdayList(r.Weekdays), r.Action, nextStr)
	}
	tw.Flush()
}

func weekdayList(days []time.Weekday) string {
	if len(days) == 0 {
		return "daily"
	}
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = strings.ToLower(d.String()[:3])
	}
	return strings.Join(names, ",")
}
