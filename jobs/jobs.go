// Package jobs holds the posts the bot sends on a schedule or on demand.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"AttendanceBot/clock"
	"AttendanceBot/messaging"
	"AttendanceBot/reports"
	"AttendanceBot/scheduler"
)

// Action identifiers used by the schedule table.
const (
	DailyMotivation = "daily_motivation"
	WeeklyQuiz      = "weekly_quiz"
	MiddayReport    = "midday_report"
	EggPoll         = "egg_poll"
	StockPoll       = "stock_poll"
	FinalReport     = "final_report"
	WeeklyReminder  = "weekly_reminder"
)

var ErrUnknownAction = errors.New("jobs: unknown action")

// ActionNames lists every action identifier, sorted.
func ActionNames() []string {
	names := []string{DailyMotivation, WeeklyQuiz, MiddayReport, EggPoll, StockPoll, FinalReport, WeeklyReminder}
	sort.Strings(names)
	return names
}

// ReportSource builds the report payloads.
type ReportSource interface {
	BuildDailyReport(ctx context.Context, now time.Time, title string) (*reports.DailyReport, error)
}

// Counter counts today's submissions.
type Counter interface {
	CountSubmittedToday(ctx context.Context, now time.Time) (int, error)
}

type Deps struct {
	Messenger   messaging.Messenger
	Destination *messaging.Destination
	Reports     ReportSource
	Counter     Counter
	Content     *Content
	Clock       clock.Clock
	Logger      *zap.Logger
	// Pick returns an index in [0, n). Defaults to math/rand.
	Pick func(n int) int
}

// Runner sends posts to an explicit chat, or to the current destination when
// run from the scheduler.
type Runner struct {
	msg     messaging.Messenger
	dest    *messaging.Destination
	reports ReportSource
	counter Counter
	content *Content
	clk     clock.Clock
	pick    func(int) int
	log     *zap.Logger

	actions map[string]func(ctx context.Context, chat int64) error
}

func NewRunner(d Deps) *Runner {
	r := &Runner{
		msg:     d.Messenger,
		dest:    d.Destination,
		reports: d.Reports,
		counter: d.Counter,
		content: d.Content,
		clk:     d.Clock,
		pick:    d.Pick,
		log:     d.Logger,
	}
	if r.clk == nil {
		r.clk = clock.System{}
	}
	if r.pick == nil {
		r.pick = rand.Intn
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	r.log = r.log.Named("jobs")
	r.actions = map[string]func(context.Context, int64) error{
		DailyMotivation: r.SendMotivation,
		WeeklyQuiz:      r.SendQuiz,
		MiddayReport:    r.SendMiddayReport,
		EggPoll:         r.SendEggPoll,
		StockPoll:       r.SendStockPoll,
		FinalReport: func(ctx context.Context, chat int64) error {
			return r.SendDailyReport(ctx, chat, reports.FinalReportTitle)
		},
		WeeklyReminder: r.SendWeeklyReminder,
	}
	return r
}

// Names lists the known action identifiers, sorted.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunTo runs the named action against chat.
func (r *Runner) RunTo(ctx context.Context, name string, chat int64) error {
	fn, ok := r.actions[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownAction, name)
	}
	return fn(ctx, chat)
}

// Scheduled adapts the named action for the scheduler. It posts to the
// current destination and skips quietly while none is known.
func (r *Runner) Scheduled(name string) (scheduler.Action, error) {
	fn, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, name)
	}
	return func(ctx context.Context) error {
		chat, ok := r.dest.Get()
		if !ok {
			r.log.Warn("no destination chat yet, skipping", zap.String("action", name))
			return nil
		}
		return fn(ctx, chat)
	}, nil
}

func (r *Runner) SendMotivation(ctx context.Context, chat int64) error {
	quote := r.content.Quotes[r.pick(len(r.content.Quotes))]
	activity := r.content.Activities[r.pick(len(r.content.Activities))]
	_, err := r.msg.SendText(ctx, chat, quote+"\n\n"+activity, messaging.TextOptions{Markdown: true})
	return err
}

func (r *Runner) SendQuiz(ctx context.Context, chat int64) error {
	q := r.content.Quiz[r.pick(len(r.content.Quiz))]
	correct := q.CorrectOption
	return r.msg.SendPoll(ctx, chat, messaging.Poll{
		Question:      r.content.QuizTitle + "\n\n" + q.Question,
		Options:       q.Options,
		CorrectOption: &correct,
		Explanation:   q.Explanation,
	})
}

func (r *Runner) SendMiddayReport(ctx context.Context, chat int64) error {
	n, err := r.counter.CountSubmittedToday(ctx, r.clk.Now())
	if err != nil {
		return fmt.Errorf("jobs: midday report: %w", err)
	}
	_, err = r.msg.SendText(ctx, chat, reports.MiddayText(n), messaging.TextOptions{Markdown: true})
	return err
}

func (r *Runner) SendEggPoll(ctx context.Context, chat int64) error {
	return r.sendPoll(ctx, chat, r.content.EggPoll)
}

func (r *Runner) SendStockPoll(ctx context.Context, chat int64) error {
	return r.sendPoll(ctx, chat, r.content.StockPoll)
}

// SendPolls sends both daily polls, egg poll first.
func (r *Runner) SendPolls(ctx context.Context, chat int64) error {
	if err := r.SendEggPoll(ctx, chat); err != nil {
		return err
	}
	return r.SendStockPoll(ctx, chat)
}

func (r *Runner) sendPoll(ctx context.Context, chat int64, p PollContent) error {
	return r.msg.SendPoll(ctx, chat, messaging.Poll{
		Question:        p.Question,
		Options:         p.Options,
		MultipleAnswers: p.MultipleAnswers,
	})
}

// SendDailyReport posts the count and streak board, then the missing-workers
// sheet when anyone is missing.
func (r *Runner) SendDailyReport(ctx context.Context, chat int64, title string) error {
	rep, err := r.reports.BuildDailyReport(ctx, r.clk.Now(), title)
	if err != nil {
		return fmt.Errorf("jobs: daily report: %w", err)
	}
	if _, err := r.msg.SendText(ctx, chat, rep.Text, messaging.TextOptions{Markdown: true}); err != nil {
		return err
	}
	if rep.Missing == nil {
		r.log.Info("everyone submitted, no missing sheet", zap.Stringer("date", rep.Date))
		return nil
	}
	return r.msg.SendDocument(ctx, chat, rep.FileName, rep.Missing, reports.MissingCaption)
}

func (r *Runner) SendWeeklyReminder(ctx context.Context, chat int64) error {
	_, err := r.msg.SendText(ctx, chat, r.content.WeeklyReminder, messaging.TextOptions{Markdown: true})
	return err
}
