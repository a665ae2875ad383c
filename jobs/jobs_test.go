package jobs_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"AttendanceBot/clock"
	"AttendanceBot/database"
	"AttendanceBot/jobs"
	"AttendanceBot/ledger"
	"AttendanceBot/messaging"
	"AttendanceBot/messaging/messagingtest"
	"AttendanceBot/reports"
	"AttendanceBot/spreadsheet"
)

var ist = time.FixedZone("IST", 5*3600+1800)

const group = int64(-100200)

type fixture struct {
	runner *jobs.Runner
	rec    *messagingtest.Recorder
	dest   *messaging.Destination
	ledger *ledger.Ledger
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	content, err := jobs.DefaultContent()
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 3, 18, 0, 0, 0, ist)
	l := ledger.New(database.NewMemoryStore(), clock.NewCalendarIn(ist), nil, nil)
	rec := &messagingtest.Recorder{}
	dest := messaging.NewDestination(nil, nil)
	r := jobs.NewRunner(jobs.Deps{
		Messenger:   rec,
		Destination: dest,
		Reports:     reports.NewGenerator(l, spreadsheet.XLSX{}),
		Counter:     l,
		Content:     content,
		Clock:       clock.Func(func() time.Time { return now }),
		Pick:        func(int) int { return 0 },
	})
	return &fixture{runner: r, rec: rec, dest: dest, ledger: l, now: now}
}

func TestDefaultContentIsValid(t *testing.T) {
	c, err := jobs.DefaultContent()
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Quiz) != 5 || !c.StockPoll.MultipleAnswers || c.EggPoll.MultipleAnswers {
		t.Errorf("content = %+v", c)
	}
}

func TestScheduledSkipsWithoutDestination(t *testing.T) {
	f := newFixture(t)
	action, err := f.runner.Scheduled(jobs.DailyMotivation)
	if err != nil {
		t.Fatal(err)
	}
	if err := action(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.rec.Sent()) != 0 {
		t.Errorf("sent %v without a destination", f.rec.Sent())
	}

	f.dest.Set(context.Background(), group)
	if err := action(context.Background()); err != nil {
		t.Fatal(err)
	}
	sent := f.rec.OfKind(messagingtest.KindText)
	if len(sent) != 1 || sent[0].Chat != group || !strings.Contains(sent[0].Text, "\n\n") {
		t.Errorf("sent = %+v", sent)
	}
}

func TestEveryActionIsResolvable(t *testing.T) {
	f := newFixture(t)
	want := []string{jobs.DailyMotivation, jobs.EggPoll, jobs.FinalReport, jobs.MiddayReport, jobs.StockPoll, jobs.WeeklyQuiz, jobs.WeeklyReminder}
	if got := f.runner.Names(); strings.Join(got, ",") != strings.Join([]string{
		"daily_motivation", "egg_poll", "final_report", "midday_report", "stock_poll", "weekly_quiz", "weekly_reminder",
	}, ",") {
		t.Errorf("Names = %v", got)
	}
	if got := jobs.ActionNames(); strings.Join(got, ",") != strings.Join(f.runner.Names(), ",") {
		t.Errorf("ActionNames = %v", got)
	}
	for _, name := range want {
		if _, err := f.runner.Scheduled(name); err != nil {
			t.Errorf("Scheduled(%s): %v", name, err)
		}
	}
	if _, err := f.runner.Scheduled("nap"); !errors.Is(err, jobs.ErrUnknownAction) {
		t.Errorf("unknown action: err = %v", err)
	}
}

func TestQuizPoll(t *testing.T) {
	f := newFixture(t)
	if err := f.runner.RunTo(context.Background(), jobs.WeeklyQuiz, group); err != nil {
		t.Fatal(err)
	}
	polls := f.rec.OfKind(messagingtest.KindPoll)
	if len(polls) != 1 {
		t.Fatalf("polls = %v", polls)
	}
	p := polls[0].Poll
	if p.CorrectOption == nil || *p.CorrectOption != 0 || p.Anonymous || p.Explanation == "" {
		t.Errorf("quiz = %+v", p)
	}
	if !strings.HasPrefix(p.Question, "🧠 Nutrition Master Quiz 🧠\n\n") {
		t.Errorf("question = %q", p.Question)
	}
}

func TestSendPolls(t *testing.T) {
	f := newFixture(t)
	if err := f.runner.SendPolls(context.Background(), group); err != nil {
		t.Fatal(err)
	}
	polls := f.rec.OfKind(messagingtest.KindPoll)
	if len(polls) != 2 {
		t.Fatalf("sent %d polls", len(polls))
	}
	if polls[0].Poll.MultipleAnswers || !polls[1].Poll.MultipleAnswers {
		t.Errorf("egg then stock expected: %+v", polls)
	}
	if polls[0].Poll.CorrectOption != nil {
		t.Error("egg poll sent as quiz")
	}
}

func TestMiddayReportCountsToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledger.RegisterWorkerIfAbsent(ctx, "1", "Asha")
	f.ledger.RegisterWorkerIfAbsent(ctx, "2", "Bina")
	f.ledger.LogSubmission(ctx, "1", f.now.Add(-time.Hour))

	if err := f.runner.RunTo(ctx, jobs.MiddayReport, group); err != nil {
		t.Fatal(err)
	}
	if got := f.rec.Sent()[0].Text; got != reports.MiddayText(1) {
		t.Errorf("text = %q", got)
	}
}

func TestFinalReportSendsSheetOnlyWhenSomeoneIsMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledger.RegisterWorkerIfAbsent(ctx, "1", "Asha")
	f.ledger.RegisterWorkerIfAbsent(ctx, "2", "Bina")
	f.ledger.LogSubmission(ctx, "1", f.now.Add(-time.Hour))

	if err := f.runner.RunTo(ctx, jobs.FinalReport, group); err != nil {
		t.Fatal(err)
	}
	sent := f.rec.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d items, want text + document", len(sent))
	}
	if !strings.HasPrefix(sent[0].Text, reports.FinalReportTitle) {
		t.Errorf("text = %q", sent[0].Text)
	}
	if sent[1].Kind != messagingtest.KindDocument || sent[1].FileName != "missing_workers_2026-03-03.xlsx" || sent[1].Caption != reports.MissingCaption {
		t.Errorf("document = %+v", sent[1])
	}

	f.ledger.LogSubmission(ctx, "2", f.now.Add(-time.Minute))
	f.rec.Reset()
	if err := f.runner.RunTo(ctx, jobs.FinalReport, group); err != nil {
		t.Fatal(err)
	}
	if docs := f.rec.OfKind(messagingtest.KindDocument); len(docs) != 0 {
		t.Errorf("document sent with nobody missing")
	}
}

func TestTransportErrorSurfaces(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("telegram down")
	f.rec.Err = boom
	if err := f.runner.RunTo(context.Background(), jobs.WeeklyReminder, group); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}
