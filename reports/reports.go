// Package reports derives read-only summaries from the ledger.
package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"AttendanceBot/clock"
	"AttendanceBot/ledger"
	"AttendanceBot/models"
)

const (
	DefaultTopN = 5

	summaryHeader = "🏆 *Today's Stars (Top Streaks)* 🏆\n\n"
	summaryRow    = "%d. %s - %d 🔥\n"
	summaryFooter = "\nCongratulations to all the winners! 👏🎊"
	summaryEmpty  = "No streaks yet."

	MissingCaption = "📄 Members who have not sent a photo today."
)

// MissingColumns is the fixed column order of the missing-workers export.
var MissingColumns = []string{"Name", "Worker ID"}

// Source is the slice of the ledger the generator reads.
type Source interface {
	DailyView(ctx context.Context, now time.Time) (*ledger.DailyView, error)
	TopStreaks(ctx context.Context, n int, now time.Time) ([]models.WorkerStreak, error)
}

// TableWriter serializes rows under the given column names.
type TableWriter interface {
	WriteTable(rows [][]string, columns []string) ([]byte, error)
}

// MissingWorker is one row of the missing-workers report.
type MissingWorker struct {
	Name     string `json:"name"`
	WorkerID string `json:"worker_id"`
}

type Generator struct {
	src    Source
	tables TableWriter
}

func NewGenerator(src Source, tables TableWriter) *Generator {
	return &Generator{src: src, tables: tables}
}

// MissingWorkersReport lists registered workers with no submission today, in
// registration order. An empty slice means everyone submitted.
func (g *Generator) MissingWorkersReport(ctx context.Context, now time.Time) ([]MissingWorker, error) {
	view, err := g.src.DailyView(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("reports: missing workers: %w", err)
	}
	out := make([]MissingWorker, 0, len(view.Missing))
	for _, w := range view.Missing {
		out = append(out, MissingWorker{Name: w.DisplayName, WorkerID: w.ID})
	}
	return out, nil
}

// PerformanceSummaryText renders the top streak board.
func (g *Generator) PerformanceSummaryText(ctx context.Context, now time.Time, topN int) (string, error) {
	top, err := g.src.TopStreaks(ctx, topN, now)
	if err != nil {
		return "", fmt.Errorf("reports: performance summary: %w", err)
	}
	return FormatPerformanceSummary(top), nil
}

// FormatPerformanceSummary is the pure rendering behind PerformanceSummaryText.
func FormatPerformanceSummary(top []models.WorkerStreak) string {
	var b strings.Builder
	b.WriteString(summaryHeader)
	if len(top) == 0 {
		b.WriteString(summaryEmpty)
		return b.String()
	}
	for i, s := range top {
		fmt.Fprintf(&b, summaryRow, i+1, s.DisplayName, s.Streak)
	}
	b.WriteString(summaryFooter)
	return b.String()
}

// ExportMissingWorkersTable returns the serialized missing-workers table, or
// ok=false when nobody is missing.
func (g *Generator) ExportMissingWorkersTable(ctx context.Context, now time.Time) (payload []byte, ok bool, err error) {
	missing, err := g.MissingWorkersReport(ctx, now)
	if err != nil {
		return nil, false, err
	}
	if len(missing) == 0 {
		return nil, false, nil
	}
	rows := make([][]string, len(missing))
	for i, m := range missing {
		rows[i] = []string{m.Name, m.WorkerID}
	}
	payload, err = g.tables.WriteTable(rows, MissingColumns)
	if err != nil {
		return nil, false, fmt.Errorf("reports: export missing workers: %w", err)
	}
	return payload, true, nil
}

// MissingFileName names the export for the civil date d.
func MissingFileName(d clock.Date) string {
	return "missing_workers_" + d.String() + ".xlsx"
}

// MiddayText is the early-afternoon progress message.
func MiddayText(count int) string {
	return fmt.Sprintf("📊 *Midday Report*\n\nSo far %d members have sent today's activity photo.\nEveryone else, please send yours soon!", count)
}

// FinalText combines the day's count with the streak board. title changes
// between the scheduled evening report and an on-demand report.
func FinalText(title string, count int, summary string) string {
	return fmt.Sprintf("%s\n\nIn total %d members sent a photo today.\n\n%s", title, count, summary)
}

const (
	FinalReportTitle  = "🌇 *Final Evening Report*"
	ManualReportTitle = "📊 *Manual Report (so far)*"
)

// DailyReport is everything the evening and manual reports send.
type DailyReport struct {
	Date     clock.Date
	Count    int
	Text     string
	Missing  []byte
	FileName string
}

// BuildDailyReport assembles the count, the summary text and, when someone is
// missing, the export payload. The count and the missing list come from the
// same view.
func (g *Generator) BuildDailyReport(ctx context.Context, now time.Time, title string) (*DailyReport, error) {
	view, err := g.src.DailyView(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("reports: daily report: %w", err)
	}
	summary, err := g.PerformanceSummaryText(ctx, now, DefaultTopN)
	if err != nil {
		return nil, err
	}
	rep := &DailyReport{
		Date:  view.Date,
		Count: len(view.Submitted),
		Text:  FinalText(title, len(view.Submitted), summary),
	}
	if len(view.Missing) == 0 {
		return rep, nil
	}
	rows := make([][]string, len(view.Missing))
	for i, w := range view.Missing {
		rows[i] = []string{w.DisplayName, w.ID}
	}
	rep.Missing, err = g.tables.WriteTable(rows, MissingColumns)
	if err != nil {
		return nil, fmt.Errorf("reports: daily report export: %w", err)
	}
	rep.FileName = MissingFileName(view.Date)
	return rep, nil
}
