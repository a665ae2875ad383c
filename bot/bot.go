// Package bot dispatches inbound Telegram updates.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"AttendanceBot/clock"
	"AttendanceBot/intake"
	"AttendanceBot/messaging"
	"AttendanceBot/reports"
)

const (
	DefaultMaxConcurrent = 16
	handlerTimeout       = 2 * time.Minute

	startText      = "Hello! I am the attendance bot (v2.0).\n✅ New features are active."
	stockUsageText = "Usage: /stock [item] [status]\nExample: /stock rice finished"
)

type Intake interface {
	Handle(ctx context.Context, sub intake.Submission) (intake.Reply, error)
}

type Jobs interface {
	SendDailyReport(ctx context.Context, chat int64, title string) error
	SendPolls(ctx context.Context, chat int64) error
	SendQuiz(ctx context.Context, chat int64) error
}

type FileDownloader interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

type Deps struct {
	Intake        Intake
	Jobs          Jobs
	Messenger     messaging.Messenger
	Files         FileDownloader
	Destination   *messaging.Destination
	Clock         clock.Clock
	Logger        *zap.Logger
	MaxConcurrent int
}

type Bot struct {
	intake Intake
	jobs   Jobs
	msg    messaging.Messenger
	files  FileDownloader
	dest   *messaging.Destination
	clk    clock.Clock
	log    *zap.Logger
	sem    *semaphore.Weighted
}

func New(d Deps) *Bot {
	if d.MaxConcurrent <= 0 {
		d.MaxConcurrent = DefaultMaxConcurrent
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Bot{
		intake: d.Intake,
		jobs:   d.Jobs,
		msg:    d.Messenger,
		files:  d.Files,
		dest:   d.Destination,
		clk:    d.Clock,
		log:    d.Logger.Named("bot"),
		sem:    semaphore.NewWeighted(int64(d.MaxConcurrent)),
	}
}

// Run handles updates concurrently until ctx is done or updates closes, then
// waits for running handlers. Handlers outlive ctx so replies still go out.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	handlerCtx := context.WithoutCancel(ctx)
	for {
		var upd tgbotapi.Update
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case upd, ok = <-updates:
			if !ok {
				return nil
			}
		}
		if err := b.sem.Acquire(ctx, 1); err != nil {
			return nil
		}
		wg.Add(1)
		go func(upd tgbotapi.Update) {
			defer wg.Done()
			defer b.sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("update handler panicked", zap.Int("update_id", upd.UpdateID), zap.Any("panic", r))
				}
			}()
			hctx, cancel := context.WithTimeout(handlerCtx, handlerTimeout)
			defer cancel()
			b.HandleUpdate(hctx, upd)
		}(upd)
	}
}

// HandleUpdate processes one update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		if err := b.dest.Set(ctx, msg.Chat.ID); err != nil {
			b.log.Error("remember destination", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		}
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		b.handlePhoto(ctx, msg)
	}
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	log := b.log.With(zap.Int64("user_id", msg.From.ID), zap.Int64("chat_id", msg.Chat.ID))

	largest := msg.Photo[len(msg.Photo)-1]
	image, err := b.files.DownloadFile(ctx, largest.FileID)
	if err != nil {
		// Attendance is still credited; the count will be unknown.
		log.Warn("photo download failed", zap.Error(err))
	}

	received := b.clk.Now()
	if msg.Date > 0 {
		received = msg.Time()
	}
	reply, err := b.intake.Handle(ctx, intake.Submission{
		WorkerID:    strconv.FormatInt(msg.From.ID, 10),
		DisplayName: fullName(msg.From),
		Image:       image,
		ReceivedAt:  received,
	})
	if err != nil {
		log.Error("submission failed", zap.Error(err))
		b.reply(ctx, msg, intake.FailureText, false)
		return
	}
	b.reply(ctx, msg, reply.Text, reply.Markdown)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chat := msg.Chat.ID
	cmd := msg.Command()
	log := b.log.With(zap.String("command", cmd), zap.Int64("chat_id", chat))

	var err error
	switch cmd {
	case "start":
		_, err = b.msg.SendText(ctx, chat, startText, messaging.TextOptions{})
	case "report":
		err = b.jobs.SendDailyReport(ctx, chat, reports.ManualReportTitle)
	case "poll":
		err = b.jobs.SendPolls(ctx, chat)
	case "quiz":
		err = b.jobs.SendQuiz(ctx, chat)
	case "stock":
		err = b.stockAlert(ctx, msg)
	default:
		return
	}
	if err != nil {
		log.Error("command failed", zap.Error(err))
		return
	}
	log.Info("command handled")
}

func (b *Bot) stockAlert(ctx context.Context, msg *tgbotapi.Message) error {
	item := strings.TrimSpace(msg.CommandArguments())
	if item == "" {
		_, err := b.msg.SendText(ctx, msg.Chat.ID, stockUsageText, messaging.TextOptions{})
		return err
	}
	reporter := "Someone"
	if msg.From != nil {
		reporter = fullName(msg.From)
	}
	text := fmt.Sprintf("⚠️ *STOCK ALERT* ⚠️\n\n📢 *%s* reported:\n🛑 *%s*\n\nAdmin, please take note!",
		messaging.EscapeMarkdown(reporter), messaging.EscapeMarkdown(item))
	id, err := b.msg.SendText(ctx, msg.Chat.ID, text, messaging.TextOptions{Markdown: true})
	if err != nil {
		return err
	}
	if p, ok := b.msg.(messaging.Pinner); ok {
		if err := p.PinMessage(ctx, msg.Chat.ID, id); err != nil {
			// Pinning needs admin rights; the alert itself went out.
			b.log.Warn("pin stock alert", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		}
	}
	return nil
}

func (b *Bot) reply(ctx context.Context, msg *tgbotapi.Message, text string, markdown bool) {
	opts := messaging.TextOptions{ReplyTo: msg.MessageID, Markdown: markdown}
	if _, err := b.msg.SendText(ctx, msg.Chat.ID, text, opts); err != nil {
		b.log.Error("send reply", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

func fullName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
