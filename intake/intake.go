// Package intake turns one photo submission into ledger writes and a reply.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"AttendanceBot/messaging"
	"AttendanceBot/models"
	"AttendanceBot/vision"
)

const (
	DefaultMinPersons    = 5
	DefaultVisionTimeout = 30 * time.Second

	// FailureText is sent when a submission could not be recorded.
	FailureText = "Sorry, your photo could not be recorded right now. Please try again in a few minutes."
)

// Ledger is what the coordinator needs from the submission ledger.
type Ledger interface {
	RegisterWorkerIfAbsent(ctx context.Context, id, displayName string) error
	LogSubmission(ctx context.Context, workerID string, now time.Time) (models.SubmissionResult, error)
}

type Config struct {
	MinPersons    int
	VisionTimeout time.Duration
}

// Submission is one inbound photo.
type Submission struct {
	WorkerID    string
	DisplayName string
	Image       []byte
	ReceivedAt  time.Time
}

// Count is a person count that may be unknown.
type Count struct {
	N     int
	Known bool
}

// Reply is the outbound answer to a submission.
type Reply struct {
	Text     string
	Markdown bool
	Result   models.SubmissionResult
	Count    Count
}

type Coordinator struct {
	ledger  Ledger
	counter vision.PersonCounter
	cfg     Config
	log     *zap.Logger
}

func NewCoordinator(l Ledger, counter vision.PersonCounter, cfg Config, logger *zap.Logger) *Coordinator {
	if cfg.MinPersons <= 0 {
		cfg.MinPersons = DefaultMinPersons
	}
	if cfg.VisionTimeout <= 0 {
		cfg.VisionTimeout = DefaultVisionTimeout
	}
	if counter == nil {
		counter = vision.Disabled{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{ledger: l, counter: counter, cfg: cfg, log: logger.Named("intake")}
}

// Handle records the submission and builds the reply. The photo is counted
// only for a new submission, and a failed or late count is treated as
// unknown: attendance is credited either way.
func (c *Coordinator) Handle(ctx context.Context, sub Submission) (Reply, error) {
	log := c.log.With(zap.String("worker_id", sub.WorkerID))

	if err := c.ledger.RegisterWorkerIfAbsent(ctx, sub.WorkerID, sub.DisplayName); err != nil {
		return Reply{}, fmt.Errorf("intake: %w", err)
	}
	res, err := c.ledger.LogSubmission(ctx, sub.WorkerID, sub.ReceivedAt)
	if err != nil {
		return Reply{}, fmt.Errorf("intake: %w", err)
	}

	var count Count
	if res.Status == models.StatusNewSubmission {
		count = c.count(ctx, log, sub.Image)
	}

	text, markdown := BuildReply(sub.DisplayName, res, count, c.cfg.MinPersons)
	log.Info("submission handled",
		zap.String("status", string(res.Status)),
		zap.Int("streak", res.Streak),
		zap.Int("persons", count.N),
		zap.Bool("count_known", count.Known))
	return Reply{Text: text, Markdown: markdown, Result: res, Count: count}, nil
}

// count runs the vision call off the handler goroutine and gives up after
// VisionTimeout.
func (c *Coordinator) count(ctx context.Context, log *zap.Logger, image []byte) Count {
	visionCtx, cancel := context.WithTimeout(ctx, c.cfg.VisionTimeout)
	defer cancel()

	counted := make(chan Count, 1)
	go func() {
		n, err := c.counter.CountPersons(visionCtx, image)
		if err != nil {
			if visionCtx.Err() == nil {
				if !errors.Is(err, vision.ErrVision) {
					err = fmt.Errorf("%w: %w", vision.ErrVision, err)
				}
				log.Warn("person count unavailable", zap.Error(err))
			}
			counted <- Count{}
			return
		}
		counted <- Count{N: n, Known: true}
	}()

	select {
	case count := <-counted:
		return count
	case <-visionCtx.Done():
		log.Warn("person count timed out", zap.Duration("timeout", c.cfg.VisionTimeout))
		return Count{}
	}
}

// BuildReply renders the reply for a ledger result. The low-count warning is
// added only to new submissions with a known count below minPersons.
func BuildReply(name string, res models.SubmissionResult, count Count, minPersons int) (text string, markdown bool) {
	if res.Status == models.StatusAlreadySubmitted {
		return fmt.Sprintf("%s, you have already sent today's photo. Thank you! 🙏", name), false
	}
	text = fmt.Sprintf("Hello %s, your photo has been received! ✅\nGreat work! Your streak: %d 🔥",
		messaging.EscapeMarkdown(name), res.Streak)
	if count.Known && count.N < minPersons {
		text += fmt.Sprintf("\n\n⚠️ *Warning*: only %d people are visible in the photo (at least %d are required).",
			count.N, minPersons)
	}
	return text, true
}
