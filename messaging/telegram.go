package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// BotClient is the part of *tgbotapi.BotAPI the adapter uses.
type BotClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Telegram implements Messenger and Pinner over the Bot API.
type Telegram struct {
	api        BotClient
	httpClient *http.Client
	log        *zap.Logger
}

func NewTelegram(api BotClient, logger *zap.Logger) *Telegram {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Telegram{
		api:        api,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        logger.Named("telegram"),
	}
}

func (t *Telegram) SendText(ctx context.Context, chat int64, text string, opts TextOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chat, text)
	msg.ReplyToMessageID = opts.ReplyTo
	if opts.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	sent, err := t.api.Send(msg)
	if err != nil && opts.Markdown && isEntityError(err) {
		// Unbalanced markup in user content; deliver it plain instead.
		t.log.Warn("markdown rejected, resending as plain text", zap.Int64("chat_id", chat), zap.Error(err))
		msg.ParseMode = ""
		sent, err = t.api.Send(msg)
	}
	if err != nil {
		return 0, fmt.Errorf("messaging: send text to %d: %w", chat, err)
	}
	return sent.MessageID, nil
}

func (t *Telegram) SendDocument(ctx context.Context, chat int64, name string, data []byte, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chat, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	if _, err := t.api.Send(doc); err != nil {
		return fmt.Errorf("messaging: send document %s to %d: %w", name, chat, err)
	}
	return nil
}

func (t *Telegram) SendPoll(ctx context.Context, chat int64, poll Poll) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(poll.Options) < 2 {
		return fmt.Errorf("messaging: poll %q needs at least two options", poll.Question)
	}
	cfg := tgbotapi.NewPoll(chat, poll.Question, poll.Options...)
	cfg.IsAnonymous = poll.Anonymous
	cfg.AllowsMultipleAnswers = poll.MultipleAnswers
	if poll.CorrectOption != nil {
		cfg.Type = "quiz"
		cfg.CorrectOptionID = int64(*poll.CorrectOption)
		cfg.Explanation = poll.Explanation
	}
	if _, err := t.api.Send(cfg); err != nil {
		return fmt.Errorf("messaging: send poll to %d: %w", chat, err)
	}
	return nil
}

func (t *Telegram) PinMessage(ctx context.Context, chat int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.PinChatMessageConfig{ChatID: chat, MessageID: messageID}
	if _, err := t.api.Request(cfg); err != nil {
		return fmt.Errorf("messaging: pin message %d in %d: %w", messageID, chat, err)
	}
	return nil
}

// DownloadFile fetches an uploaded file by its Bot API file id.
func (t *Telegram) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("messaging: resolve file %s: %w", fileID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: creating download request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("messaging: download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("messaging: download file %s: status %d", fileID, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("messaging: read file %s: %w", fileID, err)
	}
	return data, nil
}

func isEntityError(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "can't parse entities")
}
