// Package messaging is the outbound transport used by scheduled jobs, the
// intake reply and the chat commands.
package messaging

import (
	"context"
	"strings"
)

// TextOptions controls how a text message is delivered.
type TextOptions struct {
	// ReplyTo is the id of the message being answered, zero for none.
	ReplyTo  int
	Markdown bool
}

// Poll describes a regular or quiz poll. A non-nil CorrectOption makes it a
// quiz.
type Poll struct {
	Question        string
	Options         []string
	MultipleAnswers bool
	Anonymous       bool
	CorrectOption   *int
	Explanation     string
}

// Messenger is the capability set the core needs from a chat transport.
type Messenger interface {
	// SendText returns the id of the sent message.
	SendText(ctx context.Context, chat int64, text string, opts TextOptions) (int, error)
	SendDocument(ctx context.Context, chat int64, name string, data []byte, caption string) error
	SendPoll(ctx context.Context, chat int64, poll Poll) error
}

// Pinner is implemented by transports that can pin a message.
type Pinner interface {
	PinMessage(ctx context.Context, chat int64, messageID int) error
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// EscapeMarkdown escapes user-provided text for Telegram's legacy Markdown.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
