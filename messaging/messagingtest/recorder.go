// Package messagingtest records outbound messages for tests.
package messagingtest

import (
	"context"
	"sync"

	"AttendanceBot/messaging"
)

type Kind string

const (
	KindText     Kind = "text"
	KindDocument Kind = "document"
	KindPoll     Kind = "poll"
	KindPin      Kind = "pin"
)

// Sent is one recorded call.
type Sent struct {
	Kind      Kind
	Chat      int64
	Text      string
	Options   messaging.TextOptions
	FileName  string
	Data      []byte
	Caption   string
	Poll      messaging.Poll
	MessageID int
}

// Recorder implements messaging.Messenger and messaging.Pinner.
type Recorder struct {
	// Err, when set, is returned by every call and nothing is recorded.
	Err error

	mu     sync.Mutex
	sent   []Sent
	nextID int
}

func (r *Recorder) SendText(_ context.Context, chat int64, text string, opts messaging.TextOptions) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	r.nextID++
	r.sent = append(r.sent, Sent{Kind: KindText, Chat: chat, Text: text, Options: opts, MessageID: r.nextID})
	return r.nextID, nil
}

func (r *Recorder) SendDocument(_ context.Context, chat int64, name string, data []byte, caption string) error {
	return r.record(Sent{Kind: KindDocument, Chat: chat, FileName: name, Data: data, Caption: caption})
}

func (r *Recorder) SendPoll(_ context.Context, chat int64, poll messaging.Poll) error {
	return r.record(Sent{Kind: KindPoll, Chat: chat, Poll: poll})
}

func (r *Recorder) PinMessage(_ context.Context, chat int64, messageID int) error {
	return r.record(Sent{Kind: KindPin, Chat: chat, MessageID: messageID})
}

func (r *Recorder) record(s Sent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, s)
	return nil
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// OfKind filters Sent by kind.
func (r *Recorder) OfKind(k Kind) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		if s.Kind == k {
			out = append(out, s)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
