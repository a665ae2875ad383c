package jobs

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Ships with the binary so scheduled posts work without extra files.
//
//go:embed content.json
var embeddedContent []byte

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Explanation   string   `json:"explanation"`
}

type PollContent struct {
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	MultipleAnswers bool     `json:"multiple_answers"`
}

// Content is the text bank the scheduled posts draw from.
type Content struct {
	Quotes         []string       `json:"quotes"`
	Activities     []string       `json:"activities"`
	QuizTitle      string         `json:"quiz_title"`
	Quiz           []QuizQuestion `json:"quiz"`
	EggPoll        PollContent    `json:"egg_poll"`
	StockPoll      PollContent    `json:"stock_poll"`
	WeeklyReminder string         `json:"weekly_reminder"`
}

// DefaultContent parses the embedded bank.
func DefaultContent() (*Content, error) {
	return parseContent(embeddedContent)
}

// LoadContent reads a replacement bank from disk.
func LoadContent(path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jobs: read content: %w", err)
	}
	return parseContent(data)
}

func parseContent(data []byte) (*Content, error) {
	var c Content
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("jobs: parse content: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Content) validate() error {
	var errs []error
	if len(c.Quotes) == 0 {
		errs = append(errs, errors.New("no quotes"))
	}
	if len(c.Activities) == 0 {
		errs = append(errs, errors.New("no activities"))
	}
	if len(c.Quiz) == 0 {
		errs = append(errs, errors.New("no quiz questions"))
	}
	for i, q := range c.Quiz {
		if len(q.Options) < 2 {
			errs = append(errs, fmt.Errorf("quiz %d: fewer than two options", i))
		}
		if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
			errs = append(errs, fmt.Errorf("quiz %d: correct option %d out of range", i, q.CorrectOption))
		}
	}
	for name, p := range map[string]PollContent{"egg_poll": c.EggPoll, "stock_poll": c.StockPoll} {
		if p.Question == "" || len(p.Options) < 2 {
			errs = append(errs, fmt.Errorf("%s: needs a question and two options", name))
		}
	}
	if c.WeeklyReminder == "" {
		errs = append(errs, errors.New("no weekly reminder"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("jobs: invalid content: %w", errors.Join(errs...))
	}
	return nil
}
