package reviewpresenter

import (
	"strings"

	"github.com/park285/cheese-review/pkg/reviewdto"
)

// Presenter delivers formatted review text without coupling callers to an
// output channel.
type Presenter struct {
	formatter   *Formatter
	sendMessage func(message string) error
}

func NewPresenter(formatter *Formatter, sendMessage func(message string) error) *Presenter {
	return &Presenter{formatter: formatter, sendMessage: sendMessage}
}

func (p *Presenter) Report(records []reviewdto.Record, acc reviewdto.Accuracy, result string) error {
	if p == nil || p.sendMessage == nil {
		return nil
	}
	return p.send(p.formatter.Report(records, acc, result))
}

// Progress sends a status line; empty lines are skipped.
func (p *Presenter) Progress(summary string) error {
	if p == nil || p.sendMessage == nil {
		return nil
	}
	return p.send(summary)
}

func (p *Presenter) send(message string) error {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	return p.sendMessage(message)
}
