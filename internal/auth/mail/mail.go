// Package mail delivers out-of-band messages such as password reset links.
package mail

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/affworld/pkg/slogx"
)

// ErrHeaderInjection is returned when a header value contains a line break.
var ErrHeaderInjection = errors.New("mail: header contains line break")

// Message is a plain text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

func (m Message) validate() error {
	for _, v := range []string{m.To, m.Subject} {
		if strings.ContainsAny(v, "\r\n") {
			return ErrHeaderInjection
		}
	}
	if m.To == "" {
		return errors.New("mail: missing recipient")
	}
	return nil
}

// Sender delivers a message. Implementations make a single attempt and
// honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of sending them. The body is
// logged in full, so it is for development only.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("mail delivery (log driver)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}
