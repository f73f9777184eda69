package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/gregdel/pushover"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
)

// SMTPMailer relays mail through an unauthenticated SMTP server.
type SMTPMailer struct {
	server string
	from   string
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now    func() time.Time
}

func NewSMTPMailer(conf common.MailConfig) *SMTPMailer {
	return &SMTPMailer{server: conf.SmtpServer, from: conf.From, send: smtp.SendMail, now: time.Now}
}

func (m *SMTPMailer) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if recipient == "" {
		return errors.New("missing contact information, please set the email recipient")
	}
	msg := buildMessage(m.from, recipient, subject, body, m.now())
	return errors.Wrapf(m.send(m.server, nil, m.from, []string{recipient}, msg), "cannot send mail via %s", m.server)
}

func buildMessage(from, to, subject, body string, date time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// PushoverFacade is a wrapper on a Pushover client and a recipient. It simplifies function signatures that depend on both.
type PushoverFacade struct {
	push      *pushover.Pushover
	recipient *pushover.Recipient
}

func NewPushoverFacade(conf common.PushoverConfig) *PushoverFacade {
	return &PushoverFacade{
		push:      pushover.New(conf.Token),
		recipient: pushover.NewRecipient(conf.User),
	}
}

func (p *PushoverFacade) SendMessageWithTitle(message, title string) (*pushover.Response, error) {
	return p.push.SendMessage(pushover.NewMessageWithTitle(message, title), p.recipient)
}

// pushoverMaxMessage is the longest message body Pushover accepts.
const pushoverMaxMessage = 1024

// PushoverMailer delivers emails as Pushover notifications. The recipient is fixed by the Pushover
// user key.
type PushoverMailer struct {
	facade *PushoverFacade
}

func NewPushoverMailer(conf common.PushoverConfig) *PushoverMailer {
	return &PushoverMailer{facade: NewPushoverFacade(conf)}
}

func (m *PushoverMailer) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.facade.SendMessageWithTitle(truncateMessage(body, pushoverMaxMessage), subject)
	return errors.Wrap(err, "cannot send Pushover message")
}

func truncateMessage(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
