package sender

import (
	"context"

	"github.com/mailgun/mailgun-go/v3"
	"github.com/pkg/errors"
)

// EmailSender attempts exactly one delivery through the email channel.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type MailgunOption func(t *mailgunSender)

func SetReplyTo(replyTo string) MailgunOption {
	return func(t *mailgunSender) {
		t.replyTo = replyTo
	}
}

type mailgunSender struct {
	mg   mailgun.Mailgun
	from string

	replyTo string
}

// NewMailgunSender wires the Mailgun transactional API as the email channel.
// Missing credentials are a configuration fault and fail construction so a
// bad deploy surfaces immediately instead of as mass recipient failure.
func NewMailgunSender(domain, apiKey, from string, options ...MailgunOption) (EmailSender, error) {
	if domain == "" || apiKey == "" {
		return nil, errors.New("mailgun credentials are not configured")
	}
	if from == "" {
		return nil, errors.New("email from address is not configured")
	}

	t := &mailgunSender{
		mg:   mailgun.NewMailgun(domain, apiKey),
		from: from,
	}

	for _, option := range options {
		option(t)
	}

	return t, nil
}

func (t *mailgunSender) Send(ctx context.Context, to, subject, body string) error {
	msg := t.mg.NewMessage(t.from, subject, body, to)
	msg.SetHtml(body)

	if t.replyTo != "" {
		msg.SetReplyTo(t.replyTo)
	}

	_, _, err := t.mg.Send(ctx, msg)
	return errors.Wrap(err, "failed to send email")
}
