package mailservice

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	gomail "github.com/go-mail/mail/v2"
	"github.com/google/uuid"
)

const (
	NewsletterConfirmationTemplate = "newsletter_confirmation.html"
	ContactMessageTemplate         = "contact_message.html"
)

var (
	ErrNoRecipient = errors.New("message has no recipient")

	// ErrDeliveryFailed is wrapped by services that could not hand a message
	// to the mail server.
	ErrDeliveryFailed = errors.New("email delivery failed")
)

// NewMailer creates a new mailer with the given host, port, username, password, sender, and template.
func NewMailer(host string, port int, username, password, sender string, tp TemplateParser) *Mail {
	dialer := gomail.NewDialer(host, port, username, password)
	dialer.Timeout = 5 * time.Second

	return &Mail{
		dialer: dialer,
		sender: sender,
		parser: tp,
		domain: senderDomain(sender),
	}
}

// Send renders the message template and makes a single delivery attempt.
func (m *Mail) Send(msg *Message) (string, error) {
	if msg.To == "" {
		return "", ErrNoRecipient
	}

	m.mu.Lock()
	subject, plainBody, htmlBody, err := m.parser.ParseTemplate(msg.Template, msg.Data)
	m.mu.Unlock()
	if err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.domain)

	out := gomail.NewMessage()
	out.SetHeader("From", m.sender)
	out.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		out.SetHeader("Reply-To", msg.ReplyTo)
	}
	out.SetHeader("Message-ID", messageID)
	out.SetHeader("Subject", subject.String())
	out.SetBody("text/plain", plainBody.String())
	out.AddAlternative("text/html", htmlBody.String())

	err = m.dialer.DialAndSend(out)
	if err != nil {
		return "", err
	}

	return messageID, nil
}

func senderDomain(sender string) string {
	addr, err := mail.ParseAddress(sender)
	if err != nil {
		return "localhost"
	}
	if i := strings.LastIndex(addr.Address, "@"); i >= 0 {
		return addr.Address[i+1:]
	}
	return "localhost"
}
