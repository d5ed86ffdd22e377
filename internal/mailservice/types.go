package mailservice

import (
	"bytes"
	"sync"

	"github.com/go-mail/mail/v2"
)

// Message is one outbound email. Data is handed to the named template.
type Message struct {
	To       string
	ReplyTo  string
	Template string
	Data     any
}

// Sender delivers a message and returns the provider message id.
type Sender interface {
	Send(msg *Message) (string, error)
}

type Mail struct {
	mu     sync.Mutex // guards parser
	dialer Dialer
	parser TemplateParser
	sender string
	domain string
}

type Template struct {
	parsed sync.Map
}

type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type TemplateParser interface {
	ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error)
}
