package mailservice

import (
	"bytes"

	gomail "github.com/go-mail/mail/v2"
	"github.com/stretchr/testify/mock"
)

type MockTemplate struct {
	mock.Mock
}

func (m *MockTemplate) ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error) {
	args := m.Called(name, data)
	if args.Get(0) == nil {
		return nil, nil, nil, args.Error(3)
	}
	return args.Get(0).(*bytes.Buffer), args.Get(1).(*bytes.Buffer), args.Get(2).(*bytes.Buffer), args.Error(3)
}

type MockDialer struct {
	mock.Mock
}

func (d *MockDialer) DialAndSend(m ...*gomail.Message) error {
	args := d.Called(m)
	return args.Error(0)
}

// MockSender records every message it is asked to deliver.
type MockSender struct {
	mock.Mock
	Sent []*Message
}

func (s *MockSender) Send(msg *Message) (string, error) {
	s.Sent = append(s.Sent, msg)
	args := s.Called(msg)
	return args.String(0), args.Error(1)
}
