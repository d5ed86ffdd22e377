package contactservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sushihentaime/devlog/internal/common"
	"github.com/sushihentaime/devlog/internal/mailservice"
)

var ErrDeliveryFailed = mailservice.ErrDeliveryFailed

type ContactService struct {
	mailer    mailservice.Sender
	recipient string
	logger    *slog.Logger
}

type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type Result struct {
	Message   string `json:"message"`
	MessageID string `json:"-"`
}

// NewContactService relays submissions to recipient.
func NewContactService(mailer mailservice.Sender, recipient string, logger *slog.Logger) *ContactService {
	return &ContactService{
		mailer:    mailer,
		recipient: recipient,
		logger:    logger,
	}
}

func validateSubmission(v *common.Validator, in *Submission) {
	v.Check(in.Name != "", "name", "name is required")
	v.Check(v.CheckStringLength(in.Name, 0, 100), "name", "must not be more than 100 characters long")

	v.Check(in.Email != "", "email", "must be provided")
	v.Check(common.EmailRX.MatchString(in.Email), "email", "invalid email address")

	v.Check(v.CheckStringLength(in.Message, 10, 5000), "message", "must be between 10 and 5000 characters long")
}

// Submit validates a contact form submission and mails it to the site owner
// with Reply-To set to the visitor. There is exactly one delivery attempt.
func (s *ContactService) Submit(ctx context.Context, in Submission) (*Result, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Message = strings.TrimSpace(in.Message)

	v := common.NewValidator()
	validateSubmission(v, &in)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	id, err := s.mailer.Send(&mailservice.Message{
		To:       s.recipient,
		ReplyTo:  in.Email,
		Template: mailservice.ContactMessageTemplate,
		Data:     in,
	})
	if err != nil {
		s.logger.Error("could not send contact email", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.logger.Info("contact email sent", slog.String("message_id", id))

	return &Result{Message: "Your message has been sent successfully!", MessageID: id}, nil
}
