package newsletterservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sushihentaime/devlog/internal/common"
	"github.com/sushihentaime/devlog/internal/mailservice"
)

var (
	ErrInvalidToken   = errors.New("invalid or expired link")
	ErrDeliveryFailed = mailservice.ErrDeliveryFailed
)

// NewNewsletterService wires the opt-in flow. mb may be nil, in which case no
// status events are published.
func NewNewsletterService(repo Repository, mailer mailservice.Sender, mb common.MessageProducer, logger *slog.Logger, siteURL, name string) *NewsletterService {
	return &NewsletterService{
		repo:    repo,
		mailer:  mailer,
		mb:      mb,
		logger:  logger,
		siteURL: strings.TrimSuffix(siteURL, "/"),
		name:    name,
	}
}

// Signup starts the double opt-in for an address and mails the confirmation
// link. Confirmed subscribers are told so and get no mail.
func (s *NewsletterService) Signup(ctx context.Context, in SignupInput) (*Result, error) {
	email := common.NormalizeEmail(in.Email)

	v := common.NewValidator()
	validateEmail(v, email)
	validateConsent(v, in.Consent)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status == StatusConfirmed {
		return &Result{Message: fmt.Sprintf("You're already subscribed to %s!", s.name), Status: StatusConfirmed}, nil
	}

	source := in.Source
	if source == "" {
		source = defaultSource
	}

	r, err := s.repo.UpsertSignup(ctx, email, SignupPatch{
		Meta: &SignupMeta{
			Source:          source,
			UserAgent:       in.UserAgent,
			IP:              in.IP,
			CreatedFromPath: in.Path,
		},
	})
	if err != nil {
		return nil, err
	}

	data := struct {
		NewsletterName string
		ConfirmURL     string
		UnsubscribeURL string
	}{
		NewsletterName: s.name,
		ConfirmURL:     s.link("confirm", r.ConfirmationToken),
		UnsubscribeURL: s.link("unsubscribe", r.UnsubToken),
	}

	id, err := s.mailer.Send(&mailservice.Message{
		To:       r.Email,
		Template: mailservice.NewsletterConfirmationTemplate,
		Data:     data,
	})
	if err != nil {
		s.logger.Error("could not send confirmation email", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.logger.Info("confirmation email sent", slog.String("message_id", id), slog.String("source", source))

	return &Result{Message: "Check your inbox to confirm your subscription.", Status: r.Status}, nil
}

// Confirm completes the opt-in for the record holding a confirmation token.
// An unsubscribed record is subscribed again.
func (s *NewsletterService) Confirm(ctx context.Context, token string) (*Result, error) {
	r, err := s.findByToken(ctx, token, TokenConfirmation)
	if err != nil {
		return nil, err
	}

	switch r.Status {
	case StatusConfirmed:
		return &Result{Message: fmt.Sprintf("You're already subscribed to %s!", s.name), Status: StatusConfirmed}, nil
	case StatusUnsubscribed:
		if _, err := s.updateStatus(ctx, token, TokenConfirmation, StatusConfirmed); err != nil {
			return nil, err
		}
		return &Result{Message: fmt.Sprintf("Welcome back! You're now re-subscribed to %s.", s.name), Status: StatusConfirmed}, nil
	default:
		if _, err := s.updateStatus(ctx, token, TokenConfirmation, StatusConfirmed); err != nil {
			return nil, err
		}
		return &Result{Message: fmt.Sprintf("You're now subscribed to %s!", s.name), Status: StatusConfirmed}, nil
	}
}

// Unsubscribe ends the subscription for the record holding an unsubscribe
// token. Repeating it is harmless.
func (s *NewsletterService) Unsubscribe(ctx context.Context, token string) (*Result, error) {
	r, err := s.findByToken(ctx, token, TokenUnsub)
	if err != nil {
		return nil, err
	}

	if r.Status == StatusUnsubscribed {
		return &Result{Message: fmt.Sprintf("You're already unsubscribed from %s.", s.name), Status: StatusUnsubscribed}, nil
	}

	if _, err := s.updateStatus(ctx, token, TokenUnsub, StatusUnsubscribed); err != nil {
		return nil, err
	}

	return &Result{Message: fmt.Sprintf("You've been unsubscribed from %s.", s.name), Status: StatusUnsubscribed}, nil
}

// Subscribers lists the stored records, optionally only those with status.
func (s *NewsletterService) Subscribers(ctx context.Context, status Status) ([]SignupRecord, error) {
	v := common.NewValidator()
	validateStatus(v, status)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.repo.List(ctx, status)
}

func (s *NewsletterService) findByToken(ctx context.Context, token string, kind TokenKind) (*SignupRecord, error) {
	v := common.NewValidator()
	validateToken(v, token)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	r, err := s.repo.FindByToken(ctx, token, kind)
	if err != nil {
		switch {
		case errors.Is(err, ErrRecordNotFound):
			return nil, ErrInvalidToken
		default:
			return nil, err
		}
	}

	return r, nil
}

func (s *NewsletterService) updateStatus(ctx context.Context, token string, kind TokenKind, status Status) (*SignupRecord, error) {
	r, err := s.repo.UpdateStatusByToken(ctx, token, kind, status)
	if err != nil {
		switch {
		case errors.Is(err, ErrRecordNotFound):
			return nil, ErrInvalidToken
		default:
			return nil, err
		}
	}

	s.publish(ctx, r)
	return r, nil
}

// publish announces a status change. A broker failure never fails the
// request.
func (s *NewsletterService) publish(ctx context.Context, r *SignupRecord) {
	if s.mb == nil {
		return
	}

	key := common.NewsletterConfirmedKey
	if r.Status == StatusUnsubscribed {
		key = common.NewsletterUnsubscribeKey
	}

	msg, err := json.Marshal(Event{Email: r.Email, Status: r.Status, Timestamp: time.Now().UTC()})
	if err != nil {
		s.logger.Error("could not encode newsletter event", slog.String("error", err.Error()))
		return
	}

	if err := s.mb.Publish(ctx, msg, key, common.NewsletterExchange); err != nil {
		s.logger.Error("could not publish newsletter event", slog.String("key", string(key)), slog.String("error", err.Error()))
	}
}

func (s *NewsletterService) link(action, token string) string {
	return fmt.Sprintf("%s/newsletter/%s?token=%s", s.siteURL, action, url.QueryEscape(token))
}
