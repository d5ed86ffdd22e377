package newsletterservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/sushihentaime/devlog/internal/common"
	"github.com/sushihentaime/devlog/internal/mailservice"
)

type Status string

const (
	StatusPending      Status = "pending"
	StatusConfirmed    Status = "confirmed"
	StatusUnsubscribed Status = "unsubscribed"
)

// TokenKind selects which of a record's two tokens a lookup matches.
type TokenKind string

const (
	TokenConfirmation TokenKind = "confirmation"
	TokenUnsub        TokenKind = "unsub"
)

const defaultSource = "unknown"

type SignupMeta struct {
	Source          string `json:"source"`
	UserAgent       string `json:"userAgent,omitempty"`
	IP              string `json:"ip,omitempty"`
	CreatedFromPath string `json:"createdFromPath,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type SignupRecord struct {
	Email             string     `json:"email"`
	Status            Status     `json:"status"`
	ConfirmationToken string     `json:"confirmationToken"`
	UnsubToken        string     `json:"unsubToken"`
	Meta              SignupMeta `json:"meta"`
	CreatedAt         time.Time  `json:"createdAt"`
	ConfirmedAt       *time.Time `json:"confirmedAt"`
	UnsubscribedAt    *time.Time `json:"unsubscribedAt"`
}

// SignupPatch holds the fields an upsert overwrites. Nil fields are left
// unchanged.
type SignupPatch struct {
	Status            *Status
	ConfirmationToken *string
	UnsubToken        *string
	Meta              *SignupMeta
	ConfirmedAt       *time.Time
	UnsubscribedAt    *time.Time
}

// Repository stores one signup record per normalized email address.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*SignupRecord, error)
	FindByToken(ctx context.Context, token string, kind TokenKind) (*SignupRecord, error)
	UpsertSignup(ctx context.Context, email string, patch SignupPatch) (*SignupRecord, error)
	UpdateStatusByToken(ctx context.Context, token string, kind TokenKind, status Status) (*SignupRecord, error)
	List(ctx context.Context, status Status) ([]SignupRecord, error)
}

type NewsletterService struct {
	repo    Repository
	mailer  mailservice.Sender
	mb      common.MessageProducer
	logger  *slog.Logger
	siteURL string
	name    string
}

type SignupInput struct {
	Email     string `json:"email"`
	Consent   bool   `json:"consent"`
	Source    string `json:"source"`
	Path      string `json:"path"`
	UserAgent string `json:"-"`
	IP        string `json:"-"`
}

// Result is the outcome of a signup or token action, worded for the visitor.
type Result struct {
	Message string `json:"message"`
	Status  Status `json:"status"`
}

// Event is published whenever a subscription changes state.
type Event struct {
	Email     string    `json:"email"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
