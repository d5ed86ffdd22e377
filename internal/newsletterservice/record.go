package newsletterservice

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sushihentaime/devlog/internal/common"
)

var (
	ErrRecordNotFound = errors.New("signup record not found")
	ErrCorruptStore   = errors.New("newsletter store is corrupt")
)

// newRecord builds a pending record for email, taking tokens and meta from
// the patch when supplied.
func newRecord(email string, patch SignupPatch, now time.Time) SignupRecord {
	r := SignupRecord{
		Email:             email,
		Status:            StatusPending,
		ConfirmationToken: uuid.NewString(),
		UnsubToken:        uuid.NewString(),
		Meta:              SignupMeta{Source: defaultSource},
		CreatedAt:         now.UTC(),
	}
	patch.apply(&r)
	return r
}

func (p SignupPatch) apply(r *SignupRecord) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.ConfirmationToken != nil {
		r.ConfirmationToken = *p.ConfirmationToken
	}
	if p.UnsubToken != nil {
		r.UnsubToken = *p.UnsubToken
	}
	if p.Meta != nil {
		r.Meta = *p.Meta
	}
	if p.ConfirmedAt != nil {
		t := p.ConfirmedAt.UTC()
		r.ConfirmedAt = &t
	}
	if p.UnsubscribedAt != nil {
		t := p.UnsubscribedAt.UTC()
		r.UnsubscribedAt = &t
	}
}

// setStatus moves r to status. Every move to confirmed or unsubscribed,
// repeated ones included, stamps the matching completion time. The other
// timestamp is left alone and nothing is ever cleared.
func (r *SignupRecord) setStatus(status Status, now time.Time) {
	t := now.UTC()
	switch status {
	case StatusConfirmed:
		r.ConfirmedAt = &t
	case StatusUnsubscribed:
		r.UnsubscribedAt = &t
	}
	r.Status = status
}

func (r *SignupRecord) token(kind TokenKind) string {
	if kind == TokenConfirmation {
		return r.ConfirmationToken
	}
	return r.UnsubToken
}

func (r *SignupRecord) clone() *SignupRecord {
	c := *r
	if r.ConfirmedAt != nil {
		t := *r.ConfirmedAt
		c.ConfirmedAt = &t
	}
	if r.UnsubscribedAt != nil {
		t := *r.UnsubscribedAt
		c.UnsubscribedAt = &t
	}
	return &c
}

// checkRecord rejects a record that storage would later refuse to load.
func checkRecord(r *SignupRecord) error {
	v := common.NewValidator()
	validateStored(v, r)
	if !v.Valid() {
		return v.ValidationError()
	}
	return nil
}

// validateStored checks a record read back from storage or about to be
// written.
func validateStored(v *common.Validator, r *SignupRecord) {
	v.Check(common.EmailRX.MatchString(r.Email), "email", "must be a valid email address")
	v.Check(common.PermittedValue(r.Status, StatusPending, StatusConfirmed, StatusUnsubscribed), "status", "must be one of pending, confirmed or unsubscribed")
	v.Check(common.UUIDRX.MatchString(r.ConfirmationToken), "confirmationToken", "must be a UUID")
	v.Check(common.UUIDRX.MatchString(r.UnsubToken), "unsubToken", "must be a UUID")
	v.Check(!r.CreatedAt.IsZero(), "createdAt", "must be provided")
}
