package newsletterservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sushihentaime/devlog/internal/common"
)

// PostgresStore keeps signup records in the newsletter_signups table. Every
// mutation runs in its own transaction.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: func() time.Time {
		// timestamptz keeps microseconds
		return time.Now().Truncate(time.Microsecond)
	}}
}

const signupColumns = `email, status, confirmation_token, unsub_token, source, user_agent, ip, created_from_path, notes, created_at, confirmed_at, unsubscribed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignup(row rowScanner) (*SignupRecord, error) {
	var (
		r              SignupRecord
		confirmedAt    sql.NullTime
		unsubscribedAt sql.NullTime
	)

	err := row.Scan(
		&r.Email,
		&r.Status,
		&r.ConfirmationToken,
		&r.UnsubToken,
		&r.Meta.Source,
		&r.Meta.UserAgent,
		&r.Meta.IP,
		&r.Meta.CreatedFromPath,
		&r.Meta.Notes,
		&r.CreatedAt,
		&confirmedAt,
		&unsubscribedAt,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	r.CreatedAt = r.CreatedAt.UTC()
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		r.ConfirmedAt = &t
	}
	if unsubscribedAt.Valid {
		t := unsubscribedAt.Time.UTC()
		r.UnsubscribedAt = &t
	}

	return &r, nil
}

func tokenColumn(kind TokenKind) string {
	if kind == TokenConfirmation {
		return "confirmation_token"
	}
	return "unsub_token"
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*SignupRecord, error) {
	query := `
		SELECT ` + signupColumns + `
		FROM newsletter_signups
		WHERE email = $1`

	return scanSignup(s.db.QueryRowContext(ctx, query, common.NormalizeEmail(email)))
}

func (s *PostgresStore) FindByToken(ctx context.Context, token string, kind TokenKind) (*SignupRecord, error) {
	// a malformed token cannot match a uuid column
	if !common.UUIDRX.MatchString(token) {
		return nil, ErrRecordNotFound
	}

	query := `
		SELECT ` + signupColumns + `
		FROM newsletter_signups
		WHERE ` + tokenColumn(kind) + ` = $1`

	return scanSignup(s.db.QueryRowContext(ctx, query, token))
}

// UpsertSignup merges patch into the record for email under a per-email
// advisory lock, creating a pending record when there is none.
func (s *PostgresStore) UpsertSignup(ctx context.Context, email string, patch SignupPatch) (*SignupRecord, error) {
	email = common.NormalizeEmail(email)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, email); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + signupColumns + `
		FROM newsletter_signups
		WHERE email = $1
		FOR UPDATE`

	r, err := scanSignup(tx.QueryRowContext(ctx, query, email))
	switch {
	case errors.Is(err, ErrRecordNotFound):
		created := newRecord(email, patch, s.now())
		if err := checkRecord(&created); err != nil {
			return nil, err
		}
		if err := insertSignup(ctx, tx, &created); err != nil {
			return nil, err
		}
		r = &created
	case err != nil:
		return nil, err
	default:
		patch.apply(r)
		if err := checkRecord(r); err != nil {
			return nil, err
		}
		if err := updateSignup(ctx, tx, r); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r, nil
}

// UpdateStatusByToken sets the status of the record holding token. An unknown
// token returns ErrRecordNotFound without writing.
func (s *PostgresStore) UpdateStatusByToken(ctx context.Context, token string, kind TokenKind, status Status) (*SignupRecord, error) {
	if !common.UUIDRX.MatchString(token) {
		return nil, ErrRecordNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
		SELECT ` + signupColumns + `
		FROM newsletter_signups
		WHERE ` + tokenColumn(kind) + ` = $1
		FOR UPDATE`

	r, err := scanSignup(tx.QueryRowContext(ctx, query, token))
	if err != nil {
		return nil, err
	}

	r.setStatus(status, s.now())
	if err := updateSignup(ctx, tx, r); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, status Status) ([]SignupRecord, error) {
	query := `
		SELECT ` + signupColumns + `
		FROM newsletter_signups
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at, email`

	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []SignupRecord{}
	for rows.Next() {
		r, err := scanSignup(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func insertSignup(ctx context.Context, tx *sql.Tx, r *SignupRecord) error {
	query := `
		INSERT INTO newsletter_signups (` + signupColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	args := []any{
		r.Email,
		r.Status,
		r.ConfirmationToken,
		r.UnsubToken,
		r.Meta.Source,
		r.Meta.UserAgent,
		r.Meta.IP,
		r.Meta.CreatedFromPath,
		r.Meta.Notes,
		r.CreatedAt,
		r.ConfirmedAt,
		r.UnsubscribedAt,
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("could not insert signup: %w", err)
	}

	return nil
}

func updateSignup(ctx context.Context, tx *sql.Tx, r *SignupRecord) error {
	query := `
		UPDATE newsletter_signups
		SET status = $2, confirmation_token = $3, unsub_token = $4, source = $5, user_agent = $6,
			ip = $7, created_from_path = $8, notes = $9, confirmed_at = $10, unsubscribed_at = $11
		WHERE email = $1`

	args := []any{
		r.Email,
		r.Status,
		r.ConfirmationToken,
		r.UnsubToken,
		r.Meta.Source,
		r.Meta.UserAgent,
		r.Meta.IP,
		r.Meta.CreatedFromPath,
		r.Meta.Notes,
		r.ConfirmedAt,
		r.UnsubscribedAt,
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("could not update signup: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows != 1 {
		switch {
		case rows == 0:
			return ErrRecordNotFound
		default:
			return errors.New("too many rows affected")
		}
	}

	return nil
}
