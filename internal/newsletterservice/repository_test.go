package newsletterservice

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/devlog/internal/common"
)

func statusptr(s Status) *Status {
	return &s
}

// testRepository exercises the behaviour every Repository backend shares.
func testRepository(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("upsert creates pending record", func(t *testing.T) {
		repo := newRepo(t)

		r, err := repo.UpsertSignup(ctx, "  Reader@Example.COM ", SignupPatch{})
		require.NoError(t, err)

		assert.Equal(t, "reader@example.com", r.Email)
		assert.Equal(t, StatusPending, r.Status)
		assert.Equal(t, defaultSource, r.Meta.Source)
		assert.NotEqual(t, r.ConfirmationToken, r.UnsubToken)
		_, err = uuid.Parse(r.ConfirmationToken)
		assert.NoError(t, err)
		_, err = uuid.Parse(r.UnsubToken)
		assert.NoError(t, err)
		assert.False(t, r.CreatedAt.IsZero())
		assert.Nil(t, r.ConfirmedAt)
		assert.Nil(t, r.UnsubscribedAt)
	})

	t.Run("upsert uses supplied tokens", func(t *testing.T) {
		repo := newRepo(t)

		confirm, unsub := uuid.NewString(), uuid.NewString()
		r, err := repo.UpsertSignup(ctx, "tokens@example.com", SignupPatch{ConfirmationToken: &confirm, UnsubToken: &unsub})
		require.NoError(t, err)

		assert.Equal(t, confirm, r.ConfirmationToken)
		assert.Equal(t, unsub, r.UnsubToken)
	})

	t.Run("upsert deduplicates by normalized email", func(t *testing.T) {
		repo := newRepo(t)

		first, err := repo.UpsertSignup(ctx, "dup@example.com", SignupPatch{})
		require.NoError(t, err)

		second, err := repo.UpsertSignup(ctx, "DUP@example.com ", SignupPatch{Meta: &SignupMeta{Source: "footer_cta", CreatedFromPath: "/blog"}})
		require.NoError(t, err)

		assert.Equal(t, first.ConfirmationToken, second.ConfirmationToken)
		assert.Equal(t, first.UnsubToken, second.UnsubToken)
		assert.Equal(t, "dup@example.com", second.Email)
		assert.Equal(t, "footer_cta", second.Meta.Source)
		assert.Equal(t, "/blog", second.Meta.CreatedFromPath)

		all, err := repo.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("find by email", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.UpsertSignup(ctx, "find@example.com", SignupPatch{})
		require.NoError(t, err)

		r, err := repo.FindByEmail(ctx, " FIND@example.com")
		require.NoError(t, err)
		assert.Equal(t, "find@example.com", r.Email)

		_, err = repo.FindByEmail(ctx, "missing@example.com")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("find by token", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.UpsertSignup(ctx, "token@example.com", SignupPatch{})
		require.NoError(t, err)

		r, err := repo.FindByToken(ctx, created.ConfirmationToken, TokenConfirmation)
		require.NoError(t, err)
		assert.Equal(t, created.Email, r.Email)

		r, err = repo.FindByToken(ctx, created.UnsubToken, TokenUnsub)
		require.NoError(t, err)
		assert.Equal(t, created.Email, r.Email)

		_, err = repo.FindByToken(ctx, created.ConfirmationToken, TokenUnsub)
		assert.ErrorIs(t, err, ErrRecordNotFound)

		_, err = repo.FindByToken(ctx, "not-a-token", TokenConfirmation)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("unknown token changes nothing", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.UpsertSignup(ctx, "one@example.com", SignupPatch{})
		require.NoError(t, err)

		before, err := repo.List(ctx, "")
		require.NoError(t, err)

		_, err = repo.UpdateStatusByToken(ctx, uuid.NewString(), TokenConfirmation, StatusConfirmed)
		assert.ErrorIs(t, err, ErrRecordNotFound)

		after, err := repo.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("state transitions stamp completion times", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.UpsertSignup(ctx, "flow@example.com", SignupPatch{})
		require.NoError(t, err)

		confirmed, err := repo.UpdateStatusByToken(ctx, created.ConfirmationToken, TokenConfirmation, StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, confirmed.Status)
		require.NotNil(t, confirmed.ConfirmedAt)
		assert.Nil(t, confirmed.UnsubscribedAt)

		unsubscribed, err := repo.UpdateStatusByToken(ctx, created.UnsubToken, TokenUnsub, StatusUnsubscribed)
		require.NoError(t, err)
		assert.Equal(t, StatusUnsubscribed, unsubscribed.Status)
		require.NotNil(t, unsubscribed.UnsubscribedAt)
		assert.NotNil(t, unsubscribed.ConfirmedAt)

		resubscribed, err := repo.UpdateStatusByToken(ctx, created.ConfirmationToken, TokenConfirmation, StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, resubscribed.Status)
		require.NotNil(t, resubscribed.UnsubscribedAt)
		assert.True(t, unsubscribed.UnsubscribedAt.Equal(*resubscribed.UnsubscribedAt))

		time.Sleep(5 * time.Millisecond)

		again, err := repo.UpdateStatusByToken(ctx, created.ConfirmationToken, TokenConfirmation, StatusConfirmed)
		require.NoError(t, err)
		require.NotNil(t, again.ConfirmedAt)
		assert.True(t, again.ConfirmedAt.After(*resubscribed.ConfirmedAt), "repeated confirmation re-stamps confirmedAt")
		assert.True(t, resubscribed.UnsubscribedAt.Equal(*again.UnsubscribedAt))

		stored, err := repo.FindByEmail(ctx, "flow@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ConfirmationToken, stored.ConfirmationToken)
		assert.Equal(t, created.UnsubToken, stored.UnsubToken)
	})

	t.Run("upsert rejects records storage could not load", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.UpsertSignup(ctx, "kept@example.com", SignupPatch{})
		require.NoError(t, err)

		_, err = repo.UpsertSignup(ctx, "not-an-email", SignupPatch{})
		var verr common.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Errors, "email")

		bad := "not-a-uuid"
		_, err = repo.UpsertSignup(ctx, "kept@example.com", SignupPatch{UnsubToken: &bad})
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Errors, "unsubToken")

		kept, err := repo.FindByEmail(ctx, "kept@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, bad, kept.UnsubToken)

		records, err := repo.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("upsert patch wins", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.UpsertSignup(ctx, "patch@example.com", SignupPatch{})
		require.NoError(t, err)

		r, err := repo.UpsertSignup(ctx, "patch@example.com", SignupPatch{Status: statusptr(StatusConfirmed), Meta: &SignupMeta{Source: "import", Notes: "migrated"}})
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, r.Status)
		assert.Equal(t, "migrated", r.Meta.Notes)
	})

	t.Run("list filters by status", func(t *testing.T) {
		repo := newRepo(t)

		for i := 0; i < 3; i++ {
			_, err := repo.UpsertSignup(ctx, fmt.Sprintf("list%d@example.com", i), SignupPatch{})
			require.NoError(t, err)
		}
		_, err := repo.UpsertSignup(ctx, "list1@example.com", SignupPatch{Status: statusptr(StatusConfirmed)})
		require.NoError(t, err)

		all, err := repo.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		confirmed, err := repo.List(ctx, StatusConfirmed)
		require.NoError(t, err)
		require.Len(t, confirmed, 1)
		assert.Equal(t, "list1@example.com", confirmed[0].Email)

		unsubscribed, err := repo.List(ctx, StatusUnsubscribed)
		require.NoError(t, err)
		assert.NotNil(t, unsubscribed)
		assert.Empty(t, unsubscribed)
	})

	t.Run("concurrent upserts keep one record per email", func(t *testing.T) {
		repo := newRepo(t)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				email := fmt.Sprintf("user%d@example.com", i%5)
				_, err := repo.UpsertSignup(ctx, email, SignupPatch{})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		all, err := repo.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})
}
