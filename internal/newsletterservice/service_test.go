package newsletterservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/devlog/internal/common"
	"github.com/sushihentaime/devlog/internal/mailservice"
)

type MockProducer struct {
	mock.Mock
}

func (p *MockProducer) Publish(ctx context.Context, msg []byte, key common.BindingKey, exchange common.Exchange) error {
	args := p.Called(ctx, msg, key, exchange)
	return args.Error(0)
}

func setupTestService(t *testing.T) (*NewsletterService, *FileStore, *mailservice.MockSender, *MockProducer) {
	t.Helper()

	store := NewFileStore(filepath.Join(t.TempDir(), "subscribers.json"))
	sender := new(mailservice.MockSender)
	producer := new(MockProducer)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewNewsletterService(store, sender, producer, logger, "https://example.com/", "The Upkeep"), store, sender, producer
}

func TestSignup(t *testing.T) {
	ctx := context.Background()

	t.Run("valid signup", func(t *testing.T) {
		s, store, sender, _ := setupTestService(t)
		sender.On("Send", mock.Anything).Return("<id@example.com>", nil)

		result, err := s.Signup(ctx, SignupInput{Email: " Reader@Example.com", Consent: true, Source: "footer_cta", Path: "/blog/post", IP: "203.0.113.9"})
		require.NoError(t, err)
		assert.Equal(t, StatusPending, result.Status)

		r, err := store.FindByEmail(ctx, "reader@example.com")
		require.NoError(t, err)
		assert.Equal(t, SignupMeta{Source: "footer_cta", IP: "203.0.113.9", CreatedFromPath: "/blog/post"}, r.Meta)

		require.Len(t, sender.Sent, 1)
		msg := sender.Sent[0]
		assert.Equal(t, "reader@example.com", msg.To)
		assert.Equal(t, mailservice.NewsletterConfirmationTemplate, msg.Template)

		data, err := json.Marshal(msg.Data)
		require.NoError(t, err)
		assert.Contains(t, string(data), "https://example.com/newsletter/confirm?token="+r.ConfirmationToken)
		assert.Contains(t, string(data), "https://example.com/newsletter/unsubscribe?token="+r.UnsubToken)
		assert.Contains(t, string(data), "The Upkeep")
	})

	t.Run("default source", func(t *testing.T) {
		s, store, sender, _ := setupTestService(t)
		sender.On("Send", mock.Anything).Return("<id@example.com>", nil)

		_, err := s.Signup(ctx, SignupInput{Email: "plain@example.com", Consent: true})
		require.NoError(t, err)

		r, err := store.FindByEmail(ctx, "plain@example.com")
		require.NoError(t, err)
		assert.Equal(t, "unknown", r.Meta.Source)
	})

	t.Run("validation", func(t *testing.T) {
		testCases := []struct {
			name   string
			input  SignupInput
			fields []string
		}{
			{name: "missing email", input: SignupInput{Consent: true}, fields: []string{"email"}},
			{name: "invalid email", input: SignupInput{Email: "not-an-email", Consent: true}, fields: []string{"email"}},
			{name: "no consent", input: SignupInput{Email: "a@example.com"}, fields: []string{"consent"}},
			{name: "nothing", input: SignupInput{}, fields: []string{"email", "consent"}},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				s, store, sender, _ := setupTestService(t)

				_, err := s.Signup(ctx, tc.input)

				var verr common.ValidationError
				require.True(t, errors.As(err, &verr))
				for _, field := range tc.fields {
					assert.Contains(t, verr.Errors, field)
				}

				records, err := store.List(ctx, "")
				require.NoError(t, err)
				assert.Empty(t, records)
				assert.Empty(t, sender.Sent)
			})
		}
	})

	t.Run("already confirmed", func(t *testing.T) {
		s, store, sender, _ := setupTestService(t)

		_, err := store.UpsertSignup(ctx, "done@example.com", SignupPatch{Status: statusptr(StatusConfirmed)})
		require.NoError(t, err)

		result, err := s.Signup(ctx, SignupInput{Email: "DONE@example.com", Consent: true})
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, result.Status)
		assert.Equal(t, "You're already subscribed to The Upkeep!", result.Message)
		assert.Empty(t, sender.Sent)
	})

	t.Run("repeat signup keeps tokens", func(t *testing.T) {
		s, store, sender, _ := setupTestService(t)
		sender.On("Send", mock.Anything).Return("<id@example.com>", nil)

		_, err := s.Signup(ctx, SignupInput{Email: "again@example.com", Consent: true})
		require.NoError(t, err)
		first, err := store.FindByEmail(ctx, "again@example.com")
		require.NoError(t, err)

		_, err = s.Signup(ctx, SignupInput{Email: "again@example.com", Consent: true, Source: "newsletter_page"})
		require.NoError(t, err)
		second, err := store.FindByEmail(ctx, "again@example.com")
		require.NoError(t, err)

		assert.Equal(t, first.ConfirmationToken, second.ConfirmationToken)
		assert.Equal(t, "newsletter_page", second.Meta.Source)
		assert.Len(t, sender.Sent, 2)
	})

	t.Run("delivery failure", func(t *testing.T) {
		s, store, sender, _ := setupTestService(t)
		sender.On("Send", mock.Anything).Return("", errors.New("connection refused"))

		_, err := s.Signup(ctx, SignupInput{Email: "fail@example.com", Consent: true})
		assert.ErrorIs(t, err, ErrDeliveryFailed)
		sender.AssertNumberOfCalls(t, "Send", 1)

		// the pending record stays so a later signup reuses its tokens
		r, err := store.FindByEmail(ctx, "fail@example.com")
		require.NoError(t, err)
		assert.Equal(t, StatusPending, r.Status)
	})
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name        string
		status      Status
		wantMessage string
		publishes   bool
	}{
		{name: "pending", status: StatusPending, wantMessage: "You're now subscribed to The Upkeep!", publishes: true},
		{name: "already confirmed", status: StatusConfirmed, wantMessage: "You're already subscribed to The Upkeep!"},
		{name: "unsubscribed", status: StatusUnsubscribed, wantMessage: "Welcome back! You're now re-subscribed to The Upkeep.", publishes: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, store, _, producer := setupTestService(t)
			producer.On("Publish", mock.Anything, mock.Anything, common.NewsletterConfirmedKey, common.NewsletterExchange).Return(nil)

			r, err := store.UpsertSignup(ctx, "confirm@example.com", SignupPatch{Status: statusptr(tc.status)})
			require.NoError(t, err)

			result, err := s.Confirm(ctx, r.ConfirmationToken)
			require.NoError(t, err)
			assert.Equal(t, tc.wantMessage, result.Message)
			assert.Equal(t, StatusConfirmed, result.Status)

			stored, err := store.FindByEmail(ctx, "confirm@example.com")
			require.NoError(t, err)
			assert.Equal(t, StatusConfirmed, stored.Status)

			if tc.publishes {
				producer.AssertNumberOfCalls(t, "Publish", 1)
				var event Event
				require.NoError(t, json.Unmarshal(producer.Calls[0].Arguments.Get(1).([]byte), &event))
				assert.Equal(t, "confirm@example.com", event.Email)
				assert.Equal(t, StatusConfirmed, event.Status)
			} else {
				producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestConfirmInvalidToken(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := setupTestService(t)

	_, err := store.UpsertSignup(ctx, "someone@example.com", SignupPatch{})
	require.NoError(t, err)

	_, err = s.Confirm(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Confirm(ctx, "not-a-uuid")
	var verr common.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Errors, "token")

	records, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StatusPending, records[0].Status)
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name        string
		status      Status
		wantMessage string
		publishes   bool
	}{
		{name: "pending", status: StatusPending, wantMessage: "You've been unsubscribed from The Upkeep.", publishes: true},
		{name: "confirmed", status: StatusConfirmed, wantMessage: "You've been unsubscribed from The Upkeep.", publishes: true},
		{name: "already unsubscribed", status: StatusUnsubscribed, wantMessage: "You're already unsubscribed from The Upkeep."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, store, _, producer := setupTestService(t)
			producer.On("Publish", mock.Anything, mock.Anything, common.NewsletterUnsubscribeKey, common.NewsletterExchange).Return(nil)

			r, err := store.UpsertSignup(ctx, "leave@example.com", SignupPatch{Status: statusptr(tc.status)})
			require.NoError(t, err)

			result, err := s.Unsubscribe(ctx, r.UnsubToken)
			require.NoError(t, err)
			assert.Equal(t, tc.wantMessage, result.Message)
			assert.Equal(t, StatusUnsubscribed, result.Status)

			if tc.publishes {
				producer.AssertNumberOfCalls(t, "Publish", 1)
			} else {
				producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}

	t.Run("confirmation token is not an unsubscribe token", func(t *testing.T) {
		s, store, _, _ := setupTestService(t)

		r, err := store.UpsertSignup(ctx, "mixed@example.com", SignupPatch{})
		require.NoError(t, err)

		_, err = s.Unsubscribe(ctx, r.ConfirmationToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPublishFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	s, store, _, producer := setupTestService(t)
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	r, err := store.UpsertSignup(ctx, "broker@example.com", SignupPatch{})
	require.NoError(t, err)

	result, err := s.Confirm(ctx, r.ConfirmationToken)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, result.Status)
}

func TestWithoutBroker(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "subscribers.json"))
	s := NewNewsletterService(store, new(mailservice.MockSender), nil, slog.New(slog.NewTextHandler(io.Discard, nil)), "https://example.com", "The Upkeep")

	r, err := store.UpsertSignup(ctx, "nobroker@example.com", SignupPatch{})
	require.NoError(t, err)

	_, err = s.Unsubscribe(ctx, r.UnsubToken)
	assert.NoError(t, err)
}

func TestSubscribers(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := setupTestService(t)

	_, err := store.UpsertSignup(ctx, "a@example.com", SignupPatch{})
	require.NoError(t, err)
	_, err = store.UpsertSignup(ctx, "b@example.com", SignupPatch{Status: statusptr(StatusConfirmed)})
	require.NoError(t, err)

	all, err := s.Subscribers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	confirmed, err := s.Subscribers(ctx, StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "b@example.com", confirmed[0].Email)

	_, err = s.Subscribers(ctx, "bogus")
	var verr common.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Errors, "status")
}
