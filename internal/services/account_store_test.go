package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/notely/internal/database/testutil"
	appErrors "github.com/charlesng35/notely/pkg/errors"
)

func newTestAccountStore(t *testing.T) *GormAccountStore {
	t.Helper()
	store, err := NewGormAccountStore(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.NoError(t, err)
	return store
}

func TestNewGormAccountStoreRequiresDB(t *testing.T) {
	_, err := NewGormAccountStore(nil)
	require.Error(t, err)
}

func TestUpsertForSignupCreatesThenOverwrites(t *testing.T) {
	store := newTestAccountStore(t)
	ctx := context.Background()
	expires := time.Date(2024, 3, 1, 9, 10, 0, 0, time.UTC)

	created, err := store.UpsertForSignup(ctx,
		SignupFields{FullName: "Jane", DateOfBirth: "1990-01-01", Email: "jane@x.com"},
		PendingOTP{Hash: "hash-1", ExpiresAt: expires},
	)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "hash-1", created.OTPHash)

	_, err = store.ClaimAttempt(ctx, created, 5)
	require.NoError(t, err)

	updated, err := store.UpsertForSignup(ctx,
		SignupFields{FullName: "Jane Doe", DateOfBirth: "1990-02-02", Email: "jane@x.com"},
		PendingOTP{Hash: "hash-2", ExpiresAt: expires.Add(time.Minute)},
	)
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, "Jane Doe", updated.FullName)
	require.Equal(t, "1990-02-02", updated.DateOfBirth)
	require.Equal(t, "hash-2", updated.OTPHash)
	require.Zero(t, updated.OTPAttempts)
	require.False(t, updated.Verified)
}

func TestFindByEmailNotFound(t *testing.T) {
	store := newTestAccountStore(t)
	_, err := store.FindByEmail(context.Background(), "ghost@x.com")
	require.ErrorIs(t, err, appErrors.ErrAccountNotFound)
}

func TestMarkVerifiedIsConditionalOnCheckedHash(t *testing.T) {
	store := newTestAccountStore(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Minute)

	account, err := store.UpsertForSignup(ctx,
		SignupFields{FullName: "Jane", DateOfBirth: "1990-01-01", Email: "jane@x.com"},
		PendingOTP{Hash: "hash-1", ExpiresAt: expires},
	)
	require.NoError(t, err)

	stale := *account
	require.NoError(t, store.SetPendingOTP(ctx, account, PendingOTP{Hash: "hash-2", ExpiresAt: expires}))

	require.ErrorIs(t, store.MarkVerified(ctx, &stale), appErrors.ErrInvalidOTP)

	require.NoError(t, store.MarkVerified(ctx, account))
	require.True(t, account.Verified)
	require.False(t, account.HasPendingOTP())

	reloaded, err := store.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	require.True(t, reloaded.Verified)
	require.Empty(t, reloaded.OTPHash)
	require.Nil(t, reloaded.OTPExpiresAt)

	require.ErrorIs(t, store.MarkVerified(ctx, reloaded), appErrors.ErrInvalidOTP)
}

func TestLinkFederatedIdentityNeverReplacesSubject(t *testing.T) {
	store := newTestAccountStore(t)
	ctx := context.Background()

	account, err := store.UpsertForSignup(ctx,
		SignupFields{FullName: "Jane", DateOfBirth: "1990-01-01", Email: "jane@x.com"},
		PendingOTP{Hash: "hash-1", ExpiresAt: time.Now().Add(time.Minute)},
	)
	require.NoError(t, err)

	require.NoError(t, store.LinkFederatedIdentity(ctx, account, FederatedIdentity{
		Subject: "sub-1",
		Email:   "jane@x.com",
		Claims:  map[string]any{"provider": "google"},
	}))
	require.True(t, account.Verified)
	require.Equal(t, "sub-1", *account.FederatedSubject)
	require.False(t, account.HasPendingOTP())
	require.Equal(t, "google", account.FederatedClaims["provider"])

	require.NoError(t, store.LinkFederatedIdentity(ctx, account, FederatedIdentity{Subject: "sub-2", Email: "jane@x.com"}))
	require.Equal(t, "sub-1", *account.FederatedSubject)
}

func TestCreateFederatedResolvesConflicts(t *testing.T) {
	store := newTestAccountStore(t)
	ctx := context.Background()

	created, err := store.CreateFederated(ctx, FederatedIdentity{Subject: "sub-1", Email: "jane@x.com", FullName: "Jane"}, "01 January 1990")
	require.NoError(t, err)
	require.True(t, created.Verified)
	require.Equal(t, "01 January 1990", created.DateOfBirth)

	again, err := store.CreateFederated(ctx, FederatedIdentity{Subject: "sub-1", Email: "jane@x.com", FullName: "Jane"}, "01 January 1990")
	require.NoError(t, err)
	require.Equal(t, created.ID, again.ID)

	// Accounts are keyed by email: the same subject under a new email gets its own account.
	moved, err := store.CreateFederated(ctx, FederatedIdentity{Subject: "sub-1", Email: "jane.doe@x.com", FullName: "Jane"}, "01 January 1990")
	require.NoError(t, err)
	require.NotEqual(t, created.ID, moved.ID)
	require.Equal(t, "jane.doe@x.com", moved.Email)
	require.Equal(t, "sub-1", *moved.FederatedSubject)
}

func TestLinkFederatedIdentityAllowsSubjectOnAnotherAccount(t *testing.T) {
	store := newTestAccountStore(t)
	ctx := context.Background()

	_, err := store.CreateFederated(ctx, FederatedIdentity{Subject: "sub-1", Email: "a@x.com", FullName: "Ada"}, "01 January 1990")
	require.NoError(t, err)

	other, err := store.UpsertForSignup(ctx,
		SignupFields{FullName: "Ada", DateOfBirth: "1990-01-01", Email: "b@x.com"},
		PendingOTP{Hash: "hash-1", ExpiresAt: time.Now().Add(time.Minute)},
	)
	require.NoError(t, err)

	require.NoError(t, store.LinkFederatedIdentity(ctx, other, FederatedIdentity{Subject: "sub-1", Email: "b@x.com"}))
	require.Equal(t, "b@x.com", other.Email)
	require.Equal(t, "sub-1", *other.FederatedSubject)
	require.True(t, other.Verified)
}

func TestClaimAttemptIsBoundedByBudget(t *testing.T) {
	store := newTestAccountStore(t)
	ctx := context.Background()

	account, err := store.UpsertForSignup(ctx,
		SignupFields{FullName: "Jane", DateOfBirth: "1990-01-01", Email: "jane@x.com"},
		PendingOTP{Hash: "hash-1", ExpiresAt: time.Now().Add(time.Minute)},
	)
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		got, err := store.ClaimAttempt(ctx, account, 3)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.Equal(t, 3, account.OTPAttempts)

	_, err = store.ClaimAttempt(ctx, account, 3)
	require.ErrorIs(t, err, appErrors.ErrOTPAttemptsExceeded)

	reloaded, err := store.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	require.Equal(t, 3, reloaded.OTPAttempts)

	require.NoError(t, store.SetPendingOTP(ctx, account, PendingOTP{Hash: "hash-2", ExpiresAt: time.Now().Add(time.Minute)}))
	reloaded, err = store.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	require.Zero(t, reloaded.OTPAttempts)
}

func TestClaimAttemptRejectsReplacedOTP(t *testing.T) {
	store := newTestAccountStore(t)
	ctx := context.Background()

	account, err := store.UpsertForSignup(ctx,
		SignupFields{FullName: "Jane", DateOfBirth: "1990-01-01", Email: "jane@x.com"},
		PendingOTP{Hash: "hash-1", ExpiresAt: time.Now().Add(time.Minute)},
	)
	require.NoError(t, err)

	stale := *account
	require.NoError(t, store.SetPendingOTP(ctx, account, PendingOTP{Hash: "hash-2", ExpiresAt: time.Now().Add(time.Minute)}))

	_, err = store.ClaimAttempt(ctx, &stale, 5)
	require.ErrorIs(t, err, appErrors.ErrInvalidOTP)

	stale.OTPHash = ""
	_, err = store.ClaimAttempt(ctx, &stale, 5)
	require.ErrorIs(t, err, appErrors.ErrInvalidOTP)
}
