package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/notely/internal/auth"
	"github.com/charlesng35/notely/internal/auth/providers"
	"github.com/charlesng35/notely/internal/database/testutil"
	"github.com/charlesng35/notely/internal/models"
)

type sentOTP struct {
	Email string
	Code  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentOTP
	err  error
}

func (n *fakeNotifier) SendOTP(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentOTP{Email: email, Code: code})
	return nil
}

func (n *fakeNotifier) failWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *fakeNotifier) lastCode(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "expected an OTP to have been sent")
	return n.sent[len(n.sent)-1].Code
}

type fakeVerifier struct {
	identities map[string]*providers.Identity
	codes      map[string]string
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{
		identities: map[string]*providers.Identity{},
		codes:      map[string]string{},
	}
}

func (v *fakeVerifier) Verify(_ context.Context, rawIDToken string) (*providers.Identity, error) {
	identity, ok := v.identities[rawIDToken]
	if !ok {
		return nil, errors.New("oidc: id token signature invalid")
	}
	cpy := *identity
	return &cpy, nil
}

func (v *fakeVerifier) Exchange(_ context.Context, code string) (string, error) {
	assertion, ok := v.codes[code]
	if !ok {
		return "", errors.New("oauth2: invalid_grant")
	}
	return assertion, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type authFixture struct {
	db       *gorm.DB
	store    *GormAccountStore
	notifier *fakeNotifier
	verifier *fakeVerifier
	tokens   *auth.JWTService
	clock    *testClock
	svc      *AuthService
}

func newAuthFixture(t *testing.T, opts ...AuthOption) *authFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewGormAccountStore(db)
	require.NoError(t, err)

	clock := newTestClock()
	tokens, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "notely", Clock: clock.Now})
	require.NoError(t, err)

	f := &authFixture{
		db:       db,
		store:    store,
		notifier: &fakeNotifier{},
		verifier: newFakeVerifier(),
		tokens:   tokens,
		clock:    clock,
	}

	base := []AuthOption{
		WithAuthClock(clock.Now),
		WithOTPHashCost(bcrypt.MinCost),
		WithIdentityVerifier(f.verifier),
	}
	f.svc, err = NewAuthService(store, f.notifier, tokens, append(base, opts...)...)
	require.NoError(t, err)
	return f
}

func (f *authFixture) account(t *testing.T, email string) *models.Account {
	t.Helper()
	var account models.Account
	require.NoError(t, f.db.Where("email = ?", email).Take(&account).Error)
	return &account
}

func (f *authFixture) accountCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Account{}).Count(&count).Error)
	return count
}

// signupAndVerify drives an email through Signup and VerifyOTP.
func (f *authFixture) signupAndVerify(t *testing.T, fullName, dob, email string) *SessionResult {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.Signup(ctx, SignupInput{FullName: fullName, DateOfBirth: dob, Email: email}))
	result, err := f.svc.VerifyOTP(ctx, email, f.notifier.lastCode(t))
	require.NoError(t, err)
	return result
}
