package services_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
	"storefront/internal/domain"
	"storefront/internal/services"
)

func register(t *testing.T, e *env, email string) (*domain.User, services.TokenPair) {
	t.Helper()
	u, pair, err := e.auth.Register(context.Background(), services.RegisterInput{
		Email: email, Password: "Str0ng!pass", Name: "Alice",
	})
	require.NoError(t, err)
	return u, pair
}

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, pair := register(t, e, "Alice@Example.com")
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, domain.RoleCustomer, u.Role)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	_, _, err := e.auth.Register(ctx, services.RegisterInput{Email: "alice@example.com", Password: "Str0ng!pass", Name: "Dup"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, _, err = e.auth.Register(ctx, services.RegisterInput{Email: "weak@example.com", Password: "password", Name: "Weak"})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Fields, "password")

	got, _, err := e.auth.Login(ctx, services.LoginInput{Email: "ALICE@example.com", Password: "Str0ng!pass"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, _, err = e.auth.Login(ctx, services.LoginInput{Email: "alice@example.com", Password: "wrong"})
	assert.Same(t, services.ErrBadCreds, err)
	_, _, err = e.auth.Login(ctx, services.LoginInput{Email: "nobody@example.com", Password: "Str0ng!pass"})
	assert.Same(t, services.ErrBadCreds, err)
}

func TestAccessTokenResolvesUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, pair := register(t, e, "bob@example.com")

	claims, err := e.auth.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
	assert.Equal(t, "customer", claims.Role)

	cur, err := e.auth.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.Email, cur.Email)

	// A refresh token is not an access token.
	_, err = e.auth.ParseAccess(pair.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	e.auth.Now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = e.auth.ParseAccess(pair.AccessToken)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "expired")
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, first := register(t, e, "carol@example.com")

	_, second, err := e.auth.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// Replaying the rotated token fails and burns the whole family.
	_, _, err = e.auth.Refresh(ctx, first.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	_, _, err = e.auth.Refresh(ctx, second.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, _, err = e.auth.Refresh(ctx, "garbage")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, pair := register(t, e, "dave@example.com")

	require.NoError(t, e.auth.Logout(ctx, pair.RefreshToken))
	require.NoError(t, e.auth.Logout(ctx, pair.RefreshToken), "idempotent")
	require.NoError(t, e.auth.Logout(ctx, ""))

	_, _, err := e.auth.Refresh(ctx, pair.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

var (
	reToken = regexp.MustCompile(`token=([0-9a-f]{64})`)
	reCode  = regexp.MustCompile(`<strong>(\d{6})</strong>`)
)

func TestPasswordResetByToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, pair := register(t, e, "erin@example.com")

	require.NoError(t, e.auth.ForgotPassword(ctx, services.ForgotPasswordInput{Email: "ghost@example.com"}))
	assert.Empty(t, e.outbox.Messages(), "unknown emails send nothing")

	require.NoError(t, e.auth.ForgotPassword(ctx, services.ForgotPasswordInput{Email: "erin@example.com"}))
	msg, ok := e.outbox.Last()
	require.True(t, ok)
	m := reToken.FindStringSubmatch(msg.HTML)
	require.Len(t, m, 2)

	err := e.auth.ResetPassword(ctx, services.ResetPasswordInput{Token: m[1], Password: "N3w!password"})
	require.NoError(t, err)

	err = e.auth.ResetPassword(ctx, services.ResetPasswordInput{Token: m[1], Password: "N3w!password2"})
	assert.True(t, apperr.Is(err, apperr.KindBusinessLogic), "token is single use")

	_, _, err = e.auth.Login(ctx, services.LoginInput{Email: "erin@example.com", Password: "N3w!password"})
	require.NoError(t, err)
	_, _, err = e.auth.Refresh(ctx, pair.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "reset signs out existing sessions")
}

func TestPasswordResetTokenExpires(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	register(t, e, "frank@example.com")

	require.NoError(t, e.auth.ForgotPassword(ctx, services.ForgotPasswordInput{Email: "frank@example.com"}))
	msg, _ := e.outbox.Last()
	token := reToken.FindStringSubmatch(msg.HTML)[1]

	e.auth.Now = func() time.Time { return time.Now().Add(61 * time.Minute) }
	err := e.auth.ResetPassword(ctx, services.ResetPasswordInput{Token: token, Password: "N3w!password"})
	assert.True(t, apperr.Is(err, apperr.KindBusinessLogic))
}

func TestPasswordResetByOTP(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	register(t, e, "gina@example.com")

	require.NoError(t, e.auth.RequestOTP(ctx, services.ForgotPasswordInput{Email: "gina@example.com"}))
	msg, _ := e.outbox.Last()
	code := reCode.FindStringSubmatch(msg.HTML)[1]

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	err := e.auth.VerifyOTP(ctx, services.VerifyOTPInput{Email: "gina@example.com", Code: wrong, Password: "N3w!password"})
	assert.True(t, apperr.Is(err, apperr.KindBusinessLogic))

	err = e.auth.VerifyOTP(ctx, services.VerifyOTPInput{Email: "gina@example.com", Code: code, Password: "N3w!password"})
	require.NoError(t, err)

	_, _, err = e.auth.Login(ctx, services.LoginInput{Email: "gina@example.com", Password: "N3w!password"})
	assert.NoError(t, err)
}

func TestOTPAttemptLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	register(t, e, "hank@example.com")

	require.NoError(t, e.auth.RequestOTP(ctx, services.ForgotPasswordInput{Email: "hank@example.com"}))
	msg, _ := e.outbox.Last()
	code := reCode.FindStringSubmatch(msg.HTML)[1]
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < 5; i++ {
		err := e.auth.VerifyOTP(ctx, services.VerifyOTPInput{Email: "hank@example.com", Code: wrong, Password: "N3w!password"})
		require.Error(t, err)
	}
	err := e.auth.VerifyOTP(ctx, services.VerifyOTPInput{Email: "hank@example.com", Code: code, Password: "N3w!password"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many attempts")
}

func TestConcurrentWrongCodesNeverPassTheLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, _ := register(t, e, "ivy@example.com")

	require.NoError(t, e.auth.RequestOTP(ctx, services.ForgotPasswordInput{Email: "ivy@example.com"}))
	msg, _ := e.outbox.Last()
	wrong := "000000"
	if reCode.FindStringSubmatch(msg.HTML)[1] == wrong {
		wrong = "111111"
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.auth.VerifyOTP(ctx, services.VerifyOTPInput{Email: "ivy@example.com", Code: wrong, Password: "N3w!password"})
		}()
	}
	wg.Wait()

	var attempts int
	require.NoError(t, e.db.Get(&attempts, `SELECT attempts FROM password_resets WHERE user_id = ? AND kind = 'otp'`, u.ID))
	assert.Equal(t, 5, attempts)
}

func TestVerifyOTPUnknownEmailLooksLikeBadCode(t *testing.T) {
	e := newEnv(t)
	err := e.auth.VerifyOTP(context.Background(), services.VerifyOTPInput{
		Email: "nobody@example.com", Code: "123456", Password: "N3w!password",
	})
	assert.True(t, apperr.Is(err, apperr.KindBusinessLogic))
}
