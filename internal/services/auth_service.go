package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/apperr"
	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/mail"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

const (
	resetTokenTTL  = time.Hour
	otpTTL         = 10 * time.Minute
	otpMaxAttempts = 5
)

var (
	ErrBadCreds     = apperr.Unauthorized("invalid email or password")
	errBadReset     = apperr.BusinessLogic("reset token is invalid or expired")
	errBadOTP       = apperr.BusinessLogic("code is invalid or expired")
	errOTPExhausted = apperr.BusinessLogic("too many attempts, request a new code")
)

// dummyHash keeps the cost of a login for an unknown email close to a real one.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storefront-dummy-password"), bcrypt.DefaultCost)

type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	BaseURL       string
}

type AuthService struct {
	Users  *repos.UserRepo
	Tokens *repos.TokenRepo
	Tx     *repos.TxRunner
	Mail   *mail.Mailer
	Cfg    AuthConfig
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func NewAuthService(users *repos.UserRepo, tokens *repos.TokenRepo, tx *repos.TxRunner, mailer *mail.Mailer, cfg AuthConfig) *AuthService {
	return &AuthService{Users: users, Tokens: tokens, Tx: tx, Mail: mailer, Cfg: cfg}
}

// Claims is the access token payload. Subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Phone    string `json:"phone" validate:"max=30"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required,len=64,hexadecimal"`
	Password string `json:"password" validate:"required,password"`
}

type VerifyOTPInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,password"`
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, TokenPair, error) {
	if err := validate.Struct(in); err != nil {
		return nil, TokenPair{}, err
	}
	role, err := s.Users.RoleByName(ctx, domain.RoleCustomer)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("customer role: %w", err)
	}
	hash, err := hashPassword(in.Password, s.Cost)
	if err != nil {
		return nil, TokenPair{}, err
	}
	u := &domain.User{
		ID:     uuid.NewString(),
		Email:  strings.ToLower(strings.TrimSpace(in.Email)),
		Name:   strings.TrimSpace(in.Name),
		Phone:  strings.TrimSpace(in.Phone),
		Hash:   hash,
		RoleID: role.ID,
		Role:   role.Name,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		if repos.IsUniqueViolation(err) {
			return nil, TokenPair{}, apperr.Conflict("email already registered")
		}
		return nil, TokenPair{}, err
	}
	pair, err := s.issue(ctx, s.Tokens, u)
	return u, pair, err
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*domain.User, TokenPair, error) {
	if err := validate.Struct(in); err != nil {
		return nil, TokenPair{}, err
	}
	u, err := s.Users.ByEmail(ctx, in.Email)
	if err != nil {
		if !repos.IsNotFound(err) {
			return nil, TokenPair{}, err
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(in.Password))
		return nil, TokenPair{}, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(in.Password)) != nil {
		return nil, TokenPair{}, ErrBadCreds
	}
	pair, err := s.issue(ctx, s.Tokens, u)
	return u, pair, err
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair issued. Presenting an already revoked token revokes every token of
// that user, since it means the token was copied.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.User, TokenPair, error) {
	if _, err := s.parse(refreshToken, s.Cfg.RefreshSecret); err != nil {
		return nil, TokenPair{}, apperr.Unauthorized("invalid refresh token")
	}
	stored, err := s.Tokens.RefreshByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if repos.IsNotFound(err) {
			return nil, TokenPair{}, apperr.Unauthorized("invalid refresh token")
		}
		return nil, TokenPair{}, err
	}
	if stored.RevokedAt != nil {
		if err := s.Tokens.RevokeAllForUser(ctx, stored.UserID); err != nil {
			return nil, TokenPair{}, err
		}
		applog.L().Warn().Str("user_id", stored.UserID).Msg("auth.refresh.reuse")
		return nil, TokenPair{}, apperr.Unauthorized("refresh token has been revoked")
	}
	if exp, err := repos.ParseTime(stored.ExpiresAt); err != nil || !s.now().Before(exp) {
		return nil, TokenPair{}, apperr.Unauthorized("refresh token expired")
	}

	var (
		u    *domain.User
		pair TokenPair
	)
	err = s.Tx.Do(ctx, func(tx *sqlx.Tx) error {
		tokens := s.Tokens.WithTx(tx)
		if err := tokens.RevokeRefresh(ctx, stored.ID); err != nil {
			if errors.Is(err, repos.ErrNoRowsAffected) {
				return apperr.Unauthorized("refresh token has been revoked")
			}
			return err
		}
		var err error
		if u, err = s.Users.WithTx(tx).ByID(ctx, stored.UserID); err != nil {
			if repos.IsNotFound(err) {
				return apperr.Unauthorized("account no longer exists")
			}
			return err
		}
		pair, err = s.issue(ctx, tokens, u)
		return err
	})
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Logout revokes the refresh token if it is known. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	stored, err := s.Tokens.RefreshByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if repos.IsNotFound(err) {
			return nil
		}
		return err
	}
	if err := s.Tokens.RevokeRefresh(ctx, stored.ID); err != nil && !errors.Is(err, repos.ErrNoRowsAffected) {
		return err
	}
	return nil
}

// ParseAccess validates an access token and returns its claims.
func (s *AuthService) ParseAccess(token string) (*Claims, error) {
	c, err := s.parse(token, s.Cfg.AccessSecret)
	if err != nil {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	return c, nil
}

// CurrentUser resolves an access token to the stored user, so role changes
// and deletions take effect before the token expires.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	c, err := s.ParseAccess(token)
	if err != nil {
		return nil, err
	}
	u, err := s.Users.ByID(ctx, c.Subject)
	if err != nil {
		if repos.IsNotFound(err) {
			return nil, apperr.Unauthorized("account no longer exists")
		}
		return nil, err
	}
	return u, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.Users.ByID(ctx, userID)
	if err != nil {
		return nil, missing(err, "user")
	}
	return u, nil
}

func (s *AuthService) parse(token, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *AuthService) issue(ctx context.Context, tokens *repos.TokenRepo, u *domain.User) (TokenPair, error) {
	now := s.now()
	pair := TokenPair{
		AccessExpiresAt:  now.Add(s.Cfg.AccessTTL),
		RefreshExpiresAt: now.Add(s.Cfg.RefreshTTL),
	}
	var err error
	pair.AccessToken, err = sign(s.Cfg.AccessSecret, Claims{
		Email: u.Email,
		Role:  strings.ToLower(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(pair.AccessExpiresAt),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}
	refreshID := uuid.NewString()
	pair.RefreshToken, err = sign(s.Cfg.RefreshSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        refreshID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(pair.RefreshExpiresAt),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}
	err = tokens.SaveRefresh(ctx, &repos.RefreshToken{
		ID:        refreshID,
		UserID:    u.ID,
		TokenHash: hashToken(pair.RefreshToken),
		ExpiresAt: repos.FormatTime(pair.RefreshExpiresAt),
	})
	return pair, err
}

func sign(secret string, c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func hashToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}

// ---------- Password reset ----------

// ForgotPassword emails a one-hour reset link. It answers the same way
// whether or not the email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	u, err := s.Users.ByEmail(ctx, in.Email)
	if err != nil {
		if repos.IsNotFound(err) {
			return nil
		}
		return err
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	token := hex.EncodeToString(raw)
	if err := s.Tokens.SaveReset(ctx, &repos.PasswordReset{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Kind:      repos.ResetKindToken,
		CodeHash:  hashToken(token),
		ExpiresAt: repos.FormatTime(s.now().Add(resetTokenTTL)),
	}); err != nil {
		return err
	}
	s.sendMail(ctx, u, "Reset your password", "password_reset", map[string]any{
		"Name":     u.Name,
		"Link":     strings.TrimRight(s.Cfg.BaseURL, "/") + "/reset-password?token=" + token,
		"ValidFor": "1 hour",
	})
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	pr, err := s.Tokens.ResetByHash(ctx, repos.ResetKindToken, hashToken(strings.ToLower(in.Token)))
	if err != nil {
		if repos.IsNotFound(err) {
			return errBadReset
		}
		return err
	}
	if !s.resetUsable(pr) {
		return errBadReset
	}
	return s.completeReset(ctx, pr, in.Password, errBadReset)
}

// RequestOTP emails a six digit code valid for ten minutes. Like
// ForgotPassword it does not reveal whether the email exists.
func (s *AuthService) RequestOTP(ctx context.Context, in ForgotPasswordInput) error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	u, err := s.Users.ByEmail(ctx, in.Email)
	if err != nil {
		if repos.IsNotFound(err) {
			return nil
		}
		return err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	if err := s.Tokens.SaveReset(ctx, &repos.PasswordReset{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Kind:      repos.ResetKindOTP,
		CodeHash:  hashOTP(u.ID, code),
		ExpiresAt: repos.FormatTime(s.now().Add(otpTTL)),
	}); err != nil {
		return err
	}
	s.sendMail(ctx, u, "Your password reset code", "password_otp", map[string]any{
		"Name": u.Name, "Code": code, "ValidFor": "10 minutes",
	})
	return nil
}

// VerifyOTP checks the code and sets the new password. Each wrong code
// counts against the attempt limit.
func (s *AuthService) VerifyOTP(ctx context.Context, in VerifyOTPInput) error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	u, err := s.Users.ByEmail(ctx, in.Email)
	if err != nil {
		if repos.IsNotFound(err) {
			return errBadOTP
		}
		return err
	}
	pr, err := s.Tokens.LatestReset(ctx, u.ID, repos.ResetKindOTP)
	if err != nil {
		if repos.IsNotFound(err) {
			return errBadOTP
		}
		return err
	}
	if !s.resetUsable(pr) {
		return errBadOTP
	}
	if pr.Attempts >= otpMaxAttempts {
		return errOTPExhausted
	}
	if subtle.ConstantTimeCompare([]byte(pr.CodeHash), []byte(hashOTP(u.ID, in.Code))) != 1 {
		if err := s.Tokens.BumpAttempts(ctx, pr.ID, otpMaxAttempts); err != nil {
			if errors.Is(err, repos.ErrNoRowsAffected) {
				return errOTPExhausted
			}
			return err
		}
		if pr.Attempts+1 >= otpMaxAttempts {
			return errOTPExhausted
		}
		return errBadOTP
	}
	return s.completeReset(ctx, pr, in.Password, errBadOTP)
}

func (s *AuthService) resetUsable(pr repos.PasswordReset) bool {
	if pr.UsedAt != nil {
		return false
	}
	exp, err := repos.ParseTime(pr.ExpiresAt)
	return err == nil && s.now().Before(exp)
}

// completeReset consumes the reset, stores the new password and signs the
// user out everywhere.
func (s *AuthService) completeReset(ctx context.Context, pr repos.PasswordReset, password string, used error) error {
	hash, err := hashPassword(password, s.Cost)
	if err != nil {
		return err
	}
	return s.Tx.Do(ctx, func(tx *sqlx.Tx) error {
		tokens := s.Tokens.WithTx(tx)
		if err := tokens.UseReset(ctx, pr.ID); err != nil {
			if errors.Is(err, repos.ErrNoRowsAffected) {
				return used
			}
			return err
		}
		if err := s.Users.WithTx(tx).UpdatePassword(ctx, pr.UserID, hash); err != nil {
			return missing(err, "user")
		}
		return tokens.RevokeAllForUser(ctx, pr.UserID)
	})
}

func hashOTP(userID, code string) string { return hashToken(userID + ":" + code) }

func (s *AuthService) sendMail(ctx context.Context, u *domain.User, subject, tmpl string, data map[string]any) {
	if s.Mail == nil {
		return
	}
	mctx, cancel := detached(ctx)
	defer cancel()
	if err := s.Mail.Send(mctx, u.Email, subject, tmpl, data); err != nil {
		applog.L().Error().Err(err).Str("user_id", u.ID).Str("template", tmpl).Msg("auth.mail.fail")
	}
}
