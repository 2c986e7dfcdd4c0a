package repos

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// RefreshToken is a persisted refresh token; only its hash is stored.
type RefreshToken struct {
	ID        string  `db:"id"`
	UserID    string  `db:"user_id"`
	TokenHash string  `db:"token_hash"`
	ExpiresAt string  `db:"expires_at"`
	RevokedAt *string `db:"revoked_at"`
	CreatedAt string  `db:"created_at"`
}

// PasswordReset is a pending reset by emailed token or one-time code.
type PasswordReset struct {
	ID        string  `db:"id"`
	UserID    string  `db:"user_id"`
	Kind      string  `db:"kind"`
	CodeHash  string  `db:"code_hash"`
	Attempts  int     `db:"attempts"`
	ExpiresAt string  `db:"expires_at"`
	UsedAt    *string `db:"used_at"`
	CreatedAt string  `db:"created_at"`
}

const (
	ResetKindToken = "token"
	ResetKindOTP   = "otp"
)

type TokenRepo struct{ db sqlx.ExtContext }

func NewTokenRepo(db sqlx.ExtContext) *TokenRepo { return &TokenRepo{db: db} }

func (r *TokenRepo) WithTx(tx *sqlx.Tx) *TokenRepo { return &TokenRepo{db: tx} }

func (r *TokenRepo) SaveRefresh(ctx context.Context, t *RefreshToken) error {
	t.CreatedAt = now()
	_, err := exec(ctx, r.db, `
		INSERT INTO refresh_tokens(id, user_id, token_hash, expires_at, revoked_at, created_at)
		VALUES(?, ?, ?, ?, NULL, ?)
	`, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	return err
}

func (r *TokenRepo) RefreshByHash(ctx context.Context, hash string) (RefreshToken, error) {
	var t RefreshToken
	err := get(ctx, r.db, &t, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = ?`, hash)
	return t, err
}

// RevokeRefresh marks one live token revoked. ErrNoRowsAffected means it
// was already revoked, which callers treat as reuse.
func (r *TokenRepo) RevokeRefresh(ctx context.Context, id string) error {
	return affected(exec(ctx, r.db, `UPDATE refresh_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, now(), id))
}

func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := exec(ctx, r.db, `UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`, now(), userID)
	return err
}

// PurgeExpired drops refresh tokens and resets that expired before cutoff.
func (r *TokenRepo) PurgeExpired(ctx context.Context, cutoff string) (int64, error) {
	res, err := exec(ctx, r.db, `DELETE FROM refresh_tokens WHERE expires_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	res, err = exec(ctx, r.db, `DELETE FROM password_resets WHERE expires_at < ?`, cutoff)
	if err != nil {
		return n, err
	}
	m, _ := res.RowsAffected()
	return n + m, nil
}

// SaveReset replaces any unused reset of the same kind for the user.
func (r *TokenRepo) SaveReset(ctx context.Context, p *PasswordReset) error {
	if _, err := exec(ctx, r.db, `DELETE FROM password_resets WHERE user_id = ? AND kind = ? AND used_at IS NULL`,
		p.UserID, p.Kind); err != nil {
		return err
	}
	p.CreatedAt = now()
	_, err := exec(ctx, r.db, `
		INSERT INTO password_resets(id, user_id, kind, code_hash, attempts, expires_at, used_at, created_at)
		VALUES(?, ?, ?, ?, 0, ?, NULL, ?)
	`, p.ID, p.UserID, p.Kind, p.CodeHash, p.ExpiresAt, p.CreatedAt)
	return err
}

func (r *TokenRepo) ResetByHash(ctx context.Context, kind, hash string) (PasswordReset, error) {
	var p PasswordReset
	err := get(ctx, r.db, &p, `
		SELECT id, user_id, kind, code_hash, attempts, expires_at, used_at, created_at
		FROM password_resets WHERE kind = ? AND code_hash = ?`, kind, hash)
	return p, err
}

// LatestReset returns the newest unused reset of kind for the user.
func (r *TokenRepo) LatestReset(ctx context.Context, userID, kind string) (PasswordReset, error) {
	var p PasswordReset
	err := get(ctx, r.db, &p, `
		SELECT id, user_id, kind, code_hash, attempts, expires_at, used_at, created_at
		FROM password_resets WHERE user_id = ? AND kind = ? AND used_at IS NULL
		ORDER BY created_at DESC LIMIT 1`, userID, kind)
	return p, err
}

// BumpAttempts counts a failed guess while fewer than limit have been made.
// Once the limit is reached it affects no rows.
func (r *TokenRepo) BumpAttempts(ctx context.Context, id string, limit int) error {
	return affected(exec(ctx, r.db,
		`UPDATE password_resets SET attempts = attempts + 1 WHERE id = ? AND attempts < ?`, id, limit))
}

// UseReset consumes a reset once; a second call affects no rows.
func (r *TokenRepo) UseReset(ctx context.Context, id string) error {
	return affected(exec(ctx, r.db, `UPDATE password_resets SET used_at = ? WHERE id = ? AND used_at IS NULL`, now(), id))
}
