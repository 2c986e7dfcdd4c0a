package repos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type UserRepo struct{ db sqlx.ExtContext }

func NewUserRepo(db sqlx.ExtContext) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) WithTx(tx *sqlx.Tx) *UserRepo { return &UserRepo{db: tx} }

const userColumns = `u.id, u.email, u.name, u.phone, u.password_hash, u.role_id, r.name AS role, u.created_at, u.updated_at`

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := get(ctx, r.db, &u, `
      SELECT `+userColumns+`
      FROM users u JOIN roles r ON r.id = u.role_id
      WHERE LOWER(u.email) = LOWER(?)`, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := get(ctx, r.db, &u, `
      SELECT `+userColumns+`
      FROM users u JOIN roles r ON r.id = u.role_id
      WHERE u.id = ?`, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type UserFilter struct {
	Q             string
	Role          string
	Limit, Offset int
}

func (r *UserRepo) List(ctx context.Context, f UserFilter) ([]domain.User, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if q := strings.ToLower(strings.TrimSpace(f.Q)); q != "" {
		where = append(where, `(LOWER(u.email) LIKE ? OR LOWER(u.name) LIKE ?)`)
		args = append(args, "%"+q+"%", "%"+q+"%")
	}
	if f.Role != "" {
		where = append(where, `LOWER(r.name) = ?`)
		args = append(args, strings.ToLower(f.Role))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := get(ctx, r.db, &total, `
      SELECT COUNT(*) FROM users u JOIN roles r ON r.id = u.role_id WHERE `+cond, args...); err != nil {
		return nil, 0, err
	}
	out := []domain.User{}
	err := sel(ctx, r.db, &out, `
      SELECT `+userColumns+`
      FROM users u JOIN roles r ON r.id = u.role_id
      WHERE `+cond+`
      ORDER BY u.created_at DESC, u.id
      LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	return out, total, err
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	_, err := exec(ctx, r.db, `
      INSERT INTO users(id, email, name, phone, password_hash, role_id, created_at, updated_at)
      VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.Phone, u.Hash, u.RoleID, u.CreatedAt, u.UpdatedAt)
	return err
}

// Update writes profile fields and the role; the password has its own writer.
func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = now()
	return affected(exec(ctx, r.db, `
      UPDATE users SET email = ?, name = ?, phone = ?, role_id = ?, updated_at = ?
      WHERE id = ?`, u.Email, u.Name, u.Phone, u.RoleID, u.UpdatedAt, u.ID))
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return affected(exec(ctx, r.db, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, now(), id))
}

// Delete removes the user; carts, wishlists, reviews, orders and tokens cascade.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return affected(exec(ctx, r.db, `DELETE FROM users WHERE id = ?`, id))
}

func (r *UserRepo) RoleByName(ctx context.Context, name string) (*domain.Role, error) {
	var role domain.Role
	if err := get(ctx, r.db, &role, `SELECT id, name, permissions_json FROM roles WHERE LOWER(name) = LOWER(?)`, name); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *UserRepo) Roles(ctx context.Context) ([]domain.Role, error) {
	out := []domain.Role{}
	err := sel(ctx, r.db, &out, `SELECT id, name, permissions_json FROM roles ORDER BY name`)
	return out, err
}

// UpsertRole inserts the role or refreshes its permissions.
func (r *UserRepo) UpsertRole(ctx context.Context, role *domain.Role) error {
	if role.Permissions == nil {
		role.Permissions = domain.StringList{}
	}
	_, err := exec(ctx, r.db, `
      INSERT INTO roles(id, name, permissions_json) VALUES(?, ?, ?)
      ON CONFLICT(name) DO UPDATE SET permissions_json = excluded.permissions_json`,
		role.ID, role.Name, role.Permissions)
	return err
}
