package domain

import "strings"

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

type Role struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Permissions StringList `db:"permissions_json" json:"permissions"`
}

type User struct {
	ID        string `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	Name      string `db:"name" json:"name"`
	Phone     string `db:"phone" json:"phone"`
	Hash      string `db:"password_hash" json:"-"`
	RoleID    string `db:"role_id" json:"roleId"`
	Role      string `db:"role" json:"role"`
	CreatedAt string `db:"created_at" json:"createdAt"`
	UpdatedAt string `db:"updated_at" json:"updatedAt"`
}

// HasRole compares role names case-insensitively.
func (u *User) HasRole(name string) bool {
	return u != nil && strings.EqualFold(u.Role, name)
}
