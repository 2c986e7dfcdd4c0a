package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"storefront/internal/apperr"
	"storefront/internal/domain"
	"storefront/internal/repos"
)

// missing maps "no row" repository results to a NotFound for what and
// passes every other error through untouched.
func missing(err error, what string) error {
	if repos.IsNotFound(err) || errors.Is(err, repos.ErrNoRowsAffected) {
		return apperr.NotFound(what)
	}
	return err
}

func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

func hashPassword(pw string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	return string(h), err
}

func isAdmin(u *domain.User) bool { return u.HasRole(domain.RoleAdmin) }

// detached keeps request values but survives the request's cancellation;
// used for best-effort work that runs after a commit.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}
