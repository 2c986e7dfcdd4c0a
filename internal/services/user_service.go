package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/apperr"
	"storefront/internal/domain"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

type UserService struct {
	Users  *repos.UserRepo
	Tokens *repos.TokenRepo
	Tx     *repos.TxRunner
	Cost   int
}

func NewUserService(users *repos.UserRepo, tokens *repos.TokenRepo, tx *repos.TxRunner) *UserService {
	return &UserService{Users: users, Tokens: tokens, Tx: tx}
}

type CreateUserInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Phone    string `json:"phone" validate:"max=30"`
	Role     string `json:"role" validate:"omitempty,max=50"`
}

// UserPatch is what an admin may change on an account.
type UserPatch struct {
	Name  *string `json:"name" validate:"omitempty,min=2,max=100"`
	Phone *string `json:"phone" validate:"omitempty,max=30"`
	Role  *string `json:"role" validate:"omitempty,max=50"`
}

// ProfilePatch is what users may change on their own account.
type ProfilePatch struct {
	Name  *string `json:"name" validate:"omitempty,min=2,max=100"`
	Phone *string `json:"phone" validate:"omitempty,max=30"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=128"`
	NewPassword     string `json:"newPassword" validate:"required,password"`
}

type UserQuery struct {
	Q, Role     string
	Page, Limit int
}

func (s *UserService) List(ctx context.Context, q UserQuery) ([]domain.User, domain.Pagination, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	users, total, err := s.Users.List(ctx, repos.UserFilter{Q: q.Q, Role: q.Role, Limit: q.Limit, Offset: offset(q.Page, q.Limit)})
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return users, domain.NewPagination(q.Page, q.Limit, total), nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.Users.ByID(ctx, id)
	if err != nil {
		return nil, missing(err, "user")
	}
	return u, nil
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = domain.RoleCustomer
	}
	role, err := s.role(ctx, in.Role)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password, s.Cost)
	if err != nil {
		return nil, err
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
			return nil, apperr.Conflict("email already registered")
		}
		return nil, err
	}
	return u, nil
}

func (s *UserService) Update(ctx context.Context, id string, in UserPatch) (*domain.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.Users.ByID(ctx, id)
	if err != nil {
		return nil, missing(err, "user")
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Role != nil {
		role, err := s.role(ctx, *in.Role)
		if err != nil {
			return nil, err
		}
		u.RoleID, u.Role = role.ID, role.Name
	}
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, missing(err, "user")
	}
	return u, nil
}

// Delete removes an account. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if actor != nil && actor.ID == id {
		return apperr.BusinessLogic("you cannot delete your own account")
	}
	return missing(s.Users.Delete(ctx, id), "user")
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfilePatch) (*domain.User, error) {
	return s.Update(ctx, userID, UserPatch{Name: in.Name, Phone: in.Phone})
}

// ChangePassword requires the current password and signs out other sessions.
func (s *UserService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	u, err := s.Users.ByID(ctx, userID)
	if err != nil {
		return missing(err, "user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(in.CurrentPassword)) != nil {
		return apperr.Validation("validation failed", map[string]string{"currentPassword": "is incorrect"})
	}
	hash, err := hashPassword(in.NewPassword, s.Cost)
	if err != nil {
		return err
	}
	return s.Tx.Do(ctx, func(tx *sqlx.Tx) error {
		if err := s.Users.WithTx(tx).UpdatePassword(ctx, u.ID, hash); err != nil {
			return missing(err, "user")
		}
		return s.Tokens.WithTx(tx).RevokeAllForUser(ctx, u.ID)
	})
}

func (s *UserService) Roles(ctx context.Context) ([]domain.Role, error) {
	return s.Users.Roles(ctx)
}

func (s *UserService) role(ctx context.Context, name string) (*domain.Role, error) {
	role, err := s.Users.RoleByName(ctx, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		if repos.IsNotFound(err) {
			return nil, apperr.Validation("validation failed", map[string]string{"role": "unknown role"})
		}
		return nil, err
	}
	return role, nil
}
