package services

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/domain"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

type WishlistService struct {
	Wish  *repos.WishlistRepo
	Prods *repos.ProductRepo
}

func NewWishlistService(wish *repos.WishlistRepo, prods *repos.ProductRepo) *WishlistService {
	return &WishlistService{Wish: wish, Prods: prods}
}

type WishlistInput struct {
	ProductID string `json:"productId" validate:"required,id"`
	Note      string `json:"note" validate:"max=500"`
	Priority  string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

type WishlistPatch struct {
	Note     *string `json:"note" validate:"omitempty,max=500"`
	Priority *string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

func (s *WishlistService) List(ctx context.Context, userID string) ([]domain.WishlistItem, error) {
	return s.Wish.List(ctx, userID)
}

// Add is an atomic insert-if-absent; a product already on the list is a Conflict.
func (s *WishlistService) Add(ctx context.Context, userID string, in WishlistInput) (domain.WishlistItem, error) {
	if err := validate.Struct(in); err != nil {
		return domain.WishlistItem{}, err
	}
	p, err := s.Prods.Get(ctx, in.ProductID)
	if err != nil {
		return domain.WishlistItem{}, missing(err, "product")
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if err := s.Wish.Add(ctx, userID, p.ID, strings.TrimSpace(in.Note), in.Priority); err != nil {
		switch {
		case errors.Is(err, repos.ErrNoRowsAffected):
			return domain.WishlistItem{}, apperr.Conflict("product is already in your wishlist")
		case repos.IsForeignKeyViolation(err):
			return domain.WishlistItem{}, apperr.NotFound("product")
		}
		return domain.WishlistItem{}, err
	}
	it, err := s.Wish.Get(ctx, userID, p.ID)
	return it, missing(err, "wishlist item")
}

func (s *WishlistService) Update(ctx context.Context, userID, productID string, in WishlistPatch) (domain.WishlistItem, error) {
	if err := validate.Struct(in); err != nil {
		return domain.WishlistItem{}, err
	}
	it, err := s.Wish.Get(ctx, userID, productID)
	if err != nil {
		return domain.WishlistItem{}, missing(err, "wishlist item")
	}
	if in.Note != nil {
		it.Note = strings.TrimSpace(*in.Note)
	}
	if in.Priority != nil {
		it.Priority = *in.Priority
	}
	if err := s.Wish.Update(ctx, userID, productID, it.Note, it.Priority); err != nil {
		return domain.WishlistItem{}, missing(err, "wishlist item")
	}
	return it, nil
}

func (s *WishlistService) Remove(ctx context.Context, userID, productID string) error {
	return missing(s.Wish.Remove(ctx, userID, productID), "wishlist item")
}
