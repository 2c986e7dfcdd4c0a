package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"storefront/internal/apperr"
	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

type ReviewService struct {
	Tx      *repos.TxRunner
	Reviews *repos.ReviewRepo
	Prods   *repos.ProductRepo
	Cache   cache.ProductCache
}

func NewReviewService(tx *repos.TxRunner, reviews *repos.ReviewRepo, prods *repos.ProductRepo, c cache.ProductCache) *ReviewService {
	if c == nil {
		c = cache.Noop{}
	}
	return &ReviewService{Tx: tx, Reviews: reviews, Prods: prods, Cache: c}
}

type ReviewInput struct {
	ProductID string `json:"productId" validate:"required,id"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Title     string `json:"title" validate:"max=120"`
	Comment   string `json:"comment" validate:"max=2000"`
}

func (s *ReviewService) ListByProduct(ctx context.Context, productID string, page, limit int) ([]domain.Review, domain.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	p, err := s.Prods.Get(ctx, productID)
	if err != nil {
		return nil, domain.Pagination{}, missing(err, "product")
	}
	items, total, err := s.Reviews.ListByProduct(ctx, p.ID, limit, offset(page, limit))
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return items, domain.NewPagination(page, limit, total), nil
}

// Create adds the user's single review of a product and refreshes the
// product's rating aggregate in the same transaction.
func (s *ReviewService) Create(ctx context.Context, userID string, in ReviewInput) (domain.Review, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Review{}, err
	}
	p, err := s.Prods.Get(ctx, in.ProductID)
	if err != nil {
		return domain.Review{}, missing(err, "product")
	}
	rv := domain.Review{
		ID:        uuid.NewString(),
		ProductID: p.ID,
		UserID:    userID,
		Rating:    in.Rating,
		Title:     strings.TrimSpace(in.Title),
		Comment:   strings.TrimSpace(in.Comment),
	}
	err = s.Tx.Do(ctx, func(tx *sqlx.Tx) error {
		if err := s.Reviews.WithTx(tx).Create(ctx, &rv); err != nil {
			if repos.IsUniqueViolation(err) {
				return apperr.Conflict("you have already reviewed this product")
			}
			return err
		}
		return s.Prods.WithTx(tx).RefreshRating(ctx, p.ID)
	})
	if err != nil {
		return domain.Review{}, err
	}
	s.Cache.InvalidateProduct(ctx, &p)
	saved, err := s.Reviews.Get(ctx, rv.ID)
	return saved, missing(err, "review")
}

// Delete removes a review; only its author or an admin may do so.
func (s *ReviewService) Delete(ctx context.Context, actor *domain.User, id string) error {
	rv, err := s.Reviews.Get(ctx, id)
	if err != nil {
		return missing(err, "review")
	}
	if rv.UserID != actor.ID && !isAdmin(actor) {
		return apperr.Forbidden("you can only delete your own reviews")
	}
	err = s.Tx.Do(ctx, func(tx *sqlx.Tx) error {
		if err := s.Reviews.WithTx(tx).Delete(ctx, rv.ID); err != nil {
			return missing(err, "review")
		}
		return s.Prods.WithTx(tx).RefreshRating(ctx, rv.ProductID)
	})
	if err != nil {
		return err
	}
	if p, err := s.Prods.Get(ctx, rv.ProductID); err == nil {
		s.Cache.InvalidateProduct(ctx, &p)
	}
	return nil
}
