package services

import (
	"context"
	"errors"

	"storefront/internal/apperr"
	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/repos"
)

const maxStockDelta = 1_000_000

type InventoryService struct {
	Inv   *repos.InventoryRepo
	Prods *repos.ProductRepo
	Cache cache.ProductCache
}

func NewInventoryService(inv *repos.InventoryRepo, prods *repos.ProductRepo, c cache.ProductCache) *InventoryService {
	if c == nil {
		c = cache.Noop{}
	}
	return &InventoryService{Inv: inv, Prods: prods, Cache: c}
}

// Availability reports stock status for a product. A product at or below
// its low-stock threshold is LOW_STOCK; nothing available is OUT_OF_STOCK.
func (s *InventoryService) Availability(ctx context.Context, productID string) (domain.Availability, error) {
	inv, err := s.Inv.Get(ctx, productID)
	if err != nil {
		return domain.Availability{}, missing(err, "product")
	}
	return availability(productID, inv), nil
}

func availability(productID string, inv domain.Inventory) domain.Availability {
	status := domain.StockIn
	switch {
	case inv.AvailableQuantity <= 0:
		status = domain.StockOut
	case inv.AvailableQuantity <= inv.LowStockThreshold:
		status = domain.StockLow
	}
	return domain.Availability{ProductID: productID, Status: status, Inventory: inv}
}

func (s *InventoryService) Add(ctx context.Context, productID string, qty int) (domain.Availability, error) {
	return s.apply(ctx, productID, qty, s.Inv.Add, func(domain.Inventory) error {
		return apperr.BusinessLogic("cannot add stock")
	})
}

// Remove lowers total stock but never below what is reserved.
func (s *InventoryService) Remove(ctx context.Context, productID string, qty int) (domain.Availability, error) {
	return s.apply(ctx, productID, qty, s.Inv.Remove, func(inv domain.Inventory) error {
		return apperr.BusinessLogic("cannot remove %d units: only %d are unreserved", qty, inv.AvailableQuantity)
	})
}

func (s *InventoryService) Reserve(ctx context.Context, productID string, qty int) (domain.Availability, error) {
	return s.apply(ctx, productID, qty, s.Inv.Reserve, func(inv domain.Inventory) error {
		return apperr.InsufficientStock(productID, qty, inv.AvailableQuantity)
	})
}

func (s *InventoryService) Release(ctx context.Context, productID string, qty int) (domain.Availability, error) {
	return s.apply(ctx, productID, qty, s.Inv.Release, func(inv domain.Inventory) error {
		return apperr.BusinessLogic("cannot release %d units: only %d are reserved", qty, inv.ReservedQuantity)
	})
}

func (s *InventoryService) LowStock(ctx context.Context) ([]repos.InventoryRow, error) {
	return s.Inv.Low(ctx)
}

// apply runs one conditional update. When it matches no row the product is
// re-read to tell a missing product from a failed stock condition.
func (s *InventoryService) apply(ctx context.Context, productID string, qty int,
	update func(context.Context, string, int) error, refused func(domain.Inventory) error) (domain.Availability, error) {
	if qty < 1 || qty > maxStockDelta {
		return domain.Availability{}, apperr.Validation("validation failed", map[string]string{
			"quantity": "must be between 1 and 1000000",
		})
	}
	if err := update(ctx, productID, qty); err != nil {
		if !errors.Is(err, repos.ErrNoRowsAffected) {
			return domain.Availability{}, err
		}
		inv, gerr := s.Inv.Get(ctx, productID)
		if gerr != nil {
			return domain.Availability{}, missing(gerr, "product")
		}
		return domain.Availability{}, refused(inv)
	}
	if p, err := s.Prods.Get(ctx, productID); err == nil {
		s.Cache.InvalidateProduct(ctx, &p)
	}
	return s.Availability(ctx, productID)
}
