package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/domain"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

// CartService reconciles cart lines against product availability. Stock is
// read here but never reserved; only the inventory endpoints change it.
type CartService struct {
	Carts *repos.CartRepo
	Prods *repos.ProductRepo
	Inv   *repos.InventoryRepo
}

func NewCartService(carts *repos.CartRepo, prods *repos.ProductRepo, inv *repos.InventoryRepo) *CartService {
	return &CartService{Carts: carts, Prods: prods, Inv: inv}
}

type AddItemInput struct {
	ProductID string `json:"productId" validate:"required,id"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
}

type UpdateItemInput struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=99"`
}

// sellable loads a product that may go into a cart and its available stock.
func (s *CartService) sellable(ctx context.Context, productID string) (domain.Product, int, error) {
	p, err := s.Prods.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, 0, missing(err, "product")
	}
	if !p.Active {
		return domain.Product{}, 0, apperr.BusinessLogic("product %s is not available for purchase", p.ID)
	}
	available, err := s.Inv.Available(ctx, p.ID)
	if err != nil {
		return domain.Product{}, 0, missing(err, "product")
	}
	return p, available, nil
}

// Add puts qty of a product in the user's cart, merging into the existing
// line for that product if there is one.
func (s *CartService) Add(ctx context.Context, userID, productID string, qty int) (domain.CartItem, error) {
	if err := validate.Struct(AddItemInput{ProductID: productID, Quantity: qty}); err != nil {
		return domain.CartItem{}, err
	}
	p, available, err := s.sellable(ctx, productID)
	if err != nil {
		return domain.CartItem{}, err
	}

	existing, err := s.Carts.Find(ctx, userID, p.ID)
	switch {
	case repos.IsNotFound(err):
		if available < qty {
			return domain.CartItem{}, apperr.InsufficientStock(p.ID, qty, available)
		}
		item := domain.CartItem{ID: uuid.NewString(), UserID: userID, ProductID: p.ID, Quantity: qty}
		if err := s.Carts.Insert(ctx, &item); err != nil {
			if repos.IsUniqueViolation(err) {
				return domain.CartItem{}, apperr.Conflict("cart changed concurrently, please retry")
			}
			return domain.CartItem{}, err
		}
		return item, nil
	case err != nil:
		return domain.CartItem{}, err
	}

	// Stock shortfall wins over the per-line cap when both apply.
	newQty := existing.Quantity + qty
	if available < newQty {
		return domain.CartItem{}, apperr.InsufficientStock(p.ID, newQty, available)
	}
	if newQty > domain.MaxCartQuantity {
		return domain.CartItem{}, apperr.BusinessLogic("a cart line cannot hold more than %d units", domain.MaxCartQuantity)
	}
	if err := s.Carts.SetQuantity(ctx, existing.ID, newQty); err != nil {
		return domain.CartItem{}, missing(err, "cart item")
	}
	existing.Quantity = newQty
	return existing, nil
}

// UpdateItem overwrites the quantity of one of the user's lines.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID string, qty int) (domain.CartItem, error) {
	if err := validate.Struct(UpdateItemInput{Quantity: qty}); err != nil {
		return domain.CartItem{}, err
	}
	item, err := s.Carts.Get(ctx, userID, itemID)
	if err != nil {
		return domain.CartItem{}, missing(err, "cart item")
	}
	p, available, err := s.sellable(ctx, item.ProductID)
	if err != nil {
		return domain.CartItem{}, err
	}
	if available < qty {
		return domain.CartItem{}, apperr.InsufficientStock(p.ID, qty, available)
	}
	if err := s.Carts.SetQuantity(ctx, item.ID, qty); err != nil {
		return domain.CartItem{}, missing(err, "cart item")
	}
	item.Quantity = qty
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) error {
	return missing(s.Carts.Delete(ctx, userID, itemID), "cart item")
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	_, err := s.Carts.Clear(ctx, userID)
	return err
}

func (s *CartService) View(ctx context.Context, userID string) (domain.CartView, error) {
	lines, err := s.Carts.Lines(ctx, userID)
	if err != nil {
		return domain.CartView{}, err
	}
	return buildCartView(lines), nil
}

func buildCartView(lines []domain.CartLine) domain.CartView {
	view := domain.CartView{Items: make([]domain.CartLineView, 0, len(lines)), Total: decimal.Zero}
	for _, l := range lines {
		sub := l.Subtotal()
		view.Items = append(view.Items, domain.CartLineView{CartLine: l, Subtotal: sub})
		view.ItemCount += l.Quantity
		view.Total = view.Total.Add(sub)
	}
	return view
}
