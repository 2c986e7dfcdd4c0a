package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/domain"
	"storefront/internal/events"
	applog "storefront/internal/log"
	"storefront/internal/mail"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

type OrderService struct {
	Tx     *repos.TxRunner
	Orders *repos.OrderRepo
	Carts  *repos.CartRepo
	Prods  *repos.ProductRepo
	Users  *repos.UserRepo
	Events events.Publisher
	Mail   *mail.Mailer
}

func NewOrderService(tx *repos.TxRunner, orders *repos.OrderRepo, carts *repos.CartRepo, prods *repos.ProductRepo,
	users *repos.UserRepo, pub events.Publisher, mailer *mail.Mailer) *OrderService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &OrderService{Tx: tx, Orders: orders, Carts: carts, Prods: prods, Users: users, Events: pub, Mail: mailer}
}

type OrderItemInput struct {
	ProductID string          `json:"productId" validate:"required,id"`
	Quantity  int             `json:"quantity" validate:"required,min=1,max=99"`
	Price     decimal.Decimal `json:"price"`
}

type CreateOrderInput struct {
	Items           []OrderItemInput `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingAddress string           `json:"shippingAddress" validate:"required,min=5,max=500"`
	PaymentMethod   string           `json:"paymentMethod" validate:"omitempty,oneof=cod"`
	Notes           string           `json:"notes" validate:"max=1000"`
}

type CheckoutInput struct {
	ShippingAddress string `json:"shippingAddress" validate:"required,min=5,max=500"`
	PaymentMethod   string `json:"paymentMethod" validate:"omitempty,oneof=cod"`
	Notes           string `json:"notes" validate:"max=1000"`
}

type OrderPatch struct {
	ShippingAddress *string `json:"shippingAddress" validate:"omitempty,min=5,max=500"`
	Notes           *string `json:"notes" validate:"omitempty,max=1000"`
}

type OrderQuery struct {
	UserID      string
	Status      string
	Page, Limit int
}

// Create stores an order from a client-supplied item list. Prices are taken
// as submitted and the total is their exact sum; stock is not touched.
func (s *OrderService) Create(ctx context.Context, userID string, in CreateOrderInput) (domain.Order, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Order{}, err
	}
	o := newOrder(userID, in.ShippingAddress, in.PaymentMethod, in.Notes)
	for i, it := range in.Items {
		if it.Price.IsNegative() {
			return domain.Order{}, apperr.Validation("validation failed", map[string]string{
				fmt.Sprintf("items[%d].price", i): "must not be negative",
			})
		}
		p, err := s.Prods.Get(ctx, it.ProductID)
		if err != nil {
			return domain.Order{}, missing(err, "product "+it.ProductID)
		}
		o.Items = append(o.Items, domain.OrderItem{
			ID: uuid.NewString(), ProductID: p.ID, ProductName: p.Name, Quantity: it.Quantity, Price: it.Price,
		})
	}
	o.Total = orderTotal(o.Items)

	if err := s.Tx.Do(ctx, func(tx *sqlx.Tx) error {
		return s.Orders.WithTx(tx).Create(ctx, &o)
	}); err != nil {
		return domain.Order{}, err
	}
	s.afterCreate(ctx, o)
	return o, nil
}

// Checkout turns the user's cart into an order priced from the catalog and
// empties the cart, all in one transaction.
func (s *OrderService) Checkout(ctx context.Context, userID string, in CheckoutInput) (domain.Order, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Order{}, err
	}
	o := newOrder(userID, in.ShippingAddress, in.PaymentMethod, in.Notes)

	err := s.Tx.Do(ctx, func(tx *sqlx.Tx) error {
		carts := s.Carts.WithTx(tx)
		lines, err := carts.Lines(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperr.BusinessLogic("cart is empty")
		}
		for _, l := range lines {
			if !l.Active {
				return apperr.BusinessLogic("product %s is no longer available", l.Name)
			}
			if l.AvailableQuantity < l.Quantity {
				return apperr.InsufficientStock(l.ProductID, l.Quantity, l.AvailableQuantity)
			}
			o.Items = append(o.Items, domain.OrderItem{
				ID: uuid.NewString(), ProductID: l.ProductID, ProductName: l.Name, Quantity: l.Quantity, Price: l.Price,
			})
		}
		o.Total = orderTotal(o.Items)
		if err := s.Orders.WithTx(tx).Create(ctx, &o); err != nil {
			return err
		}
		_, err = carts.Clear(ctx, userID)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.afterCreate(ctx, o)
	return o, nil
}

func newOrder(userID, address, payment, notes string) domain.Order {
	if payment == "" {
		payment = domain.PaymentCOD
	}
	return domain.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Status:          domain.OrderPending,
		PaymentMethod:   payment,
		ShippingAddress: strings.TrimSpace(address),
		Notes:           strings.TrimSpace(notes),
		Items:           []domain.OrderItem{},
	}
}

func orderTotal(items []domain.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Get returns an order to its owner or to an admin. Other callers get
// NotFound so order ids cannot be probed.
func (s *OrderService) Get(ctx context.Context, actor *domain.User, id string) (domain.Order, error) {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, missing(err, "order")
	}
	if o.UserID != actor.ID && !isAdmin(actor) {
		return domain.Order{}, apperr.NotFound("order")
	}
	return o, nil
}

// List returns the actor's own orders; admins see all, optionally filtered by user.
func (s *OrderService) List(ctx context.Context, actor *domain.User, q OrderQuery) ([]domain.Order, domain.Pagination, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Status != "" && !domain.OrderStatus(q.Status).Valid() {
		return nil, domain.Pagination{}, apperr.Validation("invalid query", map[string]string{"status": "unknown order status"})
	}
	f := repos.OrderFilter{UserID: actor.ID, Status: q.Status, Limit: q.Limit, Offset: offset(q.Page, q.Limit)}
	if isAdmin(actor) {
		f.UserID = q.UserID
	}
	orders, total, err := s.Orders.List(ctx, f)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return orders, domain.NewPagination(q.Page, q.Limit, total), nil
}

// Update edits delivery details while the order is still open.
func (s *OrderService) Update(ctx context.Context, id string, in OrderPatch) (domain.Order, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Order{}, err
	}
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, missing(err, "order")
	}
	if o.Status == domain.OrderCompleted || o.Status == domain.OrderCancelled {
		return domain.Order{}, apperr.BusinessLogic("a %s order cannot be edited", o.Status)
	}
	if in.ShippingAddress != nil {
		o.ShippingAddress = strings.TrimSpace(*in.ShippingAddress)
	}
	if in.Notes != nil {
		o.Notes = strings.TrimSpace(*in.Notes)
	}
	if err := s.Orders.UpdateDetails(ctx, &o); err != nil {
		return domain.Order{}, missing(err, "order")
	}
	return o, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (domain.Order, error) {
	if !next.Valid() {
		return domain.Order{}, apperr.Validation("validation failed", map[string]string{"status": "unknown order status"})
	}
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, missing(err, "order")
	}
	return s.transition(ctx, o, next)
}

// Cancel lets the owner withdraw an order that has not been processed yet.
func (s *OrderService) Cancel(ctx context.Context, actor *domain.User, id string) (domain.Order, error) {
	o, err := s.Get(ctx, actor, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.Status != domain.OrderPending && !isAdmin(actor) {
		return domain.Order{}, apperr.BusinessLogic("only pending orders can be cancelled")
	}
	return s.transition(ctx, o, domain.OrderCancelled)
}

func (s *OrderService) transition(ctx context.Context, o domain.Order, next domain.OrderStatus) (domain.Order, error) {
	prev := o.Status
	if !prev.CanTransitionTo(next) {
		return domain.Order{}, apperr.BusinessLogic("cannot move order from %s to %s", prev, next)
	}
	if err := s.Orders.UpdateStatus(ctx, o.ID, prev, next); err != nil {
		if errors.Is(err, repos.ErrNoRowsAffected) {
			return domain.Order{}, apperr.Conflict("order status changed concurrently, reload and retry")
		}
		return domain.Order{}, err
	}
	o.Status = next
	s.publish(ctx, events.OrderEvent{
		Type: events.OrderStatusChanged, OrderID: o.ID, UserID: o.UserID,
		Status: string(next), PrevStatus: string(prev), Total: o.Total, ItemCount: len(o.Items),
	})
	return s.Orders.Get(ctx, o.ID)
}

func (s *OrderService) Delete(ctx context.Context, id string) error {
	return missing(s.Orders.Delete(ctx, id), "order")
}

// afterCreate runs the post-commit side effects. Failures are logged and
// never undo the order.
func (s *OrderService) afterCreate(ctx context.Context, o domain.Order) {
	s.publish(ctx, events.OrderEvent{
		Type: events.OrderCreated, OrderID: o.ID, UserID: o.UserID,
		Status: string(o.Status), Total: o.Total, ItemCount: len(o.Items),
	})
	if s.Mail == nil || s.Users == nil {
		return
	}
	u, err := s.Users.ByID(ctx, o.UserID)
	if err != nil {
		applog.L().Warn().Err(err).Str("order_id", o.ID).Msg("order.mail.user_lookup")
		return
	}
	mctx, cancel := detached(ctx)
	defer cancel()
	if err := s.Mail.Send(mctx, u.Email, "Order "+o.ID+" received", "order_created", map[string]any{
		"Name": u.Name, "OrderID": o.ID, "Items": o.Items, "Total": o.Total.StringFixed(2),
	}); err != nil {
		applog.L().Warn().Err(err).Str("order_id", o.ID).Msg("order.mail.fail")
	}
}

func (s *OrderService) publish(ctx context.Context, ev events.OrderEvent) {
	pctx, cancel := detached(ctx)
	defer cancel()
	if err := s.Events.PublishOrder(pctx, ev); err != nil {
		applog.L().Warn().Err(err).Str("order_id", ev.OrderID).Str("event", ev.Type).Msg("order.event.fail")
	}
}
