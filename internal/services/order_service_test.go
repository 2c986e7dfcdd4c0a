package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
	"storefront/internal/domain"
	"storefront/internal/services"
)

func TestCreateOrderTotalsClientPrices(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, domain.RoleCustomer)
	gbc := e.product(t, "Game Boy Color", 5, "129.99")
	nes := e.product(t, "NES Console", 5, "199.00")

	o, err := e.orders.Create(ctx, u.ID, services.CreateOrderInput{
		ShippingAddress: "1 Main St, Springfield",
		Items: []services.OrderItemInput{
			{ProductID: gbc.ID, Quantity: 2, Price: decimal.RequireFromString("1.00")},
			{ProductID: nes.ID, Quantity: 3, Price: decimal.RequireFromString("0.15")},
		},
	})
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("2.45")), o.Total.String())
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, domain.PaymentCOD, o.PaymentMethod)

	got, err := e.orders.Get(ctx, u, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.True(t, got.Total.Equal(o.Total))

	// No stock moves on order creation.
	a, err := e.inv.Availability(ctx, gbc.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, a.AvailableQuantity)
}

func TestCreateOrderValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, domain.RoleCustomer)
	p := e.product(t, "Walkman", 5, "420")

	_, err := e.orders.Create(ctx, u.ID, services.CreateOrderInput{ShippingAddress: "1 Main St"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = e.orders.Create(ctx, u.ID, services.CreateOrderInput{
		ShippingAddress: "1 Main St",
		Items:           []services.OrderItemInput{{ProductID: p.ID, Quantity: 1, Price: decimal.NewFromInt(-1)}},
	})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Fields, "items[0].price")

	_, err = e.orders.Create(ctx, u.ID, services.CreateOrderInput{
		ShippingAddress: "1 Main St",
		Items:           []services.OrderItemInput{{ProductID: "nope", Quantity: 1, Price: decimal.NewFromInt(1)}},
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCheckoutUsesCatalogPricesAndClearsCart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, domain.RoleCustomer)
	p := e.product(t, "Game Boy Color", 5, "129.99")

	_, err := e.cart.Add(ctx, u.ID, p.ID, 2)
	require.NoError(t, err)

	o, err := e.orders.Checkout(ctx, u.ID, services.CheckoutInput{ShippingAddress: "1 Main St, Springfield"})
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("259.98")), o.Total.String())
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Game Boy Color", o.Items[0].ProductName)

	view, err := e.cart.View(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	msg, ok := e.outbox.Last()
	require.True(t, ok)
	assert.Equal(t, u.Email, msg.To)
	assert.Contains(t, msg.HTML, o.ID)
}

func TestCheckoutFailuresKeepCart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, domain.RoleCustomer)

	_, err := e.orders.Checkout(ctx, u.ID, services.CheckoutInput{ShippingAddress: "1 Main St"})
	assert.True(t, apperr.Is(err, apperr.KindBusinessLogic), "empty cart")

	p := e.product(t, "Philco", 3, "349.50")
	_, err = e.cart.Add(ctx, u.ID, p.ID, 3)
	require.NoError(t, err)
	_, err = e.inv.Remove(ctx, p.ID, 2)
	require.NoError(t, err)

	_, err = e.orders.Checkout(ctx, u.ID, services.CheckoutInput{ShippingAddress: "1 Main St"})
	assert.True(t, apperr.Is(err, apperr.KindInsufficientStock))

	view, err := e.cart.View(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
	list, _, err := e.orders.List(ctx, u, services.OrderQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOrderVisibility(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.user(t, domain.RoleCustomer)
	bob := e.user(t, domain.RoleCustomer)
	admin := e.user(t, domain.RoleAdmin)
	p := e.product(t, "NES Console", 5, "199")

	o, err := e.orders.Create(ctx, alice.ID, services.CreateOrderInput{
		ShippingAddress: "1 Main St",
		Items:           []services.OrderItemInput{{ProductID: p.ID, Quantity: 1, Price: p.Price}},
	})
	require.NoError(t, err)

	_, err = e.orders.Get(ctx, bob, o.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = e.orders.Get(ctx, admin, o.ID)
	assert.NoError(t, err)

	mine, pg, err := e.orders.List(ctx, bob, services.OrderQuery{UserID: alice.ID})
	require.NoError(t, err)
	assert.Empty(t, mine, "customers cannot list other users' orders")
	assert.Equal(t, 0, pg.Total)

	all, pg, err := e.orders.List(ctx, admin, services.OrderQuery{UserID: alice.ID})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 1, pg.Total)
}

func TestOrderStatusTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, domain.RoleCustomer)
	p := e.product(t, "SNES", 5, "150")
	o, err := e.orders.Create(ctx, u.ID, services.CreateOrderInput{
		ShippingAddress: "1 Main St",
		Items:           []services.OrderItemInput{{ProductID: p.ID, Quantity: 1, Price: p.Price}},
	})
	require.NoError(t, err)

	_, err = e.orders.UpdateStatus(ctx, o.ID, domain.OrderShipped)
	assert.True(t, apperr.Is(err, apperr.KindBusinessLogic), "pending cannot jump to shipped")
	_, err = e.orders.UpdateStatus(ctx, o.ID, "lost")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	for _, next := range []domain.OrderStatus{domain.OrderProcessing, domain.OrderShipped, domain.OrderCompleted} {
		o, err = e.orders.UpdateStatus(ctx, o.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, o.Status)
	}
	_, err = e.orders.UpdateStatus(ctx, o.ID, domain.OrderCancelled)
	assert.True(t, apperr.Is(err, apperr.KindBusinessLogic), "completed is terminal")

	addr := "2 Other St"
	_, err = e.orders.Update(ctx, o.ID, services.OrderPatch{ShippingAddress: &addr})
	assert.True(t, apperr.Is(err, apperr.KindBusinessLogic))
}

func TestCancelOnlyWhilePending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, domain.RoleCustomer)
	other := e.user(t, domain.RoleCustomer)
	p := e.product(t, "SNES", 5, "150")
	create := func() domain.Order {
		o, err := e.orders.Create(ctx, u.ID, services.CreateOrderInput{
			ShippingAddress: "1 Main St",
			Items:           []services.OrderItemInput{{ProductID: p.ID, Quantity: 1, Price: p.Price}},
		})
		require.NoError(t, err)
		return o
	}

	o := create()
	_, err := e.orders.Cancel(ctx, other, o.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	o, err = e.orders.Cancel(ctx, u, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, o.Status)

	o = create()
	_, err = e.orders.UpdateStatus(ctx, o.ID, domain.OrderProcessing)
	require.NoError(t, err)
	_, err = e.orders.Cancel(ctx, u, o.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessLogic))
}

func TestUpdateAndDeleteOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, domain.RoleCustomer)
	p := e.product(t, "SNES", 5, "150")
	o, err := e.orders.Create(ctx, u.ID, services.CreateOrderInput{
		ShippingAddress: "1 Main St",
		Items:           []services.OrderItemInput{{ProductID: p.ID, Quantity: 1, Price: p.Price}},
	})
	require.NoError(t, err)

	addr, notes := "  9 New Road, Shelbyville ", "leave at door"
	o, err = e.orders.Update(ctx, o.ID, services.OrderPatch{ShippingAddress: &addr, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(addr), o.ShippingAddress)
	assert.Equal(t, notes, o.Notes)

	require.NoError(t, e.orders.Delete(ctx, o.ID))
	assert.True(t, apperr.Is(e.orders.Delete(ctx, o.ID), apperr.KindNotFound))
}
