package handlers_test

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderBody struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Total  decimal.Decimal `json:"total"`
	Items  []struct {
		ProductID string          `json:"productId"`
		Quantity  int             `json:"quantity"`
		Price     decimal.Decimal `json:"price"`
	} `json:"items"`
}

// Orders placed from an explicit item list keep the submitted prices.
// Checkout from the cart always reprices from the catalog.
func TestOrderTotals(t *testing.T) {
	a := newTestApp(t)
	alice := a.login(t, "alice@storefront.test")
	gbc := a.productID(t, "game-boy-color")

	resp, out := a.call(t, http.MethodPost, "/api/orders", map[string]any{
		"items":           []map[string]any{{"productId": gbc, "quantity": 2, "price": 1.25}},
		"shippingAddress": "1 Main Street, Springfield",
	}, alice)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(out.raw))
	var direct orderBody
	out.decode(t, &direct)
	assert.Equal(t, "pending", direct.Status)
	assert.True(t, decimal.RequireFromString("2.50").Equal(direct.Total), direct.Total.String())

	resp, out = a.call(t, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": gbc, "quantity": 2}, alice)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(out.raw))

	resp, out = a.call(t, http.MethodPost, "/api/orders/checkout",
		map[string]any{"shippingAddress": "1 Main Street, Springfield", "paymentMethod": "cod"}, alice)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(out.raw))
	var checkout orderBody
	out.decode(t, &checkout)
	assert.True(t, decimal.RequireFromString("259.98").Equal(checkout.Total), checkout.Total.String())
	require.Len(t, checkout.Items, 1)
	assert.True(t, decimal.RequireFromString("129.99").Equal(checkout.Items[0].Price))

	_, out = a.call(t, http.MethodGet, "/api/cart", nil, alice)
	var cart struct {
		ItemCount int `json:"itemCount"`
	}
	out.decode(t, &cart)
	assert.Zero(t, cart.ItemCount, "checkout empties the cart")

	resp, out = a.call(t, http.MethodPost, "/api/orders/"+direct.ID+"/cancel", nil, alice)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(out.raw))
	var cancelled orderBody
	out.decode(t, &cancelled)
	assert.Equal(t, "cancelled", cancelled.Status)

	resp, _ = a.call(t, http.MethodPost, "/api/orders/"+direct.ID+"/cancel", nil, alice)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "already cancelled")
}

func TestOrderRejectsBadPriceEmptyCartAndShortStock(t *testing.T) {
	a := newTestApp(t)
	alice := a.login(t, "alice@storefront.test")
	philco := a.productID(t, "philco-1939")

	resp, out := a.call(t, http.MethodPost, "/api/orders", map[string]any{
		"items":           []map[string]any{{"productId": philco, "quantity": 1, "price": "-5"}},
		"shippingAddress": "1 Main Street, Springfield",
	}, alice)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(out.raw))
	assert.Contains(t, out.Errors, "items[0].price")

	resp, _ = a.call(t, http.MethodPost, "/api/orders/checkout",
		map[string]any{"shippingAddress": "1 Main Street, Springfield"}, alice)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "empty cart")

	resp, out = a.call(t, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": philco, "quantity": 2}, alice)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(out.raw))
	_, err := a.db.Exec(`UPDATE products SET total_quantity = 1 WHERE id = ?`, philco)
	require.NoError(t, err)

	resp, out = a.call(t, http.MethodPost, "/api/orders/checkout",
		map[string]any{"shippingAddress": "1 Main Street, Springfield"}, alice)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(out.raw))

	_, out = a.call(t, http.MethodGet, "/api/cart", nil, alice)
	var cart struct {
		ItemCount int `json:"itemCount"`
	}
	out.decode(t, &cart)
	assert.Equal(t, 2, cart.ItemCount, "a failed checkout leaves the cart alone")
}
