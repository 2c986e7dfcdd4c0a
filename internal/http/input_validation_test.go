package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFieldErrors(t *testing.T) {
	a := newTestApp(t)

	resp, out := a.call(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "not-an-email", "password": "short", "name": "",
	}, "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(out.raw))
	assert.False(t, out.Success)
	assert.Contains(t, out.Errors, "email")
	assert.Contains(t, out.Errors, "password")
	assert.Contains(t, out.Errors, "name")
}

func TestMalformedBodiesAreRejected(t *testing.T) {
	a := newTestApp(t)
	alice := a.login(t, "alice@storefront.test")

	resp, out := a.call(t, http.MethodPost, "/api/auth/login", `{"email": "alice@`, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "request body must be valid JSON", out.Message)

	resp, _ = a.call(t, http.MethodPost, "/api/cart/items", `[1,2,3]`, alice)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out = a.call(t, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": a.productID(t, "nes-console"), "quantity": 100}, alice)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, out.Errors, "quantity")

	resp, out = a.call(t, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "../../etc/passwd", "quantity": 1}, alice)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, out.Errors, "productId")
}

func TestPathAndQueryValidation(t *testing.T) {
	a := newTestApp(t)
	admin := a.login(t, "admin@storefront.test")

	for _, path := range []string{
		"/api/products/%3Cscript%3E",
		"/api/categories/a%20b",
		"/api/products/x'%20OR%201=1--",
	} {
		resp, out := a.call(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.False(t, out.Success)
	}

	resp, _ := a.call(t, http.MethodGet, "/api/products/does-not-exist", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, out := a.call(t, http.MethodGet, "/api/products?minPrice=cheap", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, out.Errors, "minPrice")

	resp, out = a.call(t, http.MethodGet, "/api/orders?status=lost", nil, admin)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, out.Errors, "status")

	resp, out = a.call(t, http.MethodGet, "/api/products?page=-3&limit=5000", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, out.Pagination.Page)
	assert.Equal(t, 100, out.Pagination.Limit)

	resp, _ = a.call(t, http.MethodPost, "/api/products/"+a.productID(t, "nes-console")+"/inventory/steal",
		map[string]int{"quantity": 1}, admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	a := newTestApp(t)

	resp, out := a.call(t, http.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, out.Success)
	assert.Equal(t, "route not found", out.Message)
}
