package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
)

func TestPassword(t *testing.T) {
	for pw, want := range map[string]bool{
		"Passw0rd!":                     true,
		"short1!A":                      true,
		"Sh0rt!":                        false,
		"alllowercase1!":                false,
		"ALLUPPERCASE1!":                false,
		"NoDigitsHere!":                 false,
		"NoSymbols123":                  false,
		"Aa1!" + strings.Repeat("x", 61): false,
	} {
		assert.Equal(t, want, Password(pw), pw)
	}
}

func TestIDAndSlug(t *testing.T) {
	id, ok := ID("  abc-123_X ")
	assert.True(t, ok)
	assert.Equal(t, "abc-123_X", id)

	for _, bad := range []string{"", "a b", "../x", "<script>", "x'--"} {
		_, ok := ID(bad)
		assert.False(t, ok, bad)
	}

	assert.True(t, Slug("super-nintendo-snes-console"))
	assert.False(t, Slug("Super-Nintendo"))
	assert.False(t, Slug("double--dash"))
	assert.False(t, Slug("-leading"))
}

func TestPage(t *testing.T) {
	page, limit := Page("", "", 20, 100)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)

	page, limit = Page("3", "500", 20, 100)
	assert.Equal(t, 3, page)
	assert.Equal(t, 100, limit)

	page, limit = Page("-1", "zero", 20, 100)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)
}

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	Items    []item `json:"items" validate:"dive"`
}

type item struct {
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
	Condition string `json:"condition" validate:"omitempty,condition"`
}

func TestStructReportsJSONFieldPaths(t *testing.T) {
	err := Struct(signup{
		Email:    "nope",
		Password: "weak",
		Items:    []item{{Quantity: 1}, {Quantity: 120, Condition: "mint"}},
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, map[string]string{
		"email":              "must be a valid email",
		"password":           "must be 8-64 characters with upper, lower, digit and symbol",
		"items[1].quantity":  "must be at most 99",
		"items[1].condition": "must be new, used or refurbished",
	}, ae.Fields)

	assert.NoError(t, Struct(signup{Email: "a@b.co", Password: "Passw0rd!"}))
}
