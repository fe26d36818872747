package models

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront.kajin.shop/shopdb"
)

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{1250, "12.50"},
		{100000, "1000.00"},
		{-150, "-1.50"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCents(tt.cents))
	}
}

func TestSuccessEnvelopeShape(t *testing.T) {
	raw, err := json.Marshal(NewSuccessResponse(map[string]int{"value": 1}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "0", decoded["code"])
	assert.Equal(t, true, decoded["isSuccess"])
	assert.Equal(t, "success", decoded["message"])
	assert.NotNil(t, decoded["data"])
}

func TestErrorEnvelopeOmitsData(t *testing.T) {
	raw, err := json.Marshal(NewErrorResponse(CodeError, "stock exhausted"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "500", decoded["code"])
	assert.Equal(t, false, decoded["isSuccess"])
	assert.NotContains(t, decoded, "data")
}

func TestNewCategoryTree(t *testing.T) {
	categories := []shopdb.Category{
		{ID: 1, Name: "tools"},
		{ID: 2, Name: "hand tools", ParentID: sql.NullInt64{Int64: 1, Valid: true}},
		{ID: 3, Name: "power tools", ParentID: sql.NullInt64{Int64: 1, Valid: true}},
		{ID: 4, Name: "materials"},
	}

	tree := NewCategoryTree(categories)
	require.Len(t, tree, 2)
	assert.Equal(t, "tools", tree[0].Name)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "hand tools", tree[0].Children[0].Name)
	assert.Empty(t, tree[1].Children)

	assert.Empty(t, NewCategoryTree(nil))
}

func TestNewOrderViewFormatsAmounts(t *testing.T) {
	order := shopdb.Order{
		ID:               10,
		Name:             "engraver",
		Status:           shopdb.OrderStatusPending,
		TotalAmountCents: 1250,
		ExpireTime:       sql.NullInt64{Int64: 1700000000, Valid: true},
		MerchantOrderNo:  sql.NullString{String: "MGKW123", Valid: true},
		CreatedAt:        1700000000,
	}
	items := []shopdb.OrderItem{{
		ID:              1,
		OrderID:         10,
		ItemType:        shopdb.ItemTypePhysical,
		ProductID:       3,
		ProductName:     "engraver",
		Quantity:        1,
		UnitPriceCents:  1250,
		TotalPriceCents: 1250,
	}}

	view := NewOrderView(order, items)
	assert.Equal(t, "12.50", view.TotalAmount)
	assert.Equal(t, "MGKW123", view.MerchantOrderNo)
	assert.NotEmpty(t, view.ExpireTime)
	assert.Empty(t, view.PayTime)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "12.50", view.Items[0].TotalPrice)
}
