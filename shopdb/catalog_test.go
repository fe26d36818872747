package shopdb

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, q *Queries, name string, productType string) (Product, SKU) {
	t.Helper()
	ctx := context.Background()

	category, err := q.InsertCategory(ctx, "tools", sql.NullInt64{}, sql.NullInt64{})
	require.NoError(t, err)

	product, err := q.CreateProduct(ctx, CreateProductParams{
		Name:          name,
		CategoryID:    category.ID,
		CreatorUserID: 1,
		ProductType:   productType,
	})
	require.NoError(t, err)

	sku, err := q.CreateSKU(ctx, CreateSKUParams{
		ProductID:  product.ID,
		Name:       "default",
		PriceCents: 1250,
		Stock:      3,
	})
	require.NoError(t, err)

	return product, sku
}

func TestProductListingRequiresApprovalAndPublication(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	product, _ := seedProduct(t, client.Queries, "engraver", ProductTypePhysical)

	// Fresh products are pending review and unpublished.
	listed, total, err := client.Queries.ListPublishedProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, listed)

	require.NoError(t, client.Queries.ReviewProduct(ctx, product.ID, 99, true, ""))

	listed, total, err = client.Queries.ListPublishedProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, listed, 1)
	assert.Equal(t, CheckStateApproved, listed[0].CheckState)
	assert.True(t, listed[0].IsPublished)
}

func TestReviewProductRejection(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	product, _ := seedProduct(t, client.Queries, "engraver", ProductTypePhysical)

	require.NoError(t, client.Queries.ReviewProduct(ctx, product.ID, 99, false, "missing images"))

	got, err := client.Queries.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, CheckStateRejected, got.CheckState)
	assert.Equal(t, "missing images", got.CheckReason.String)
	assert.False(t, got.IsPublished)

	assert.ErrorIs(t, client.Queries.ReviewProduct(ctx, 424242, 99, true, ""), sql.ErrNoRows)
}

func TestProductFilterByKeyword(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	first, _ := seedProduct(t, client.Queries, "walnut board", ProductTypePhysical)
	second, _ := seedProduct(t, client.Queries, "oak board", ProductTypePhysical)
	require.NoError(t, client.Queries.ReviewProduct(ctx, first.ID, 99, true, ""))
	require.NoError(t, client.Queries.ReviewProduct(ctx, second.ID, 99, true, ""))

	listed, total, err := client.Queries.ListPublishedProducts(ctx, ProductFilter{Keyword: "walnut"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, listed, 1)
	assert.Equal(t, first.ID, listed[0].ID)
}

func TestListProductsForAdminSeesUnreviewedRows(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	pending, _ := seedProduct(t, client.Queries, "walnut board", ProductTypePhysical)
	approved, _ := seedProduct(t, client.Queries, "oak board", ProductTypePhysical)
	require.NoError(t, client.Queries.ReviewProduct(ctx, approved.ID, 99, true, ""))

	listed, total, err := client.Queries.ListProductsForAdmin(ctx, AdminProductFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, listed, 2)

	listed, total, err = client.Queries.ListProductsForAdmin(ctx, AdminProductFilter{CheckState: CheckStatePending})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, listed, 1)
	assert.Equal(t, pending.ID, listed[0].ID)
}

func TestUpdateProductLeavesReviewStateAlone(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	product, _ := seedProduct(t, client.Queries, "engraver", ProductTypePhysical)
	require.NoError(t, client.Queries.ReviewProduct(ctx, product.ID, 99, true, ""))

	product, err := client.Queries.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	product.Name = "engraver mk2"

	updated, err := client.Queries.UpdateProduct(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, "engraver mk2", updated.Name)
	assert.Equal(t, CheckStateApproved, updated.CheckState)
	assert.True(t, updated.IsPublished)
}

func TestCategoryNameTakenComparesNullParents(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	root, err := client.Queries.InsertCategory(ctx, "machines", sql.NullInt64{}, sql.NullInt64{})
	require.NoError(t, err)
	parent := sql.NullInt64{Int64: root.ID, Valid: true}
	_, err = client.Queries.InsertCategory(ctx, "engravers", parent, parent)
	require.NoError(t, err)

	taken, err := client.Queries.CategoryNameTaken(ctx, "machines", sql.NullInt64{}, 0)
	require.NoError(t, err)
	assert.True(t, taken)

	// The row itself does not count when excluded, so renames stay legal.
	taken, err = client.Queries.CategoryNameTaken(ctx, "machines", sql.NullInt64{}, root.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	// The same name under a different parent is free.
	taken, err = client.Queries.CategoryNameTaken(ctx, "machines", parent, 0)
	require.NoError(t, err)
	assert.False(t, taken)

	taken, err = client.Queries.CategoryNameTaken(ctx, "engravers", parent, 0)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestDecrementSKUStock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, sku := seedProduct(t, client.Queries, "engraver", ProductTypePhysical)

	for i := 0; i < 3; i++ {
		ok, err := client.Queries.DecrementSKUStock(ctx, sku.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	// Sold out.
	ok, err := client.Queries.DecrementSKUStock(ctx, sku.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.Queries.RestoreSKUStock(ctx, sku.ID))
	ok, err = client.Queries.DecrementSKUStock(ctx, sku.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlimitedStockNeverRunsOut(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	product, _ := seedProduct(t, client.Queries, "digital plan", ProductTypeDesign)
	sku, err := client.Queries.CreateSKU(ctx, CreateSKUParams{
		ProductID:  product.ID,
		Name:       "license",
		PriceCents: 990,
		Stock:      -1,
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ok, err := client.Queries.DecrementSKUStock(ctx, sku.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	require.NoError(t, client.Queries.RestoreSKUStock(ctx, sku.ID))
	got, err := client.Queries.GetSKU(ctx, sku.ID)
	require.NoError(t, err)
	assert.EqualValues(t, -1, got.Stock)
}
