package shopdb

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

func (q *Queries) InsertCategory(ctx context.Context, name string, parentID, topParentID sql.NullInt64) (Category, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, parent_id, top_parent_id) VALUES (?, ?, ?)
		 RETURNING id, name, parent_id, top_parent_id`, name, parentID, topParentID)
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.ParentID, &c.TopParentID)
	return c, err
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (Category, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, name, parent_id, top_parent_id FROM categories WHERE id = ?`, id)
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.ParentID, &c.TopParentID)
	return c, err
}

func (q *Queries) UpdateCategory(ctx context.Context, id int64, name string, parentID, topParentID sql.NullInt64) (Category, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE categories SET name = ?, parent_id = ?, top_parent_id = ? WHERE id = ?
		 RETURNING id, name, parent_id, top_parent_id`, name, parentID, topParentID, id)
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.ParentID, &c.TopParentID)
	return c, err
}

// CategoryNameTaken reports whether another category with the same name exists
// under the same parent.
func (q *Queries) CategoryNameTaken(ctx context.Context, name string, parentID sql.NullInt64, excludeID int64) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE name = ? AND parent_id IS ? AND id != ?`,
		name, parentID, excludeID).Scan(&n)
	return n > 0, err
}

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, parent_id, top_parent_id FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() // nolint:errcheck

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID, &c.TopParentID); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (q *Queries) InsertSeries(ctx context.Context, name string, parentID, topParentID sql.NullInt64) (Series, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO series (name, parent_id, top_parent_id) VALUES (?, ?, ?)
		 RETURNING id, name, parent_id, top_parent_id`, name, parentID, topParentID)
	var s Series
	err := row.Scan(&s.ID, &s.Name, &s.ParentID, &s.TopParentID)
	return s, err
}

func (q *Queries) GetSeries(ctx context.Context, id int64) (Series, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, name, parent_id, top_parent_id FROM series WHERE id = ?`, id)
	var s Series
	err := row.Scan(&s.ID, &s.Name, &s.ParentID, &s.TopParentID)
	return s, err
}

func (q *Queries) UpdateSeries(ctx context.Context, id int64, name string, parentID, topParentID sql.NullInt64) (Series, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE series SET name = ?, parent_id = ?, top_parent_id = ? WHERE id = ?
		 RETURNING id, name, parent_id, top_parent_id`, name, parentID, topParentID, id)
	var s Series
	err := row.Scan(&s.ID, &s.Name, &s.ParentID, &s.TopParentID)
	return s, err
}

// SeriesNameTaken reports whether another series with the same name exists
// under the same parent.
func (q *Queries) SeriesNameTaken(ctx context.Context, name string, parentID sql.NullInt64, excludeID int64) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM series WHERE name = ? AND parent_id IS ? AND id != ?`,
		name, parentID, excludeID).Scan(&n)
	return n > 0, err
}

func (q *Queries) ListSeries(ctx context.Context) ([]Series, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, parent_id, top_parent_id FROM series ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() // nolint:errcheck

	var series []Series
	for rows.Next() {
		var s Series
		if err := rows.Scan(&s.ID, &s.Name, &s.ParentID, &s.TopParentID); err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return series, rows.Err()
}

type CreateProductParams struct {
	Name          string
	Subtitle      sql.NullString
	CoverImage    sql.NullString
	Description   sql.NullString
	DetailHTML    sql.NullString
	CategoryID    int64
	SeriesID      int64
	CreatorUserID int64
	ProductType   string
	Sort          int64
}

const productColumns = `id, name, subtitle, cover_image, description, detail_html, category_id, series_id,
	is_published, creator_user_id, check_state, check_reason, checker_user_id, checked_at,
	is_deleted, sort, product_type, created_at, updated_at`

func (q *Queries) CreateProduct(ctx context.Context, p CreateProductParams) (Product, error) {
	now := time.Now().Unix()
	productType := p.ProductType
	if productType == "" {
		productType = ProductTypePhysical
	}
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO products (name, subtitle, cover_image, description, detail_html, category_id, series_id,
			creator_user_id, sort, product_type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+productColumns,
		p.Name, p.Subtitle, p.CoverImage, p.Description, p.DetailHTML, p.CategoryID, p.SeriesID,
		p.CreatorUserID, p.Sort, productType, now, now)
	return scanProduct(row)
}

func (q *Queries) GetProduct(ctx context.Context, id int64) (Product, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ? AND is_deleted = 0`, id)
	return scanProduct(row)
}

func scanProduct(row *sql.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Subtitle, &p.CoverImage, &p.Description, &p.DetailHTML,
		&p.CategoryID, &p.SeriesID, &p.IsPublished, &p.CreatorUserID, &p.CheckState, &p.CheckReason,
		&p.CheckerUserID, &p.CheckedAt, &p.IsDeleted, &p.Sort, &p.ProductType, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// UpdateProduct rewrites a product's descriptive fields. Review state is
// untouched; moderation decisions go through ReviewProduct.
func (q *Queries) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE products SET name = ?, subtitle = ?, cover_image = ?, description = ?, detail_html = ?,
			category_id = ?, series_id = ?, sort = ?, product_type = ?, is_published = ?, updated_at = ?
		 WHERE id = ? AND is_deleted = 0
		 RETURNING `+productColumns,
		p.Name, p.Subtitle, p.CoverImage, p.Description, p.DetailHTML,
		p.CategoryID, p.SeriesID, p.Sort, p.ProductType, p.IsPublished, time.Now().Unix(), p.ID)
	return scanProduct(row)
}

// AdminProductFilter narrows the back-office product listing. Unlike the
// storefront listing it sees unpublished and unreviewed rows.
type AdminProductFilter struct {
	CheckState string
	Keyword    string
	Limit      int64
	Offset     int64
}

func (q *Queries) ListProductsForAdmin(ctx context.Context, f AdminProductFilter) ([]Product, int64, error) {
	where := []string{"is_deleted = 0"}
	var args []any

	if f.CheckState != "" {
		where = append(where, "check_state = ?")
		args = append(args, f.CheckState)
	}
	if f.Keyword != "" {
		where = append(where, "(name LIKE ? OR description LIKE ?)")
		pattern := "%" + f.Keyword + "%"
		args = append(args, pattern, pattern)
	}

	clause := strings.Join(where, " AND ")

	var total int64
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	listArgs := append(args, limit, f.Offset)
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE `+clause+
			` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() // nolint:errcheck

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Subtitle, &p.CoverImage, &p.Description, &p.DetailHTML,
			&p.CategoryID, &p.SeriesID, &p.IsPublished, &p.CreatorUserID, &p.CheckState, &p.CheckReason,
			&p.CheckerUserID, &p.CheckedAt, &p.IsDeleted, &p.Sort, &p.ProductType, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// ProductFilter narrows a storefront product listing. Zero values mean "any".
type ProductFilter struct {
	CategoryID int64
	SeriesID   int64
	Keyword    string
	Limit      int64
	Offset     int64
}

// ListPublishedProducts returns approved, published, undeleted products plus
// the total count matching the filter.
func (q *Queries) ListPublishedProducts(ctx context.Context, f ProductFilter) ([]Product, int64, error) {
	where := []string{"is_published = 1", "check_state = ?", "is_deleted = 0"}
	args := []any{CheckStateApproved}

	if f.CategoryID != 0 {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.SeriesID != 0 {
		where = append(where, "series_id = ?")
		args = append(args, f.SeriesID)
	}
	if f.Keyword != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+f.Keyword+"%")
	}

	clause := strings.Join(where, " AND ")

	var total int64
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	listArgs := append(args, limit, f.Offset)
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE `+clause+
			` ORDER BY sort DESC, id DESC LIMIT ? OFFSET ?`, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() // nolint:errcheck

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Subtitle, &p.CoverImage, &p.Description, &p.DetailHTML,
			&p.CategoryID, &p.SeriesID, &p.IsPublished, &p.CreatorUserID, &p.CheckState, &p.CheckReason,
			&p.CheckerUserID, &p.CheckedAt, &p.IsDeleted, &p.Sort, &p.ProductType, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// ReviewProduct records a moderation decision. Approving also publishes.
func (q *Queries) ReviewProduct(ctx context.Context, productID, checkerUserID int64, approve bool, reason string) error {
	state := CheckStateApproved
	published := 1
	var reasonVal sql.NullString
	if !approve {
		state = CheckStateRejected
		published = 0
		reasonVal = sql.NullString{String: reason, Valid: reason != ""}
	}
	now := time.Now().Unix()
	res, err := q.db.ExecContext(ctx,
		`UPDATE products SET check_state = ?, check_reason = ?, checker_user_id = ?, checked_at = ?,
			is_published = ?, updated_at = ?
		 WHERE id = ? AND is_deleted = 0`,
		state, reasonVal, checkerUserID, now, published, now, productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type CreateSKUParams struct {
	ProductID          int64
	Name               string
	PriceCents         int64
	OriginalPriceCents sql.NullInt64
	Stock              int64
	Code               sql.NullString
	VipPlanDays        sql.NullInt64
	DesignID           sql.NullInt64
}

const skuColumns = `id, product_id, name, price_cents, original_price_cents, stock, code, is_enabled, vip_plan_days, design_id`

func (q *Queries) CreateSKU(ctx context.Context, p CreateSKUParams) (SKU, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO skus (product_id, name, price_cents, original_price_cents, stock, code, vip_plan_days, design_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+skuColumns,
		p.ProductID, p.Name, p.PriceCents, p.OriginalPriceCents, p.Stock, p.Code, p.VipPlanDays, p.DesignID)
	return scanSKU(row)
}

func (q *Queries) GetSKU(ctx context.Context, id int64) (SKU, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+skuColumns+` FROM skus WHERE id = ?`, id)
	return scanSKU(row)
}

func scanSKU(row *sql.Row) (SKU, error) {
	var s SKU
	err := row.Scan(&s.ID, &s.ProductID, &s.Name, &s.PriceCents, &s.OriginalPriceCents,
		&s.Stock, &s.Code, &s.IsEnabled, &s.VipPlanDays, &s.DesignID)
	return s, err
}

// UpdateSKU rewrites a SKU row from its in-memory state.
func (q *Queries) UpdateSKU(ctx context.Context, s SKU) (SKU, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE skus SET name = ?, price_cents = ?, original_price_cents = ?, stock = ?, code = ?,
			is_enabled = ?, vip_plan_days = ?, design_id = ?
		 WHERE id = ?
		 RETURNING `+skuColumns,
		s.Name, s.PriceCents, s.OriginalPriceCents, s.Stock, s.Code,
		s.IsEnabled, s.VipPlanDays, s.DesignID, s.ID)
	return scanSKU(row)
}

func (q *Queries) ListSKUsForProduct(ctx context.Context, productID int64, onlyEnabled bool) ([]SKU, error) {
	query := `SELECT ` + skuColumns + ` FROM skus WHERE product_id = ?`
	if onlyEnabled {
		query += ` AND is_enabled = 1`
	}
	query += ` ORDER BY id`

	rows, err := q.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() // nolint:errcheck

	var skus []SKU
	for rows.Next() {
		var s SKU
		if err := rows.Scan(&s.ID, &s.ProductID, &s.Name, &s.PriceCents, &s.OriginalPriceCents,
			&s.Stock, &s.Code, &s.IsEnabled, &s.VipPlanDays, &s.DesignID); err != nil {
			return nil, err
		}
		skus = append(skus, s)
	}
	return skus, rows.Err()
}

// DecrementSKUStock reserves one unit. It reports false when the SKU is sold
// out. A stock of -1 means unlimited and always succeeds.
func (q *Queries) DecrementSKUStock(ctx context.Context, skuID int64) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE skus SET stock = stock - 1 WHERE id = ? AND stock > 0`, skuID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	// Unlimited stock is modeled as -1 and never decremented.
	var stock int64
	if err := q.db.QueryRowContext(ctx, `SELECT stock FROM skus WHERE id = ?`, skuID).Scan(&stock); err != nil {
		return false, err
	}
	return stock == -1, nil
}

// RestoreSKUStock returns one unit after a cancel or timeout close. Unlimited
// stock stays at -1.
func (q *Queries) RestoreSKUStock(ctx context.Context, skuID int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE skus SET stock = stock + 1 WHERE id = ? AND stock >= 0`, skuID)
	return err
}

func (q *Queries) InsertProductSnapshot(ctx context.Context, productID int64, snapshotJSON string) (ProductSnapshot, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO product_snapshots (product_id, snapshot_json, created_at) VALUES (?, ?, ?)
		 RETURNING id, product_id, snapshot_json, created_at`,
		productID, snapshotJSON, time.Now().Unix())
	var s ProductSnapshot
	err := row.Scan(&s.ID, &s.ProductID, &s.SnapshotJSON, &s.CreatedAt)
	return s, err
}

func (q *Queries) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE is_deleted = 0`).Scan(&n)
	return n, err
}
