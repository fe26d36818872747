package models

import (
	"time"

	"storefront.kajin.shop/shopdb"
)

// UserView is the public shape of a user account.
type UserView struct {
	ID       int64    `json:"id"`
	Username string   `json:"username,omitempty"`
	Nickname string   `json:"nickname,omitempty"`
	Avatar   string   `json:"avatar,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Email    string   `json:"email,omitempty"`
	Enabled  bool     `json:"enabled"`
	Roles    []string `json:"roles,omitempty"`
}

func NewUserView(u shopdb.User, roles []shopdb.Role) UserView {
	view := UserView{
		ID:       u.ID,
		Username: u.Username.String,
		Nickname: u.Nickname.String,
		Avatar:   u.Avatar.String,
		Phone:    u.Phone.String,
		Email:    u.Email.String,
		Enabled:  u.State == "1",
	}
	for _, role := range roles {
		view.Roles = append(view.Roles, role.RoleName)
	}
	return view
}

// LoginResult carries the issued token alongside the account it belongs to.
type LoginResult struct {
	Token     string   `json:"token"`
	ExpiresAt int64    `json:"expiresAt"`
	User      UserView `json:"user"`
}

type CategoryView struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	ParentID int64          `json:"parentId,omitempty"`
	Children []CategoryView `json:"children,omitempty"`
}

// NewCategoryTree assembles a two-level tree from flat rows: top-level nodes
// with their direct children.
func NewCategoryTree(categories []shopdb.Category) []CategoryView {
	var roots []CategoryView
	index := make(map[int64]int)

	for _, c := range categories {
		if !c.ParentID.Valid {
			index[c.ID] = len(roots)
			roots = append(roots, CategoryView{ID: c.ID, Name: c.Name})
		}
	}
	for _, c := range categories {
		if !c.ParentID.Valid {
			continue
		}
		if i, ok := index[c.ParentID.Int64]; ok {
			roots[i].Children = append(roots[i].Children, CategoryView{
				ID:       c.ID,
				Name:     c.Name,
				ParentID: c.ParentID.Int64,
			})
		}
	}
	if roots == nil {
		roots = []CategoryView{}
	}
	return roots
}

type SeriesView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type SKUView struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	OriginalPrice string `json:"originalPrice,omitempty"`
	Stock         int64  `json:"stock"`
	Enabled       bool   `json:"enabled"`
}

func NewSKUView(s shopdb.SKU) SKUView {
	view := SKUView{
		ID:      s.ID,
		Name:    s.Name,
		Price:   FormatCents(s.PriceCents),
		Stock:   s.Stock,
		Enabled: s.IsEnabled,
	}
	if s.OriginalPriceCents.Valid {
		view.OriginalPrice = FormatCents(s.OriginalPriceCents.Int64)
	}
	return view
}

type ProductView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Subtitle    string    `json:"subtitle,omitempty"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Description string    `json:"description,omitempty"`
	DetailHTML  string    `json:"detailHtml,omitempty"`
	CategoryID  int64     `json:"categoryId"`
	SeriesID    int64     `json:"seriesId,omitempty"`
	ProductType string    `json:"productType"`
	Skus        []SKUView `json:"skus,omitempty"`
}

func NewProductView(p shopdb.Product, skus []shopdb.SKU) ProductView {
	view := ProductView{
		ID:          p.ID,
		Name:        p.Name,
		Subtitle:    p.Subtitle.String,
		CoverImage:  p.CoverImage.String,
		Description: p.Description.String,
		DetailHTML:  p.DetailHTML.String,
		CategoryID:  p.CategoryID,
		SeriesID:    p.SeriesID,
		ProductType: p.ProductType,
	}
	for _, sku := range skus {
		view.Skus = append(view.Skus, NewSKUView(sku))
	}
	return view
}

// AdminProductView adds the moderation fields the storefront view hides.
type AdminProductView struct {
	ProductView
	IsPublished bool   `json:"isPublished"`
	CheckState  string `json:"checkState"`
	CheckReason string `json:"checkReason,omitempty"`
	Sort        int64  `json:"sort"`
}

func NewAdminProductView(p shopdb.Product, skus []shopdb.SKU) AdminProductView {
	return AdminProductView{
		ProductView: NewProductView(p, skus),
		IsPublished: p.IsPublished,
		CheckState:  p.CheckState,
		CheckReason: p.CheckReason.String,
		Sort:        p.Sort,
	}
}

type OrderItemView struct {
	ID          int64  `json:"id"`
	ItemType    string `json:"itemType"`
	ProductID   int64  `json:"productId"`
	SkuID       int64  `json:"skuId,omitempty"`
	ProductName string `json:"productName"`
	SkuName     string `json:"skuName,omitempty"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	TotalPrice  string `json:"totalPrice"`
}

type OrderView struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Status          string          `json:"status"`
	TotalAmount     string          `json:"totalAmount"`
	PayTime         string          `json:"payTime,omitempty"`
	ExpireTime      string          `json:"expireTime,omitempty"`
	PaymentType     string          `json:"paymentType,omitempty"`
	MerchantOrderNo string          `json:"merchantOrderNo,omitempty"`
	SerialNo        string          `json:"serialNo,omitempty"`
	CreatedAt       string          `json:"createdAt"`
	Items           []OrderItemView `json:"items,omitempty"`
}

func NewOrderView(o shopdb.Order, items []shopdb.OrderItem) OrderView {
	view := OrderView{
		ID:              o.ID,
		Name:            o.Name,
		Status:          o.Status,
		TotalAmount:     FormatCents(o.TotalAmountCents),
		PaymentType:     o.PaymentType.String,
		MerchantOrderNo: o.MerchantOrderNo.String,
		SerialNo:        o.SerialNo.String,
		CreatedAt:       formatUnix(o.CreatedAt),
	}
	if o.PayTime.Valid {
		view.PayTime = formatUnix(o.PayTime.Int64)
	}
	if o.ExpireTime.Valid {
		view.ExpireTime = formatUnix(o.ExpireTime.Int64)
	}
	for _, item := range items {
		itemView := OrderItemView{
			ID:          item.ID,
			ItemType:    item.ItemType,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			SkuName:     item.SkuName.String,
			Quantity:    item.Quantity,
			UnitPrice:   FormatCents(item.UnitPriceCents),
			TotalPrice:  FormatCents(item.TotalPriceCents),
		}
		if item.SkuID.Valid {
			itemView.SkuID = item.SkuID.Int64
		}
		view.Items = append(view.Items, itemView)
	}
	return view
}

// DashboardStats is the admin overview payload.
type DashboardStats struct {
	UserCount    int64  `json:"userCount"`
	ProductCount int64  `json:"productCount"`
	PaidOrders   int64  `json:"paidOrders"`
	Revenue      string `json:"revenue"`
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
