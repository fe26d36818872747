package restapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront.kajin.shop/internal/jobs"
	"storefront.kajin.shop/internal/models"
	"storefront.kajin.shop/internal/utils"
	"storefront.kajin.shop/shopdb"
)

type createOrderRequest struct {
	ProductID int64 `json:"productId"`
	SkuID     int64 `json:"skuId"`
}

// errBusiness marks a rule violation whose message is safe to show shoppers.
type errBusiness struct{ msg string }

func (e errBusiness) Error() string { return e.msg }

func (api *RestAPI) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		api.sendUnauthorized(w)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}

	fieldErrors := models.FieldErrors{}
	if utils.ValidatePositiveID(req.ProductID) != nil {
		fieldErrors["productId"] = append(fieldErrors["productId"], "must be a positive integer")
	}
	if utils.ValidatePositiveID(req.SkuID) != nil {
		fieldErrors["skuId"] = append(fieldErrors["skuId"], "must be a positive integer")
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, fieldErrors)
		return
	}

	order, err := api.createOrder(r.Context(), user.ID, req.ProductID, req.SkuID)
	var bizErr errBusiness
	if errors.As(err, &bizErr) {
		api.sendBusinessError(w, bizErr.msg)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.sendSuccess(w, map[string]any{"orderId": order.ID})
}

// createOrder runs the whole purchase in one transaction: stock decrement,
// order, item, product snapshot and the delayed close job. If any step fails
// nothing is committed, so the close job can never reference a phantom order.
func (api *RestAPI) createOrder(ctx context.Context, userID, productID, skuID int64) (shopdb.Order, error) {
	var order shopdb.Order

	err := api.Store.WithTx(func(q *shopdb.Queries) error {
		product, err := q.GetProduct(ctx, productID)
		if errors.Is(err, sql.ErrNoRows) {
			return errBusiness{"product not found"}
		}
		if err != nil {
			return err
		}
		if !product.IsPublished || product.CheckState != shopdb.CheckStateApproved || product.IsDeleted {
			return errBusiness{"product not found"}
		}

		sku, err := q.GetSKU(ctx, skuID)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && sku.ProductID != productID) {
			return errBusiness{"sku not found"}
		}
		if err != nil {
			return err
		}
		if !sku.IsEnabled {
			return errBusiness{"sku is no longer available"}
		}

		ok, err := q.DecrementSKUStock(ctx, sku.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errBusiness{"out of stock"}
		}

		now := time.Now()
		expireAt := now.Add(time.Duration(api.Config.Order.ExpireMinutes) * time.Minute)

		order, err = q.CreateOrder(ctx, shopdb.CreateOrderParams{
			UserID:           userID,
			Name:             orderName(product),
			TotalAmountCents: sku.PriceCents,
			ExpireTime:       expireAt.Unix(),
			PaymentType:      "wechat",
			MerchantOrderNo:  NewMerchantOrderNo(now),
			SerialNo:         NewSerialNo(now),
		})
		if err != nil {
			return err
		}

		if _, err := q.CreateOrderItem(ctx, shopdb.CreateOrderItemParams{
			OrderID:         order.ID,
			ItemType:        itemTypeFor(product.ProductType),
			ProductID:       product.ID,
			SkuID:           sql.NullInt64{Int64: sku.ID, Valid: true},
			ProductName:     product.Name,
			SkuName:         sql.NullString{String: sku.Name, Valid: true},
			Quantity:        1,
			UnitPriceCents:  sku.PriceCents,
			TotalPriceCents: sku.PriceCents,
		}); err != nil {
			return err
		}

		snapshot, err := json.Marshal(models.NewProductView(product, []shopdb.SKU{sku}))
		if err != nil {
			return fmt.Errorf("encoding product snapshot: %w", err)
		}
		if _, err := q.InsertProductSnapshot(ctx, product.ID, string(snapshot)); err != nil {
			return err
		}

		if _, err := api.queue.EnqueueOrderClose(ctx, q, order.ID, expireAt); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return shopdb.Order{}, err
	}

	api.Logger.Info("order created",
		"order_id", order.ID, "user_id", userID, "product_id", productID, "sku_id", skuID,
		"merchant_order_no", order.MerchantOrderNo.String)
	return order, nil
}

func orderName(p shopdb.Product) string {
	switch p.ProductType {
	case shopdb.ProductTypeDesign:
		return p.Name + " - design"
	case shopdb.ProductTypeVIP:
		return p.Name + " - membership"
	default:
		return p.Name
	}
}

func itemTypeFor(productType string) string {
	switch productType {
	case shopdb.ProductTypeDesign:
		return shopdb.ItemTypeDesign
	case shopdb.ProductTypeVIP:
		return shopdb.ItemTypeVIP
	default:
		return shopdb.ItemTypePhysical
	}
}

func (api *RestAPI) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		api.sendUnauthorized(w)
		return
	}

	page := utils.ParsePage(r)
	orders, total, err := api.Store.Queries.ListOrdersForUser(r.Context(), user.ID, page.Limit(), page.Offset())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	views := make([]models.OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, models.NewOrderView(o, nil))
	}
	api.sendPage(w, views, total, page.HasNext(total))
}

// ownedOrder loads an order and checks it belongs to the caller. A foreign
// order reads as not found rather than forbidden, to avoid leaking IDs.
func (api *RestAPI) ownedOrder(w http.ResponseWriter, r *http.Request, userID int64) (shopdb.Order, bool) {
	id, err := utils.ExtractInt64Param(r, "id")
	if err != nil || utils.ValidatePositiveID(id) != nil {
		api.validationErrorResponse(w, models.FieldErrors{"id": {"must be a positive integer"}})
		return shopdb.Order{}, false
	}

	order, err := api.Store.Queries.GetOrder(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		api.sendNotFound(w)
		return shopdb.Order{}, false
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return shopdb.Order{}, false
	}
	if order.UserID != userID {
		api.sendNotFound(w)
		return shopdb.Order{}, false
	}
	return order, true
}

func (api *RestAPI) orderDetailHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		api.sendUnauthorized(w)
		return
	}

	order, ok := api.ownedOrder(w, r, user.ID)
	if !ok {
		return
	}

	items, err := api.Store.Queries.ListOrderItems(r.Context(), order.ID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendSuccess(w, models.NewOrderView(order, items))
}

func (api *RestAPI) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		api.sendUnauthorized(w)
		return
	}

	order, ok := api.ownedOrder(w, r, user.ID)
	if !ok {
		return
	}

	cancelled, err := jobs.CloseOrder(r.Context(), api.Store, order.ID, shopdb.OrderStatusCancelled)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if !cancelled {
		api.sendBusinessError(w, "only pending orders can be cancelled")
		return
	}

	api.Logger.Info("order cancelled", "order_id", order.ID, "user_id", user.ID)
	api.sendSuccess(w, map[string]any{"orderId": order.ID})
}
