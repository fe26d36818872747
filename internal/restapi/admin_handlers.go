package restapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"storefront.kajin.shop/internal/models"
	"storefront.kajin.shop/internal/utils"
)

func (api *RestAPI) adminUsersHandler(w http.ResponseWriter, r *http.Request) {
	page := utils.ParsePage(r)

	users, err := api.Store.Queries.ListUsers(r.Context(), page.Limit(), page.Offset())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	total, err := api.Store.Queries.CountUsers(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	views := make([]models.UserView, 0, len(users))
	for _, u := range users {
		roles, err := api.Store.Queries.RolesForUser(r.Context(), u.ID)
		if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		views = append(views, models.NewUserView(u, roles))
	}
	api.sendPage(w, views, total, page.HasNext(total))
}

type reviewProductRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

func (api *RestAPI) reviewProductHandler(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := currentUser(r)
	if !ok {
		api.sendUnauthorized(w)
		return
	}

	id, err := utils.ExtractInt64Param(r, "id")
	if err != nil || utils.ValidatePositiveID(id) != nil {
		api.validationErrorResponse(w, models.FieldErrors{"id": {"must be a positive integer"}})
		return
	}

	var req reviewProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}
	if !req.Approve && strings.TrimSpace(req.Reason) == "" {
		api.validationErrorResponse(w, models.FieldErrors{"reason": {"required when rejecting"}})
		return
	}

	err = api.Store.Queries.ReviewProduct(r.Context(), id, reviewer.ID, req.Approve, req.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		api.sendNotFound(w)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.Logger.Info("product reviewed",
		"product_id", id, "approved", req.Approve, "reviewer_id", reviewer.ID)
	api.sendSuccess(w, nil)
}

func (api *RestAPI) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userCount, err := api.Store.Queries.CountUsers(ctx)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	productCount, err := api.Store.Queries.CountProducts(ctx)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	paidOrders, err := api.Store.Queries.CountPaidOrders(ctx)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	revenue, err := api.Store.Queries.SumPaidRevenueCents(ctx)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.sendSuccess(w, models.DashboardStats{
		UserCount:    userCount,
		ProductCount: productCount,
		PaidOrders:   paidOrders,
		Revenue:      models.FormatCents(revenue),
	})
}
