package restapi

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"storefront.kajin.shop/internal/models"
	"storefront.kajin.shop/internal/utils"
	"storefront.kajin.shop/shopdb"
)

func (api *RestAPI) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := api.Store.Queries.ListCategories(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendSuccess(w, models.NewCategoryTree(categories))
}

func (api *RestAPI) seriesHandler(w http.ResponseWriter, r *http.Request) {
	series, err := api.Store.Queries.ListSeries(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	views := make([]models.SeriesView, 0, len(series))
	for _, s := range series {
		views = append(views, models.SeriesView{ID: s.ID, Name: s.Name})
	}
	api.sendSuccess(w, views)
}

func (api *RestAPI) productsHandler(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword != "" {
		if err := utils.ValidateQuery(keyword); err != nil {
			api.validationErrorResponse(w, models.FieldErrors{"keyword": {err.Error()}})
			return
		}
	}

	page := utils.ParsePage(r)
	filter := shopdb.ProductFilter{
		CategoryID: utils.QueryInt64(r, "categoryId", 0),
		SeriesID:   utils.QueryInt64(r, "seriesId", 0),
		Keyword:    keyword,
		Limit:      page.Limit(),
		Offset:     page.Offset(),
	}

	products, total, err := api.Store.Queries.ListPublishedProducts(r.Context(), filter)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	views := make([]models.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, models.NewProductView(p, nil))
	}
	api.sendPage(w, views, total, page.HasNext(total))
}

func (api *RestAPI) productDetailHandler(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ExtractInt64Param(r, "id")
	if err != nil || utils.ValidatePositiveID(id) != nil {
		api.validationErrorResponse(w, models.FieldErrors{"id": {"must be a positive integer"}})
		return
	}

	product, err := api.Store.Queries.GetProduct(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		api.sendNotFound(w)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	// Unreviewed or retracted products are invisible to shoppers.
	if !product.IsPublished || product.CheckState != shopdb.CheckStateApproved || product.IsDeleted {
		api.sendNotFound(w)
		return
	}

	skus, err := api.Store.Queries.ListSKUsForProduct(r.Context(), product.ID, true)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendSuccess(w, models.NewProductView(product, skus))
}
