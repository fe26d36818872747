package restapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"storefront.kajin.shop/internal/models"
	"storefront.kajin.shop/internal/utils"
	"storefront.kajin.shop/shopdb"
)

// Back-office catalog management. Creating a product leaves it unpublished and
// pending review; only reviewProductHandler moves it into the storefront.

func (api *RestAPI) adminListProductsHandler(w http.ResponseWriter, r *http.Request) {
	page := utils.ParsePage(r)

	checkState := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("checkState")))
	switch checkState {
	case "", shopdb.CheckStatePending, shopdb.CheckStateApproved, shopdb.CheckStateRejected:
	default:
		api.validationErrorResponse(w, models.FieldErrors{"checkState": {"unknown review state"}})
		return
	}

	keyword := r.URL.Query().Get("keyword")
	if keyword != "" {
		if err := utils.ValidateQuery(keyword); err != nil {
			api.validationErrorResponse(w, models.FieldErrors{"keyword": {err.Error()}})
			return
		}
	}

	products, total, err := api.Store.Queries.ListProductsForAdmin(r.Context(), shopdb.AdminProductFilter{
		CheckState: checkState,
		Keyword:    keyword,
		Limit:      page.Limit(),
		Offset:     page.Offset(),
	})
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	views := make([]models.AdminProductView, 0, len(products))
	for _, p := range products {
		skus, err := api.Store.Queries.ListSKUsForProduct(r.Context(), p.ID, false)
		if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		views = append(views, models.NewAdminProductView(p, skus))
	}
	api.sendPage(w, views, total, page.HasNext(total))
}

type productRequest struct {
	Name        *string `json:"name"`
	Subtitle    *string `json:"subtitle"`
	CoverImage  *string `json:"coverImage"`
	Description *string `json:"description"`
	DetailHTML  *string `json:"detailHtml"`
	CategoryID  *int64  `json:"categoryId"`
	SeriesID    *int64  `json:"seriesId"`
	ProductType *string `json:"productType"`
	Sort        *int64  `json:"sort"`
}

func validProductType(t string) bool {
	switch t {
	case shopdb.ProductTypePhysical, shopdb.ProductTypeDesign, shopdb.ProductTypeVIP:
		return true
	}
	return false
}

func (api *RestAPI) adminCreateProductHandler(w http.ResponseWriter, r *http.Request) {
	creator, ok := currentUser(r)
	if !ok {
		api.sendUnauthorized(w)
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}

	fieldErrors := models.FieldErrors{}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		fieldErrors["name"] = append(fieldErrors["name"], "must not be empty")
	}
	if req.CategoryID == nil || utils.ValidatePositiveID(*req.CategoryID) != nil {
		fieldErrors["categoryId"] = append(fieldErrors["categoryId"], "must be a positive integer")
	}
	if req.ProductType != nil && !validProductType(*req.ProductType) {
		fieldErrors["productType"] = append(fieldErrors["productType"], "unknown product type")
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, fieldErrors)
		return
	}

	if _, err := api.Store.Queries.GetCategory(r.Context(), *req.CategoryID); errors.Is(err, sql.ErrNoRows) {
		api.sendBusinessError(w, "category not found")
		return
	} else if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	params := shopdb.CreateProductParams{
		Name:          strings.TrimSpace(*req.Name),
		CategoryID:    *req.CategoryID,
		CreatorUserID: creator.ID,
	}
	if req.Subtitle != nil {
		params.Subtitle = sql.NullString{String: *req.Subtitle, Valid: *req.Subtitle != ""}
	}
	if req.CoverImage != nil {
		params.CoverImage = sql.NullString{String: *req.CoverImage, Valid: *req.CoverImage != ""}
	}
	if req.Description != nil {
		params.Description = sql.NullString{String: *req.Description, Valid: *req.Description != ""}
	}
	if req.DetailHTML != nil {
		params.DetailHTML = sql.NullString{String: *req.DetailHTML, Valid: *req.DetailHTML != ""}
	}
	if req.SeriesID != nil {
		if _, err := api.Store.Queries.GetSeries(r.Context(), *req.SeriesID); errors.Is(err, sql.ErrNoRows) {
			api.sendBusinessError(w, "series not found")
			return
		} else if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		params.SeriesID = *req.SeriesID
	}
	if req.ProductType != nil {
		params.ProductType = *req.ProductType
	}
	if req.Sort != nil {
		params.Sort = *req.Sort
	}

	product, err := api.Store.Queries.CreateProduct(r.Context(), params)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.Logger.Info("product created",
		"product_id", product.ID, "creator_id", creator.ID, "product_type", product.ProductType)
	api.sendSuccess(w, models.NewAdminProductView(product, nil))
}

func (api *RestAPI) adminUpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ExtractInt64Param(r, "id")
	if err != nil || utils.ValidatePositiveID(id) != nil {
		api.validationErrorResponse(w, models.FieldErrors{"id": {"must be a positive integer"}})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}
	if req.ProductType != nil && !validProductType(*req.ProductType) {
		api.validationErrorResponse(w, models.FieldErrors{"productType": {"unknown product type"}})
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		api.validationErrorResponse(w, models.FieldErrors{"name": {"must not be empty"}})
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

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Subtitle != nil {
		product.Subtitle = sql.NullString{String: *req.Subtitle, Valid: *req.Subtitle != ""}
	}
	if req.CoverImage != nil {
		product.CoverImage = sql.NullString{String: *req.CoverImage, Valid: *req.CoverImage != ""}
	}
	if req.Description != nil {
		product.Description = sql.NullString{String: *req.Description, Valid: *req.Description != ""}
	}
	if req.DetailHTML != nil {
		product.DetailHTML = sql.NullString{String: *req.DetailHTML, Valid: *req.DetailHTML != ""}
	}
	if req.CategoryID != nil {
		if _, err := api.Store.Queries.GetCategory(r.Context(), *req.CategoryID); errors.Is(err, sql.ErrNoRows) {
			api.sendBusinessError(w, "category not found")
			return
		} else if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		product.CategoryID = *req.CategoryID
	}
	if req.SeriesID != nil {
		if _, err := api.Store.Queries.GetSeries(r.Context(), *req.SeriesID); errors.Is(err, sql.ErrNoRows) {
			api.sendBusinessError(w, "series not found")
			return
		} else if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		product.SeriesID = *req.SeriesID
	}
	if req.ProductType != nil {
		product.ProductType = *req.ProductType
	}
	if req.Sort != nil {
		product.Sort = *req.Sort
	}

	updated, err := api.Store.Queries.UpdateProduct(r.Context(), product)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.Logger.Info("product updated", "product_id", updated.ID)
	api.sendSuccess(w, models.NewAdminProductView(updated, nil))
}

type skuRequest struct {
	Name               *string `json:"name"`
	PriceCents         *int64  `json:"priceCents"`
	OriginalPriceCents *int64  `json:"originalPriceCents"`
	Stock              *int64  `json:"stock"`
	Code               *string `json:"code"`
	Enabled            *bool   `json:"enabled"`
	VipPlanDays        *int64  `json:"vipPlanDays"`
	DesignID           *int64  `json:"designId"`
}

func (api *RestAPI) adminCreateSKUHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := utils.ExtractInt64Param(r, "id")
	if err != nil || utils.ValidatePositiveID(productID) != nil {
		api.validationErrorResponse(w, models.FieldErrors{"id": {"must be a positive integer"}})
		return
	}

	var req skuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}

	fieldErrors := models.FieldErrors{}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		fieldErrors["name"] = append(fieldErrors["name"], "must not be empty")
	}
	if req.PriceCents == nil || *req.PriceCents <= 0 {
		fieldErrors["priceCents"] = append(fieldErrors["priceCents"], "must be a positive integer")
	}
	if req.Stock != nil && *req.Stock < -1 {
		fieldErrors["stock"] = append(fieldErrors["stock"], "must be -1 (unlimited) or non-negative")
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, fieldErrors)
		return
	}

	if _, err := api.Store.Queries.GetProduct(r.Context(), productID); errors.Is(err, sql.ErrNoRows) {
		api.sendNotFound(w)
		return
	} else if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	params := shopdb.CreateSKUParams{
		ProductID:  productID,
		Name:       strings.TrimSpace(*req.Name),
		PriceCents: *req.PriceCents,
	}
	if req.OriginalPriceCents != nil {
		params.OriginalPriceCents = sql.NullInt64{Int64: *req.OriginalPriceCents, Valid: true}
	}
	if req.Stock != nil {
		params.Stock = *req.Stock
	}
	if req.Code != nil {
		params.Code = sql.NullString{String: *req.Code, Valid: *req.Code != ""}
	}
	if req.VipPlanDays != nil {
		params.VipPlanDays = sql.NullInt64{Int64: *req.VipPlanDays, Valid: true}
	}
	if req.DesignID != nil {
		params.DesignID = sql.NullInt64{Int64: *req.DesignID, Valid: true}
	}

	sku, err := api.Store.Queries.CreateSKU(r.Context(), params)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.Logger.Info("sku created", "sku_id", sku.ID, "product_id", productID)
	api.sendSuccess(w, models.NewSKUView(sku))
}

func (api *RestAPI) adminUpdateSKUHandler(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ExtractInt64Param(r, "id")
	if err != nil || utils.ValidatePositiveID(id) != nil {
		api.validationErrorResponse(w, models.FieldErrors{"id": {"must be a positive integer"}})
		return
	}

	var req skuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}
	if req.PriceCents != nil && *req.PriceCents <= 0 {
		api.validationErrorResponse(w, models.FieldErrors{"priceCents": {"must be a positive integer"}})
		return
	}
	if req.Stock != nil && *req.Stock < -1 {
		api.validationErrorResponse(w, models.FieldErrors{"stock": {"must be -1 (unlimited) or non-negative"}})
		return
	}

	sku, err := api.Store.Queries.GetSKU(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		api.sendNotFound(w)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		sku.Name = strings.TrimSpace(*req.Name)
	}
	if req.PriceCents != nil {
		sku.PriceCents = *req.PriceCents
	}
	if req.OriginalPriceCents != nil {
		sku.OriginalPriceCents = sql.NullInt64{Int64: *req.OriginalPriceCents, Valid: *req.OriginalPriceCents > 0}
	}
	if req.Stock != nil {
		sku.Stock = *req.Stock
	}
	if req.Code != nil {
		sku.Code = sql.NullString{String: *req.Code, Valid: *req.Code != ""}
	}
	if req.Enabled != nil {
		sku.IsEnabled = *req.Enabled
	}
	if req.VipPlanDays != nil {
		sku.VipPlanDays = sql.NullInt64{Int64: *req.VipPlanDays, Valid: *req.VipPlanDays > 0}
	}
	if req.DesignID != nil {
		sku.DesignID = sql.NullInt64{Int64: *req.DesignID, Valid: *req.DesignID > 0}
	}

	updated, err := api.Store.Queries.UpdateSKU(r.Context(), sku)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.Logger.Info("sku updated", "sku_id", updated.ID)
	api.sendSuccess(w, models.NewSKUView(updated))
}

type catalogNodeRequest struct {
	Name     *string `json:"name"`
	ParentID *int64  `json:"parentId"`
}

type catalogNodeView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parentId,omitempty"`
}

func (api *RestAPI) adminCreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req catalogNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		api.validationErrorResponse(w, models.FieldErrors{"name": {"must not be empty"}})
		return
	}
	name := strings.TrimSpace(*req.Name)

	var parentID, topParentID sql.NullInt64
	if req.ParentID != nil && *req.ParentID != 0 {
		parent, err := api.Store.Queries.GetCategory(r.Context(), *req.ParentID)
		if errors.Is(err, sql.ErrNoRows) {
			api.sendBusinessError(w, "parent category not found")
			return
		}
		if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		parentID = sql.NullInt64{Int64: parent.ID, Valid: true}
		topParentID = parent.TopParentID
		if !topParentID.Valid {
			topParentID = sql.NullInt64{Int64: parent.ID, Valid: true}
		}
	}

	taken, err := api.Store.Queries.CategoryNameTaken(r.Context(), name, parentID, 0)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if taken {
		api.sendBusinessError(w, "a category with this name already exists at this level")
		return
	}

	category, err := api.Store.Queries.InsertCategory(r.Context(), name, parentID, topParentID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.Logger.Info("category created", "category_id", category.ID, "name", category.Name)
	api.sendSuccess(w, catalogNodeView{ID: category.ID, Name: category.Name, ParentID: category.ParentID.Int64})
}

func (api *RestAPI) adminUpdateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ExtractInt64Param(r, "id")
	if err != nil || utils.ValidatePositiveID(id) != nil {
		api.validationErrorResponse(w, models.FieldErrors{"id": {"must be a positive integer"}})
		return
	}

	var req catalogNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}

	category, err := api.Store.Queries.GetCategory(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		api.sendNotFound(w)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			api.validationErrorResponse(w, models.FieldErrors{"name": {"must not be empty"}})
			return
		}
		category.Name = name
	}

	if req.ParentID != nil {
		switch {
		case *req.ParentID == 0:
			category.ParentID = sql.NullInt64{}
			category.TopParentID = sql.NullInt64{}
		case *req.ParentID == id:
			api.sendBusinessError(w, "a category cannot be its own parent")
			return
		default:
			parent, err := api.Store.Queries.GetCategory(r.Context(), *req.ParentID)
			if errors.Is(err, sql.ErrNoRows) {
				api.sendBusinessError(w, "parent category not found")
				return
			}
			if err != nil {
				api.serverErrorResponse(w, r, err)
				return
			}
			all, err := api.Store.Queries.ListCategories(r.Context())
			if err != nil {
				api.serverErrorResponse(w, r, err)
				return
			}
			if nodeHasAncestor(categoryNodes(all), parent.ID, id) {
				api.sendBusinessError(w, "a descendant category cannot become the parent")
				return
			}
			category.ParentID = sql.NullInt64{Int64: parent.ID, Valid: true}
			category.TopParentID = parent.TopParentID
			if !category.TopParentID.Valid {
				category.TopParentID = sql.NullInt64{Int64: parent.ID, Valid: true}
			}
		}
	}

	taken, err := api.Store.Queries.CategoryNameTaken(r.Context(), category.Name, category.ParentID, id)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if taken {
		api.sendBusinessError(w, "a category with this name already exists at this level")
		return
	}

	updated, err := api.Store.Queries.UpdateCategory(r.Context(), id, category.Name, category.ParentID, category.TopParentID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.Logger.Info("category updated", "category_id", updated.ID)
	api.sendSuccess(w, catalogNodeView{ID: updated.ID, Name: updated.Name, ParentID: updated.ParentID.Int64})
}

func (api *RestAPI) adminCreateSeriesHandler(w http.ResponseWriter, r *http.Request) {
	var req catalogNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		api.validationErrorResponse(w, models.FieldErrors{"name": {"must not be empty"}})
		return
	}
	name := strings.TrimSpace(*req.Name)

	var parentID, topParentID sql.NullInt64
	if req.ParentID != nil && *req.ParentID != 0 {
		parent, err := api.Store.Queries.GetSeries(r.Context(), *req.ParentID)
		if errors.Is(err, sql.ErrNoRows) {
			api.sendBusinessError(w, "parent series not found")
			return
		}
		if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		parentID = sql.NullInt64{Int64: parent.ID, Valid: true}
		topParentID = parent.TopParentID
		if !topParentID.Valid {
			topParentID = sql.NullInt64{Int64: parent.ID, Valid: true}
		}
	}

	taken, err := api.Store.Queries.SeriesNameTaken(r.Context(), name, parentID, 0)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if taken {
		api.sendBusinessError(w, "a series with this name already exists at this level")
		return
	}

	series, err := api.Store.Queries.InsertSeries(r.Context(), name, parentID, topParentID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.Logger.Info("series created", "series_id", series.ID, "name", series.Name)
	api.sendSuccess(w, catalogNodeView{ID: series.ID, Name: series.Name, ParentID: series.ParentID.Int64})
}

func (api *RestAPI) adminUpdateSeriesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ExtractInt64Param(r, "id")
	if err != nil || utils.ValidatePositiveID(id) != nil {
		api.validationErrorResponse(w, models.FieldErrors{"id": {"must be a positive integer"}})
		return
	}

	var req catalogNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}

	series, err := api.Store.Queries.GetSeries(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		api.sendNotFound(w)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			api.validationErrorResponse(w, models.FieldErrors{"name": {"must not be empty"}})
			return
		}
		series.Name = name
	}

	if req.ParentID != nil {
		switch {
		case *req.ParentID == 0:
			series.ParentID = sql.NullInt64{}
			series.TopParentID = sql.NullInt64{}
		case *req.ParentID == id:
			api.sendBusinessError(w, "a series cannot be its own parent")
			return
		default:
			parent, err := api.Store.Queries.GetSeries(r.Context(), *req.ParentID)
			if errors.Is(err, sql.ErrNoRows) {
				api.sendBusinessError(w, "parent series not found")
				return
			}
			if err != nil {
				api.serverErrorResponse(w, r, err)
				return
			}
			all, err := api.Store.Queries.ListSeries(r.Context())
			if err != nil {
				api.serverErrorResponse(w, r, err)
				return
			}
			if nodeHasAncestor(seriesNodes(all), parent.ID, id) {
				api.sendBusinessError(w, "a descendant series cannot become the parent")
				return
			}
			series.ParentID = sql.NullInt64{Int64: parent.ID, Valid: true}
			series.TopParentID = parent.TopParentID
			if !series.TopParentID.Valid {
				series.TopParentID = sql.NullInt64{Int64: parent.ID, Valid: true}
			}
		}
	}

	taken, err := api.Store.Queries.SeriesNameTaken(r.Context(), series.Name, series.ParentID, id)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if taken {
		api.sendBusinessError(w, "a series with this name already exists at this level")
		return
	}

	updated, err := api.Store.Queries.UpdateSeries(r.Context(), id, series.Name, series.ParentID, series.TopParentID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.Logger.Info("series updated", "series_id", updated.ID)
	api.sendSuccess(w, catalogNodeView{ID: updated.ID, Name: updated.Name, ParentID: updated.ParentID.Int64})
}

func categoryNodes(categories []shopdb.Category) map[int64]int64 {
	parents := make(map[int64]int64, len(categories))
	for _, c := range categories {
		if c.ParentID.Valid {
			parents[c.ID] = c.ParentID.Int64
		}
	}
	return parents
}

func seriesNodes(series []shopdb.Series) map[int64]int64 {
	parents := make(map[int64]int64, len(series))
	for _, s := range series {
		if s.ParentID.Valid {
			parents[s.ID] = s.ParentID.Int64
		}
	}
	return parents
}

// nodeHasAncestor walks the parent chain of node looking for ancestor.
func nodeHasAncestor(parents map[int64]int64, node, ancestor int64) bool {
	for i := 0; i < len(parents)+1; i++ {
		parentID, ok := parents[node]
		if !ok {
			return false
		}
		if parentID == ancestor {
			return true
		}
		node = parentID
	}
	return false
}
