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

type sysConfView struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	IsPublic bool   `json:"isPublic"`
}

func newSysConfView(c shopdb.SysConf) sysConfView {
	return sysConfView{Key: c.ConfKey, Value: c.ConfValue, IsPublic: c.IsPublic}
}

// publicSysConfHandler serves configuration entries flagged public; anything
// else reads as not found so the namespace stays opaque.
func (api *RestAPI) publicSysConfHandler(w http.ResponseWriter, r *http.Request) {
	key := utils.ExtractKeyFromParams(r)
	if key == "" {
		api.validationErrorResponse(w, models.FieldErrors{"key": {"must not be empty"}})
		return
	}

	conf, err := api.Store.Queries.GetSysConf(r.Context(), key)
	if errors.Is(err, sql.ErrNoRows) {
		api.sendNotFound(w)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if !conf.IsPublic {
		api.sendNotFound(w)
		return
	}
	api.sendSuccess(w, newSysConfView(conf))
}

func (api *RestAPI) adminGetSysConfHandler(w http.ResponseWriter, r *http.Request) {
	key := utils.ExtractKeyFromParams(r)
	if key == "" {
		api.validationErrorResponse(w, models.FieldErrors{"key": {"must not be empty"}})
		return
	}

	conf, err := api.Store.Queries.GetSysConf(r.Context(), key)
	if errors.Is(err, sql.ErrNoRows) {
		api.sendNotFound(w)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendSuccess(w, newSysConfView(conf))
}

type putSysConfRequest struct {
	Value    string `json:"value"`
	IsPublic bool   `json:"isPublic"`
}

func (api *RestAPI) adminPutSysConfHandler(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(utils.ExtractKeyFromParams(r))
	if key == "" {
		api.validationErrorResponse(w, models.FieldErrors{"key": {"must not be empty"}})
		return
	}

	var req putSysConfRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}

	conf, err := api.Store.Queries.UpsertSysConf(r.Context(), key, req.Value, req.IsPublic)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.Logger.Info("sys conf updated", "key", key, "is_public", req.IsPublic)
	api.sendSuccess(w, newSysConfView(conf))
}
