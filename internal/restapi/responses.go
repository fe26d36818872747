package restapi

import (
	"encoding/json"
	"net/http"

	"storefront.kajin.shop/internal/models"
)

// writeRawJSON encodes a payload without access to the API's logger. The
// status line must already be written.
func writeRawJSON(w http.ResponseWriter, payload any) {
	_ = json.NewEncoder(w).Encode(payload)
}

func (api *RestAPI) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		api.Logger.Error("failed to encode response", "error", err)
	}
}

func (api *RestAPI) sendSuccess(w http.ResponseWriter, data any) {
	api.writeJSON(w, http.StatusOK, models.NewSuccessResponse(data))
}

// sendBusinessError reports a business rule violation. These travel as HTTP
// 200 with an error envelope, the convention the clients were built against.
func (api *RestAPI) sendBusinessError(w http.ResponseWriter, message string) {
	api.writeJSON(w, http.StatusOK, models.NewErrorResponse(models.CodeError, message))
}

func (api *RestAPI) sendUnauthorized(w http.ResponseWriter) {
	api.writeJSON(w, http.StatusUnauthorized,
		models.NewErrorResponse(models.CodeUnauthorized, "authentication required"))
}

func (api *RestAPI) sendForbidden(w http.ResponseWriter) {
	api.writeJSON(w, http.StatusForbidden,
		models.NewErrorResponse(models.CodeForbidden, "permission denied"))
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter) {
	api.writeJSON(w, http.StatusNotFound,
		models.NewErrorResponse(models.CodeNotFound, "resource not found"))
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.Logger.Error("internal server error", "error", err, "path", r.URL.Path)
	api.writeJSON(w, http.StatusInternalServerError,
		models.NewErrorResponse(models.CodeError, "internal server error"))
}

// validationErrorResponse sends a 400 with field-specific validation errors.
func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, fieldErrors models.FieldErrors) {
	response := models.NewErrorResponse(models.CodeBadRequest, "validation failed")
	response.Data = struct {
		FieldErrors models.FieldErrors `json:"fieldErrors"`
	}{FieldErrors: fieldErrors}
	api.writeJSON(w, http.StatusBadRequest, response)
}

func (api *RestAPI) sendPage(w http.ResponseWriter, list any, total int64, hasNext bool) {
	api.sendSuccess(w, models.PaginationData{List: list, Total: total, HasNext: hasNext})
}
