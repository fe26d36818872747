package restapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"storefront.kajin.shop/internal/app"
	"storefront.kajin.shop/internal/models"
	"storefront.kajin.shop/internal/utils"
	"storefront.kajin.shop/shopdb"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (api *RestAPI) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}

	fieldErrors := models.FieldErrors{}
	if err := utils.ValidateUsername(req.Username); err != nil {
		fieldErrors["username"] = append(fieldErrors["username"], err.Error())
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		fieldErrors["password"] = append(fieldErrors["password"], err.Error())
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, fieldErrors)
		return
	}

	user, err := api.Store.Queries.GetUserByUsername(r.Context(), req.Username)
	if errors.Is(err, sql.ErrNoRows) {
		api.sendBusinessError(w, "incorrect username or password")
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	if !user.PasswordHash.Valid || !app.VerifyPassword(req.Password, user.PasswordHash.String, user.PasswordSalt.String) {
		api.sendBusinessError(w, "incorrect username or password")
		return
	}
	if user.State != "1" {
		api.sendBusinessError(w, "account is disabled")
		return
	}

	token, expiresAt, err := api.IssueToken(r.Context(), user.ID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	roles, err := api.Store.Queries.RolesForUser(r.Context(), user.ID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.sendSuccess(w, models.LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      models.NewUserView(user, roles),
	})
}

type wechatLoginRequest struct {
	Code string `json:"code"`
}

// wechatLoginHandler signs in a mini-program user. The login code is traded
// for an openid through the configured SessionExchanger; only openids already
// linked to a user account receive a token.
func (api *RestAPI) wechatLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req wechatLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.validationErrorResponse(w, models.FieldErrors{"body": {"invalid JSON body"}})
		return
	}
	if req.Code == "" {
		api.validationErrorResponse(w, models.FieldErrors{"code": {"must not be empty"}})
		return
	}

	if api.sessions == nil {
		api.sendBusinessError(w, "mini-program login is not configured")
		return
	}

	openID, err := api.sessions.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		api.Logger.Warn("code exchange failed", "error", err)
		api.sendBusinessError(w, "login code could not be verified")
		return
	}

	auth, err := api.Store.Queries.GetUserAuthByOpenID(r.Context(), shopdb.AuthTypeWechatMiniProgram, openID)
	if errors.Is(err, sql.ErrNoRows) {
		api.sendBusinessError(w, "this account is not registered")
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	user, err := api.Store.Queries.GetUser(r.Context(), auth.UserID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if user.State != "1" {
		api.sendBusinessError(w, "account is disabled")
		return
	}

	token, expiresAt, err := api.IssueToken(r.Context(), user.ID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	roles, err := api.Store.Queries.RolesForUser(r.Context(), user.ID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.sendSuccess(w, models.LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      models.NewUserView(user, roles),
	})
}

func (api *RestAPI) logoutHandler(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := api.RevokeToken(r.Context(), token); err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendSuccess(w, nil)
}

func (api *RestAPI) profileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		api.sendUnauthorized(w)
		return
	}

	roles, err := api.Store.Queries.RolesForUser(r.Context(), user.ID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendSuccess(w, models.NewUserView(user, roles))
}
