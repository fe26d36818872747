package restapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"storefront.kajin.shop/shopdb"
)

type contextKey string

const currentUserKey contextKey = "currentUser"

// AdminRoleName is the role that opens the admin surface.
const AdminRoleName = "admin"

// currentUser returns the authenticated user stored by requireAuth.
func currentUser(r *http.Request) (shopdb.User, bool) {
	user, ok := r.Context().Value(currentUserKey).(shopdb.User)
	return user, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireAuth authenticates the bearer token against the whitelist and puts
// the account on the request context.
func (api *RestAPI) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			api.sendUnauthorized(w)
			return
		}

		userID, err := api.AuthenticateToken(r.Context(), token)
		if err != nil {
			api.sendUnauthorized(w)
			return
		}

		user, err := api.Store.Queries.GetUser(r.Context(), userID)
		if errors.Is(err, sql.ErrNoRows) {
			api.sendUnauthorized(w)
			return
		}
		if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		if user.State != "1" {
			api.sendForbidden(w)
			return
		}

		ctx := context.WithValue(r.Context(), currentUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin further gates a handler to superusers and admin-role accounts.
func (api *RestAPI) requireAdmin(next http.HandlerFunc) http.Handler {
	return api.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(r)
		if !ok {
			api.sendUnauthorized(w)
			return
		}
		if user.IsSuperuser {
			next.ServeHTTP(w, r)
			return
		}

		roles, err := api.Store.Queries.RolesForUser(r.Context(), user.ID)
		if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		for _, role := range roles {
			if role.RoleName == AdminRoleName {
				next.ServeHTTP(w, r)
				return
			}
		}
		api.sendForbidden(w)
	})
}
