package utils

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
)

// ExtractIDFromParams pulls the ":id" path parameter from the request.
func ExtractIDFromParams(r *http.Request) string {
	params := httprouter.ParamsFromContext(r.Context())
	return params.ByName("id")
}

// ExtractInt64Param parses a numeric path parameter by name.
func ExtractInt64Param(r *http.Request, name string) (int64, error) {
	params := httprouter.ParamsFromContext(r.Context())
	return strconv.ParseInt(params.ByName(name), 10, 64)
}

// ExtractKeyFromParams pulls the ":key" path parameter from the request.
func ExtractKeyFromParams(r *http.Request) string {
	params := httprouter.ParamsFromContext(r.Context())
	return params.ByName("key")
}

// QueryInt64 parses an optional integer query parameter, returning def when
// absent or malformed.
func QueryInt64(r *http.Request, name string, def int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return value
}
