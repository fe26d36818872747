// Package models defines the JSON shapes served by the REST API.
package models

import "fmt"

// Response is the envelope every endpoint returns. A code of "0" means
// success; business failures carry a non-zero code with an HTTP 200.
type Response struct {
	Code      string `json:"code"`
	IsSuccess bool   `json:"isSuccess"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
}

// Well-known response codes.
const (
	CodeOK           = "0"
	CodeError        = "500"
	CodeUnauthorized = "401"
	CodeForbidden    = "403"
	CodeNotFound     = "404"
	CodeBadRequest   = "400"
)

func NewSuccessResponse(data any) Response {
	return Response{
		Code:      CodeOK,
		IsSuccess: true,
		Message:   "success",
		Data:      data,
	}
}

func NewErrorResponse(code, message string) Response {
	return Response{
		Code:      code,
		IsSuccess: false,
		Message:   message,
	}
}

// PaginationData wraps one page of a listing.
type PaginationData struct {
	List    any   `json:"list"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"hasNext"`
}

// FieldErrors maps field names to validation failures for 400 responses.
type FieldErrors map[string][]string

// FormatCents renders an integer cent amount as a decimal string ("12.50").
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
