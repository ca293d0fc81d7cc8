// Package handlers implements the HTTP handlers for the clinlink API.
package handlers

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"github.com/clinlink/clinlink/pkg/errors"
)

// ErrorResponse is the standard error body for every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// respondError writes a structured error response, mapping the error code
// to an HTTP status.  Server-side error messages are masked.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	resp := ErrorResponse{Code: string(code), Message: err.Error()}
	if errors.IsServerError(code) {
		resp.Message = "internal server error"
	}
	var ae *errors.AppError
	if stderrors.As(err, &ae) && !errors.IsServerError(code) {
		resp.Detail = ae.Detail
	}

	c.AbortWithStatusJSON(status, resp)
}
