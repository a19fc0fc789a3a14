package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/voucher-desk/internal/application/service"
)

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateIssuance),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrIntentConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorResponse builds the envelope for err. Internal errors are not echoed
// to the client.
func errorResponse(err error) (int, Response) {
	status := statusFor(err)
	resp := Response{Success: false, Error: err.Error()}
	if status == http.StatusInternalServerError {
		resp.Error = "internal server error"
	}

	var dup *service.DuplicateError
	if errors.As(err, &dup) {
		resp.Data = gin.H{"duplicates": dup.Duplicates}
	}
	return status, resp
}

func abortWithError(c *gin.Context, err error) {
	status, resp := errorResponse(err)
	c.AbortWithStatusJSON(status, resp)
}
