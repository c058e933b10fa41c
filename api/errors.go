package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/advisor"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/auth"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracing"
)

// ErrorResponse defines the structure of an error response
type ErrorResponse struct {
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Error represents an API error
type Error struct {
	Message    string
	StatusCode int
	Code       string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Common API errors
var (
	ErrInvalidRequest     = &Error{Message: "Invalid request", StatusCode: http.StatusBadRequest, Code: "INVALID_REQUEST"}
	ErrNotFound           = &Error{Message: "Resource not found", StatusCode: http.StatusNotFound, Code: "NOT_FOUND"}
	ErrUnauthorized       = &Error{Message: "Unauthorized", StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED"}
	ErrForbidden          = &Error{Message: "Forbidden", StatusCode: http.StatusForbidden, Code: "FORBIDDEN"}
	ErrServiceUnavailable = &Error{Message: "Service unavailable", StatusCode: http.StatusServiceUnavailable, Code: "SERVICE_UNAVAILABLE"}
	ErrInternalServer     = &Error{Message: "action failed", StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}
)

// writeError maps an error onto its HTTP response
func writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	var apiError *Error

	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Message: verr.Error(),
			Code:    "VALIDATION_ERROR",
			Fields:  verr.Fields,
		})
	case errors.Is(err, domain.ErrForbidden):
		writeAPIError(c, ErrForbidden)
	case errors.Is(err, domain.ErrNotFound):
		writeAPIError(c, ErrNotFound)
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		writeAPIError(c, ErrUnauthorized)
	case errors.Is(err, advisor.ErrUnavailable):
		writeAPIError(c, &Error{Message: "validation advisor unavailable", StatusCode: http.StatusServiceUnavailable, Code: ErrServiceUnavailable.Code})
	case errors.As(err, &apiError):
		writeAPIError(c, apiError)
	default:
		requestID, _ := c.Get(requestIDKey)
		log.Error().Err(err).Interface("request_id", requestID).Str("path", c.Request.URL.Path).Msg("Unhandled error")
		tracing.NoticeError(c.Request.Context(), err)
		writeAPIError(c, ErrInternalServer)
	}
}

func writeAPIError(c *gin.Context, e *Error) {
	c.AbortWithStatusJSON(e.StatusCode, ErrorResponse{Message: e.Message, Code: e.Code})
}

// badRequest reports a malformed body or parameter
func badRequest(c *gin.Context, message string) {
	writeAPIError(c, &Error{Message: message, StatusCode: http.StatusBadRequest, Code: ErrInvalidRequest.Code})
}
