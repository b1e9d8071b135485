package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	predictiondomain "github.com/smallbiznis/harvestprice/internal/prediction/domain"
	historydomain "github.com/smallbiznis/harvestprice/internal/pricehistory/domain"
	recdomain "github.com/smallbiznis/harvestprice/internal/recommendation/domain"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	trenddomain "github.com/smallbiznis/harvestprice/internal/trend/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// inputErrors are the domain sentinels that mean the caller sent bad input.
// Their text doubles as the response code.
var inputErrors = []error{
	ErrInvalidRequest,
	historydomain.ErrInvalidCommodity,
	historydomain.ErrInvalidWindow,
	refdomain.ErrInvalidCommodity,
	refdomain.ErrInvalidWindow,
	predictiondomain.ErrInvalidCommodity,
	trenddomain.ErrInvalidCommodity,
	trenddomain.ErrInvalidWindow,
	recdomain.ErrInvalidCommodity,
	recdomain.ErrInvalidPrice,
	recdomain.ErrInvalidTolerance,
}

var unavailableErrors = []error{
	ErrServiceUnavailable,
	refdomain.ErrSourceUnavailable,
	refdomain.ErrUpstreamRateLimited,
}

var (
	notFoundPayload    = errorPayload{Type: "not_found", Message: "not found"}
	unavailablePayload = errorPayload{Type: "service_unavailable", Message: "service unavailable"}
	internalPayload    = errorPayload{Type: "internal_error", Message: "internal server error"}
)

// ErrorHandlingMiddleware renders the last handler error as JSON unless the
// handler already wrote a response.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		status, payload := mapError(last.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Code: code, Message: message}}}
}

func mapError(err error) (int, errorPayload) {
	var vErr *ValidationErrors
	switch {
	case err == nil:
		return http.StatusInternalServerError, internalPayload
	case errors.As(err, &vErr) && vErr != nil:
		return http.StatusBadRequest, validationPayload(vErr.Errors...)
	case matchesAny(err, inputErrors):
		return http.StatusBadRequest, validationPayload(sentinelValidation(err))
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, notFoundPayload
	case matchesAny(err, unavailableErrors):
		return http.StatusServiceUnavailable, unavailablePayload
	default:
		return http.StatusInternalServerError, internalPayload
	}
}

func validationPayload(errs ...ValidationError) errorPayload {
	return errorPayload{Type: "validation_error", Message: "validation error", Errors: errs}
}

func sentinelValidation(err error) ValidationError {
	for _, sentinel := range inputErrors {
		if !errors.Is(err, sentinel) {
			continue
		}
		code := sentinel.Error()
		if sentinel == ErrInvalidRequest {
			return ValidationError{Field: "request", Code: code, Message: "invalid request"}
		}
		return ValidationError{Field: strings.TrimPrefix(code, "invalid_"), Code: code, Message: "invalid value"}
	}
	return ValidationError{Code: err.Error(), Message: "invalid value"}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classifyErrorForLog returns the error type and code recorded on request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}
