package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"renderowl-intel-api/internal/domain"
)

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// ErrorHandler maps a handler's last recorded error to an HTTP response,
// translating the core's typed domain.ErrKind taxonomy (spec §7, §10.3)
// into the matching status code.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var valErrs validator.ValidationErrors
		if errors.As(err, &valErrs) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation failed",
				Code:    "VALIDATION_ERROR",
				Details: validationErrorsToMap(valErrs),
			})
			return
		}

		var domainErr *domain.Error
		if errors.As(err, &domainErr) {
			status, code := statusForKind(domainErr.Kind)
			c.JSON(status, ErrorResponse{Error: domainErr.Message, Code: code})
			return
		}

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}

// statusForKind maps every domain.ErrKind to its HTTP status and a
// stable machine-readable code (spec §10.3).
func statusForKind(kind domain.ErrKind) (int, string) {
	switch kind {
	case domain.ErrValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case domain.ErrNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case domain.ErrQuotaExceeded:
		return http.StatusTooManyRequests, "QUOTA_EXCEEDED"
	case domain.ErrUpstreamTransient:
		return http.StatusBadGateway, "UPSTREAM_TRANSIENT"
	case domain.ErrUpstreamRefusal:
		return http.StatusUnprocessableEntity, "UPSTREAM_REFUSAL"
	case domain.ErrParse:
		return http.StatusBadGateway, "PARSE_ERROR"
	case domain.ErrCancelled:
		return 499, "CANCELLED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func validationErrorsToMap(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string)
	for _, err := range errs {
		details[err.Field()] = err.Tag()
	}
	return details
}
