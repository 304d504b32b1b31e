package http

import (
	"errors"
	"net/http"

	"qaflow/internal/domain"
)

// mappingDomainErrors maps the domain error taxonomy onto HTTP
// statuses: validation 400, unauthenticated 401, denied 403, absent
// 404, business-rule or version conflicts 409, backend rate limits
// 429, everything else 500.
func mappingDomainErrors(err error) (int, Response) {
	var code string
	var status int

	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
		code = "VALIDATION"

	case errors.Is(err, domain.ErrAuthenticationRequired):
		status = http.StatusUnauthorized
		code = "AUTHENTICATION_REQUIRED"

	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusForbidden
		code = "PERMISSION_DENIED"

	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"

	case errors.Is(err, domain.ErrCapacityExceeded):
		status = http.StatusConflict
		code = "CAPACITY_EXCEEDED"

	case errors.Is(err, domain.ErrActiveAssignments):
		status = http.StatusConflict
		code = "ACTIVE_ASSIGNMENTS"

	case errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
		code = "INVALID_TRANSITION"

	case errors.Is(err, domain.ErrVersionConflict):
		status = http.StatusConflict
		code = "VERSION_CONFLICT"

	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
		code = "RATE_LIMITED"

	default:
		status = http.StatusInternalServerError
		code = "INTERNAL"
	}

	return status, Response{
		Success: false,
		Error: &errorBody{
			Code:    code,
			Message: err.Error(),
		},
	}
}
