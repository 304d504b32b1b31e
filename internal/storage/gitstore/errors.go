package gitstore

import (
	"errors"
	"fmt"
	"net/http"

	"qaflow/internal/domain"
)

// BackendError is a structured error response from the backend.
// Callers can use errors.As to get at the status code, but the
// sentinel errors attached by classify are the normal way to branch.
type BackendError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("gitstore: %s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// classify attaches the matching domain sentinel to backend errors so
// the service layer can branch with errors.Is without knowing HTTP.
func classify(err error, path string) error {
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		return err
	}

	switch {
	case backendErr.StatusCode == http.StatusNotFound:
		return fmt.Errorf("document %s: %w: %w", path, domain.ErrNotFound, backendErr)
	case backendErr.StatusCode == http.StatusConflict,
		backendErr.StatusCode == http.StatusPreconditionFailed,
		backendErr.StatusCode == http.StatusUnprocessableEntity:
		// The backend reports a stale version token as 409 or 422
		// depending on whether the blob moved or the sha is unknown.
		return fmt.Errorf("document %s: %w: %w", path, domain.ErrVersionConflict, backendErr)
	case backendErr.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("document %s: %w: %w", path, domain.ErrRateLimited, backendErr)
	default:
		return backendErr
	}
}
