package domain

import "errors"

var (
	ErrValidation             = errors.New("validation failed")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrNotFound               = errors.New("not found")
	ErrCapacityExceeded       = errors.New("workload capacity exceeded")
	ErrVersionConflict        = errors.New("version conflict")
	ErrRateLimited            = errors.New("backend rate limited")
	ErrActiveAssignments      = errors.New("active assignments exist")
	ErrInvalidTransition      = errors.New("invalid status transition")
)
