package contract

import "errors"

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("upstream rate limited")
	ErrUpstream        = errors.New("upstream call failed")
	ErrScheduling      = errors.New("scheduling rejected")
	ErrIdentity        = errors.New("caller identity unresolved")
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
)
