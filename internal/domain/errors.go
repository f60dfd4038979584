package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError
// function (internal/api/handler/respond.go); the worker translates them
// into drop/retry decisions (internal/dispatch, internal/retry).
var (
	ErrNotFound         = errors.New("not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidTimezone  = errors.New("invalid timezone: must be a canonical IANA zone name")
	ErrInvalidLocalTime = errors.New("invalid local time: must be HH:MM in 24h format")
	ErrInvalidFireAt    = errors.New("fireAt must be strictly in the future")
	ErrInvalidAudience  = errors.New("audience must be 'all' or 'filtered' with at least one filter field")
	ErrInvalidTitle     = errors.New("title must be 1-65 characters")
	ErrInvalidMessage   = errors.New("message must be 1-240 characters")
	ErrInvalidKind      = errors.New("kind must be instant, once, or daily")
	ErrInvalidAgeRange  = errors.New("ageRange must satisfy 13<=min<=max<=120")
	ErrInvalidOperation = errors.New("operation not valid for schedule's current state")
	ErrScheduleExpired  = errors.New("schedule's fireAt has already passed")
	ErrInvalidToken     = errors.New("device token must not be empty")
)
