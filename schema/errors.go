package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTabNotFound indicates a requested tab could not be found.
	ErrTabNotFound = errors.New("tab not found")
	// ErrViewDestroyed indicates a surface was destroyed before construction finished.
	ErrViewDestroyed = errors.New("view destroyed")
	// ErrNoSurface indicates no live surface exists for the operation.
	ErrNoSurface = errors.New("no surface")
	// ErrInvalidCookie indicates a cookie string or details could not be parsed.
	ErrInvalidCookie = errors.New("invalid cookie details")
	// ErrCompanionUnavailable indicates the companion process could not be reached.
	ErrCompanionUnavailable = errors.New("companion unavailable")
)
