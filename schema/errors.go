package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed evaluator request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidResponse indicates a malformed evaluator response.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrUnknownMode indicates a protocol mode outside the known set.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrInvalidTheme indicates an unsupported theme name.
	ErrInvalidTheme = errors.New("invalid theme")
	// ErrSessionBusy indicates another console session is already active.
	ErrSessionBusy = errors.New("session busy")
)
