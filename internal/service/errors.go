package service

import "errors"

// Failure conditions surfaced by the services. Callers match with errors.Is.
var (
	ErrFetchFailed        = errors.New("fetch failed")
	ErrWriteFailed        = errors.New("write failed")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyAccepted    = errors.New("challenge already accepted")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidInput       = errors.New("invalid input")
)
