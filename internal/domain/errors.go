package domain

import "errors"

// Error kinds shared by the store, providers and the chat flows.
// Callers wrap them with detail and match with errors.Is.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyRegistered  = errors.New("user already registered")
	ErrLocationResolution = errors.New("location resolution failed")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidTimeFormat  = errors.New("invalid time format")
	ErrProvider           = errors.New("forecast provider error")
	ErrPersistence        = errors.New("persistence error")
)
