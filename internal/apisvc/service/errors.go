package service

import "errors"

var (
	// ErrValidation marks bad input shapes or values; handlers answer 400.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden marks a caller acting on a resource they do not own.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidToken marks a waitlist join token that failed signature,
	// expiry or binding checks.
	ErrInvalidToken = errors.New("invalid or expired join token")
	// ErrNotCancellable marks a cancel attempt on a filled or completed game.
	ErrNotCancellable = errors.New("game can no longer be cancelled")
)
