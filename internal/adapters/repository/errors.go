package repository

import "errors"

// Sentinel kinds for history store errors.
var (
	ErrNotFound         = errors.New("attempt not found")
	ErrDuplicateAttempt = errors.New("duplicate attempt id")
	ErrInvalidLimit     = errors.New("invalid list limit")
)
