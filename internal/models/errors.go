package models

import "errors"

// Domain errors that can be returned by stores
var (
	// ErrNotFound indicates the requested entity was not found
	ErrNotFound = errors.New("not found")

	// ErrDuplicateTransaction indicates a transaction with the same ID already exists
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)
