// Package common defines shared constants, sentinel errors and small memory
// helpers used across the Keynest client. Callers should use errors.Is to
// match the error values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Backend errors surfaced at the unlock and create screens.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)
