// Package updater coordinates check, download and restart cycles against an
// update service, and decides when foreground transitions warrant a new check.
package updater

import "errors"

var (
	// ErrAlreadyStarted indicates a session was started twice.
	ErrAlreadyStarted = errors.New("update session already started")

	// ErrInvalidConfig indicates the updater configuration failed validation.
	ErrInvalidConfig = errors.New("invalid updater configuration")
)
