// Package service implements the authorization layer over the grant
// repository: self-authorized grant creation and the spend validator.
package service

import "errors"

var (
	// ErrNotAuthorized is returned when no grant exists for the
	// (session key, asset) pair.
	ErrNotAuthorized = errors.New("session: key not authorized for asset")
	// ErrNotYetValid is returned when the spend happens before the grant's
	// validity window opens.
	ErrNotYetValid = errors.New("session: grant not yet valid")
	// ErrExpired is returned when the spend happens at or after the grant's
	// validity window closes.
	ErrExpired = errors.New("session: grant expired")
	// ErrLimitExceeded is returned when the spend would push usage above
	// the window limit.
	ErrLimitExceeded = errors.New("session: spend limit exceeded")
	// ErrForbidden is returned when a grant is created by a caller other
	// than the owning account.
	ErrForbidden = errors.New("session: caller is not the owning account")
	// ErrInvalidAmount is returned when the requested amount is missing or
	// negative.
	ErrInvalidAmount = errors.New("session: invalid spend amount")
)
