// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Token errors. Both mean "no usable credential".
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Identity provider errors.
	ErrUnknownProvider = errors.New("unknown provider")
	ErrOAuthExchange   = errors.New("oauth code exchange failed")
	ErrProfileFetch    = errors.New("profile fetch failed")

	// Linking errors.
	ErrCrossProviderMismatch = errors.New("signup token is for the same provider")
)
