package auth

import (
	"errors"
	"fmt"

	"github.com/abduss/blogapi/internal/config"
)

var (
	// ErrConflict indicates the email is already registered.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized is returned when credentials or a refresh token are rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnauthenticated represents a missing or invalid access token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrBadRequest signals a request that is missing required auth input.
	ErrBadRequest = errors.New("bad request")
	// ErrUserNotFound signals that the user could not be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrConfiguration marks unusable signing configuration. Fatal at startup.
	// It is the same sentinel config.Validate wraps.
	ErrConfiguration = config.ErrInvalidConfig
)

var (
	ErrEmailAlreadyExists    = fmt.Errorf("%w: email already in use", ErrConflict)
	ErrInvalidCredentials    = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrInvalidRefreshToken   = fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	ErrRefreshTokenRequired  = fmt.Errorf("%w: refresh token required", ErrBadRequest)
	ErrMissingAccessToken    = fmt.Errorf("%w: access token not found", ErrUnauthenticated)
	ErrInvalidAccessToken    = fmt.Errorf("%w: invalid or expired access token", ErrUnauthenticated)
	ErrMissingSigningSecret  = fmt.Errorf("%w: signing secret is not set", ErrConfiguration)
	ErrInvalidTokenLifetimes = fmt.Errorf("%w: token ttl must be positive", ErrConfiguration)
	ErrSharedSigningSecret   = fmt.Errorf("%w: access and refresh secrets must differ", ErrConfiguration)
)
