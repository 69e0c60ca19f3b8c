package service

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the engine. Callers match with errors.Is.
var (
	ErrEmailAlreadyRegistered = errors.New("email_already_registered")
	ErrInvalidCredentials     = errors.New("invalid_credentials")
	ErrAccountInactive        = errors.New("account_inactive")
	ErrTokenExpired           = errors.New("token_expired")
	ErrTokenInvalid           = errors.New("invalid_token")
	ErrUserNotFound           = errors.New("user_not_found")
	ErrStorageUnavailable     = errors.New("storage_unavailable")
	ErrValidationFailed       = errors.New("validation_failed")
)

// Administrative failures.
var (
	ErrRoleNotFound       = errors.New("role_not_found")
	ErrPermissionNotFound = errors.New("permission_not_found")
	ErrAlreadyExists      = errors.New("already_exists")
)

// unavailable wraps a store error so that it matches ErrStorageUnavailable
// while keeping the cause inspectable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
