package service

import "errors"

// Failure taxonomy of the session service. Anything returned that does not
// match one of these with errors.Is is an internal fault.
var (
	ErrValidation            = errors.New("invalid_request")
	ErrConflict              = errors.New("account_exists")
	ErrAccountNotFound       = errors.New("account_not_found")
	ErrInvalidCredentials    = errors.New("invalid_credentials")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidOrExpiredToken = errors.New("invalid_or_expired_token")
	ErrDeliveryFailure       = errors.New("delivery_failed")
)

var taxonomy = []error{
	ErrValidation,
	ErrConflict,
	ErrAccountNotFound,
	ErrInvalidCredentials,
	ErrUnauthorized,
	ErrInvalidOrExpiredToken,
	ErrDeliveryFailure,
}

// IsClientError reports whether err belongs to the failure taxonomy rather
// than being an internal fault.
func IsClientError(err error) bool {
	for _, target := range taxonomy {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
