package gs

import "errors"

var (
	// ErrCredentialInvalid means no usable access path exists; re-authorization is required.
	ErrCredentialInvalid = errors.New("credential invalid")
	// ErrUnauthorized is a 401 seen after the credential was validated for this cycle.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRemoteUnavailable covers transport failures and unexpected HTTP statuses.
	ErrRemoteUnavailable = errors.New("remote unavailable")
	// ErrGearNotFound is a 404 on a gear detail fetch.
	ErrGearNotFound = errors.New("gear not found")
	// ErrCacheUnavailable is any cache store failure. It is always fatal to the cycle.
	ErrCacheUnavailable = errors.New("cache unavailable")
)
