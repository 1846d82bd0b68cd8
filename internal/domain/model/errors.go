package model

import "errors"

// Sentinel errors for the failure classes the HTTP surface must distinguish.
// Adapters wrap these with context; handlers match with errors.Is.
var (
	// ErrConfiguration marks missing or malformed credentials. Fatal, never retried.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrInstallationNotFound means the GitHub App is not installed for the
	// target repository.
	ErrInstallationNotFound = errors.New("app installation not found")

	// ErrNotFound means the requested upstream resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated mirrors an upstream 401.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPermission mirrors an upstream 403.
	ErrPermission = errors.New("permission denied")
)
