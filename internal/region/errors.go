package region

import "errors"

// Sentinel errors returned by Create and Attach. Callers compare with
// errors.Is; the root dmxp package wraps these into its structured
// *dmxp.Error with the appropriate status code.
var (
	ErrNotFound         = errors.New("region: not found")
	ErrAlreadyExists    = errors.New("region: already exists")
	ErrInvalidInput     = errors.New("region: invalid input")
	ErrInvalidData      = errors.New("region: invalid data")
	ErrPermissionDenied = errors.New("region: permission denied")
)
