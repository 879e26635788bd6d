package config

import "errors"

// Sentinel errors for configuration loading/validation, matching the
// teacher's convention of colocating sentinels with their producing package
// (see pkg/database, pkg/queue in the wider tree).
var (
	// ErrInvalidValue indicates a field has an invalid value.
	ErrInvalidValue = errors.New("invalid configuration value")
)
