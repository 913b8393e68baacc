package shared

import "errors"

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoChanges indicates a save was requested with an empty change set.
	ErrNoChanges = errors.New("no changes")
	// ErrStalePermissions indicates the caller's authorization snapshot is outdated.
	ErrStalePermissions = errors.New("stale permissions")
)
