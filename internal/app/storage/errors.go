package storage

import "errors"

// ErrNotFound is wrapped by store implementations when a referenced entity
// does not exist, so callers can classify lookup failures with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrConflict is wrapped when a create would violate a uniqueness rule
// (duplicate id, email or wallet address).
var ErrConflict = errors.New("already exists")
