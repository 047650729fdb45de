package storage

import "errors"

var (
	// ErrNotFound is returned for a missing key -- a vault, profile, or schema that has never
	// been written. claims.Registry.Get maps this to claims.ErrSchemaNotFound.
	ErrNotFound = errors.New("Not found")
)
