package repo

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned by Get when the profile id is absent from this store.
	ErrNotFound = errors.New("repo: profile not found")

	// ErrVersionRegression is returned by Set when the incoming version does not exceed the
	// stored one, unless the stored entry is a tombstone.
	ErrVersionRegression = errors.New("repo: incoming version does not exceed stored version")
)
