package keyvault

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when a profile id has no known derivation index.
	ErrNotFound = errors.New("keyvault: profile id not known to this vault")

	// ErrNoActiveProfile is returned by operations that need a default profile when none has
	// been selected.
	ErrNoActiveProfile = errors.New("keyvault: no active profile and none selected")

	// ErrAlreadyClaimed marks create_key racing against a restore_id for the same index; callers
	// never see this today since the vault is single-threaded, but it documents the invariant.
	ErrAlreadyClaimed = errors.New("keyvault: index already claimed by another profile")
)
