package vaultservice

import "github.com/pkg/errors"

var (
	// ErrVaultUninitialized is returned by any operation attempted before RestoreVault.
	ErrVaultUninitialized = errors.New("vaultservice: vault not initialized, call RestoreVault first")

	// ErrInvalidChecksum is returned when a BIP-39 phrase parses as words but fails its
	// checksum.
	ErrInvalidChecksum = errors.New("vaultservice: mnemonic phrase failed checksum validation")

	// ErrLocalConflict is returned by a non-forced RestoreProfile when Local has unpublished
	// changes relative to Base.
	ErrLocalConflict = errors.New("vaultservice: local has unpublished changes, use force or publish first")

	// ErrRemoteConflict is returned by a non-forced publish when Remote has advanced past Base.
	ErrRemoteConflict = errors.New("vaultservice: remote has changes not reflected in base, use force or restore first")

	// ErrAlreadyInitialized guards RestoreVault against double-initialization.
	ErrAlreadyInitialized = errors.New("vaultservice: vault already initialized")
)
