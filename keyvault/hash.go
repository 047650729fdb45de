package keyvault

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // same hash used throughout the HD wallet ecosystem this vault borrows from
)

// Hash160 computes RIPEMD-160(SHA-256(data)), the digest Bitcoin-style HD wallets use to turn a
// public key into a short address-like identifier.
func Hash160(data []byte) []byte {
	sha := sha256.Sum256(data)
	ripe := ripemd160.New()
	ripe.Write(sha[:])
	return ripe.Sum(nil)
}
