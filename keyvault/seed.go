package keyvault

import (
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

// Seed is the single piece of secret material a vault is built from: a BIP-39 mnemonic plus an
// optional passphrase, stretched into 64 bytes of entropy. Every profile key the vault ever hands
// out is derived from this value; losing it means losing every profile.
type Seed struct {
	bytes []byte
}

// GenerateMnemonic creates a new random 24-word BIP-39 mnemonic (256 bits of entropy).
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", errors.Wrap(err, "keyvault: generate entropy")
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errors.Wrap(err, "keyvault: build mnemonic")
	}

	return mnemonic, nil
}

// NewSeedFromMnemonic validates and stretches a BIP-39 mnemonic (with an optional passphrase)
// into a Seed.
func NewSeedFromMnemonic(mnemonic, passphrase string) (Seed, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return Seed{}, errors.New("keyvault: mnemonic failed checksum validation")
	}

	return Seed{bytes: bip39.NewSeed(mnemonic, passphrase)}, nil
}

// Bytes returns the raw stretched seed. Treat the result as secret: it is sufficient to recover
// every key the vault will ever derive.
func (s Seed) Bytes() []byte {
	cp := make([]byte, len(s.bytes))
	copy(cp, s.bytes)
	return cp
}

func (s Seed) IsEmpty() bool { return len(s.bytes) == 0 }
