package keyvault

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/pkg/errors"
)

// HardenedOffset is added to a child index to request hardened derivation. Every key this vault
// derives is hardened: there is never a need for a watch-only public branch, so the simpler,
// uniformly-hardened SLIP-0010 scheme is used for both curves instead of BIP-32's public
// derivation path.
const HardenedOffset uint32 = 1 << 31

// purposeMercury seeds the top level of every profile's derivation path, the way BIP-43 reserves
// a purpose field to separate unrelated wallets derived from the same seed.
const purposeMercury uint32 = HardenedOffset + 4_352_001

var (
	secp256k1Seed = []byte("Bitcoin seed")
	ed25519Seed   = []byte("ed25519 seed")

	secp256k1N = btcec.S256().N
)

// extendedKey is the intermediate (private key, chain code) pair produced at each step of HD
// derivation. It never leaves this package: callers only see the final PrivateKey.
type extendedKey struct {
	suite     Suite
	key       [32]byte
	chainCode [32]byte
}

func masterKey(suite Suite, seed []byte) extendedKey {
	var hmacKey []byte
	switch suite {
	case SuiteSecp256k1:
		hmacKey = secp256k1Seed
	case SuiteEd25519:
		hmacKey = ed25519Seed
	}

	mac := hmac.New(sha512.New, hmacKey)
	mac.Write(seed)
	sum := mac.Sum(nil)

	var ek extendedKey
	ek.suite = suite
	copy(ek.key[:], sum[:32])
	copy(ek.chainCode[:], sum[32:])
	return ek
}

// deriveHardened derives the hardened child at index from parent, following SLIP-0010: both
// curves here use the same "0x00 || privkey || index" HMAC construction. secp256k1 additionally
// reduces the result modulo the curve order, since SLIP-0010 defines the ed25519 branch as a seed
// rather than a scalar.
func (ek extendedKey) deriveHardened(index uint32) (extendedKey, error) {
	childIndex := index | HardenedOffset

	data := make([]byte, 0, 1+32+4)
	data = append(data, 0x00)
	data = append(data, ek.key[:]...)

	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], childIndex)
	data = append(data, idxBuf[:]...)

	mac := hmac.New(sha512.New, ek.chainCode[:])
	mac.Write(data)
	sum := mac.Sum(nil)

	var child extendedKey
	child.suite = ek.suite
	copy(child.chainCode[:], sum[32:])

	switch ek.suite {
	case SuiteEd25519:
		copy(child.key[:], sum[:32])
	case SuiteSecp256k1:
		il := new(big.Int).SetBytes(sum[:32])
		if il.Cmp(secp256k1N) >= 0 {
			return extendedKey{}, errors.New("keyvault: derived scalar out of range, try next index")
		}

		parent := new(big.Int).SetBytes(ek.key[:])
		childScalar := new(big.Int).Add(il, parent)
		childScalar.Mod(childScalar, secp256k1N)
		if childScalar.Sign() == 0 {
			return extendedKey{}, errors.New("keyvault: derived zero scalar, try next index")
		}

		childBytes := childScalar.Bytes()
		copy(child.key[32-len(childBytes):], childBytes)
	default:
		return extendedKey{}, ErrUnknownSuite
	}

	return child, nil
}

func (ek extendedKey) privateKey() (PrivateKey, error) {
	return NewPrivateKey(ek.suite, ek.key[:])
}

// DeriveProfileKey derives the private key for the profile at the given index under the given
// suite, deterministically from the vault's master seed. The same (seed, suite, index) always
// produces the same key; different suites produce unrelated keys even from the same seed and
// index, because each suite starts from its own HMAC-keyed master.
func DeriveProfileKey(seed []byte, suite Suite, index uint32) (PrivateKey, error) {
	if suite != SuiteEd25519 && suite != SuiteSecp256k1 {
		return PrivateKey{}, ErrUnknownSuite
	}

	master := masterKey(suite, seed)

	purpose, err := master.deriveHardened(purposeMercury &^ HardenedOffset)
	if err != nil {
		return PrivateKey{}, errors.Wrap(err, "derive purpose level")
	}

	child, err := purpose.deriveHardened(index)
	if err != nil {
		return PrivateKey{}, errors.Wrapf(err, "derive profile index %d", index)
	}

	return child.privateKey()
}
