// Package keyvault derives and manages the cryptographic keys backing a user's profiles.
//
// Every key a user controls -- one keypair per profile -- is derived deterministically from a
// single BIP-39 seed phrase, the same way a Bitcoin HD wallet derives one address per output.
// Unlike a wallet, a vault profile key can use either of two curves (ed25519 or secp256k1), so
// PublicKey, PrivateKey and Signature are all tagged sum types over the supported suites rather
// than raw curve points.
package keyvault

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/pkg/errors"
)

// Suite identifies which elliptic curve a key belongs to.
type Suite byte

const (
	SuiteUnknown   Suite = 0
	SuiteEd25519   Suite = 1
	SuiteSecp256k1 Suite = 2
)

func (s Suite) String() string {
	switch s {
	case SuiteEd25519:
		return "ed25519"
	case SuiteSecp256k1:
		return "secp256k1"
	default:
		return "unknown"
	}
}

var (
	ErrUnknownSuite  = errors.New("keyvault: unknown cipher suite")
	ErrBadKeyLength  = errors.New("keyvault: key has invalid length for its suite")
	ErrVerifyFailed  = errors.New("keyvault: signature does not verify")
	ErrSuiteMismatch = errors.New("keyvault: public and private key suites differ")
)

// PublicKey identifies a profile. It is the tagged byte encoding of a point on one of the
// supported curves: 32 bytes for ed25519, 33 (compressed) bytes for secp256k1.
type PublicKey struct {
	suite Suite
	raw   []byte
}

// PrivateKey can sign and derives its matching PublicKey.
type PrivateKey struct {
	suite Suite
	raw   []byte
}

// Signature is the tagged byte encoding of a signature produced by a PrivateKey of the same
// suite.
type Signature struct {
	suite Suite
	raw   []byte
}

func NewPublicKey(suite Suite, raw []byte) (PublicKey, error) {
	if err := checkPublicKeyLength(suite, raw); err != nil {
		return PublicKey{}, err
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return PublicKey{suite: suite, raw: cp}, nil
}

func checkPublicKeyLength(suite Suite, raw []byte) error {
	switch suite {
	case SuiteEd25519:
		if len(raw) != ed25519.PublicKeySize {
			return errors.Wrapf(ErrBadKeyLength, "ed25519 public key: got %d", len(raw))
		}
	case SuiteSecp256k1:
		if len(raw) != 33 {
			return errors.Wrapf(ErrBadKeyLength, "secp256k1 public key: got %d", len(raw))
		}
	default:
		return ErrUnknownSuite
	}
	return nil
}

func (k PublicKey) Suite() Suite { return k.suite }
func (k PublicKey) Bytes() []byte {
	cp := make([]byte, len(k.raw))
	copy(cp, k.raw)
	return cp
}

func (k PublicKey) IsEmpty() bool { return len(k.raw) == 0 }

func (k PublicKey) Equal(other PublicKey) bool {
	return k.suite == other.suite && bytes.Equal(k.raw, other.raw)
}

// KeyId hashes the public key the same way a Bitcoin address hashes a pubkey: SHA-256 then
// RIPEMD-160, with a suite byte mixed in so ids from different curves never collide.
func (k PublicKey) KeyId() []byte {
	return Hash160(append([]byte{byte(k.suite)}, k.raw...))
}

// String renders the public key as "suite:hex", used in logs and non-canonical debug output.
func (k PublicKey) String() string {
	return k.suite.String() + ":" + hex.EncodeToString(k.raw)
}

func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PublicKey) UnmarshalText(text []byte) error {
	suite, raw, err := parseTagged(string(text))
	if err != nil {
		return err
	}
	pk, err := NewPublicKey(suite, raw)
	if err != nil {
		return err
	}
	*k = pk
	return nil
}

func (k PublicKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

func (k *PublicKey) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return errors.New("keyvault: empty public key json")
	}
	return k.UnmarshalText(data[1 : len(data)-1])
}

// Verify reports whether sig is a valid signature of data under this public key.
func (k PublicKey) Verify(data []byte, sig Signature) bool {
	if k.suite != sig.suite {
		return false
	}

	switch k.suite {
	case SuiteEd25519:
		return ed25519.Verify(ed25519.PublicKey(k.raw), data, sig.raw)
	case SuiteSecp256k1:
		parsed, err := ecdsa.ParseDERSignature(sig.raw)
		if err != nil {
			return false
		}
		pub, err := btcec.ParsePubKey(k.raw)
		if err != nil {
			return false
		}
		hash := sha256.Sum256(data)
		return parsed.Verify(hash[:], pub)
	default:
		return false
	}
}

func NewPrivateKey(suite Suite, raw []byte) (PrivateKey, error) {
	switch suite {
	case SuiteEd25519:
		if len(raw) != ed25519.SeedSize && len(raw) != ed25519.PrivateKeySize {
			return PrivateKey{}, errors.Wrapf(ErrBadKeyLength, "ed25519 private key: got %d", len(raw))
		}
	case SuiteSecp256k1:
		if len(raw) != 32 {
			return PrivateKey{}, errors.Wrapf(ErrBadKeyLength, "secp256k1 private key: got %d", len(raw))
		}
	default:
		return PrivateKey{}, ErrUnknownSuite
	}

	cp := make([]byte, len(raw))
	copy(cp, raw)
	return PrivateKey{suite: suite, raw: cp}, nil
}

func (k PrivateKey) Suite() Suite { return k.suite }

func (k PrivateKey) PublicKey() PublicKey {
	switch k.suite {
	case SuiteEd25519:
		seed := k.raw
		if len(seed) == ed25519.PrivateKeySize {
			pub := make([]byte, ed25519.PublicKeySize)
			copy(pub, ed25519.PrivateKey(seed).Public().(ed25519.PublicKey))
			return PublicKey{suite: SuiteEd25519, raw: pub}
		}
		priv := ed25519.NewKeyFromSeed(seed)
		pub := make([]byte, ed25519.PublicKeySize)
		copy(pub, priv.Public().(ed25519.PublicKey))
		return PublicKey{suite: SuiteEd25519, raw: pub}
	case SuiteSecp256k1:
		_, pub := btcec.PrivKeyFromBytes(k.raw)
		return PublicKey{suite: SuiteSecp256k1, raw: pub.SerializeCompressed()}
	default:
		return PublicKey{}
	}
}

// Sign signs data, hashing it first for secp256k1 (ECDSA signs a digest) and signing it directly
// for ed25519 (which hashes internally).
func (k PrivateKey) Sign(data []byte) (Signature, error) {
	switch k.suite {
	case SuiteEd25519:
		priv := k.raw
		if len(priv) == ed25519.SeedSize {
			priv = ed25519.NewKeyFromSeed(priv)
		}
		sig := ed25519.Sign(ed25519.PrivateKey(priv), data)
		return Signature{suite: SuiteEd25519, raw: sig}, nil
	case SuiteSecp256k1:
		priv, _ := btcec.PrivKeyFromBytes(k.raw)
		hash := sha256.Sum256(data)
		sig := ecdsa.Sign(priv, hash[:])
		return Signature{suite: SuiteSecp256k1, raw: sig.Serialize()}, nil
	default:
		return Signature{}, ErrUnknownSuite
	}
}

func (s Signature) Suite() Suite { return s.suite }
func (s Signature) Bytes() []byte {
	cp := make([]byte, len(s.raw))
	copy(cp, s.raw)
	return cp
}

func (s Signature) String() string {
	return s.suite.String() + ":" + hex.EncodeToString(s.raw)
}

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	suite, raw, err := parseTagged(string(text))
	if err != nil {
		return err
	}
	s.suite = suite
	s.raw = raw
	return nil
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return errors.New("keyvault: empty signature json")
	}
	return s.UnmarshalText(data[1 : len(data)-1])
}

func parseTagged(s string) (Suite, []byte, error) {
	idx := bytes.IndexByte([]byte(s), ':')
	if idx < 0 {
		return SuiteUnknown, nil, errors.New("keyvault: malformed tagged value, expected suite:hex")
	}

	var suite Suite
	switch s[:idx] {
	case "ed25519":
		suite = SuiteEd25519
	case "secp256k1":
		suite = SuiteSecp256k1
	default:
		return SuiteUnknown, nil, ErrUnknownSuite
	}

	raw, err := hex.DecodeString(s[idx+1:])
	if err != nil {
		return SuiteUnknown, nil, errors.Wrap(err, "keyvault: decode hex")
	}

	return suite, raw, nil
}
