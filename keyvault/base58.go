package keyvault

import (
	"crypto/sha256"
	"math/big"

	"github.com/pkg/errors"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var (
	bigRadix = big.NewInt(58)
	bigZero  = big.NewInt(0)
)

// base58Encode is the same alphabet Bitcoin addresses and extended keys use.
func base58Encode(input []byte) string {
	x := new(big.Int).SetBytes(input)

	answer := make([]byte, 0, len(input)*136/100)
	mod := new(big.Int)
	for x.Cmp(bigZero) > 0 {
		x.DivMod(x, bigRadix, mod)
		answer = append(answer, base58Alphabet[mod.Int64()])
	}

	for _, b := range input {
		if b != 0 {
			break
		}
		answer = append(answer, base58Alphabet[0])
	}

	reverse(answer)
	return string(answer)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func base58Decode(s string) ([]byte, error) {
	answer := big.NewInt(0)
	j := big.NewInt(1)

	for i := len(s) - 1; i >= 0; i-- {
		idx := indexOfAlphabet(s[i])
		if idx < 0 {
			return nil, errors.Errorf("keyvault: invalid base58 character %q", s[i])
		}

		answer.Add(answer, new(big.Int).Mul(j, big.NewInt(int64(idx))))
		j.Mul(j, bigRadix)
	}

	tmpval := answer.Bytes()

	var numZeros int
	for numZeros = 0; numZeros < len(s); numZeros++ {
		if s[numZeros] != base58Alphabet[0] {
			break
		}
	}

	flen := numZeros + len(tmpval)
	val := make([]byte, flen)
	copy(val[numZeros:], tmpval)

	return val, nil
}

func indexOfAlphabet(c byte) int {
	for i := 0; i < len(base58Alphabet); i++ {
		if base58Alphabet[i] == c {
			return i
		}
	}
	return -1
}

// Base58CheckEncode appends a 4-byte double-SHA-256 checksum before base58-encoding, the same
// scheme Bitcoin uses for addresses and WIF keys.
func Base58CheckEncode(version byte, payload []byte) string {
	full := make([]byte, 0, 1+len(payload)+4)
	full = append(full, version)
	full = append(full, payload...)

	checksum := doubleSHA256(full)
	full = append(full, checksum[:4]...)

	return base58Encode(full)
}

func Base58CheckDecode(encoded string) (version byte, payload []byte, err error) {
	decoded, err := base58Decode(encoded)
	if err != nil {
		return 0, nil, err
	}

	if len(decoded) < 5 {
		return 0, nil, errors.New("keyvault: base58check input too short")
	}

	body := decoded[:len(decoded)-4]
	checksum := decoded[len(decoded)-4:]

	want := doubleSHA256(body)
	for i := 0; i < 4; i++ {
		if want[i] != checksum[i] {
			return 0, nil, errors.New("keyvault: base58check checksum mismatch")
		}
	}

	return body[0], body[1:], nil
}

func doubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}
