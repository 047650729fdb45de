package keyvault

import "github.com/pkg/errors"

// ProfileId is the canonical, human-displayable identifier of a profile: a base58check
// encoding of the hash of its public key, tagged with the key's cipher suite as the version
// byte. It is comparable and safe to use as a map key.
type ProfileId struct {
	encoded string
}

// NewProfileId computes the id a public key must be known by.
func NewProfileId(pk PublicKey) ProfileId {
	return ProfileId{encoded: Base58CheckEncode(byte(pk.Suite()), pk.KeyId())}
}

// ProfileIdFromString parses a previously rendered id, validating its checksum.
func ProfileIdFromString(s string) (ProfileId, error) {
	if s == "" {
		return ProfileId{}, errors.New("keyvault: empty profile id")
	}
	if _, _, err := Base58CheckDecode(s); err != nil {
		return ProfileId{}, errors.Wrap(err, "keyvault: parse profile id")
	}
	return ProfileId{encoded: s}, nil
}

func (id ProfileId) String() string { return id.encoded }

func (id ProfileId) IsEmpty() bool { return id.encoded == "" }

// Suite recovers the cipher suite tagged into the id's version byte.
func (id ProfileId) Suite() (Suite, error) {
	v, _, err := Base58CheckDecode(id.encoded)
	if err != nil {
		return SuiteUnknown, err
	}
	return Suite(v), nil
}

// Matches reports whether this id is the id of pk.
func (id ProfileId) Matches(pk PublicKey) bool {
	return id == NewProfileId(pk)
}

func (id ProfileId) MarshalText() ([]byte, error) {
	return []byte(id.encoded), nil
}

func (id *ProfileId) UnmarshalText(text []byte) error {
	parsed, err := ProfileIdFromString(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ProfileId) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.encoded + `"`), nil
}

func (id *ProfileId) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return errors.New("keyvault: empty profile id json")
	}
	return id.UnmarshalText(data[1 : len(data)-1])
}
