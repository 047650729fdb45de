package keyvault

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/logger"
	"github.com/Internet-of-People/mercury-rust-sub000/storage"
)

// Record is the persisted metadata the vault keeps about one derived profile key: everything
// needed to reconstruct its key on demand from the seed, plus the label and opaque metadata the
// user attached to it.
type Record struct {
	Index    uint32          `json:"index"`
	Suite    Suite           `json:"suite"`
	Id       ProfileId       `json:"id"`
	Label    string          `json:"label,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// file is the on-disk shape of a vault: everything except the seed, which is never persisted by
// this package and must be supplied again (via a BIP-39 phrase) at process bootstrap.
type file struct {
	PurposeCode uint32    `json:"purpose_code"`
	Records     []Record  `json:"records"`
	ActiveId    ProfileId `json:"active_id"`
}

// KeyVault derives every profile key a user controls from a single seed, and tracks which HD
// indices are already in use. It never persists the seed itself.
type KeyVault struct {
	mu      sync.Mutex
	seed    Seed
	records []Record
	byId    map[ProfileId]int // index into records
	activeId ProfileId
}

// New constructs an empty vault over seed. Existing metadata, if any, should be layered on with
// Load immediately afterwards.
func New(seed Seed) *KeyVault {
	return &KeyVault{
		seed: seed,
		byId: make(map[ProfileId]int),
	}
}

// CreateKey allocates the next unused HD child index under suite, derives its key, and records
// it with an optional label. The child index is the vault's current total record count: indices
// are assigned from a single shared counter regardless of which suite claims them, so gap-scan
// recovery (which does not know suites in advance) can probe them in one pass.
func (v *KeyVault) CreateKey(suite Suite, label string) (ProfileId, uint32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	index := uint32(len(v.records))
	id, err := v.deriveLocked(suite, index)
	if err != nil {
		return ProfileId{}, 0, err
	}

	v.records = append(v.records, Record{Index: index, Suite: suite, Id: id, Label: label})
	v.byId[id] = len(v.records) - 1

	if v.activeId.IsEmpty() {
		v.activeId = id
	}

	return id, index, nil
}

func (v *KeyVault) deriveLocked(suite Suite, index uint32) (ProfileId, error) {
	if v.seed.IsEmpty() {
		return ProfileId{}, errors.New("keyvault: vault has no seed")
	}

	priv, err := DeriveProfileKey(v.seed.Bytes(), suite, index)
	if err != nil {
		return ProfileId{}, errors.Wrapf(err, "derive index %d", index)
	}

	return NewProfileId(priv.PublicKey()), nil
}

// RestoreId marks index as already claimed by id, without allocating a new index. It is used by
// gap-scan recovery: once a probe against the remote repository confirms a profile exists at an
// index beyond the vault's known length, RestoreId records it so a later CreateKey does not
// reuse the same index.
func (v *KeyVault) RestoreId(suite Suite, index uint32, id ProfileId) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.byId[id]; exists {
		return nil
	}

	for uint32(len(v.records)) <= index {
		gap := uint32(len(v.records))
		v.records = append(v.records, Record{Index: gap, Suite: SuiteUnknown})
	}

	v.records[index] = Record{Index: index, Suite: suite, Id: id}
	v.byId[id] = int(index)

	if v.activeId.IsEmpty() {
		v.activeId = id
	}

	return nil
}

// Keys returns the known records in index order.
func (v *KeyVault) Keys() []Record {
	v.mu.Lock()
	defer v.mu.Unlock()

	result := make([]Record, len(v.records))
	copy(result, v.records)
	return result
}

// Profiles is an alias for Keys kept for symmetry with the vault's public vocabulary ("profiles"
// rather than "keys") elsewhere in the system.
func (v *KeyVault) Profiles() []Record { return v.Keys() }

func (v *KeyVault) GetActive() (ProfileId, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.activeId.IsEmpty() {
		return ProfileId{}, ErrNoActiveProfile
	}
	return v.activeId, nil
}

func (v *KeyVault) SetActive(id ProfileId) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.byId[id]; !exists {
		return ErrNotFound
	}
	v.activeId = id
	return nil
}

func (v *KeyVault) recordFor(id ProfileId) (Record, error) {
	idx, exists := v.byId[id]
	if !exists {
		return Record{}, ErrNotFound
	}
	return v.records[idx], nil
}

// PublicKey returns the public key for a known profile id.
func (v *KeyVault) PublicKey(id ProfileId) (PublicKey, error) {
	v.mu.Lock()
	rec, err := v.recordFor(id)
	v.mu.Unlock()
	if err != nil {
		return PublicKey{}, err
	}

	priv, err := DeriveProfileKey(v.seed.Bytes(), rec.Suite, rec.Index)
	if err != nil {
		return PublicKey{}, err
	}
	return priv.PublicKey(), nil
}

// Sign signs data with the private key of a known profile id.
func (v *KeyVault) Sign(id ProfileId, data []byte) (Signature, error) {
	v.mu.Lock()
	rec, err := v.recordFor(id)
	v.mu.Unlock()
	if err != nil {
		return Signature{}, err
	}

	priv, err := DeriveProfileKey(v.seed.Bytes(), rec.Suite, rec.Index)
	if err != nil {
		return Signature{}, err
	}
	return priv.Sign(data)
}

// SetLabel and SetMetadata update the local-only bookkeeping for a known profile.
func (v *KeyVault) SetLabel(id ProfileId, label string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	idx, exists := v.byId[id]
	if !exists {
		return ErrNotFound
	}
	v.records[idx].Label = label
	return nil
}

func (v *KeyVault) SetMetadata(id ProfileId, metadata json.RawMessage) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	idx, exists := v.byId[id]
	if !exists {
		return ErrNotFound
	}
	v.records[idx].Metadata = metadata
	return nil
}

// DerivePublicKey computes the public key at (suite, index) without recording it as a known
// profile. Used by gap-scan recovery to probe a candidate id before committing to it.
func (v *KeyVault) DerivePublicKey(suite Suite, index uint32) (PublicKey, error) {
	priv, err := DeriveProfileKey(v.seed.Bytes(), suite, index)
	if err != nil {
		return PublicKey{}, err
	}
	return priv.PublicKey(), nil
}

// Save serializes everything but the seed -- indices, suites, ids, labels, metadata and the
// active id -- to key.
func (v *KeyVault) Save(ctx context.Context, store storage.Storage, key string) error {
	v.mu.Lock()
	f := file{
		PurposeCode: purposeMercury,
		Records:     append([]Record(nil), v.records...),
		ActiveId:    v.activeId,
	}
	v.mu.Unlock()

	b, err := json.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "keyvault: marshal vault file")
	}

	if err := store.Write(ctx, key, b, nil); err != nil {
		return errors.Wrap(err, "keyvault: write vault file")
	}

	logger.Info(ctx, "Saved vault with %d profiles", len(f.Records))
	return nil
}

// Load replaces the vault's index metadata with what was previously saved. The seed is not
// touched: callers must have already constructed the vault from the recovered phrase.
func (v *KeyVault) Load(ctx context.Context, store storage.Storage, key string) error {
	b, err := store.Read(ctx, key)
	if err != nil {
		return errors.Wrap(err, "keyvault: read vault file")
	}

	var f file
	if err := json.Unmarshal(b, &f); err != nil {
		return errors.Wrap(err, "keyvault: unmarshal vault file")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.records = f.Records
	v.byId = make(map[ProfileId]int, len(f.Records))
	for i, rec := range f.Records {
		v.byId[rec.Id] = i
	}
	v.activeId = f.ActiveId

	logger.Info(ctx, "Loaded vault with %d profiles", len(v.records))
	return nil
}

// clockNow is overridable in tests; production code always uses time.Now.
var clockNow = time.Now
