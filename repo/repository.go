// Package repo implements the three-tier profile repository: Local (the user's editable working
// copy), Base (the last known snapshot pulled from Remote), and Remote (the authoritative store,
// DHT-backed in production and abstracted here behind the same Storage-backed implementation).
// All three share one contract; Store additionally supports an unconditional Restore, which
// vaultservice and homeserver use on every tier they write.
package repo

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
	"github.com/Internet-of-People/mercury-rust-sub000/logger"
	"github.com/Internet-of-People/mercury-rust-sub000/profile"
	"github.com/Internet-of-People/mercury-rust-sub000/storage"
)

// Repository is the shared get/set/clear contract implemented by all three tiers.
type Repository interface {
	Get(ctx context.Context, id keyvault.ProfileId) (profile.PrivateProfileData, error)
	Set(ctx context.Context, p profile.PrivateProfileData) error
	Clear(ctx context.Context, id keyvault.ProfileId) error
}

// LocalRepository additionally allows unconditional overwrite, used by restore/revert flows
// that must replace Local regardless of its current version.
type LocalRepository interface {
	Repository
	Restore(ctx context.Context, p profile.PrivateProfileData) error
}

// file is the on-disk shape: a single JSON object holding every profile this store knows about,
// keyed by its string-rendered id.
type file struct {
	Profiles map[string]profile.PrivateProfileData `json:"profiles"`
}

// Store is a Storage-backed implementation of Repository (and, via Restore, LocalRepository). A
// Local, a Base, and a Remote repository are each just a Store pointed at a different key in the
// same or different underlying Storage.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]profile.PrivateProfileData
	backend  storage.Storage
	key      string
}

// NewStore creates an empty store backed by backend, persisted under key. Call Load to populate
// it from a previous Save.
func NewStore(backend storage.Storage, key string) *Store {
	return &Store{
		profiles: make(map[string]profile.PrivateProfileData),
		backend:  backend,
		key:      key,
	}
}

func (s *Store) Get(ctx context.Context, id keyvault.ProfileId) (profile.PrivateProfileData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id.String()]
	if !ok {
		return profile.PrivateProfileData{}, ErrNotFound
	}
	return p, nil
}

// Set writes p, rejecting a non-increasing version against a stored non-tombstone entry.
func (s *Store) Set(ctx context.Context, p profile.PrivateProfileData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.Public.Id.String()
	if existing, ok := s.profiles[key]; ok && !existing.IsTombstone() {
		if p.Public.Version <= existing.Public.Version {
			return ErrVersionRegression
		}
	}

	s.profiles[key] = p
	return nil
}

// Restore writes p unconditionally, bypassing the version check. vaultservice calls it on Local,
// Base and Remote, and homeserver on its hosted and public stores.
func (s *Store) Restore(ctx context.Context, p profile.PrivateProfileData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[p.Public.Id.String()] = p
	return nil
}

// Clear replaces the stored profile with a tombstone: version bumped past whatever it was,
// every facet/attribute/link/claim wiped. Deleting an absent profile is a no-op success, since
// there is nothing whose version needs preserving.
func (s *Store) Clear(ctx context.Context, id keyvault.ProfileId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.String()
	existing, ok := s.profiles[key]
	if !ok {
		return nil
	}

	var priorVersion profile.Version
	var pk keyvault.PublicKey
	if ok {
		priorVersion = existing.Public.Version
		pk = existing.Public.PublicKey
	}

	s.profiles[key] = profile.Tombstone(id, pk, priorVersion)
	return nil
}

// List returns every known profile id.
func (s *Store) List() []keyvault.ProfileId {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]keyvault.ProfileId, 0, len(s.profiles))
	for k := range s.profiles {
		id, err := keyvault.ProfileIdFromString(k)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Save persists the whole store to its backend key.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	f := file{Profiles: make(map[string]profile.PrivateProfileData, len(s.profiles))}
	for k, v := range s.profiles {
		f.Profiles[k] = v
	}
	s.mu.RUnlock()

	b, err := json.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "repo: marshal store")
	}

	if err := s.backend.Write(ctx, s.key, b, nil); err != nil {
		return errors.Wrap(err, "repo: write store")
	}

	logger.Info(ctx, "Saved profile store %s with %d profiles", s.key, len(f.Profiles))
	return nil
}

// Load replaces the in-memory contents with what was previously saved. Missing keys are treated
// as an empty store, the same way a freshly bootstrapped node has nothing cached yet.
func (s *Store) Load(ctx context.Context) error {
	b, err := s.backend.Read(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "repo: read store")
	}

	var f file
	if err := json.Unmarshal(b, &f); err != nil {
		return errors.Wrap(err, "repo: unmarshal store")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f.Profiles == nil {
		f.Profiles = make(map[string]profile.PrivateProfileData)
	}
	s.profiles = f.Profiles

	logger.Info(ctx, "Loaded profile store %s with %d profiles", s.key, len(s.profiles))
	return nil
}
