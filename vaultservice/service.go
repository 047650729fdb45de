// Package vaultservice orchestrates a KeyVault and the Local/Base/Remote profile repository trio
// into the operations a user-facing shell (CLI, HTTP) actually calls: create and edit profiles,
// publish and restore them against the network, and manage claims.
package vaultservice

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/claims"
	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
	"github.com/Internet-of-People/mercury-rust-sub000/logger"
	"github.com/Internet-of-People/mercury-rust-sub000/profile"
	"github.com/Internet-of-People/mercury-rust-sub000/repo"
	"github.com/Internet-of-People/mercury-rust-sub000/storage"
)

// Service is the single-threaded orchestrator described by the core: every exported method
// takes the same mutex, so calls are strictly serialized in submission order the way a
// single-reactor process would naturally serialize them.
type Service struct {
	mu    sync.Mutex
	vault *keyvault.KeyVault

	local  *repo.Store
	base   *repo.Store
	remote *repo.Store

	vaultStore storage.Storage
	vaultKey   string
	registry   *claims.Registry
}

// New constructs a Service with no vault installed yet; RestoreVault must be called before any
// other operation. registry is consulted by AddClaim to validate a claim's content against its
// schema before it is persisted; pass claims.NewRegistry(vaultStore) to share the vault's own
// backend, or a registry backed by a separate store.
func New(vaultStore storage.Storage, vaultKey string, local, base, remote *repo.Store, registry *claims.Registry) *Service {
	return &Service{
		vaultStore: vaultStore,
		vaultKey:   vaultKey,
		local:      local,
		base:       base,
		remote:     remote,
		registry:   registry,
	}
}

func (s *Service) requireInitialized() error {
	if s.vault == nil {
		return ErrVaultUninitialized
	}
	return nil
}

// RestoreVault converts a BIP-39 phrase into a seed and installs a fresh KeyVault. It requires no
// vault to already be installed.
func (s *Service) RestoreVault(ctx context.Context, phrase, passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vault != nil {
		return ErrAlreadyInitialized
	}

	seed, err := keyvault.NewSeedFromMnemonic(phrase, passphrase)
	if err != nil {
		return errors.Wrap(ErrInvalidChecksum, err.Error())
	}

	s.vault = keyvault.New(seed)

	if err := s.vault.Save(ctx, s.vaultStore, s.vaultKey); err != nil {
		return errors.Wrap(err, "vaultservice: persist vault")
	}

	logger.Info(ctx, "Vault restored from phrase")
	return nil
}

func (s *Service) resolveId(id keyvault.ProfileId) (keyvault.ProfileId, error) {
	if !id.IsEmpty() {
		return id, nil
	}
	return s.vault.GetActive()
}

// CreateProfile allocates a fresh HD key under suite, writes an empty profile to Local, and
// persists the vault's updated index metadata.
func (s *Service) CreateProfile(ctx context.Context, suite keyvault.Suite, label string) (keyvault.ProfileId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return keyvault.ProfileId{}, err
	}

	id, _, err := s.vault.CreateKey(suite, label)
	if err != nil {
		return keyvault.ProfileId{}, errors.Wrap(err, "vaultservice: allocate key")
	}

	pk, err := s.vault.PublicKey(id)
	if err != nil {
		return keyvault.ProfileId{}, err
	}

	priv := profile.NewPrivateProfileData(profile.NewPublicProfileData(pk))
	if err := s.local.Restore(ctx, priv); err != nil {
		return keyvault.ProfileId{}, errors.Wrap(err, "vaultservice: write new profile to local")
	}

	if err := s.vault.Save(ctx, s.vaultStore, s.vaultKey); err != nil {
		return keyvault.ProfileId{}, errors.Wrap(err, "vaultservice: persist vault")
	}

	logger.InfoWithFields(ctx, []logger.Field{
		logger.Stringer("profile_id", id),
		logger.String("suite", suite.String()),
	}, "Created profile")
	return id, nil
}

func (s *Service) mutateLocal(ctx context.Context, id keyvault.ProfileId,
	mutate func(*profile.PrivateProfileData) error) error {

	if err := s.requireInitialized(); err != nil {
		return err
	}

	resolved, err := s.resolveId(id)
	if err != nil {
		return err
	}

	p, err := s.local.Get(ctx, resolved)
	if err != nil {
		return err
	}

	if err := mutate(&p); err != nil {
		return err
	}

	return s.local.Restore(ctx, p)
}

func (s *Service) SetAttribute(ctx context.Context, id keyvault.ProfileId, key string, value profile.AttributeValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateLocal(ctx, id, func(p *profile.PrivateProfileData) error {
		p.Public.SetAttribute(key, value)
		return nil
	})
}

func (s *Service) ClearAttribute(ctx context.Context, id keyvault.ProfileId, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateLocal(ctx, id, func(p *profile.PrivateProfileData) error {
		return p.Public.ClearAttribute(key)
	})
}

func (s *Service) CreateLink(ctx context.Context, id keyvault.ProfileId, peer keyvault.ProfileId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateLocal(ctx, id, func(p *profile.PrivateProfileData) error {
		p.Public.CreateLink(peer)
		return nil
	})
}

func (s *Service) RemoveLink(ctx context.Context, id keyvault.ProfileId, peer keyvault.ProfileId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateLocal(ctx, id, func(p *profile.PrivateProfileData) error {
		p.Public.RemoveLink(peer)
		return nil
	})
}

// PublishProfile pushes Local to Remote and refreshes Base from the result.
//
// Without force, it rejects with ErrRemoteConflict if Remote has advanced past Base (someone
// else published since our last restore). With force, Local's version is bumped past whatever
// Remote currently holds before pushing, so the push always succeeds.
func (s *Service) PublishProfile(ctx context.Context, id keyvault.ProfileId, force bool) (keyvault.ProfileId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return keyvault.ProfileId{}, err
	}

	resolved, err := s.resolveId(id)
	if err != nil {
		return keyvault.ProfileId{}, err
	}

	pLocal, err := s.local.Get(ctx, resolved)
	if err != nil {
		return keyvault.ProfileId{}, err
	}

	if force {
		pRemote, remoteErr := s.remote.Get(ctx, resolved)
		if remoteErr == nil && pRemote.Public.Version >= pLocal.Public.Version {
			pLocal.Public.Version = pRemote.Public.Version + 1
			if err := s.local.Restore(ctx, pLocal); err != nil {
				return keyvault.ProfileId{}, err
			}
		}
	} else {
		if err := s.ensureNoRemoteChanges(ctx, resolved); err != nil {
			return keyvault.ProfileId{}, err
		}
	}

	if err := s.remote.Restore(ctx, pLocal); err != nil {
		return keyvault.ProfileId{}, errors.Wrap(err, "vaultservice: push to remote")
	}

	if err := s.base.Restore(ctx, pLocal); err != nil {
		return keyvault.ProfileId{}, errors.Wrap(err, "vaultservice: pull base from remote")
	}

	logger.Info(ctx, "Published profile %s at version %d", resolved, pLocal.Public.Version)
	return resolved, nil
}

func (s *Service) ensureNoRemoteChanges(ctx context.Context, id keyvault.ProfileId) error {
	pRemote, remoteErr := s.remote.Get(ctx, id)
	if errors.Is(remoteErr, repo.ErrNotFound) {
		return nil
	}
	if remoteErr != nil {
		return remoteErr
	}

	pBase, baseErr := s.base.Get(ctx, id)
	if errors.Is(baseErr, repo.ErrNotFound) {
		return ErrRemoteConflict
	}
	if baseErr != nil {
		return baseErr
	}

	if pRemote.Public.Version > pBase.Public.Version {
		return ErrRemoteConflict
	}
	return nil
}

// RestoreProfile pulls Remote into Base, then copies Base into Local.
//
// Without force, it rejects with ErrLocalConflict if Local has unpublished edits relative to
// Base (the pull would silently discard them).
func (s *Service) RestoreProfile(ctx context.Context, id keyvault.ProfileId, force bool) (profile.PrivateProfileData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return profile.PrivateProfileData{}, err
	}

	resolved, err := s.resolveId(id)
	if err != nil {
		return profile.PrivateProfileData{}, err
	}

	if !force {
		if err := s.ensureNoLocalChanges(ctx, resolved); err != nil {
			return profile.PrivateProfileData{}, err
		}
	}

	pRemote, err := s.remote.Get(ctx, resolved)
	if err != nil {
		return profile.PrivateProfileData{}, err
	}

	if err := s.base.Restore(ctx, pRemote); err != nil {
		return profile.PrivateProfileData{}, err
	}

	if err := s.local.Restore(ctx, pRemote); err != nil {
		return profile.PrivateProfileData{}, err
	}

	logger.Info(ctx, "Restored profile %s from remote at version %d", resolved, pRemote.Public.Version)
	return pRemote, nil
}

func (s *Service) ensureNoLocalChanges(ctx context.Context, id keyvault.ProfileId) error {
	pLocal, localErr := s.local.Get(ctx, id)
	if errors.Is(localErr, repo.ErrNotFound) {
		return nil
	}
	if localErr != nil {
		return localErr
	}

	pBase, baseErr := s.base.Get(ctx, id)
	if errors.Is(baseErr, repo.ErrNotFound) {
		if pLocal.Public.Version > 0 {
			return ErrLocalConflict
		}
		return nil
	}
	if baseErr != nil {
		return baseErr
	}

	if pLocal.Public.Version > pBase.Public.Version {
		return ErrLocalConflict
	}
	return nil
}

// RevertProfile unconditionally copies Base into Local, discarding any local edits.
func (s *Service) RevertProfile(ctx context.Context, id keyvault.ProfileId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return err
	}

	resolved, err := s.resolveId(id)
	if err != nil {
		return err
	}

	pBase, err := s.base.Get(ctx, resolved)
	if err != nil {
		return err
	}

	return s.local.Restore(ctx, pBase)
}

// SignClaim signs the JSON-canonical bytes of a SignableClaimPart with the given profile's key,
// producing a proof valid for profile.DefaultClaimValidity from now.
func (s *Service) SignClaim(ctx context.Context, id keyvault.ProfileId, signable profile.SignableClaimPart) (profile.ClaimProof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return profile.ClaimProof{}, err
	}

	resolved, err := s.resolveId(id)
	if err != nil {
		return profile.ClaimProof{}, err
	}

	bytes, err := signable.CanonicalBytes()
	if err != nil {
		return profile.ClaimProof{}, err
	}

	sig, err := s.vault.Sign(resolved, bytes)
	if err != nil {
		return profile.ClaimProof{}, err
	}

	now := clockNow()
	return profile.ClaimProof{
		Signer:     resolved,
		Signature:  sig,
		IssuedAt:   now,
		ValidUntil: now.Add(profile.DefaultClaimValidity),
	}, nil
}

// AddClaim validates claim.Content against the schema named by claim.Schema before appending it
// to the profile's claim list, so a profile never ends up holding a claim its own schema rejects.
func (s *Service) AddClaim(ctx context.Context, id keyvault.ProfileId, claim profile.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry != nil {
		if err := s.registry.Validate(ctx, claim.Schema, claim.Content); err != nil {
			return err
		}
	}

	return s.mutateLocal(ctx, id, func(p *profile.PrivateProfileData) error {
		return p.AddClaim(claim)
	})
}

// AddClaimProof verifies proof against the named claim's signable part, using the signer's
// public key as published on Remote, and appends it on success.
func (s *Service) AddClaimProof(ctx context.Context, id keyvault.ProfileId, claimId string, proof profile.ClaimProof) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return err
	}

	resolved, err := s.resolveId(id)
	if err != nil {
		return err
	}

	p, err := s.local.Get(ctx, resolved)
	if err != nil {
		return err
	}

	var signable profile.SignableClaimPart
	found := false
	for _, claim := range p.Claims {
		if claim.Id == claimId {
			signable = claim.SignablePart()
			found = true
			break
		}
	}
	if !found {
		return profile.ErrClaimNotFound
	}

	signerProfile, err := s.remote.Get(ctx, proof.Signer)
	if err != nil {
		return errors.Wrap(err, "vaultservice: resolve claim signer's public key")
	}

	if !proof.Verify(signable, signerProfile.Public.PublicKey) {
		return profile.ErrInvalidProof
	}

	if err := p.AddClaimProof(claimId, proof); err != nil {
		return err
	}

	return s.local.Restore(ctx, p)
}

// clockNow is overridable in tests.
var clockNow = time.Now
