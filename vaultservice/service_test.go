package vaultservice

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/claims"
	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
	"github.com/Internet-of-People/mercury-rust-sub000/profile"
	"github.com/Internet-of-People/mercury-rust-sub000/repo"
	"github.com/Internet-of-People/mercury-rust-sub000/storage"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newTestService(t *testing.T) *Service {
	t.Helper()
	backend := storage.NewMockStorage()
	local := repo.NewStore(backend, "local.json")
	base := repo.NewStore(backend, "base.json")
	remote := repo.NewStore(backend, "remote.json")
	registry := claims.NewRegistry(backend)
	return New(backend, "vault.json", local, base, remote, registry)
}

func TestService_RestoreVault_RequiresNoExistingVault(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	if err := s.RestoreVault(ctx, testMnemonic, ""); err != nil {
		t.Fatal(err)
	}
	if err := s.RestoreVault(ctx, testMnemonic, ""); err != ErrAlreadyInitialized {
		t.Errorf("got %v, want ErrAlreadyInitialized", err)
	}
}

func TestService_RestoreVault_InvalidChecksum(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	err := s.RestoreVault(ctx, "not a valid bip39 phrase at all", "")
	if err == nil {
		t.Fatal("expected an error for a malformed mnemonic")
	}
}

func TestService_OperationsRequireInitializedVault(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	if _, err := s.CreateProfile(ctx, keyvault.SuiteEd25519, ""); err != ErrVaultUninitialized {
		t.Errorf("got %v, want ErrVaultUninitialized", err)
	}
}

func TestService_CreateProfile_And_PublishRestore(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	if err := s.RestoreVault(ctx, testMnemonic, ""); err != nil {
		t.Fatal(err)
	}

	id, err := s.CreateProfile(ctx, keyvault.SuiteEd25519, "alice")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SetAttribute(ctx, id, "nickname", profile.AttributeValue(`"alice"`)); err != nil {
		t.Fatal(err)
	}

	published, err := s.PublishProfile(ctx, id, false)
	if err != nil {
		t.Fatal(err)
	}
	if published != id {
		t.Errorf("publish returned wrong id")
	}

	restored, err := s.RestoreProfile(ctx, id, false)
	if err != nil {
		t.Fatal(err)
	}
	v, err := restored.Public.GetAttribute("nickname")
	if err != nil {
		t.Fatal(err)
	}
	if string(v) != `"alice"` {
		t.Errorf("got %s, want \"alice\"", v)
	}
}

func TestService_PublishProfile_RemoteConflictAndForce(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	if err := s.RestoreVault(ctx, testMnemonic, ""); err != nil {
		t.Fatal(err)
	}

	id, err := s.CreateProfile(ctx, keyvault.SuiteEd25519, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.PublishProfile(ctx, id, false); err != nil {
		t.Fatal(err)
	}

	// Simulate someone else advancing Remote past Base behind this node's back.
	remoteAhead, err := s.remote.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	remoteAhead.Public.Version += 5
	if err := s.remote.Restore(ctx, remoteAhead); err != nil {
		t.Fatal(err)
	}

	if err := s.SetAttribute(ctx, id, "k", profile.AttributeValue(`1`)); err != nil {
		t.Fatal(err)
	}

	if _, err := s.PublishProfile(ctx, id, false); err != ErrRemoteConflict {
		t.Errorf("got %v, want ErrRemoteConflict", err)
	}

	if _, err := s.PublishProfile(ctx, id, true); err != nil {
		t.Errorf("forced publish should succeed, got %v", err)
	}
}

func TestService_RestoreProfile_LocalConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	if err := s.RestoreVault(ctx, testMnemonic, ""); err != nil {
		t.Fatal(err)
	}

	id, err := s.CreateProfile(ctx, keyvault.SuiteEd25519, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.PublishProfile(ctx, id, false); err != nil {
		t.Fatal(err)
	}

	// Unpublished local edit.
	if err := s.SetAttribute(ctx, id, "k", profile.AttributeValue(`1`)); err != nil {
		t.Fatal(err)
	}

	if _, err := s.RestoreProfile(ctx, id, false); err != ErrLocalConflict {
		t.Errorf("got %v, want ErrLocalConflict", err)
	}

	if _, err := s.RestoreProfile(ctx, id, true); err != nil {
		t.Errorf("forced restore should succeed, got %v", err)
	}
}

func TestService_SignClaim_UsesFixedValidityWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	if err := s.RestoreVault(ctx, testMnemonic, ""); err != nil {
		t.Fatal(err)
	}
	id, err := s.CreateProfile(ctx, keyvault.SuiteEd25519, "")
	if err != nil {
		t.Fatal(err)
	}

	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old := clockNow
	clockNow = func() time.Time { return fixed }
	defer func() { clockNow = old }()

	signable := profile.SignableClaimPart{Subject: id, Schema: "s", Content: []byte(`{}`)}
	claimProof, err := s.SignClaim(ctx, id, signable)
	if err != nil {
		t.Fatal(err)
	}

	if !claimProof.IssuedAt.Equal(fixed) {
		t.Errorf("got issued_at %v, want %v", claimProof.IssuedAt, fixed)
	}
	wantValidUntil := fixed.Add(profile.DefaultClaimValidity)
	if !claimProof.ValidUntil.Equal(wantValidUntil) {
		t.Errorf("got valid_until %v, want %v", claimProof.ValidUntil, wantValidUntil)
	}

	pk, err := s.vault.PublicKey(id)
	if err != nil {
		t.Fatal(err)
	}
	if !claimProof.Verify(signable, pk) {
		t.Errorf("claim proof failed to verify")
	}
}

func TestService_AddClaim_ValidatesAgainstSchema(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	if err := s.RestoreVault(ctx, testMnemonic, ""); err != nil {
		t.Fatal(err)
	}

	id, err := s.CreateProfile(ctx, keyvault.SuiteEd25519, "")
	if err != nil {
		t.Fatal(err)
	}

	schema := claims.Schema{Id: "over18", Version: 1, Name: "Age Over 18", Required: []string{"birthdate"}}
	if err := s.registry.Put(ctx, schema); err != nil {
		t.Fatal(err)
	}

	if err := s.AddClaim(ctx, id, profile.Claim{
		Id:      "c1",
		Subject: id,
		Schema:  "over18",
		Content: []byte(`{"birthdate":"2000-01-01"}`),
	}); err != nil {
		t.Fatalf("valid claim rejected: %v", err)
	}

	err = s.AddClaim(ctx, id, profile.Claim{
		Id:      "c2",
		Subject: id,
		Schema:  "over18",
		Content: []byte(`{}`),
	})
	if !errors.Is(err, claims.ErrContentInvalid) {
		t.Errorf("got %v, want claims.ErrContentInvalid", err)
	}

	err = s.AddClaim(ctx, id, profile.Claim{
		Id:      "c3",
		Subject: id,
		Schema:  "does-not-exist",
		Content: []byte(`{}`),
	})
	if !errors.Is(err, claims.ErrSchemaNotFound) {
		t.Errorf("got %v, want claims.ErrSchemaNotFound", err)
	}
}
