package keyvault

import (
	"context"
	"testing"

	"github.com/Internet-of-People/mercury-rust-sub000/storage"
)

func testSeed(t *testing.T) Seed {
	t.Helper()
	seed, err := NewSeedFromMnemonic(
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
		"")
	if err != nil {
		t.Fatal(err)
	}
	return seed
}

func TestKeyVault_CreateKey(t *testing.T) {
	v := New(testSeed(t))

	id0, idx0, err := v.CreateKey(SuiteEd25519, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if idx0 != 0 {
		t.Errorf("got index %d, want 0", idx0)
	}

	id1, idx1, err := v.CreateKey(SuiteSecp256k1, "alice-secp")
	if err != nil {
		t.Fatal(err)
	}
	if idx1 != 1 {
		t.Errorf("got index %d, want 1", idx1)
	}
	if id0 == id1 {
		t.Errorf("two distinct keys produced the same id")
	}

	active, err := v.GetActive()
	if err != nil {
		t.Fatal(err)
	}
	if active != id0 {
		t.Errorf("first created key should become active by default")
	}
}

func TestKeyVault_RestoreId_FillsGap(t *testing.T) {
	v := New(testSeed(t))

	pk, err := v.DerivePublicKey(SuiteEd25519, 5)
	if err != nil {
		t.Fatal(err)
	}
	id := NewProfileId(pk)

	if err := v.RestoreId(SuiteEd25519, 5, id); err != nil {
		t.Fatal(err)
	}

	keys := v.Keys()
	if len(keys) != 6 {
		t.Fatalf("got %d records, want 6 (indices 0..5)", len(keys))
	}
	for i := 0; i < 5; i++ {
		if keys[i].Suite != SuiteUnknown {
			t.Errorf("gap index %d should be SuiteUnknown placeholder, got %s", i, keys[i].Suite)
		}
	}
	if keys[5].Id != id {
		t.Errorf("restored record at index 5 has wrong id")
	}
}

func TestKeyVault_SaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMockStorage()

	v := New(testSeed(t))
	id, _, err := v.CreateKey(SuiteEd25519, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if err := v.SetLabel(id, "renamed"); err != nil {
		t.Fatal(err)
	}

	if err := v.Save(ctx, backend, "vault.json"); err != nil {
		t.Fatal(err)
	}

	reloaded := New(testSeed(t))
	if err := reloaded.Load(ctx, backend, "vault.json"); err != nil {
		t.Fatal(err)
	}

	active, err := reloaded.GetActive()
	if err != nil {
		t.Fatal(err)
	}
	if active != id {
		t.Errorf("active id did not survive round trip")
	}

	keys := reloaded.Keys()
	if len(keys) != 1 || keys[0].Label != "renamed" {
		t.Errorf("label did not survive round trip: %+v", keys)
	}
}

func TestKeyVault_SignAndVerify(t *testing.T) {
	ctx := context.Background()
	_ = ctx

	v := New(testSeed(t))
	id, _, err := v.CreateKey(SuiteSecp256k1, "")
	if err != nil {
		t.Fatal(err)
	}

	sig, err := v.Sign(id, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}

	pk, err := v.PublicKey(id)
	if err != nil {
		t.Fatal(err)
	}

	if !pk.Verify([]byte("payload"), sig) {
		t.Errorf("signature produced by vault did not verify")
	}
}

func TestKeyVault_UnknownId(t *testing.T) {
	v := New(testSeed(t))
	_, err := v.PublicKey(ProfileId{encoded: "nonexistent"})
	if err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
