package repo

import (
	"context"
	"testing"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
	"github.com/Internet-of-People/mercury-rust-sub000/profile"
	"github.com/Internet-of-People/mercury-rust-sub000/storage"
)

func testProfile(t *testing.T, seedByte byte, version profile.Version) profile.PrivateProfileData {
	t.Helper()
	raw := make([]byte, 32)
	raw[0] = seedByte
	priv, err := keyvault.NewPrivateKey(keyvault.SuiteEd25519, raw)
	if err != nil {
		t.Fatal(err)
	}
	pub := profile.NewPublicProfileData(priv.PublicKey())
	pub.Version = version
	return profile.NewPrivateProfileData(pub)
}

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMockStorage(), "profiles.json")

	p := testProfile(t, 1, 0)
	if err := s.Set(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, p.Public.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Public.Id != p.Public.Id {
		t.Errorf("got back wrong profile")
	}

	if _, err := s.Get(ctx, keyvault.ProfileId{}); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestStore_Set_RejectsVersionRegression(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMockStorage(), "profiles.json")

	p5 := testProfile(t, 1, 5)
	if err := s.Set(ctx, p5); err != nil {
		t.Fatal(err)
	}

	p5b := p5
	p5b.Public.Version = 5
	if err := s.Set(ctx, p5b); err != ErrVersionRegression {
		t.Errorf("got %v, want ErrVersionRegression for equal version", err)
	}

	p4 := p5
	p4.Public.Version = 4
	if err := s.Set(ctx, p4); err != ErrVersionRegression {
		t.Errorf("got %v, want ErrVersionRegression for lower version", err)
	}

	p6 := p5
	p6.Public.Version = 6
	if err := s.Set(ctx, p6); err != nil {
		t.Errorf("higher version should be accepted, got %v", err)
	}
}

func TestStore_Restore_BypassesVersionCheck(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMockStorage(), "profiles.json")

	p5 := testProfile(t, 1, 5)
	if err := s.Set(ctx, p5); err != nil {
		t.Fatal(err)
	}

	p2 := p5
	p2.Public.Version = 2
	if err := s.Restore(ctx, p2); err != nil {
		t.Errorf("Restore should bypass the version check, got %v", err)
	}

	got, err := s.Get(ctx, p5.Public.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Public.Version != 2 {
		t.Errorf("got version %d, want 2", got.Public.Version)
	}
}

func TestStore_Clear_ProducesTombstone(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMockStorage(), "profiles.json")

	p5 := testProfile(t, 1, 5)
	if err := s.Set(ctx, p5); err != nil {
		t.Fatal(err)
	}

	if err := s.Clear(ctx, p5.Public.Id); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, p5.Public.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Public.Version <= 5 {
		t.Errorf("tombstone version %d did not exceed prior 5", got.Public.Version)
	}
	if !got.IsTombstone() {
		t.Errorf("cleared entry should report IsTombstone() == true")
	}

	// Setting a lower, pre-tombstone version on top of a tombstone must still succeed: a
	// tombstone's "prior" state should never block re-registration.
	p3 := testProfile(t, 1, 3)
	if err := s.Set(ctx, p3); err != nil {
		t.Errorf("set over a tombstone should not be rejected as a regression, got %v", err)
	}
}

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMockStorage()

	s := NewStore(backend, "profiles.json")
	p := testProfile(t, 1, 1)
	if err := s.Set(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}

	reloaded := NewStore(backend, "profiles.json")
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := reloaded.Get(ctx, p.Public.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Public.Id != p.Public.Id {
		t.Errorf("round trip lost the profile")
	}
}

func TestStore_Load_MissingKeyIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMockStorage(), "nonexistent.json")
	if err := s.Load(ctx); err != nil {
		t.Errorf("loading a missing key should succeed as empty, got %v", err)
	}
	if len(s.List()) != 0 {
		t.Errorf("expected no profiles")
	}
}
