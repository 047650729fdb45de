package profile

import (
	"encoding/json"
	"testing"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
)

func testKey(t *testing.T, seedByte byte) (keyvault.PrivateKey, keyvault.PublicKey, keyvault.ProfileId) {
	t.Helper()
	raw := make([]byte, 32)
	raw[0] = seedByte
	priv, err := keyvault.NewPrivateKey(keyvault.SuiteEd25519, raw)
	if err != nil {
		t.Fatal(err)
	}
	pub := priv.PublicKey()
	return priv, pub, keyvault.NewProfileId(pub)
}

func TestPublicProfileData_Invariant(t *testing.T) {
	_, pk, _ := testKey(t, 1)
	p := NewPublicProfileData(pk)

	if err := p.CheckInvariant(); err != nil {
		t.Fatal(err)
	}

	_, otherPk, _ := testKey(t, 2)
	p.PublicKey = otherPk
	if err := p.CheckInvariant(); err == nil {
		t.Errorf("expected invariant violation after swapping public key")
	}
}

func TestPublicProfileData_VersionStrictlyIncreases(t *testing.T) {
	_, pk, _ := testKey(t, 1)
	p := NewPublicProfileData(pk)

	last := p.Version
	p.SetAttribute("nickname", json.RawMessage(`"alice"`))
	if p.Version <= last {
		t.Errorf("version did not increase after SetAttribute")
	}
	last = p.Version

	_, _, peer := testKey(t, 2)
	p.CreateLink(peer)
	if p.Version <= last {
		t.Errorf("version did not increase after CreateLink")
	}
	last = p.Version

	if err := p.ClearAttribute("nickname"); err != nil {
		t.Fatal(err)
	}
	if p.Version <= last {
		t.Errorf("version did not increase after ClearAttribute")
	}
}

func TestPublicProfileData_Attributes(t *testing.T) {
	_, pk, _ := testKey(t, 1)
	p := NewPublicProfileData(pk)

	if _, err := p.GetAttribute("missing"); err != ErrAttributeNotFound {
		t.Errorf("got %v, want ErrAttributeNotFound", err)
	}

	p.SetAttribute("k", json.RawMessage(`1`))
	v, err := p.GetAttribute("k")
	if err != nil {
		t.Fatal(err)
	}
	if string(v) != "1" {
		t.Errorf("got %s, want 1", v)
	}

	if err := p.ClearAttribute("k"); err != nil {
		t.Fatal(err)
	}
	if err := p.ClearAttribute("k"); err != ErrAttributeNotFound {
		t.Errorf("clearing twice should fail with ErrAttributeNotFound, got %v", err)
	}
}

func TestPublicProfileData_Links(t *testing.T) {
	_, pk, _ := testKey(t, 1)
	p := NewPublicProfileData(pk)
	_, _, peer := testKey(t, 2)

	p.CreateLink(peer)
	p.CreateLink(peer) // idempotent
	if len(p.Links) != 1 {
		t.Fatalf("got %d links, want 1", len(p.Links))
	}

	p.RemoveLink(peer)
	if len(p.Links) != 0 {
		t.Errorf("got %d links after removal, want 0", len(p.Links))
	}
}

func TestTombstone_BumpsVersionAndWipes(t *testing.T) {
	_, pk, id := testKey(t, 1)
	p := NewPrivateProfileData(NewPublicProfileData(pk))
	p.Public.SetAttribute("k", json.RawMessage(`1`))
	priorVersion := p.Public.Version

	tomb := Tombstone(id, pk, priorVersion)

	if tomb.Public.Version <= priorVersion {
		t.Errorf("tombstone version %d did not exceed prior %d", tomb.Public.Version, priorVersion)
	}
	if !tomb.IsTombstone() {
		t.Errorf("Tombstone()'s own output should report IsTombstone() == true")
	}
	if len(tomb.Public.Attributes) != 0 || len(tomb.Public.Links) != 0 || len(tomb.Claims) != 0 {
		t.Errorf("tombstone should wipe attributes, links and claims")
	}
}

func TestPrivateProfileData_Claims(t *testing.T) {
	_, pk, _ := testKey(t, 1)
	p := NewPrivateProfileData(NewPublicProfileData(pk))

	claim := Claim{Id: "c1", Subject: keyvault.ProfileId{}, Schema: "s1", Content: json.RawMessage(`{}`)}
	if err := p.AddClaim(claim); err != nil {
		t.Fatal(err)
	}
	if err := p.AddClaim(claim); err != ErrClaimExists {
		t.Errorf("got %v, want ErrClaimExists", err)
	}

	if err := p.AddClaimProof("missing", ClaimProof{}); err != ErrClaimNotFound {
		t.Errorf("got %v, want ErrClaimNotFound", err)
	}
}
