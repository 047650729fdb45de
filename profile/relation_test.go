package profile

import (
	"testing"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
)

func testSigner(t *testing.T, seedByte byte) (keyvault.PrivateKey, keyvault.ProfileId) {
	t.Helper()
	raw := make([]byte, 32)
	raw[0] = seedByte
	priv, err := keyvault.NewPrivateKey(keyvault.SuiteEd25519, raw)
	if err != nil {
		t.Fatal(err)
	}
	return priv, keyvault.NewProfileId(priv.PublicKey())
}

func TestRelationProof_SymmetricVerification(t *testing.T) {
	aliceKey, aliceId := testSigner(t, 1)
	bobKey, bobId := testSigner(t, 2)

	half, err := NewRelationHalfProof(RelationHostedOnHome, aliceId, bobId, aliceKey.Sign)
	if err != nil {
		t.Fatal(err)
	}
	if !half.Verify(aliceKey.PublicKey()) {
		t.Fatal("half proof failed to verify against its own signer")
	}

	full, err := SignRemainingHalf(half, bobKey.Sign)
	if err != nil {
		t.Fatal(err)
	}

	if !full.Verify(aliceKey.PublicKey(), bobKey.PublicKey()) {
		t.Fatal("full proof did not verify")
	}

	other, err := full.OtherId(aliceId)
	if err != nil || other != bobId {
		t.Errorf("OtherId(alice) = %v, %v; want bob, nil", other, err)
	}
	other, err = full.OtherId(bobId)
	if err != nil || other != aliceId {
		t.Errorf("OtherId(bob) = %v, %v; want alice, nil", other, err)
	}

	_, charlieId := testSigner(t, 3)
	if _, err := full.OtherId(charlieId); err != ErrNotAParticipant {
		t.Errorf("got %v, want ErrNotAParticipant", err)
	}
}

func TestRelationProof_RejectsTamperedSignature(t *testing.T) {
	aliceKey, aliceId := testSigner(t, 1)
	bobKey, bobId := testSigner(t, 2)

	half, err := NewRelationHalfProof(RelationHostedOnHome, aliceId, bobId, aliceKey.Sign)
	if err != nil {
		t.Fatal(err)
	}

	full, err := SignRemainingHalf(half, bobKey.Sign)
	if err != nil {
		t.Fatal(err)
	}

	full.RelationType = "TAMPERED"
	if full.Verify(aliceKey.PublicKey(), bobKey.PublicKey()) {
		t.Errorf("tampered proof should not verify")
	}
}

func TestNewRelationHalfProof_RejectsSelfRelation(t *testing.T) {
	aliceKey, aliceId := testSigner(t, 1)
	_, err := NewRelationHalfProof(RelationHostedOnHome, aliceId, aliceId, aliceKey.Sign)
	if err != ErrSelfRelation {
		t.Errorf("got %v, want ErrSelfRelation", err)
	}
}
