package profile

import (
	"encoding/json"
	"testing"
	"time"
)

func TestClaimProof_VerifyRoundTrip(t *testing.T) {
	signerKey, signerId := testSigner(t, 9)

	part := SignableClaimPart{
		Subject: signerId,
		Schema:  "over18",
		Content: json.RawMessage(`{"verified":true}`),
	}

	bytes, err := part.CanonicalBytes()
	if err != nil {
		t.Fatal(err)
	}

	sig, err := signerKey.Sign(bytes)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	proof := ClaimProof{
		Signer:     signerId,
		Signature:  sig,
		IssuedAt:   now,
		ValidUntil: now.Add(DefaultClaimValidity),
	}

	if !proof.Verify(part, signerKey.PublicKey()) {
		t.Fatal("claim proof failed to verify")
	}

	tampered := part
	tampered.Content = json.RawMessage(`{"verified":false}`)
	if proof.Verify(tampered, signerKey.PublicKey()) {
		t.Errorf("proof verified against tampered content")
	}
}

func TestClaimProof_RejectsInvertedValidity(t *testing.T) {
	signerKey, signerId := testSigner(t, 9)
	part := SignableClaimPart{Subject: signerId, Schema: "s", Content: json.RawMessage(`{}`)}
	bytes, _ := part.CanonicalBytes()
	sig, err := signerKey.Sign(bytes)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	proof := ClaimProof{Signer: signerId, Signature: sig, IssuedAt: now, ValidUntil: now.Add(-time.Hour)}

	if proof.Verify(part, signerKey.PublicKey()) {
		t.Errorf("proof with issued_at after valid_until should not verify")
	}
}

func TestClaim_WithProofAppends(t *testing.T) {
	_, signerId := testSigner(t, 1)
	claim := Claim{Id: "c1", Subject: signerId, Schema: "s", Content: json.RawMessage(`{}`)}

	updated := claim.WithProof(ClaimProof{Signer: signerId})
	if len(claim.Proofs) != 0 {
		t.Errorf("WithProof should not mutate the receiver")
	}
	if len(updated.Proofs) != 1 {
		t.Errorf("got %d proofs, want 1", len(updated.Proofs))
	}
}
