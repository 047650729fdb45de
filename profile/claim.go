package profile

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
)

// DefaultClaimValidity is how long a freshly signed claim proof is valid for, absent an explicit
// override.
const DefaultClaimValidity = 366 * 24 * time.Hour

var ErrClaimExists = errors.New("profile: claim with this id already present")

// SignableClaimPart is exactly what a witness signs when attesting to a claim: the subject, the
// schema it is shaped by, and the opaque content -- explicitly not the claim id or any existing
// proofs, so multiple witnesses can attest the same assertion independently.
type SignableClaimPart struct {
	Subject keyvault.ProfileId `json:"subject"`
	Schema  string             `json:"schema"`
	Content json.RawMessage    `json:"content"`
}

// CanonicalBytes renders the part the way every signer and verifier must agree on: compact JSON
// with the struct's fields in declaration order (subject, schema, content). Content is embedded
// with its whitespace removed; its own keys keep the order the caller wrote them in.
func (s SignableClaimPart) CanonicalBytes() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "profile: marshal signable claim part")
	}
	return b, nil
}

// ClaimProof is one witness's attestation of a SignableClaimPart.
type ClaimProof struct {
	Signer     keyvault.ProfileId `json:"signer"`
	Signature  keyvault.Signature `json:"signature"`
	IssuedAt   time.Time          `json:"issued_at"`
	ValidUntil time.Time          `json:"valid_until"`
}

// Verify checks the proof's signature and that issued_at precedes valid_until.
func (p ClaimProof) Verify(part SignableClaimPart, signerKey keyvault.PublicKey) bool {
	if !p.Signer.Matches(signerKey) {
		return false
	}
	if p.IssuedAt.After(p.ValidUntil) {
		return false
	}

	bytes, err := part.CanonicalBytes()
	if err != nil {
		return false
	}
	return signerKey.Verify(bytes, p.Signature)
}

// Claim is an assertion about a subject, together with whatever proofs have been collected for
// it so far.
type Claim struct {
	Id      string             `json:"id"`
	Subject keyvault.ProfileId `json:"subject"`
	Schema  string             `json:"schema"`
	Content json.RawMessage    `json:"content"`
	Proofs  []ClaimProof       `json:"proofs,omitempty"`
}

// SignablePart extracts the part of the claim that witnesses sign.
func (c Claim) SignablePart() SignableClaimPart {
	return SignableClaimPart{Subject: c.Subject, Schema: c.Schema, Content: c.Content}
}

// WithProof returns a copy of the claim with proof appended.
func (c Claim) WithProof(proof ClaimProof) Claim {
	c.Proofs = append(append([]ClaimProof(nil), c.Proofs...), proof)
	return c
}
