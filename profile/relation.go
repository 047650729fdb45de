package profile

import (
	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
)

// RelationHostedOnHome is the well-known relation type used for profile/home hosting proofs.
const RelationHostedOnHome = "HOSTED_ON_HOME"

var (
	ErrInvalidProof     = errors.New("profile: relation proof signature does not verify")
	ErrSelfRelation     = errors.New("profile: signer and peer must differ")
	ErrNotAParticipant  = errors.New("profile: id is neither signer nor peer of this proof")
)

// RelationHalfProof is one party's assertion "I, SignerId, want a relation of RelationType with
// PeerId", self-signed by SignerId.
type RelationHalfProof struct {
	RelationType   string           `json:"relation_type"`
	SignerId       keyvault.ProfileId `json:"signer_id"`
	PeerId         keyvault.ProfileId `json:"peer_id"`
	SignerSignature keyvault.Signature `json:"signer_signature"`
}

// NewRelationHalfProof builds and signs a half-proof, asserting relationType between signerId
// (the caller) and peerId.
func NewRelationHalfProof(relationType string, signerId, peerId keyvault.ProfileId,
	sign func([]byte) (keyvault.Signature, error)) (RelationHalfProof, error) {

	if signerId == peerId {
		return RelationHalfProof{}, ErrSelfRelation
	}

	sig, err := sign(signableHalf(relationType, signerId, peerId))
	if err != nil {
		return RelationHalfProof{}, errors.Wrap(err, "profile: sign half proof")
	}

	return RelationHalfProof{
		RelationType:    relationType,
		SignerId:        signerId,
		PeerId:          peerId,
		SignerSignature: sig,
	}, nil
}

// Verify checks the half's own signature against signerId's public key.
func (h RelationHalfProof) Verify(signerPublicKey keyvault.PublicKey) bool {
	if !h.SignerId.Matches(signerPublicKey) {
		return false
	}
	return signerPublicKey.Verify(signableHalf(h.RelationType, h.SignerId, h.PeerId), h.SignerSignature)
}

// RelationProof completes a half-proof with the peer's own signature over the same relation
// type with signer and peer ids swapped, making the relation mutually attested.
type RelationProof struct {
	RelationHalfProof
	PeerSignature keyvault.Signature `json:"peer_signature"`
}

// SignRemainingHalf completes half with the peer's signature, producing a full RelationProof.
// sign must sign on behalf of half.PeerId.
func SignRemainingHalf(half RelationHalfProof, sign func([]byte) (keyvault.Signature, error)) (RelationProof, error) {
	sig, err := sign(signableHalf(half.RelationType, half.PeerId, half.SignerId))
	if err != nil {
		return RelationProof{}, errors.Wrap(err, "profile: sign peer half")
	}

	return RelationProof{
		RelationHalfProof: half,
		PeerSignature:     sig,
	}, nil
}

// OtherId returns the id on "the other side" of selfId, failing if selfId participates in
// neither slot. It does not assume the proof was built with self as signer.
func (p RelationProof) OtherId(selfId keyvault.ProfileId) (keyvault.ProfileId, error) {
	switch selfId {
	case p.SignerId:
		return p.PeerId, nil
	case p.PeerId:
		return p.SignerId, nil
	default:
		return keyvault.ProfileId{}, ErrNotAParticipant
	}
}

// Verify checks both component signatures and that the two ids differ.
func (p RelationProof) Verify(signerKey, peerKey keyvault.PublicKey) bool {
	if p.SignerId == p.PeerId {
		return false
	}
	if !p.RelationHalfProof.Verify(signerKey) {
		return false
	}
	return peerKey.Verify(signableHalf(p.RelationType, p.PeerId, p.SignerId), p.PeerSignature)
}

func signableHalf(relationType string, signerId, peerId keyvault.ProfileId) []byte {
	return []byte(relationType + "|" + signerId.String() + "|" + peerId.String())
}
