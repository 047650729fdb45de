package profile

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
)

// Version is a nonnegative, monotone-per-profile counter.
type Version uint64

// AttributeValue is an opaque, application-defined value. It travels as raw JSON so the core
// never has to understand application-specific attribute schemas.
type AttributeValue = json.RawMessage

// Link is an outgoing follow edge to another profile; it carries no data beyond the target id.
type Link struct {
	PeerProfile keyvault.ProfileId `json:"peer_profile"`
}

// PublicProfileData is the distributable half of a profile: everything safe to publish to the
// world through the remote repository.
type PublicProfileData struct {
	Id         keyvault.ProfileId        `json:"id"`
	PublicKey  keyvault.PublicKey        `json:"public_key"`
	Version    Version                   `json:"version"`
	Facet      Facet                     `json:"facet"`
	Attributes map[string]AttributeValue `json:"attributes,omitempty"`
	Links      []Link                    `json:"links,omitempty"`
}

// NewPublicProfileData constructs the public half of a brand new profile: version 0, an empty
// persona facet, no attributes or links.
func NewPublicProfileData(pk keyvault.PublicKey) PublicProfileData {
	return PublicProfileData{
		Id:        keyvault.NewProfileId(pk),
		PublicKey: pk,
		Version:   0,
		Facet:     NewPersonaFacet(),
	}
}

// CheckInvariant verifies the id-matches-key invariant that must hold at all times.
func (p PublicProfileData) CheckInvariant() error {
	if !p.Id.Matches(p.PublicKey) {
		return errors.New("profile: id does not match hash of public key")
	}
	return nil
}

func (p *PublicProfileData) IncreaseVersion() {
	p.Version++
}

func (p *PublicProfileData) SetAttribute(key string, value AttributeValue) {
	if p.Attributes == nil {
		p.Attributes = make(map[string]AttributeValue)
	}
	p.Attributes[key] = value
	p.IncreaseVersion()
}

func (p *PublicProfileData) ClearAttribute(key string) error {
	if p.Attributes == nil {
		return ErrAttributeNotFound
	}
	if _, ok := p.Attributes[key]; !ok {
		return ErrAttributeNotFound
	}
	delete(p.Attributes, key)
	p.IncreaseVersion()
	return nil
}

func (p PublicProfileData) GetAttribute(key string) (AttributeValue, error) {
	v, ok := p.Attributes[key]
	if !ok {
		return nil, ErrAttributeNotFound
	}
	return v, nil
}

func (p *PublicProfileData) CreateLink(peer keyvault.ProfileId) {
	for _, l := range p.Links {
		if l.PeerProfile == peer {
			return
		}
	}
	p.Links = append(p.Links, Link{PeerProfile: peer})
	p.IncreaseVersion()
}

func (p *PublicProfileData) RemoveLink(peer keyvault.ProfileId) {
	kept := p.Links[:0]
	for _, l := range p.Links {
		if l.PeerProfile != peer {
			kept = append(kept, l)
		}
	}
	if len(kept) != len(p.Links) {
		p.IncreaseVersion()
	}
	p.Links = kept
}

// AddHostedOn requires a Persona facet; it records proof and bumps the version.
func (p *PublicProfileData) AddHostedOn(proof RelationProof) error {
	if err := p.Facet.AddHostedOn(proof); err != nil {
		return err
	}
	p.IncreaseVersion()
	return nil
}

var ErrAttributeNotFound = errors.New("profile: attribute not set")

// PrivateProfileData is the full record held locally: the public half, plus the user's private
// payload and their collected claims. It is never published.
type PrivateProfileData struct {
	Public      PublicProfileData `json:"public"`
	PrivateData json.RawMessage   `json:"private_data,omitempty"`
	Claims      []Claim           `json:"claims,omitempty"`
}

// NewPrivateProfileData wraps a freshly created public profile with empty private data.
func NewPrivateProfileData(pub PublicProfileData) PrivateProfileData {
	return PrivateProfileData{Public: pub}
}

// IsTombstone reports whether this entry was produced by Tombstone: a cleared marker kept only
// to preserve version monotonicity.
func (p PrivateProfileData) IsTombstone() bool {
	return len(p.Public.Attributes) == 0 &&
		len(p.Public.Links) == 0 &&
		len(p.Claims) == 0 &&
		p.Public.Facet.Kind == FacetUnknown
}

// Tombstone produces the cleared replacement for a deleted profile: every facet, attribute,
// link, and claim is wiped, and the version is bumped past whatever it was, so a later set()
// against the old (higher) version is rejected as a regression while a tombstone itself is
// always an acceptable target to overwrite.
func Tombstone(id keyvault.ProfileId, pk keyvault.PublicKey, priorVersion Version) PrivateProfileData {
	return PrivateProfileData{
		Public: PublicProfileData{
			Id:        id,
			PublicKey: pk,
			Version:   priorVersion + 1,
			Facet:     Facet{Kind: FacetUnknown},
		},
	}
}

func (p *PrivateProfileData) AddClaim(claim Claim) error {
	for _, existing := range p.Claims {
		if existing.Id == claim.Id {
			return ErrClaimExists
		}
	}
	p.Claims = append(p.Claims, claim)
	return nil
}

// AddClaimProof appends proof to the claim identified by claimId, after the caller has verified
// it against the claim's signable part.
func (p *PrivateProfileData) AddClaimProof(claimId string, proof ClaimProof) error {
	for i := range p.Claims {
		if p.Claims[i].Id == claimId {
			p.Claims[i] = p.Claims[i].WithProof(proof)
			return nil
		}
	}
	return ErrClaimNotFound
}

var ErrClaimNotFound = errors.New("profile: claim not found")
