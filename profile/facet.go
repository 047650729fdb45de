// Package profile defines the immutable value types that make up a user's identity: public and
// private profile data, facets, claims, and the relation proofs that bind two profiles (or a
// profile and a home) together.
package profile

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
)

// FacetKind tags which shape of facet-specific data a PublicProfileData carries.
type FacetKind int

const (
	FacetUnknown FacetKind = iota
	FacetPersona
	FacetHome
	FacetApplication
)

func (k FacetKind) String() string {
	switch k {
	case FacetPersona:
		return "persona"
	case FacetHome:
		return "home"
	case FacetApplication:
		return "application"
	default:
		return "unknown"
	}
}

// ErrWrongFacet is returned by operations that require a specific facet kind (e.g. adding a
// hosting proof requires Persona) when the profile carries a different one.
var ErrWrongFacet = errors.New("profile: operation requires a different facet")

// Facet is the tagged union of facet-specific payloads. Exactly one of the typed fields is
// meaningful, selected by Kind.
type Facet struct {
	Kind    FacetKind        `json:"kind"`
	Persona *PersonaFacet    `json:"persona,omitempty"`
	Home    *HomeFacet       `json:"home,omitempty"`
}

// PersonaFacet is carried by ordinary user identities: the list of proofs that this profile is
// hosted on a given home.
type PersonaFacet struct {
	Homes []RelationProof `json:"homes"`
}

// HomeFacet is carried by home-server identities: their reachable network addresses.
type HomeFacet struct {
	Addresses []string `json:"addresses"`
}

func NewPersonaFacet() Facet {
	return Facet{Kind: FacetPersona, Persona: &PersonaFacet{}}
}

func NewHomeFacet(addresses []string) Facet {
	return Facet{Kind: FacetHome, Home: &HomeFacet{Addresses: addresses}}
}

// AddHostedOn appends proof to the persona facet's homes list. Fails if this is not a persona
// facet.
func (f *Facet) AddHostedOn(proof RelationProof) error {
	if f.Kind != FacetPersona || f.Persona == nil {
		return ErrWrongFacet
	}
	f.Persona.Homes = append(f.Persona.Homes, proof)
	return nil
}

// RemoveHostedOn drops any hosting proof naming homeId as the peer.
func (f *Facet) RemoveHostedOn(homeId keyvault.ProfileId) error {
	if f.Kind != FacetPersona || f.Persona == nil {
		return ErrWrongFacet
	}

	kept := f.Persona.Homes[:0]
	for _, proof := range f.Persona.Homes {
		if proof.PeerId != homeId {
			kept = append(kept, proof)
		}
	}
	f.Persona.Homes = kept
	return nil
}

var _ json.Marshaler = Facet{}

func (f Facet) MarshalJSON() ([]byte, error) {
	type alias Facet
	return json.Marshal(alias(f))
}
