// Package homeprotocol defines the request/response vocabulary between a profile's client and
// the home server(s) that host it: claim, register, login, pair_request, pair_response, call,
// plus the long-lived event and call streams a logged-in session exposes.
package homeprotocol

import (
	"encoding/json"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
	"github.com/Internet-of-People/mercury-rust-sub000/profile"
)

// OwnProfile is the full private record a profile's own client and home exchange.
type OwnProfile = profile.PrivateProfileData

// RegisterRequest asks a home to host a profile, supplying the caller's half of the
// HOSTED_ON_HOME relation proof. Invite is accepted but not validated by the core (see
// Non-goals): it is opaque until an invitation issuer is specified.
type RegisterRequest struct {
	Profile   OwnProfile              `json:"profile"`
	HalfProof profile.RelationHalfProof `json:"half_proof"`
	Invite    *string                 `json:"invite,omitempty"`
}

// LoginRequest presents a previously completed hosting proof to open a session.
type LoginRequest struct {
	HostingProof profile.RelationProof `json:"hosting_proof"`
}

// PairRequestMessage is forwarded by a home to the peer named in the half-proof.
type PairRequestMessage struct {
	HalfProof profile.RelationHalfProof `json:"half_proof"`
}

// PairResponseMessage is forwarded back to the profile that originated the pairing.
type PairResponseMessage struct {
	FullProof profile.RelationProof `json:"full_proof"`
}

// CallRequest is what a caller sends to place an application-level call to a paired peer.
type CallRequest struct {
	AppId         string                `json:"app_id"`
	RelationProof profile.RelationProof `json:"relation_proof"`
	InitPayload   json.RawMessage       `json:"init_payload"`
	ToCaller      *string               `json:"to_caller,omitempty"`
}

// CallResult is the caller's view of the answer: the sink identifier the callee attached, if
// any answered before the timeout.
type CallResult struct {
	ToCallee *string `json:"to_callee,omitempty"`
}

// ProfileEventKind tags which variant a ProfileEvent carries.
type ProfileEventKind string

const (
	EventPairingRequest  ProfileEventKind = "pairing_request"
	EventPairingResponse ProfileEventKind = "pairing_response"
)

// ProfileEvent is one item from a session's event stream.
type ProfileEvent struct {
	Kind          ProfileEventKind       `json:"kind"`
	HalfProof     *profile.RelationHalfProof `json:"half_proof,omitempty"`
	FullProof     *profile.RelationProof     `json:"full_proof,omitempty"`
}

// IncomingCall is one item from a checked-in application's call stream.
type IncomingCall struct {
	AppId          string             `json:"app_id"`
	From           keyvault.ProfileId `json:"from"`
	RequestDetails CallRequest        `json:"request_details"`
}
