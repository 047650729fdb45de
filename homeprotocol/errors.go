package homeprotocol

import "github.com/pkg/errors"

var (
	// ErrProfileMismatch is returned when a submitted profile's id or public key does not match
	// the caller's authenticated identity.
	ErrProfileMismatch = errors.New("homeprotocol: profile id or key does not match authenticated caller")

	// ErrAlreadyRegistered is returned by register for a profile the home already hosts.
	ErrAlreadyRegistered = errors.New("homeprotocol: profile is already registered with this home")

	// ErrInvalidProof is returned when a half or full relation proof fails signature
	// verification.
	ErrInvalidProof = errors.New("homeprotocol: proof signature does not verify")

	// ErrLoginFailed is returned when login's hosting proof does not verify or does not name
	// this home.
	ErrLoginFailed = errors.New("homeprotocol: hosting proof rejected")

	// ErrPeerNotHostedHere is returned when the target of a pair/call is not a profile hosted
	// on this home.
	ErrPeerNotHostedHere = errors.New("homeprotocol: target profile is not hosted here")

	// ErrCallTimeout is returned when a callee does not answer a pushed call within the bound.
	ErrCallTimeout = errors.New("homeprotocol: callee did not answer in time")

	// ErrSessionClosed reports an operation on a closed or replaced session. Server's methods do
	// not check session state, so none of them returns it.
	ErrSessionClosed = errors.New("homeprotocol: session is closed")

	// ErrStreamReplaced is returned to a stream consumer that lost its slot to a newer
	// subscriber.
	ErrStreamReplaced = errors.New("homeprotocol: stream replaced by a newer subscriber")

	// ErrTransport wraps connection failures or abrupt drops talking to a home.
	ErrTransport = errors.New("homeprotocol: transport error")
)
