package homeserver

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/homeprotocol"
	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
	"github.com/Internet-of-People/mercury-rust-sub000/logger"
	"github.com/Internet-of-People/mercury-rust-sub000/profile"
	"github.com/Internet-of-People/mercury-rust-sub000/repo"
)

// DefaultAnswerTimeout bounds how long Call blocks waiting for the callee to answer a pushed
// IncomingCall before giving up.
const DefaultAnswerTimeout = 30 * time.Second

// Server is a home's core logic: validating registration and pairing proofs, keeping one live
// session per logged-in hosted profile, and routing events and calls to it. It has no transport
// of its own -- a websocket handler dispatching homeprotocol.Envelope ops onto these methods is
// a thin shell left to the deployment, the same way the protocol client's wire framing is kept
// separate from the session logic it drives.
type Server struct {
	homeId  keyvault.ProfileId
	homeKey keyvault.PrivateKey

	// hostedDB is the authoritative record of every profile this home hosts.
	hostedDB repo.LocalRepository
	// publicRepo mirrors the public half of hosted profiles out to the wider network, the
	// local stand-in for the DHT-backed remote repository.
	publicRepo repo.LocalRepository

	answerTimeout time.Duration

	mu       sync.Mutex
	sessions map[keyvault.ProfileId]*session
}

// New creates a home server identified by homeKey, authoritative over hostedDB and publishing
// to publicRepo.
func New(homeKey keyvault.PrivateKey, hostedDB, publicRepo repo.LocalRepository) *Server {
	return &Server{
		homeId:        keyvault.NewProfileId(homeKey.PublicKey()),
		homeKey:       homeKey,
		hostedDB:      hostedDB,
		publicRepo:    publicRepo,
		answerTimeout: DefaultAnswerTimeout,
		sessions:      make(map[keyvault.ProfileId]*session),
	}
}

func (s *Server) signHome(data []byte) (keyvault.Signature, error) {
	return s.homeKey.Sign(data)
}

// lookupKey resolves a hosted or merely published profile's current public key, preferring the
// authoritative hosted record.
func (s *Server) lookupKey(ctx context.Context, id keyvault.ProfileId) (keyvault.PublicKey, error) {
	if id == s.homeId {
		return s.homeKey.PublicKey(), nil
	}

	if p, err := s.hostedDB.Get(ctx, id); err == nil {
		return p.Public.PublicKey, nil
	}

	p, err := s.publicRepo.Get(ctx, id)
	if err != nil {
		return keyvault.PublicKey{}, errors.Wrap(err, "homeserver: look up profile key")
	}
	return p.Public.PublicKey, nil
}

func (s *Server) sessionFor(id keyvault.ProfileId) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = newSession(id)
		s.sessions[id] = sess
	}
	return sess
}

// CloseSession ends and removes a profile's live session, the explicit substitute for relying on
// a dropped connection to be garbage collected: the caller's transport layer calls this once the
// underlying connection is gone.
func (s *Server) CloseSession(id keyvault.ProfileId) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.close()
	}
}

// Claim returns the stored profile for callerId, the identity the caller authenticated as.
func (s *Server) Claim(ctx context.Context, callerId, profileId keyvault.ProfileId) (profile.PrivateProfileData, error) {
	if callerId != profileId {
		return profile.PrivateProfileData{}, homeprotocol.ErrProfileMismatch
	}
	p, err := s.hostedDB.Get(ctx, profileId)
	if err != nil {
		return profile.PrivateProfileData{}, errors.Wrap(err, "homeserver: claim")
	}
	if p.IsTombstone() {
		return profile.PrivateProfileData{}, errors.Wrap(repo.ErrNotFound, "homeserver: claim")
	}
	return p, nil
}

// Register validates the caller's half of a HOSTED_ON_HOME proof, completes it with the home's
// own signature, and starts hosting the profile.
func (s *Server) Register(ctx context.Context, callerId keyvault.ProfileId, callerKey keyvault.PublicKey,
	req homeprotocol.RegisterRequest) (profile.PrivateProfileData, error) {

	profileId := req.Profile.Public.Id
	if profileId != callerId || !profileId.Matches(callerKey) {
		return profile.PrivateProfileData{}, homeprotocol.ErrProfileMismatch
	}

	half := req.HalfProof
	if half.SignerId != profileId || half.PeerId != s.homeId || half.RelationType != profile.RelationHostedOnHome {
		return profile.PrivateProfileData{}, homeprotocol.ErrInvalidProof
	}
	if !half.Verify(callerKey) {
		return profile.PrivateProfileData{}, homeprotocol.ErrInvalidProof
	}

	if _, err := s.hostedDB.Get(ctx, profileId); err == nil {
		return profile.PrivateProfileData{}, homeprotocol.ErrAlreadyRegistered
	}

	full, err := profile.SignRemainingHalf(half, s.signHome)
	if err != nil {
		return profile.PrivateProfileData{}, errors.Wrap(err, "homeserver: complete hosting proof")
	}

	registered := req.Profile
	if err := registered.Public.AddHostedOn(full); err != nil {
		return profile.PrivateProfileData{}, errors.Wrap(err, "homeserver: record hosting proof")
	}

	if err := s.hostedDB.Restore(ctx, registered); err != nil {
		return profile.PrivateProfileData{}, errors.Wrap(err, "homeserver: store hosted profile")
	}
	if err := s.publicRepo.Restore(ctx, registered); err != nil {
		return profile.PrivateProfileData{}, errors.Wrap(err, "homeserver: publish hosted profile")
	}

	logger.Info(ctx, "Registered profile %s with home %s", profileId, s.homeId)
	return registered, nil
}

// Login validates a previously completed hosting proof and opens (or reopens) a session.
func (s *Server) Login(ctx context.Context, hostingProof profile.RelationProof) (keyvault.ProfileId, error) {
	if hostingProof.PeerId != s.homeId {
		return keyvault.ProfileId{}, homeprotocol.ErrLoginFailed
	}

	signerKey, err := s.lookupKey(ctx, hostingProof.SignerId)
	if err != nil {
		return keyvault.ProfileId{}, homeprotocol.ErrLoginFailed
	}

	if !hostingProof.Verify(signerKey, s.homeKey.PublicKey()) {
		return keyvault.ProfileId{}, homeprotocol.ErrLoginFailed
	}

	sess := s.sessionFor(hostingProof.SignerId)
	sess.setActive()

	logger.Info(ctx, "Profile %s logged in to home %s", hostingProof.SignerId, s.homeId)
	return hostingProof.SignerId, nil
}

// PairRequest forwards a pairing half-proof to the named peer's event stream, failing if that
// peer is not hosted here.
func (s *Server) PairRequest(ctx context.Context, requesterId keyvault.ProfileId,
	half profile.RelationHalfProof) error {

	if half.SignerId != requesterId {
		return homeprotocol.ErrProfileMismatch
	}

	requesterKey, err := s.lookupKey(ctx, requesterId)
	if err != nil || !half.Verify(requesterKey) {
		return homeprotocol.ErrInvalidProof
	}

	target := half.PeerId
	if _, err := s.hostedDB.Get(ctx, target); err != nil {
		return homeprotocol.ErrPeerNotHostedHere
	}

	s.sessionFor(target).pushEvent(homeprotocol.ProfileEvent{
		Kind:      homeprotocol.EventPairingRequest,
		HalfProof: &half,
	})
	return nil
}

// PairResponse forwards the completed proof back to whichever profile originated the pairing.
func (s *Server) PairResponse(ctx context.Context, responderId keyvault.ProfileId,
	full profile.RelationProof) error {

	if full.PeerId != responderId {
		return homeprotocol.ErrProfileMismatch
	}

	signerKey, err := s.lookupKey(ctx, full.SignerId)
	if err != nil {
		return homeprotocol.ErrInvalidProof
	}
	peerKey, err := s.lookupKey(ctx, full.PeerId)
	if err != nil {
		return homeprotocol.ErrInvalidProof
	}
	if !full.Verify(signerKey, peerKey) {
		return homeprotocol.ErrInvalidProof
	}

	target := full.SignerId
	if _, err := s.hostedDB.Get(ctx, target); err != nil {
		return homeprotocol.ErrPeerNotHostedHere
	}

	s.sessionFor(target).pushEvent(homeprotocol.ProfileEvent{
		Kind:      homeprotocol.EventPairingResponse,
		FullProof: &full,
	})
	return nil
}

// CheckinApp attaches a consumer to appId's call stream for the calling profile's session,
// draining any calls buffered while it was offline.
func (s *Server) CheckinApp(callerId keyvault.ProfileId, appId string, buffer int) <-chan homeprotocol.StreamItem[homeprotocol.IncomingCall] {
	return s.sessionFor(callerId).callStream(appId).attach(buffer)
}

// Events attaches a consumer to the calling profile's event stream, draining anything buffered
// while it was offline.
func (s *Server) Events(callerId keyvault.ProfileId, buffer int) <-chan homeprotocol.StreamItem[homeprotocol.ProfileEvent] {
	return s.sessionFor(callerId).events.attach(buffer)
}

// Call places an application call from callerId to whichever side of req.RelationProof is not
// callerId, blocking until the callee answers or answerTimeout elapses.
func (s *Server) Call(ctx context.Context, callerId keyvault.ProfileId, appId string,
	req homeprotocol.CallRequest) (homeprotocol.CallResult, error) {

	callee, err := req.RelationProof.OtherId(callerId)
	if err != nil {
		return homeprotocol.CallResult{}, homeprotocol.ErrProfileMismatch
	}

	signerKey, err := s.lookupKey(ctx, req.RelationProof.SignerId)
	if err != nil {
		return homeprotocol.CallResult{}, homeprotocol.ErrInvalidProof
	}
	peerKey, err := s.lookupKey(ctx, req.RelationProof.PeerId)
	if err != nil {
		return homeprotocol.CallResult{}, homeprotocol.ErrInvalidProof
	}
	if !req.RelationProof.Verify(signerKey, peerKey) {
		return homeprotocol.CallResult{}, homeprotocol.ErrInvalidProof
	}

	if _, err := s.hostedDB.Get(ctx, callee); err != nil {
		return homeprotocol.CallResult{}, homeprotocol.ErrPeerNotHostedHere
	}

	calleeSession := s.sessionFor(callee)
	answerCh := calleeSession.awaitAnswer(appId)

	calleeSession.callStream(appId).push(homeprotocol.StreamItem[homeprotocol.IncomingCall]{
		Value: homeprotocol.IncomingCall{
			AppId:          appId,
			From:           callerId,
			RequestDetails: req,
		},
	})

	timer := time.NewTimer(s.answerTimeout)
	defer timer.Stop()

	select {
	case toCallee := <-answerCh:
		return homeprotocol.CallResult{ToCallee: toCallee}, nil
	case <-timer.C:
		calleeSession.abandonAnswer(appId, answerCh)
		return homeprotocol.CallResult{}, homeprotocol.ErrCallTimeout
	case <-ctx.Done():
		calleeSession.abandonAnswer(appId, answerCh)
		return homeprotocol.CallResult{}, ctx.Err()
	}
}

// Answer delivers a checked-in app's reply to whichever call is currently pending for appId on
// callerId's session. A reply with nothing pending (already timed out, or never called) is
// silently dropped.
func (s *Server) Answer(callerId keyvault.ProfileId, appId string, toCaller *string) {
	s.sessionFor(callerId).deliverAnswer(appId, toCaller)
}

// Update overwrites the caller's hosted profile with a newer version, the home-side counterpart
// of vaultservice's PublishProfile push.
func (s *Server) Update(ctx context.Context, callerId keyvault.ProfileId, updated profile.PrivateProfileData) error {
	if updated.Public.Id != callerId {
		return homeprotocol.ErrProfileMismatch
	}
	if err := s.hostedDB.Restore(ctx, updated); err != nil {
		return errors.Wrap(err, "homeserver: update hosted profile")
	}
	return s.publicRepo.Restore(ctx, updated)
}

// Unregister stops hosting callerId's profile, tombstoning it locally and publicly and dropping
// its live session if any.
func (s *Server) Unregister(ctx context.Context, callerId keyvault.ProfileId) error {
	if err := s.hostedDB.Clear(ctx, callerId); err != nil {
		return errors.Wrap(err, "homeserver: unregister")
	}
	if err := s.publicRepo.Clear(ctx, callerId); err != nil {
		return errors.Wrap(err, "homeserver: unpublish")
	}
	s.CloseSession(callerId)
	return nil
}
