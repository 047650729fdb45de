package homeserver

import (
	"sync"

	"github.com/Internet-of-People/mercury-rust-sub000/homeprotocol"
	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
)

// session is the home's live handle for one hosted profile: its event stream, one call stream
// per checked-in application, and the in-flight answer channel for whichever call is currently
// pushed to each application (at most one outstanding call per app at a time, matching the
// wire protocol's appId-keyed Answer call).
type session struct {
	profileId keyvault.ProfileId

	mu    sync.Mutex
	state homeprotocol.SessionState

	events *streamState[homeprotocol.ProfileEvent]

	calls    map[string]*streamState[homeprotocol.IncomingCall]
	pendings map[string]chan *string
}

func newSession(id keyvault.ProfileId) *session {
	return &session{
		profileId: id,
		state:     homeprotocol.SessionFresh,
		events:    newStreamState[homeprotocol.ProfileEvent](DefaultMaxBuffer),
		calls:     make(map[string]*streamState[homeprotocol.IncomingCall]),
		pendings:  make(map[string]chan *string),
	}
}

func (s *session) setActive() {
	s.mu.Lock()
	s.state = homeprotocol.SessionActive
	s.mu.Unlock()
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = homeprotocol.SessionClosed
	s.events.detach()
	for _, c := range s.calls {
		c.detach()
	}
	for appId, ch := range s.pendings {
		close(ch)
		delete(s.pendings, appId)
	}
}

func (s *session) pushEvent(event homeprotocol.ProfileEvent) {
	s.events.push(homeprotocol.StreamItem[homeprotocol.ProfileEvent]{Value: event})
}

func (s *session) callStream(appId string) *streamState[homeprotocol.IncomingCall] {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[appId]
	if !ok {
		c = newStreamState[homeprotocol.IncomingCall](DefaultMaxBuffer)
		s.calls[appId] = c
	}
	return c
}

// awaitAnswer registers a fresh pending slot for appId, overwriting (and so abandoning) any
// still-unanswered previous call to the same app, and returns the channel Call() should wait on.
func (s *session) awaitAnswer(appId string) chan *string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *string, 1)
	s.pendings[appId] = ch
	return ch
}

// abandonAnswer drops the pending slot once its wait has timed out, so a late Answer silently
// finds nothing to deliver to.
func (s *session) abandonAnswer(appId string, ch chan *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendings[appId] == ch {
		delete(s.pendings, appId)
	}
}

// deliverAnswer hands toCaller to the pending Call() wait for appId, if one is still waiting.
// A late or unsolicited answer is silently dropped.
func (s *session) deliverAnswer(appId string, toCaller *string) {
	s.mu.Lock()
	ch, ok := s.pendings[appId]
	if ok {
		delete(s.pendings, appId)
	}
	s.mu.Unlock()

	if ok {
		ch <- toCaller
	}
}
