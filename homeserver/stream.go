// Package homeserver hosts profiles: it validates registration and pairing proofs, keeps one
// live session per hosted profile, and routes events and calls to that session's subscriber,
// buffering them while the profile is offline.
package homeserver

import (
	"sync"

	"github.com/Internet-of-People/mercury-rust-sub000/homeprotocol"
)

// DefaultMaxBuffer bounds how many undelivered items a stream keeps for an offline profile
// before it starts dropping the oldest ones.
const DefaultMaxBuffer = 64

// streamState is the per-stream buffer-or-sink state a session keeps for its event stream and
// for each application's call stream: Buffered while nobody has subscribed (or the previous
// subscriber dropped), Attached once a consumer is listening.
type streamState[T any] struct {
	mu        sync.Mutex
	sink      chan homeprotocol.StreamItem[T]
	buffer    []homeprotocol.StreamItem[T]
	maxBuffer int
}

func newStreamState[T any](maxBuffer int) *streamState[T] {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &streamState[T]{maxBuffer: maxBuffer}
}

// push delivers an item, either straight to the attached sink or into the buffer, oldest-drop
// once the buffer is full.
func (s *streamState[T]) push(item homeprotocol.StreamItem[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink != nil {
		select {
		case s.sink <- item:
			return
		default:
			// Sink is full or gone; fall through to close it and start buffering.
			s.detachLocked()
		}
	}

	s.buffer = append(s.buffer, item)
	if len(s.buffer) > s.maxBuffer {
		s.buffer = s.buffer[len(s.buffer)-s.maxBuffer:]
	}
}

// attach transitions to Attached, draining any buffered items to the new sink in order before
// live items start flowing. A previously attached consumer (if any) receives a replaced-stream
// error on its old sink.
func (s *streamState[T]) attach(buf int) <-chan homeprotocol.StreamItem[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink != nil {
		select {
		case s.sink <- homeprotocol.StreamItem[T]{Err: homeprotocol.ErrStreamReplaced}:
		default:
		}
	}

	// newSink must hold at least len(s.buffer) items up front: it is drained into here, under
	// s.mu, before ever being returned to a reader, so an undersized capacity would block this
	// goroutine forever (holding the lock) instead of just the caller's send.
	capacity := buf
	if len(s.buffer) > capacity {
		capacity = len(s.buffer)
	}

	newSink := make(chan homeprotocol.StreamItem[T], capacity)
	for _, item := range s.buffer {
		newSink <- item
	}
	s.buffer = nil
	s.sink = newSink

	return newSink
}

// detach transitions back to Buffered, the way dropping a client-side stream handle does: the
// next attach() picks up wherever this one left off.
func (s *streamState[T]) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

func (s *streamState[T]) detachLocked() {
	if s.sink != nil {
		close(s.sink)
		s.sink = nil
	}
}
