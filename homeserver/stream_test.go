package homeserver

import (
	"testing"
	"time"

	"github.com/Internet-of-People/mercury-rust-sub000/homeprotocol"
)

func TestStreamState_PushBuffersUntilAttached(t *testing.T) {
	s := newStreamState[int](4)

	for i := 0; i < 3; i++ {
		s.push(homeprotocol.StreamItem[int]{Value: i})
	}

	sink := s.attach(1)
	for i := 0; i < 3; i++ {
		select {
		case item := <-sink:
			if item.Value != i {
				t.Errorf("got %d, want %d", item.Value, i)
			}
		case <-time.After(time.Second):
			t.Fatalf("attach did not deliver buffered item %d", i)
		}
	}
}

// attach must never block while holding s.mu: before the fix, draining more buffered items than
// the requested sink capacity into a plain `make(chan T, buf)` would hang the goroutine forever.
func TestStreamState_AttachDrainsBufferLargerThanRequestedCapacity(t *testing.T) {
	s := newStreamState[int](10)

	for i := 0; i < 8; i++ {
		s.push(homeprotocol.StreamItem[int]{Value: i})
	}

	done := make(chan (<-chan homeprotocol.StreamItem[int]), 1)
	go func() {
		done <- s.attach(1)
	}()

	select {
	case sink := <-done:
		for i := 0; i < 8; i++ {
			select {
			case item := <-sink:
				if item.Value != i {
					t.Errorf("got %d, want %d", item.Value, i)
				}
			case <-time.After(time.Second):
				t.Fatalf("missing buffered item %d after attach", i)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("attach deadlocked draining an oversized buffer into an undersized sink")
	}
}

func TestStreamState_PushTrimsToMaxBuffer(t *testing.T) {
	s := newStreamState[int](2)

	for i := 0; i < 5; i++ {
		s.push(homeprotocol.StreamItem[int]{Value: i})
	}

	sink := s.attach(2)
	for _, want := range []int{3, 4} {
		select {
		case item := <-sink:
			if item.Value != want {
				t.Errorf("got %d, want %d", item.Value, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing trimmed buffered item %d", want)
		}
	}
}

func TestStreamState_AttachReplacesPreviousSink(t *testing.T) {
	s := newStreamState[int](4)
	oldSink := s.attach(1)

	newSink := s.attach(1)
	if newSink == oldSink {
		t.Fatal("attach did not replace the previous sink")
	}

	select {
	case item := <-oldSink:
		if item.Err != homeprotocol.ErrStreamReplaced {
			t.Errorf("got err %v, want ErrStreamReplaced", item.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("previous sink did not receive a replaced-stream error")
	}
}
