package vaultservice

import (
	"context"
	"testing"
	"time"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
	"github.com/Internet-of-People/mercury-rust-sub000/storage"
)

func TestService_StartHousekeeping_PersistsPeriodically(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	if err := s.RestoreVault(ctx, testMnemonic, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateProfile(ctx, keyvault.SuiteEd25519, ""); err != nil {
		t.Fatal(err)
	}

	backend, ok := s.vaultStore.(*storage.MockStorage)
	if !ok {
		t.Fatal("expected the mock storage backend")
	}
	before := backend.GetWriteCount()

	thread := s.StartHousekeeping(ctx, 10*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for backend.GetWriteCount() == before {
		select {
		case <-deadline:
			t.Fatal("housekeeping never persisted within the deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()

	complete := make(chan struct{})
	go func() {
		for !thread.IsComplete() {
			time.Sleep(5 * time.Millisecond)
		}
		close(complete)
	}()
	select {
	case <-complete:
	case <-time.After(2 * time.Second):
		t.Fatal("housekeeping thread did not stop after context cancellation")
	}
}
