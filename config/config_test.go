package config

import (
	"context"
	"os"
	"testing"

	"github.com/Internet-of-People/mercury-rust-sub000/storage"
)

func TestVault_OpenStorage_Mock(t *testing.T) {
	c := Vault{StorageBucket: "mock"}

	backend, err := c.OpenStorage()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := backend.(*storage.MockStorage); !ok {
		t.Fatalf("got %T, want *storage.MockStorage", backend)
	}
}

func TestVault_OpenStorage_Standalone(t *testing.T) {
	root := t.TempDir()
	c := Vault{StorageBucket: "standalone", StorageRoot: root}

	backend, err := c.OpenStorage()
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := backend.Write(ctx, "vault.json", []byte(`{}`), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(root + "/standalone/vault.json"); err != nil {
		t.Fatalf("filesystem storage did not write under its root: %v", err)
	}
}

func TestVault_OpenStorage_RequiresBucket(t *testing.T) {
	c := Vault{}
	c.StorageBucket = ""
	if _, err := c.OpenStorage(); err == nil {
		t.Error("expected an error for an empty storage bucket")
	}
}

func TestHome_OpenStorage_Mock(t *testing.T) {
	c := Home{StorageBucket: "mock"}

	backend, err := c.OpenStorage()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := backend.(*storage.MockStorage); !ok {
		t.Fatalf("got %T, want *storage.MockStorage", backend)
	}
}
