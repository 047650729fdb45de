// Package config loads the process-level settings a node's bootstrap (the CLI/HTTP shell, out
// of scope for this core) reads before constructing a vaultservice.Service or homeserver.Server.
package config

import (
	"github.com/kelseyhightower/envconfig"

	"github.com/Internet-of-People/mercury-rust-sub000/storage"
)

// Vault holds the settings needed to open or create a local vault and its three profile
// repositories.
type Vault struct {
	StorageBucket  string `envconfig:"STORAGE_BUCKET" default:"standalone"`
	StorageRoot    string `envconfig:"STORAGE_ROOT" default:"./data"`
	VaultKey       string `envconfig:"VAULT_KEY" default:"vault.json"`
	LocalRepoKey   string `envconfig:"LOCAL_REPO_KEY" default:"local.json"`
	BaseRepoKey    string `envconfig:"BASE_REPO_KEY" default:"base.json"`
	RemoteRepoKey  string `envconfig:"REMOTE_REPO_KEY" default:"remote.json"`
	GapScanWidth   uint32 `envconfig:"GAP_SCAN_WIDTH" default:"20"`
}

// Home holds the settings a home server deployment reads: where it listens, and where it keeps
// the profiles it hosts.
type Home struct {
	ListenAddress    string `envconfig:"LISTEN_ADDRESS" default:":8420"`
	StorageBucket    string `envconfig:"STORAGE_BUCKET" default:"standalone"`
	StorageRoot      string `envconfig:"STORAGE_ROOT" default:"./home-data"`
	HostedDBKey      string `envconfig:"HOSTED_DB_KEY" default:"hosted.json"`
	PublicRepoKey    string `envconfig:"PUBLIC_REPO_KEY" default:"public.json"`
	AnswerTimeoutSec int    `envconfig:"ANSWER_TIMEOUT_SECONDS" default:"30"`
}

// LoadVault reads Vault settings from the environment under the given prefix.
func LoadVault(prefix string) (Vault, error) {
	var c Vault
	if err := envconfig.Process(prefix, &c); err != nil {
		return Vault{}, err
	}
	return c, nil
}

// LoadHome reads Home settings from the environment under the given prefix.
func LoadHome(prefix string) (Home, error) {
	var c Home
	if err := envconfig.Process(prefix, &c); err != nil {
		return Home{}, err
	}
	return c, nil
}

// OpenStorage builds the Storage backend this Vault config points at. StorageBucket selects the
// backend: "standalone" for a filesystem tree rooted at StorageRoot, "mock" for an in-memory
// store (tests), anything else for an S3 bucket of that name.
func (c Vault) OpenStorage() (storage.Storage, error) {
	return storage.CreateStorage(c.StorageBucket, c.StorageRoot, storage.DefaultMaxRetries, storage.DefaultRetryDelay)
}

// OpenStorage builds the Storage backend this Home config points at, using the same
// bucket-selection rule as Vault.OpenStorage.
func (c Home) OpenStorage() (storage.Storage, error) {
	return storage.CreateStorage(c.StorageBucket, c.StorageRoot, storage.DefaultMaxRetries, storage.DefaultRetryDelay)
}
