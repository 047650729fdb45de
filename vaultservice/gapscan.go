package vaultservice

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
	"github.com/Internet-of-People/mercury-rust-sub000/logger"
	"github.com/Internet-of-People/mercury-rust-sub000/repo"
)

// gapScanSuites are the suites probed during recovery. A seed could in principle be used for
// either, so both branches are scanned independently; they derive from unrelated HMAC masters
// so one suite's profiles are invisible to the other's probes.
var gapScanSuites = []keyvault.Suite{keyvault.SuiteEd25519, keyvault.SuiteSecp256k1}

// RestoreAllProfiles restores every profile the vault already knows about, then gap-scans past
// its known index range looking for profiles this seed created that were never recorded
// locally (the vault file was lost, or this is a brand new install recovering an old seed). It
// returns the number of restore attempts made and how many succeeded.
func (s *Service) RestoreAllProfiles(ctx context.Context) (tries int, successes int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return 0, 0, err
	}

	records := s.vault.Keys()
	for _, rec := range records {
		if rec.Suite == keyvault.SuiteUnknown {
			continue
		}

		tries++
		s.mu.Unlock()
		_, restoreErr := s.RestoreProfile(ctx, rec.Id, false)
		s.mu.Lock()
		if restoreErr != nil {
			logger.Warn(ctx, "Restore of known profile %s failed: %s", rec.Id, restoreErr)
			continue
		}
		successes++
	}

	startIndex := uint32(len(records))

	for _, suite := range gapScanSuites {
		probeTries, hits, scanErr := keyvault.GapScan(startIndex, keyvault.DefaultGapWidth,
			func(index uint32) (keyvault.ProfileId, bool, error) {
				return s.probeIndex(ctx, suite, index)
			})

		tries += probeTries
		if scanErr != nil {
			return tries, successes, scanErr
		}

		for _, hit := range hits {
			if err := s.vault.RestoreId(suite, hit.Index, hit.Id); err != nil {
				continue
			}

			s.mu.Unlock()
			_, restoreErr := s.RestoreProfile(ctx, hit.Id, true)
			s.mu.Lock()
			if restoreErr != nil {
				logger.Warn(ctx, "Restore of gap-scanned profile %s failed: %s", hit.Id, restoreErr)
				continue
			}
			successes++
		}
	}

	if err := s.vault.Save(ctx, s.vaultStore, s.vaultKey); err != nil {
		return tries, successes, errors.Wrap(err, "vaultservice: persist vault after gap-scan")
	}

	logger.Info(ctx, "Gap-scan recovery: %d tries, %d successes", tries, successes)
	return tries, successes, nil
}

func (s *Service) probeIndex(ctx context.Context, suite keyvault.Suite, index uint32) (keyvault.ProfileId, bool, error) {
	pk, err := s.vault.DerivePublicKey(suite, index)
	if err != nil {
		return keyvault.ProfileId{}, false, err
	}

	id := keyvault.NewProfileId(pk)

	_, err = s.remote.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return keyvault.ProfileId{}, false, nil
		}
		return keyvault.ProfileId{}, false, err
	}

	return id, true, nil
}
