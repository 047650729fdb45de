package homeprotocol

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
	"github.com/Internet-of-People/mercury-rust-sub000/logger"
	"github.com/Internet-of-People/mercury-rust-sub000/profile"
)

// ProfileLookup resolves a profile id to its current public profile data, the way a caller
// would query a peer's homes list or a home's own address list via the remote repository.
type ProfileLookup func(ctx context.Context, id keyvault.ProfileId) (profile.PublicProfileData, error)

// DialHome connects to a single home address. Kept as a variable so tests can substitute an
// in-memory transport.
var DialHome = Dial

// ConnectToPeerHomes implements the home discovery and fallback strategy: look up peer's public
// profile to get its homes list, resolve each home's own address list, and race parallel
// connection attempts. The first successful connection wins; the rest are dropped.
func ConnectToPeerHomes(ctx context.Context, lookup ProfileLookup, peerId keyvault.ProfileId) (*Client, error) {
	peer, err := lookup(ctx, peerId)
	if err != nil {
		return nil, errors.Wrap(err, "homeprotocol: look up peer profile")
	}

	if peer.Facet.Kind != profile.FacetPersona || peer.Facet.Persona == nil {
		return nil, errors.New("homeprotocol: peer profile has no persona facet")
	}

	var addresses []string
	for _, hosting := range peer.Facet.Persona.Homes {
		homeId, err := hosting.OtherId(peerId)
		if err != nil {
			continue
		}

		home, err := lookup(ctx, homeId)
		if err != nil {
			logger.Warn(ctx, "Failed to look up home %s : %s", homeId, err)
			continue
		}

		if home.Facet.Kind != profile.FacetHome || home.Facet.Home == nil {
			continue
		}

		addresses = append(addresses, home.Facet.Home.Addresses...)
	}

	if len(addresses) == 0 {
		return nil, errors.New("homeprotocol: peer has no reachable homes")
	}

	return raceConnect(ctx, addresses)
}

type connectResult struct {
	client *Client
	err    error
}

func raceConnect(ctx context.Context, addresses []string) (*Client, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan connectResult, len(addresses))
	for _, addr := range addresses {
		addr := addr
		go func() {
			client, err := DialHome(raceCtx, addr)
			results <- connectResult{client: client, err: err}
		}()
	}

	var lastErr error
	for range addresses {
		r := <-results
		if r.err == nil {
			cancel()
			return r.client, nil
		}
		lastErr = r.err
	}

	return nil, errors.Wrap(ErrTransport, "all home connection attempts failed: "+errString(lastErr))
}

func errString(err error) string {
	if err == nil {
		return "no addresses"
	}
	return err.Error()
}
