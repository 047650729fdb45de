package homeserver

import (
	"context"
	"testing"
	"time"

	"github.com/Internet-of-People/mercury-rust-sub000/homeprotocol"
	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
	"github.com/Internet-of-People/mercury-rust-sub000/profile"
	"github.com/Internet-of-People/mercury-rust-sub000/repo"
	"github.com/Internet-of-People/mercury-rust-sub000/storage"
)

func testKeyHS(t *testing.T, seedByte byte) (keyvault.PrivateKey, keyvault.ProfileId) {
	t.Helper()
	raw := make([]byte, 32)
	raw[0] = seedByte
	priv, err := keyvault.NewPrivateKey(keyvault.SuiteEd25519, raw)
	if err != nil {
		t.Fatal(err)
	}
	return priv, keyvault.NewProfileId(priv.PublicKey())
}

func newTestServer(t *testing.T) (*Server, keyvault.PrivateKey, keyvault.ProfileId) {
	t.Helper()
	homeKey, homeId := testKeyHS(t, 0xFF)
	hostedDB := repo.NewStore(storage.NewMockStorage(), "hosted.json")
	publicRepo := repo.NewStore(storage.NewMockStorage(), "public.json")
	return New(homeKey, hostedDB, publicRepo), homeKey, homeId
}

// registerProfile drives the full Register handshake for a freshly-created profile and returns
// its private key, id and the completed hosting proof, the way a real client would need the
// proof again to Login.
func registerProfile(t *testing.T, s *Server, seedByte byte) (keyvault.PrivateKey, keyvault.ProfileId, profile.RelationProof) {
	t.Helper()
	ctx := context.Background()

	key, id := testKeyHS(t, seedByte)
	pub := profile.NewPublicProfileData(key.PublicKey())
	priv := profile.NewPrivateProfileData(pub)

	half, err := profile.NewRelationHalfProof(profile.RelationHostedOnHome, id, s.homeId, key.Sign)
	if err != nil {
		t.Fatal(err)
	}

	registered, err := s.Register(ctx, id, key.PublicKey(), homeprotocol.RegisterRequest{
		Profile:   priv,
		HalfProof: half,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(registered.Public.Facet.Persona.Homes) != 1 {
		t.Fatalf("got %d home relations, want 1", len(registered.Public.Facet.Persona.Homes))
	}
	if registered.Public.Version != 1 {
		t.Errorf("got version %d, want 1 after registration", registered.Public.Version)
	}

	full := registered.Public.Facet.Persona.Homes[0]
	if full.SignerId != id || full.PeerId != s.homeId {
		t.Errorf("hosting proof has wrong participants: %+v", full)
	}
	return key, id, full
}

func TestServer_Register_S1(t *testing.T) {
	s, _, _ := newTestServer(t)
	registerProfile(t, s, 1)
}

func TestServer_Register_RejectsDuplicate(t *testing.T) {
	s, _, _ := newTestServer(t)
	key, id, _ := registerProfile(t, s, 1)

	half, err := profile.NewRelationHalfProof(profile.RelationHostedOnHome, id, s.homeId, key.Sign)
	if err != nil {
		t.Fatal(err)
	}
	priv := profile.NewPrivateProfileData(profile.NewPublicProfileData(key.PublicKey()))

	_, err = s.Register(context.Background(), id, key.PublicKey(), homeprotocol.RegisterRequest{
		Profile:   priv,
		HalfProof: half,
	})
	if err != homeprotocol.ErrAlreadyRegistered {
		t.Errorf("got %v, want ErrAlreadyRegistered", err)
	}
}

func TestServer_Register_RejectsProfileMismatch(t *testing.T) {
	s, _, _ := newTestServer(t)
	ctx := context.Background()

	key, id := testKeyHS(t, 1)
	otherKey, _ := testKeyHS(t, 2)
	half, err := profile.NewRelationHalfProof(profile.RelationHostedOnHome, id, s.homeId, key.Sign)
	if err != nil {
		t.Fatal(err)
	}
	priv := profile.NewPrivateProfileData(profile.NewPublicProfileData(key.PublicKey()))

	// Claim to be id but authenticate with a different key.
	_, err = s.Register(ctx, id, otherKey.PublicKey(), homeprotocol.RegisterRequest{
		Profile:   priv,
		HalfProof: half,
	})
	if err != homeprotocol.ErrProfileMismatch {
		t.Errorf("got %v, want ErrProfileMismatch", err)
	}
}

func TestServer_Login_S1(t *testing.T) {
	s, _, _ := newTestServer(t)
	_, id, full := registerProfile(t, s, 1)

	loggedIn, err := s.Login(context.Background(), full)
	if err != nil {
		t.Fatal(err)
	}
	if loggedIn != id {
		t.Errorf("got %v, want %v", loggedIn, id)
	}
}

func TestServer_Login_RejectsWrongHome(t *testing.T) {
	s, _, _ := newTestServer(t)
	_, _, full := registerProfile(t, s, 1)

	_, otherId := testKeyHS(t, 99)
	full.PeerId = otherId

	if _, err := s.Login(context.Background(), full); err != homeprotocol.ErrLoginFailed {
		t.Errorf("got %v, want ErrLoginFailed", err)
	}
}

func TestServer_PairRequestResponse_S2(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestServer(t)

	aliceKey, aliceId, aliceProof := registerProfile(t, s, 1)
	bobKey, bobId, _ := registerProfile(t, s, 2)

	if _, err := s.Login(ctx, aliceProof); err != nil {
		t.Fatal(err)
	}

	events := s.Events(bobId, 4)
	aliceEvents := s.Events(aliceId, 4)

	half, err := profile.NewRelationHalfProof(profile.RelationHostedOnHome, aliceId, bobId, aliceKey.Sign)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PairRequest(ctx, aliceId, half); err != nil {
		t.Fatal(err)
	}

	select {
	case item := <-events:
		if item.Err != nil {
			t.Fatalf("got stream error: %v", item.Err)
		}
		if item.Value.Kind != homeprotocol.EventPairingRequest {
			t.Errorf("got kind %v, want EventPairingRequest", item.Value.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pairing-request event")
	}

	full, err := profile.SignRemainingHalf(half, bobKey.Sign)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PairResponse(ctx, bobId, full); err != nil {
		t.Fatal(err)
	}

	select {
	case item := <-aliceEvents:
		if item.Err != nil {
			t.Fatalf("got stream error: %v", item.Err)
		}
		if item.Value.Kind != homeprotocol.EventPairingResponse {
			t.Errorf("got kind %v, want EventPairingResponse", item.Value.Kind)
		}
		if item.Value.FullProof == nil || !item.Value.FullProof.Verify(aliceKey.PublicKey(), bobKey.PublicKey()) {
			t.Errorf("pairing-response event lost or broke its full proof")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pairing-response event")
	}
}

func TestServer_PairRequest_RejectsPeerNotHostedHere(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestServer(t)
	aliceKey, aliceId, _ := registerProfile(t, s, 1)

	_, strangerId := testKeyHS(t, 50)
	half, err := profile.NewRelationHalfProof(profile.RelationHostedOnHome, aliceId, strangerId, aliceKey.Sign)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.PairRequest(ctx, aliceId, half); err != homeprotocol.ErrPeerNotHostedHere {
		t.Errorf("got %v, want ErrPeerNotHostedHere", err)
	}
}

func TestServer_CallAndAnswer_S3(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestServer(t)

	aliceKey, aliceId, _ := registerProfile(t, s, 1)
	bobKey, bobId, _ := registerProfile(t, s, 2)

	half, err := profile.NewRelationHalfProof(profile.RelationHostedOnHome, aliceId, bobId, aliceKey.Sign)
	if err != nil {
		t.Fatal(err)
	}
	relationProof, err := profile.SignRemainingHalf(half, bobKey.Sign)
	if err != nil {
		t.Fatal(err)
	}

	calls := s.CheckinApp(bobId, "chat", 4)

	toCallee := "ringing"
	req := homeprotocol.CallRequest{AppId: "chat", RelationProof: relationProof, ToCaller: &toCallee}

	resultCh := make(chan homeprotocol.CallResult, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := s.Call(ctx, aliceId, "chat", req)
		resultCh <- res
		errCh <- err
	}()

	var incoming homeprotocol.StreamItem[homeprotocol.IncomingCall]
	select {
	case incoming = <-calls:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for incoming call")
	}
	if incoming.Err != nil {
		t.Fatalf("got stream error: %v", incoming.Err)
	}
	if incoming.Value.From != aliceId {
		t.Errorf("got From=%v, want %v", incoming.Value.From, aliceId)
	}

	answer := "accepted"
	s.Answer(bobId, "chat", &answer)

	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
	result := <-resultCh
	if result.ToCallee == nil || *result.ToCallee != "accepted" {
		t.Errorf("got ToCallee=%v, want \"accepted\"", result.ToCallee)
	}
}

func TestServer_Call_TimesOutWithoutAnswer(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestServer(t)
	s.answerTimeout = 30 * time.Millisecond

	aliceKey, aliceId, _ := registerProfile(t, s, 1)
	bobKey, bobId, _ := registerProfile(t, s, 2)

	half, err := profile.NewRelationHalfProof(profile.RelationHostedOnHome, aliceId, bobId, aliceKey.Sign)
	if err != nil {
		t.Fatal(err)
	}
	relationProof, err := profile.SignRemainingHalf(half, bobKey.Sign)
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Call(ctx, aliceId, "chat", homeprotocol.CallRequest{AppId: "chat", RelationProof: relationProof})
	if err != homeprotocol.ErrCallTimeout {
		t.Errorf("got %v, want ErrCallTimeout", err)
	}
}

func TestServer_OfflineEventBuffering_S6(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestServer(t)

	aliceKey, aliceId, _ := registerProfile(t, s, 1)
	_, bobId, _ := registerProfile(t, s, 2)

	// Bob never calls Events before the request arrives -- the event must be buffered.
	half, err := profile.NewRelationHalfProof(profile.RelationHostedOnHome, aliceId, bobId, aliceKey.Sign)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PairRequest(ctx, aliceId, half); err != nil {
		t.Fatal(err)
	}

	events := s.Events(bobId, 4)
	select {
	case item := <-events:
		if item.Err != nil {
			t.Fatalf("got stream error: %v", item.Err)
		}
		if item.Value.Kind != homeprotocol.EventPairingRequest {
			t.Errorf("got kind %v, want EventPairingRequest", item.Value.Kind)
		}
		if item.Value.HalfProof == nil || item.Value.HalfProof.SignerId != aliceId {
			t.Errorf("buffered event lost its half proof")
		}
	case <-time.After(time.Second):
		t.Fatal("buffered event was never delivered on attach")
	}
}

func TestServer_Unregister_ClosesSession(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestServer(t)
	_, id, full := registerProfile(t, s, 1)

	if _, err := s.Login(ctx, full); err != nil {
		t.Fatal(err)
	}

	if err := s.Unregister(ctx, id); err != nil {
		t.Fatal(err)
	}

	s.mu.Lock()
	_, stillOpen := s.sessions[id]
	s.mu.Unlock()
	if stillOpen {
		t.Errorf("session still registered after unregister")
	}

	if _, err := s.Claim(ctx, id, id); err == nil {
		t.Errorf("expected claim to fail after unregister")
	}
}
