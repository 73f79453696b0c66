// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package auth_test

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/acheron-labs/opaque"
	"github.com/acheron-labs/opaque/auth"
	"github.com/acheron-labs/opaque/message"
)

func b64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func fromB64(t *testing.T, s string) []byte {
	t.Helper()

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}

	return raw
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

type testEnv struct {
	orchestrator *auth.Orchestrator
	client       *opaque.Client
	clock        *fakeClock
}

func newEnv(t *testing.T, mutate ...func(*auth.Config)) *testEnv {
	t.Helper()

	conf := &opaque.Configuration{
		Suite:   opaque.P256Sha256,
		Context: []byte("OPAQUE-POC"),
	}

	serverSecretKey, serverPublicKey := conf.KeyGen()
	clock := newFakeClock()

	cfg := auth.Config{
		Opaque:          conf,
		ServerSecretKey: serverSecretKey,
		ServerPublicKey: serverPublicKey,
		OPRFSeed:        conf.GenerateOPRFSeed(),
		OPRFMasterKey:   opaque.RandomBytes(32),
		JWTSecret:       opaque.RandomBytes(conf.Suite.HashLength()),
		Clock:           clock.Now,
	}

	for _, m := range mutate {
		m(&cfg)
	}

	orchestrator, err := auth.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(orchestrator.Close)

	client, err := conf.Client()
	if err != nil {
		t.Fatal(err)
	}

	return &testEnv{
		orchestrator: orchestrator,
		client:       client,
		clock:        clock,
	}
}

func (e *testEnv) register(t *testing.T, credID string, password []byte) {
	t.Helper()

	request, state := e.client.RegistrationInit(password)

	started, err := e.orchestrator.RegistrationStart(auth.RegistrationStartRequest{
		CredentialIdentifier: credID,
		BlindedElement:       b64(request.BlindedMessage),
	})
	if err != nil {
		t.Fatal(err)
	}

	record, _, err := e.client.RegistrationFinalize(state, &message.RegistrationResponse{
		EvaluatedMessage: fromB64(t, started.EvaluatedElement),
		Pks:              fromB64(t, started.ServerPublicKey),
	})
	if err != nil {
		t.Fatal(err)
	}

	err = e.orchestrator.RegistrationFinish(auth.RegistrationFinishRequest{
		CredentialIdentifier: credID,
		ClientPublicKey:      b64(record.PublicKey),
		MaskingKey:           b64(record.MaskingKey),
		EnvelopeNonce:        b64(record.Envelope[:opaque.NonceLength]),
		AuthTag:              b64(record.Envelope[opaque.NonceLength:]),
	})
	if err != nil {
		t.Fatal(err)
	}
}

// startAuth runs KE1 through AuthStart and reassembles the wire response
// into a KE2 message.
func (e *testEnv) startAuth(t *testing.T, credID string, password []byte) (auth.AuthStartResponse, *message.KE2, *opaque.ClientAuthState) {
	t.Helper()

	ke1, state := e.client.GenerateKE1(password)

	started, err := e.orchestrator.AuthStart(auth.AuthStartRequest{
		CredentialIdentifier: credID,
		BlindedElement:       b64(ke1.BlindedMessage),
		ClientNonce:          b64(ke1.ClientNonce),
		ClientAkePublicKey:   b64(ke1.ClientPublicKeyshare),
	})
	if err != nil {
		t.Fatal(err)
	}

	serialized := bytes.Join([][]byte{
		fromB64(t, started.EvaluatedElement),
		fromB64(t, started.MaskingNonce),
		fromB64(t, started.MaskedResponse),
		fromB64(t, started.ServerNonce),
		fromB64(t, started.ServerAkePublicKey),
		fromB64(t, started.ServerMac),
	}, nil)

	ke2, err := e.client.Deserialize.KE2(serialized)
	if err != nil {
		t.Fatal(err)
	}

	return started, ke2, state
}

// authenticate walks the full wire login flow.
func (e *testEnv) authenticate(t *testing.T, credID string, password []byte) (auth.AuthFinishResponse, []byte, error) {
	t.Helper()

	started, ke2, state := e.startAuth(t, credID, password)

	ke3, sessionKey, _, err := e.client.GenerateKE3(state, ke2)
	if err != nil {
		return auth.AuthFinishResponse{}, nil, err
	}

	finished, err := e.orchestrator.AuthFinish(auth.AuthFinishRequest{
		SessionToken: started.SessionToken,
		ClientMac:    b64(ke3.ClientMac),
	})

	return finished, sessionKey, err
}

func TestWireRoundTrip(t *testing.T) {
	e := newEnv(t)
	credID := b64([]byte("alice"))
	password := []byte("correct horse battery staple")

	e.register(t, credID, password)

	finished, clientKey, err := e.authenticate(t, credID, password)
	if err != nil {
		t.Fatal(err)
	}

	if len(clientKey) != 32 {
		t.Errorf("session key length %d, want 32", len(clientKey))
	}

	if !bytes.Equal(clientKey, fromB64(t, finished.SessionKey)) {
		t.Error("client and server session keys differ")
	}

	data, err := e.orchestrator.JWT().Verify(finished.Token)
	if err != nil {
		t.Fatal(err)
	}

	if data.CredentialIdentifier != credID {
		t.Errorf("token subject %q, want %q", data.CredentialIdentifier, credID)
	}
}

func TestWrongPasswordStopsClientSide(t *testing.T) {
	e := newEnv(t)
	credID := b64([]byte("alice"))

	e.register(t, credID, []byte("correct horse battery staple"))

	_, _, err := e.authenticate(t, credID, []byte("wrong"))
	if !errors.Is(err, opaque.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}

	if n := e.orchestrator.PendingSessions(); n != 1 {
		t.Errorf("pending sessions %d, want the unfinished 1", n)
	}
}

func TestGhostCredential(t *testing.T) {
	e := newEnv(t)
	ghost := b64([]byte("ghost"))

	started, ke2, state := e.startAuth(t, ghost, []byte("anything"))

	if _, _, _, err := e.client.GenerateKE3(state, ke2); !errors.Is(err, opaque.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}

	// A blindly-guessed MAC must not finish the session.
	_, err := e.orchestrator.AuthFinish(auth.AuthFinishRequest{
		SessionToken: started.SessionToken,
		ClientMac:    b64(make([]byte, 32)),
	})
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSessionSingleUse(t *testing.T) {
	e := newEnv(t)
	credID := b64([]byte("alice"))
	password := []byte("password")

	e.register(t, credID, password)

	started, ke2, state := e.startAuth(t, credID, password)

	ke3, _, _, err := e.client.GenerateKE3(state, ke2)
	if err != nil {
		t.Fatal(err)
	}

	finish := auth.AuthFinishRequest{
		SessionToken: started.SessionToken,
		ClientMac:    b64(ke3.ClientMac),
	}

	if _, err := e.orchestrator.AuthFinish(finish); err != nil {
		t.Fatal(err)
	}

	if _, err := e.orchestrator.AuthFinish(finish); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on replay, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	e := newEnv(t)
	credID := b64([]byte("alice"))
	password := []byte("password")

	e.register(t, credID, password)

	started, ke2, state := e.startAuth(t, credID, password)

	ke3, _, _, err := e.client.GenerateKE3(state, ke2)
	if err != nil {
		t.Fatal(err)
	}

	e.clock.Advance(auth.DefaultSessionTTL + time.Second)

	_, err = e.orchestrator.AuthFinish(auth.AuthFinishRequest{
		SessionToken: started.SessionToken,
		ClientMac:    b64(ke3.ClientMac),
	})
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after expiry, got %v", err)
	}
}

func TestReaper(t *testing.T) {
	e := newEnv(t, func(cfg *auth.Config) {
		cfg.SessionTTL = 40 * time.Millisecond
		cfg.Clock = nil // the reaper compares against the real clock here
	})

	credID := b64([]byte("alice"))
	password := []byte("password")
	e.register(t, credID, password)

	_, _, state := e.startAuth(t, credID, password)
	state.Clear()

	if n := e.orchestrator.PendingSessions(); n != 1 {
		t.Fatalf("pending sessions %d, want 1", n)
	}

	deadline := time.Now().Add(2 * time.Second)
	for e.orchestrator.PendingSessions() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("reaper did not evict the expired session")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCapacity(t *testing.T) {
	e := newEnv(t, func(cfg *auth.Config) {
		cfg.PendingCapacity = 1
	})

	credID := b64([]byte("alice"))
	password := []byte("password")
	e.register(t, credID, password)

	_, _, s1 := e.startAuth(t, credID, password)
	defer s1.Clear()

	ke1, s2 := e.client.GenerateKE1(password)
	defer s2.Clear()

	_, err := e.orchestrator.AuthStart(auth.AuthStartRequest{
		CredentialIdentifier: credID,
		BlindedElement:       b64(ke1.BlindedMessage),
		ClientNonce:          b64(ke1.ClientNonce),
		ClientAkePublicKey:   b64(ke1.ClientPublicKeyshare),
	})
	if !errors.Is(err, auth.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestConcurrentAuth(t *testing.T) {
	e := newEnv(t)
	credID := b64([]byte("alice"))
	password := []byte("password")

	e.register(t, credID, password)

	type result struct {
		finished auth.AuthFinishResponse
		key      []byte
		err      error
	}

	results := make([]result, 2)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			// Decoding failures are programming errors; panicking fails the
			// test loudly without calling t.Fatal off the test goroutine.
			dec := func(s string) []byte {
				raw, err := base64.StdEncoding.DecodeString(s)
				if err != nil {
					panic(err)
				}
				return raw
			}

			client, err := (&opaque.Configuration{
				Suite:   opaque.P256Sha256,
				Context: []byte("OPAQUE-POC"),
			}).Client()
			if err != nil {
				results[i].err = err
				return
			}

			ke1, state := client.GenerateKE1(password)

			started, err := e.orchestrator.AuthStart(auth.AuthStartRequest{
				CredentialIdentifier: credID,
				BlindedElement:       b64(ke1.BlindedMessage),
				ClientNonce:          b64(ke1.ClientNonce),
				ClientAkePublicKey:   b64(ke1.ClientPublicKeyshare),
			})
			if err != nil {
				results[i].err = err
				return
			}

			serialized := bytes.Join([][]byte{
				dec(started.EvaluatedElement),
				dec(started.MaskingNonce),
				dec(started.MaskedResponse),
				dec(started.ServerNonce),
				dec(started.ServerAkePublicKey),
				dec(started.ServerMac),
			}, nil)

			ke2, err := client.Deserialize.KE2(serialized)
			if err != nil {
				results[i].err = err
				return
			}

			ke3, key, _, err := client.GenerateKE3(state, ke2)
			if err != nil {
				results[i].err = err
				return
			}

			finished, err := e.orchestrator.AuthFinish(auth.AuthFinishRequest{
				SessionToken: started.SessionToken,
				ClientMac:    b64(ke3.ClientMac),
			})

			results[i] = result{finished: finished, key: key, err: err}
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r.err != nil {
			t.Fatalf("attempt %d: %v", i, r.err)
		}
	}

	if results[0].finished.Token == results[1].finished.Token {
		t.Error("concurrent sessions share a token")
	}

	if bytes.Equal(results[0].key, results[1].key) {
		t.Error("concurrent sessions share a session key")
	}
}

func TestRegistrationDeleteCascade(t *testing.T) {
	e := newEnv(t)
	credID := b64([]byte("alice"))
	password := []byte("password")

	e.register(t, credID, password)

	finished, _, err := e.authenticate(t, credID, password)
	if err != nil {
		t.Fatal(err)
	}

	// A bearer for another credential must not delete this one.
	e.register(t, b64([]byte("bob")), password)

	bobFinished, _, err := e.authenticate(t, b64([]byte("bob")), password)
	if err != nil {
		t.Fatal(err)
	}

	err = e.orchestrator.RegistrationDelete(
		auth.RegistrationDeleteRequest{CredentialIdentifier: credID},
		bobFinished.Token,
	)
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for a foreign bearer, got %v", err)
	}

	err = e.orchestrator.RegistrationDelete(
		auth.RegistrationDeleteRequest{CredentialIdentifier: credID},
		finished.Token,
	)
	if err != nil {
		t.Fatal(err)
	}

	// The bearer died with the credential's sessions.
	if _, err := e.orchestrator.JWT().Verify(finished.Token); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for the revoked token, got %v", err)
	}

	// Authentication now takes the decoy path and fails client-side.
	if _, _, err := e.authenticate(t, credID, password); !errors.Is(err, opaque.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestInvalidRequests(t *testing.T) {
	e := newEnv(t)

	cases := map[string]error{}

	_, err := e.orchestrator.RegistrationStart(auth.RegistrationStartRequest{
		CredentialIdentifier: b64([]byte("alice")),
		BlindedElement:       "%%% not base64 %%%",
	})
	cases["malformed base64"] = err

	_, err = e.orchestrator.RegistrationStart(auth.RegistrationStartRequest{
		CredentialIdentifier: b64([]byte("alice")),
		BlindedElement:       b64(make([]byte, 12)),
	})
	cases["wrong length"] = err

	_, err = e.orchestrator.RegistrationStart(auth.RegistrationStartRequest{
		CredentialIdentifier: b64([]byte("alice")),
		BlindedElement:       b64(make([]byte, 33)),
	})
	cases["invalid element"] = err

	ke1, state := e.client.GenerateKE1([]byte("pw"))
	defer state.Clear()

	_, err = e.orchestrator.AuthStart(auth.AuthStartRequest{
		CredentialIdentifier: "",
		BlindedElement:       b64(ke1.BlindedMessage),
		ClientNonce:          b64(ke1.ClientNonce),
		ClientAkePublicKey:   b64(ke1.ClientPublicKeyshare),
	})
	cases["empty credential identifier"] = err

	_, err = e.orchestrator.AuthFinish(auth.AuthFinishRequest{
		SessionToken: "some-token",
		ClientMac:    b64(make([]byte, 16)),
	})
	cases["short mac"] = err

	for name, err := range cases {
		if !errors.Is(err, auth.ErrInvalidRequest) {
			t.Errorf("%s: expected ErrInvalidRequest, got %v", name, err)
		}
	}
}

func TestConfigEndpoints(t *testing.T) {
	e := newEnv(t)

	cfg := e.orchestrator.Config()
	if cfg.CipherSuite != "P256-SHA256" {
		t.Errorf("cipherSuite %q", cfg.CipherSuite)
	}

	if cfg.Argon2MemoryKib != 0 {
		t.Error("identity KSF must report zero memory")
	}

	if !bytes.Equal(fromB64(t, cfg.Context), []byte("OPAQUE-POC")) {
		t.Errorf("context %q", cfg.Context)
	}

	oprfCfg := e.orchestrator.OPRFConfig()
	if oprfCfg.CipherSuite != "P256-SHA256" {
		t.Errorf("oprf cipherSuite %q", oprfCfg.CipherSuite)
	}
}

func TestOPRFEndpoint(t *testing.T) {
	e := newEnv(t)

	suite := opaque.P256Sha256
	g := suite.Group()
	point := g.Base().Multiply(g.NewScalar().Random())
	pointHex := hex.EncodeToString(point.Encode())

	first, err := e.orchestrator.OPRFEvaluate(auth.OPRFRequest{ECPoint: pointHex, RequestID: "req-1"})
	if err != nil {
		t.Fatal(err)
	}

	if first.ECPoint == pointHex {
		t.Error("evaluation returned the input unchanged")
	}

	if first.ProcessIdentifier == "" {
		t.Error("missing process identifier")
	}

	second, err := e.orchestrator.OPRFEvaluate(auth.OPRFRequest{ECPoint: pointHex, RequestID: "req-2"})
	if err != nil {
		t.Fatal(err)
	}

	if first.ECPoint != second.ECPoint {
		t.Error("evaluation is not deterministic")
	}

	if _, err := e.orchestrator.OPRFEvaluate(auth.OPRFRequest{ECPoint: "zz", RequestID: "req-3"}); !errors.Is(err, auth.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	if _, err := e.orchestrator.OPRFEvaluate(auth.OPRFRequest{
		ECPoint:   strings.Repeat("00", 33),
		RequestID: "req-4",
	}); !errors.Is(err, auth.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for an invalid point, got %v", err)
	}
}
