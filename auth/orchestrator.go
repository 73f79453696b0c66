// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package auth composes the OPAQUE protocol engine into a stateful server:
// credential storage, a pending-session table bridging the two phases of the
// AKE, and session issuance via signed bearer tokens. Endpoints are pure
// request-value to response-value functions; binding them to a transport is
// the caller's concern.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acheron-labs/opaque"
	"github.com/acheron-labs/opaque/internal/encoding"
	"github.com/acheron-labs/opaque/message"
)

const (
	// DefaultSessionTTL bounds the time between AuthStart and AuthFinish.
	DefaultSessionTTL = 120 * time.Second

	// DefaultPendingCapacity bounds the pending-session table.
	DefaultPendingCapacity = 10_000

	// DefaultTokenLifetime is the issued bearer token lifetime.
	DefaultTokenLifetime = time.Hour

	// DefaultIssuer is the default JWT issuer name.
	DefaultIssuer = "opaque-authd"
)

// Config assembles the orchestrator's key material and collaborators. The
// key byte strings are opaque to the caller; loading them is a bootstrap
// concern outside this package.
type Config struct {
	// Opaque is the protocol configuration shared with clients.
	Opaque *opaque.Configuration

	// ServerIdentity is optional and defaults to the server public key.
	ServerIdentity []byte

	// ServerSecretKey and ServerPublicKey are the server's static AKE pair.
	ServerSecretKey []byte
	ServerPublicKey []byte

	// OPRFSeed is the long-term seed for per-credential OPRF keys.
	OPRFSeed []byte

	// OPRFMasterKey keys the standalone OPRF endpoint.
	OPRFMasterKey []byte

	// JWTSecret signs bearer tokens; it must be hash-output sized.
	JWTSecret []byte

	Issuer          string
	TokenLifetime   time.Duration
	SessionTTL      time.Duration
	PendingCapacity int

	// Credentials and Sessions default to in-memory stores.
	Credentials CredentialStore
	Sessions    SessionStore

	// Clock defaults to time.Now; tests inject a fake.
	Clock func() time.Time

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

type pendingSession struct {
	expectedClientMac    []byte
	sessionKey           []byte
	credentialIdentifier string
	createdAt            time.Time
}

// Orchestrator exposes the protocol endpoints over shared server state. It
// is safe for concurrent use; the crypto itself is stateless per request.
type Orchestrator struct {
	conf         *opaque.Configuration
	deserializer *opaque.Deserializer

	serverIdentity  []byte
	serverSecretKey []byte
	serverPublicKey []byte
	oprfSeed        []byte

	credentials CredentialStore
	sessions    SessionStore
	jwt         *JWTManager

	log        *slog.Logger
	now        func() time.Time
	sessionTTL time.Duration
	capacity   int
	processID  string

	oprf oprfEndpoint

	mu      sync.Mutex
	pending map[string]*pendingSession

	closeOnce sync.Once
	stop      chan struct{}
}

// New validates the configuration and key material, starts the
// pending-session reaper, and returns a ready Orchestrator. Call Close to
// stop the reaper.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Opaque == nil {
		return nil, errors.New("missing OPAQUE configuration")
	}

	if len(cfg.JWTSecret) != cfg.Opaque.Suite.HashLength() {
		return nil, errors.New("JWT secret must be of hash output length")
	}

	if len(cfg.OPRFMasterKey) == 0 {
		return nil, errors.New("missing OPRF master key")
	}

	// Fail fast on bad key material: building a protocol server performs the
	// full validation of the static keys and the seed.
	probe, err := cfg.Opaque.Server()
	if err != nil {
		return nil, err
	}

	if err := probe.SetKeyMaterial(cfg.ServerIdentity, cfg.ServerSecretKey, cfg.ServerPublicKey, cfg.OPRFSeed); err != nil {
		return nil, err
	}

	deserializer, err := cfg.Opaque.Deserializer()
	if err != nil {
		return nil, err
	}

	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}

	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = DefaultTokenLifetime
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}

	if cfg.PendingCapacity <= 0 {
		cfg.PendingCapacity = DefaultPendingCapacity
	}

	if cfg.Credentials == nil {
		cfg.Credentials = NewMemoryCredentialStore()
	}

	if cfg.Sessions == nil {
		cfg.Sessions = NewMemorySessionStore()
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	o := &Orchestrator{
		conf:            cfg.Opaque,
		deserializer:    deserializer,
		serverIdentity:  cfg.ServerIdentity,
		serverSecretKey: cfg.ServerSecretKey,
		serverPublicKey: cfg.ServerPublicKey,
		oprfSeed:        cfg.OPRFSeed,
		credentials:     cfg.Credentials,
		sessions:        cfg.Sessions,
		jwt:             NewJWTManager(cfg.JWTSecret, cfg.Issuer, cfg.TokenLifetime, cfg.Sessions, cfg.Clock),
		log:             cfg.Logger,
		now:             cfg.Clock,
		sessionTTL:      cfg.SessionTTL,
		capacity:        cfg.PendingCapacity,
		processID:       uuid.NewString(),
		oprf:            newOPRFEndpoint(cfg.Opaque, cfg.OPRFMasterKey),
		pending:         make(map[string]*pendingSession),
		stop:            make(chan struct{}),
	}

	go o.reapLoop(o.sessionTTL / 4)

	return o, nil
}

// Close stops the background reaper. The orchestrator must not be used
// after Close.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() { close(o.stop) })
}

// JWT returns the orchestrator's token manager, for transports that verify
// bearer tokens on other routes.
func (o *Orchestrator) JWT() *JWTManager {
	return o.jwt
}

func (o *Orchestrator) reapLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			if n := o.reap(); n > 0 {
				o.log.Debug("reaped pending sessions", "count", n)
			}
		}
	}
}

// reap evicts pending sessions older than the session TTL and returns the
// number evicted.
func (o *Orchestrator) reap() int {
	cutoff := o.now().Add(-o.sessionTTL)

	o.mu.Lock()
	defer o.mu.Unlock()

	reaped := 0

	for token, p := range o.pending {
		if p.createdAt.Before(cutoff) {
			delete(o.pending, token)
			reaped++
		}
	}

	return reaped
}

// newServer builds a protocol server loaded with the orchestrator's key
// material. Construction cannot fail here: the same material was validated
// in New.
func (o *Orchestrator) newServer() *opaque.Server {
	srv, err := o.conf.Server()
	if err != nil {
		panic(fmt.Errorf("building protocol server: %w", err))
	}

	if err := srv.SetKeyMaterial(o.serverIdentity, o.serverSecretKey, o.serverPublicKey, o.oprfSeed); err != nil {
		panic(fmt.Errorf("setting key material: %w", err))
	}

	return srv
}

// credentialKey canonicalizes a wire credential identifier and returns both
// the store key and the raw bytes.
func (o *Orchestrator) credentialKey(field string) (key string, raw []byte, err error) {
	raw, err = decodeField("credentialIdentifier", field, 0)
	if err != nil {
		return "", nil, err
	}

	return encodeField(raw), raw, nil
}

// Config reports the protocol configuration clients need to interoperate.
func (o *Orchestrator) Config() ConfigResponse {
	return ConfigResponse{
		CipherSuite:       o.conf.Suite.String(),
		Context:           encodeField(o.conf.Context),
		Argon2MemoryKib:   o.conf.KSF.MemoryKiB,
		Argon2Iterations:  o.conf.KSF.Iterations,
		Argon2Parallelism: o.conf.KSF.Parallelism,
	}
}

// RegistrationStart evaluates the blinded element under the credential's
// OPRF key and returns it with the server public key.
func (o *Orchestrator) RegistrationStart(req RegistrationStartRequest) (RegistrationStartResponse, error) {
	_, credID, err := o.credentialKey(req.CredentialIdentifier)
	if err != nil {
		return RegistrationStartResponse{}, err
	}

	blinded, err := decodeField("blindedElement", req.BlindedElement, o.conf.Suite.ElementLength())
	if err != nil {
		return RegistrationStartResponse{}, err
	}

	request, err := o.deserializer.RegistrationRequest(blinded)
	if err != nil {
		return RegistrationStartResponse{}, invalidf("blindedElement: %v", err)
	}

	response, err := o.newServer().RegistrationResponse(request, credID)
	if err != nil {
		return RegistrationStartResponse{}, invalidf("registration response: %v", err)
	}

	return RegistrationStartResponse{
		EvaluatedElement: encodeField(response.EvaluatedMessage),
		ServerPublicKey:  encodeField(response.Pks),
	}, nil
}

// RegistrationFinish validates and stores the client's registration record.
func (o *Orchestrator) RegistrationFinish(req RegistrationFinishRequest) error {
	credKey, _, err := o.credentialKey(req.CredentialIdentifier)
	if err != nil {
		return err
	}

	clientPublicKey, err := decodeField("clientPublicKey", req.ClientPublicKey, o.conf.Suite.ElementLength())
	if err != nil {
		return err
	}

	maskingKey, err := decodeField("maskingKey", req.MaskingKey, o.conf.Suite.HashLength())
	if err != nil {
		return err
	}

	envelopeNonce, err := decodeField("envelopeNonce", req.EnvelopeNonce, opaque.NonceLength)
	if err != nil {
		return err
	}

	authTag, err := decodeField("authTag", req.AuthTag, o.conf.Suite.HashLength())
	if err != nil {
		return err
	}

	record, err := o.deserializer.RegistrationRecord(
		encoding.Concatenate(clientPublicKey, maskingKey, envelopeNonce, authTag),
	)
	if err != nil {
		return invalidf("registration record: %v", err)
	}

	o.credentials.Save(credKey, record)
	o.log.Debug("registration stored", "credentialIdentifier", credKey)

	return nil
}

// RegistrationDelete removes a stored record. It requires a valid bearer
// token whose subject is the credential being deleted, and revokes every
// live session of that credential.
func (o *Orchestrator) RegistrationDelete(req RegistrationDeleteRequest, bearer string) error {
	data, err := o.jwt.Verify(bearer)
	if err != nil {
		return err
	}

	credKey, _, err := o.credentialKey(req.CredentialIdentifier)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(data.CredentialIdentifier), []byte(credKey)) != 1 {
		return unauthorizedf("bearer subject does not match the credential")
	}

	o.credentials.Delete(credKey)
	revoked := o.sessions.RevokeByCredentialIdentifier(credKey)
	o.log.Debug("registration deleted", "credentialIdentifier", credKey, "sessionsRevoked", revoked)

	return nil
}

// AuthStart answers KE1 with KE2 and parks the server's authentication state
// under a fresh session token. Unknown credentials follow the decoy record
// path, so the response is indistinguishable from a registered credential's.
func (o *Orchestrator) AuthStart(req AuthStartRequest) (AuthStartResponse, error) {
	credKey, credID, err := o.credentialKey(req.CredentialIdentifier)
	if err != nil {
		return AuthStartResponse{}, err
	}

	blinded, err := decodeField("blindedElement", req.BlindedElement, o.conf.Suite.ElementLength())
	if err != nil {
		return AuthStartResponse{}, err
	}

	clientNonce, err := decodeField("clientNonce", req.ClientNonce, opaque.NonceLength)
	if err != nil {
		return AuthStartResponse{}, err
	}

	clientAkePublicKey, err := decodeField("clientAkePublicKey", req.ClientAkePublicKey, o.conf.Suite.ElementLength())
	if err != nil {
		return AuthStartResponse{}, err
	}

	ke1, err := o.deserializer.KE1(encoding.Concat3(blinded, clientNonce, clientAkePublicKey))
	if err != nil {
		return AuthStartResponse{}, invalidf("KE1: %v", err)
	}

	srv := o.newServer()

	var ke2 *message.KE2

	if record, ok := o.credentials.Load(credKey); ok {
		ke2, err = srv.GenerateKE2(ke1, &opaque.ClientRecord{
			RegistrationRecord:   record,
			CredentialIdentifier: credID,
			ClientIdentity:       nil,
		})
	} else {
		ke2, err = srv.GenerateFakeKE2(ke1, credID)
	}

	if err != nil {
		return AuthStartResponse{}, invalidf("KE2: %v", err)
	}

	token := uuid.NewString()
	now := o.now()

	o.mu.Lock()
	if len(o.pending) >= o.capacity {
		o.mu.Unlock()
		return AuthStartResponse{}, fmt.Errorf("%w: pending session table is full", ErrCapacityExceeded)
	}

	o.pending[token] = &pendingSession{
		expectedClientMac:    srv.ExpectedMAC(),
		sessionKey:           srv.SessionKey(),
		credentialIdentifier: credKey,
		createdAt:            now,
	}
	o.mu.Unlock()

	o.log.Debug("auth started", "sessionToken", token)

	return AuthStartResponse{
		SessionToken:       token,
		EvaluatedElement:   encodeField(ke2.EvaluatedMessage),
		MaskingNonce:       encodeField(ke2.MaskingNonce),
		MaskedResponse:     encodeField(ke2.MaskedResponse),
		ServerNonce:        encodeField(ke2.ServerNonce),
		ServerAkePublicKey: encodeField(ke2.ServerPublicKeyshare),
		ServerMac:          encodeField(ke2.ServerMac),
	}, nil
}

// AuthFinish consumes the pending session exactly once, verifies KE3's
// client MAC in constant time, and issues the bearer token.
func (o *Orchestrator) AuthFinish(req AuthFinishRequest) (AuthFinishResponse, error) {
	if req.SessionToken == "" {
		return AuthFinishResponse{}, invalidf("field sessionToken: empty")
	}

	clientMac, err := decodeField("clientMac", req.ClientMac, o.conf.Suite.HashLength())
	if err != nil {
		return AuthFinishResponse{}, err
	}

	// The entry is removed before verification: a replayed or concurrent
	// finish for the same token finds nothing.
	o.mu.Lock()
	p, ok := o.pending[req.SessionToken]
	if ok {
		delete(o.pending, req.SessionToken)
	}
	o.mu.Unlock()

	if !ok {
		return AuthFinishResponse{}, unauthorizedf("unknown session token")
	}

	if o.now().Sub(p.createdAt) > o.sessionTTL {
		return AuthFinishResponse{}, unauthorizedf("session expired")
	}

	if subtle.ConstantTimeCompare(p.expectedClientMac, clientMac) != 1 {
		return AuthFinishResponse{}, unauthorizedf("invalid client mac")
	}

	token, jti, err := o.jwt.Issue(p.credentialIdentifier, p.sessionKey)
	if err != nil {
		return AuthFinishResponse{}, fmt.Errorf("issuing token: %w", err)
	}

	o.log.Debug("auth finished", "sessionToken", req.SessionToken, "jti", jti)

	return AuthFinishResponse{
		SessionKey: encodeField(p.sessionKey),
		Token:      token,
	}, nil
}

// PendingSessions returns the current number of parked authentication
// states.
func (o *Orchestrator) PendingSessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.pending)
}
