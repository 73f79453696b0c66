// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package opaque

import (
	"errors"
	"fmt"

	"github.com/bytemare/ecc"

	"github.com/acheron-labs/opaque/internal"
	"github.com/acheron-labs/opaque/internal/ake"
	"github.com/acheron-labs/opaque/internal/encoding"
	"github.com/acheron-labs/opaque/internal/keyrecovery"
	"github.com/acheron-labs/opaque/internal/masking"
	"github.com/acheron-labs/opaque/internal/tag"
	"github.com/acheron-labs/opaque/message"
)

var (
	// ErrNoServerKeyMaterial indicates that the server's key material has not
	// been set.
	ErrNoServerKeyMaterial = errors.New("key material not set: call SetKeyMaterial() to set values")

	// ErrAkeInvalidClientMac indicates that the MAC contained in the KE3
	// message is not valid in the given session.
	ErrAkeInvalidClientMac = errors.New("failed to authenticate client: invalid client mac")

	// ErrInvalidEnvelopeLength indicates the envelope contained in the record
	// is of invalid length.
	ErrInvalidEnvelopeLength = errors.New("record has invalid envelope length")

	// ErrInvalidPksLength indicates the input public key is not of right
	// length.
	ErrInvalidPksLength = errors.New("input server public key's length is invalid")

	// ErrInvalidOPRFSeedLength indicates that the OPRF seed is not of right
	// length.
	ErrInvalidOPRFSeedLength = errors.New("input OPRF seed length is invalid (must be of hash output length)")

	// ErrZeroSKS indicates that the server's private key is a zero scalar.
	ErrZeroSKS = errors.New("server private key is zero")
)

// Server represents an OPAQUE Server, exposing its functions and holding its
// state.
type Server struct {
	Deserialize *Deserializer
	conf        *internal.Configuration
	Ake         *ake.Server
	*keyMaterial
}

type keyMaterial struct {
	serverIdentity  []byte
	serverSecretKey *ecc.Scalar
	serverPublicKey []byte
	oprfSeed        []byte
}

// NewServer returns a Server instantiation given the application
// Configuration.
func NewServer(c *Configuration) (*Server, error) {
	if c == nil {
		c = DefaultConfiguration()
	}

	conf, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	return &Server{
		Deserialize: &Deserializer{conf: conf},
		conf:        conf,
		Ake:         ake.NewServer(),
		keyMaterial: nil,
	}, nil
}

// GetConf return the internal configuration.
func (s *Server) GetConf() *internal.Configuration {
	return s.conf
}

// SetKeyMaterial set the server's identity and mandatory key material to be
// used during RegistrationResponse() and GenerateKE2(). All these values must
// be the same as used during client registration and remain the same across
// protocol execution for a given registered client.
//
// - serverIdentity can be nil, in which case it will be set to serverPublicKey.
// - serverSecretKey is the server's secret AKE key.
// - serverPublicKey is the server's public AKE key to the serverSecretKey.
// - oprfSeed is the long-term OPRF input seed.
func (s *Server) SetKeyMaterial(serverIdentity, serverSecretKey, serverPublicKey, oprfSeed []byte) error {
	sks := s.conf.Group.NewScalar()
	if err := sks.Decode(serverSecretKey); err != nil {
		return fmt.Errorf("invalid server AKE secret key: %w", err)
	}

	if sks.IsZero() {
		return ErrZeroSKS
	}

	if len(oprfSeed) != s.conf.Hash.Size() {
		return ErrInvalidOPRFSeedLength
	}

	if len(serverPublicKey) != s.conf.Group.ElementLength() {
		return ErrInvalidPksLength
	}

	if err := s.conf.Group.NewElement().Decode(serverPublicKey); err != nil {
		return fmt.Errorf("invalid server public key: %w", err)
	}

	s.keyMaterial = &keyMaterial{
		serverIdentity:  serverIdentity,
		serverSecretKey: sks,
		serverPublicKey: serverPublicKey,
		oprfSeed:        oprfSeed,
	}

	return nil
}

// deriveOprfKey expands the long-term OPRF seed into the per-credential OPRF
// private key.
func (s *Server) deriveOprfKey(credentialIdentifier []byte) *ecc.Scalar {
	seed := s.conf.KDF.Expand(
		s.oprfSeed,
		encoding.SuffixString(credentialIdentifier, tag.ExpandOPRF),
		s.conf.Group.ScalarLength(),
	)

	return s.conf.OPRF.DeriveKey(seed, []byte(tag.DeriveKeyPair))
}

func (s *Server) oprfResponse(element *ecc.Element, credentialIdentifier []byte) *ecc.Element {
	return s.conf.OPRF.Evaluate(s.deriveOprfKey(credentialIdentifier), element)
}

// RegistrationResponse returns a RegistrationResponse message to the input
// RegistrationRequest message for the given credential identifier.
func (s *Server) RegistrationResponse(
	req *message.RegistrationRequest,
	credentialIdentifier []byte,
) (*message.RegistrationResponse, error) {
	if s.keyMaterial == nil {
		return nil, ErrNoServerKeyMaterial
	}

	blinded, err := s.Deserialize.element(req.BlindedMessage)
	if err != nil {
		return nil, fmt.Errorf("blinded message: %w", err)
	}

	z := s.oprfResponse(blinded, credentialIdentifier)

	return &message.RegistrationResponse{
		EvaluatedMessage: z.Encode(),
		Pks:              s.serverPublicKey,
	}, nil
}

func (s *Server) credentialResponse(
	req *message.CredentialRequest,
	record *message.RegistrationRecord,
	credentialIdentifier, maskingNonce []byte,
) (*message.CredentialResponse, error) {
	blinded, err := s.Deserialize.element(req.BlindedMessage)
	if err != nil {
		return nil, fmt.Errorf("blinded message: %w", err)
	}

	z := s.oprfResponse(blinded, credentialIdentifier)

	maskingNonce, maskedResponse := masking.Mask(
		s.conf,
		maskingNonce,
		record.MaskingKey,
		s.serverPublicKey,
		record.Envelope,
	)

	return &message.CredentialResponse{
		EvaluatedMessage: z.Encode(),
		MaskingNonce:     maskingNonce,
		MaskedResponse:   maskedResponse,
	}, nil
}

// GenerateKE2Options enable setting optional values for the session, which
// default to secure random values if not set.
type GenerateKE2Options struct {
	// EphemeralSecretKey: optional.
	EphemeralSecretKey *ecc.Scalar
	// AKENonce: optional.
	AKENonce []byte
	// MaskingNonce: optional.
	MaskingNonce []byte
}

func getGenerateKE2Options(options []GenerateKE2Options) (ake.Options, []byte) {
	var (
		op           ake.Options
		maskingNonce []byte
	)

	if len(options) != 0 {
		op.EphemeralSecretKey = options[0].EphemeralSecretKey
		op.Nonce = options[0].AKENonce
		maskingNonce = options[0].MaskingNonce
	}

	return op, maskingNonce
}

// GenerateKE2 responds to a KE1 message with a KE2 message given a client
// record.
func (s *Server) GenerateKE2(
	ke1 *message.KE1,
	record *ClientRecord,
	options ...GenerateKE2Options,
) (*message.KE2, error) {
	if s.keyMaterial == nil {
		return nil, ErrNoServerKeyMaterial
	}

	if len(record.Envelope) != s.conf.EnvelopeSize {
		return nil, ErrInvalidEnvelopeLength
	}

	clientPublicKey, err := s.Deserialize.element(record.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("record public key: %w", err)
	}

	clientEphemeralPublicKey, err := s.Deserialize.element(ke1.ClientPublicKeyshare)
	if err != nil {
		return nil, fmt.Errorf("client public key share: %w", err)
	}

	// We've checked that the server's public key and the client's envelope are
	// of correct length, thus ensuring that the subsequent xor-ing input is
	// the same length as the encryption pad.

	op, maskingNonce := getGenerateKE2Options(options)

	response, err := s.credentialResponse(ke1.CredentialRequest, record.RegistrationRecord,
		record.CredentialIdentifier, maskingNonce)
	if err != nil {
		return nil, err
	}

	identities := ake.Identities{
		ClientIdentity: record.ClientIdentity,
		ServerIdentity: s.serverIdentity,
	}
	identities.SetIdentities(record.PublicKey, s.serverPublicKey)

	ke2 := s.Ake.Response(s.conf, &identities, s.serverSecretKey, clientPublicKey,
		clientEphemeralPublicKey, ke1, response, op)

	return ke2, nil
}

// FakeRecord builds a decoy client record for an unregistered credential
// identifier. The record is derived deterministically from the OPRF seed, so
// repeated attempts against the same unknown identifier observe identical
// values, and its shape is indistinguishable from a genuine record.
func (s *Server) FakeRecord(credentialIdentifier []byte) (*ClientRecord, error) {
	if s.keyMaterial == nil {
		return nil, ErrNoServerKeyMaterial
	}

	skSeed := s.conf.KDF.Expand(
		s.oprfSeed,
		encoding.SuffixString(credentialIdentifier, tag.FakeClientKey),
		s.conf.Group.ScalarLength(),
	)
	_, fakePublicKey := keyrecovery.AkeKeyPair(s.conf, skSeed)

	maskingKey := s.conf.KDF.Expand(
		s.oprfSeed,
		encoding.SuffixString(credentialIdentifier, tag.FakeMaskingKey),
		s.conf.Hash.Size(),
	)

	return &ClientRecord{
		RegistrationRecord: &message.RegistrationRecord{
			PublicKey:  fakePublicKey.Encode(),
			MaskingKey: maskingKey,
			Envelope:   make([]byte, s.conf.EnvelopeSize),
		},
		CredentialIdentifier: credentialIdentifier,
		ClientIdentity:       nil,
	}, nil
}

// GenerateFakeKE2 responds to a KE1 message for an unregistered credential
// identifier with a well-formed KE2 message that cannot authenticate,
// defending against client enumeration.
func (s *Server) GenerateFakeKE2(
	ke1 *message.KE1,
	credentialIdentifier []byte,
	options ...GenerateKE2Options,
) (*message.KE2, error) {
	record, err := s.FakeRecord(credentialIdentifier)
	if err != nil {
		return nil, err
	}

	return s.GenerateKE2(ke1, record, options...)
}

// LoginFinish returns an error if the KE3 received from the client holds an
// invalid mac, and nil if correct.
func (s *Server) LoginFinish(ke3 *message.KE3) error {
	if !s.Ake.Finalize(s.conf, ke3) {
		return ErrAkeInvalidClientMac
	}

	return nil
}

// SessionKey returns the session key if the previous call to GenerateKE2()
// was successful.
func (s *Server) SessionKey() []byte {
	return s.Ake.SessionKey()
}

// ExpectedMAC returns the expected client MAC if the previous call to
// GenerateKE2() was successful.
func (s *Server) ExpectedMAC() []byte {
	return s.Ake.ExpectedMAC()
}
