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
	"github.com/acheron-labs/opaque/internal/oprf"
	"github.com/acheron-labs/opaque/message"
)

// ErrAuthenticationFailed covers every client-side authentication failure:
// a wrong password, a tampered record, or a tampered KE2 all surface as this
// error, without revealing which check failed first.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Client exposes the client's OPAQUE functions. It is stateless; every run
// of the protocol carries its transient values in a dedicated state object.
type Client struct {
	Deserialize *Deserializer
	conf        *internal.Configuration
}

// NewClient returns a Client instantiation given the application
// Configuration.
func NewClient(c *Configuration) (*Client, error) {
	if c == nil {
		c = DefaultConfiguration()
	}

	conf, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	return &Client{
		Deserialize: &Deserializer{conf: conf},
		conf:        conf,
	}, nil
}

// ClientOptions force deterministic protocol values for test vectors. All
// fields default to fresh random values when unset.
type ClientOptions struct {
	// Blind overrides the OPRF blinding scalar.
	Blind *ecc.Scalar

	// EphemeralSecretKey overrides the AKE ephemeral secret key (KE1 only).
	EphemeralSecretKey *ecc.Scalar

	// Nonce overrides the session nonce (KE1 only).
	Nonce []byte
}

// FinalizeOptions carry the optional identities bound into the envelope and
// the transcript, and an envelope nonce override for test vectors.
type FinalizeOptions struct {
	ClientIdentity []byte
	ServerIdentity []byte

	// EnvelopeNonce overrides the envelope nonce (registration only).
	EnvelopeNonce []byte
}

// ClientRegistrationState holds a registration run's transient values. The
// password buffer is zeroed when the state is cleared; the blind scalar is
// dropped on a best-effort basis.
type ClientRegistrationState struct {
	oprf     *oprf.Client
	password []byte
}

// Clear zeroes the retained password bytes and drops the blinding state.
func (s *ClientRegistrationState) Clear() {
	encoding.Zeroize(s.password)
	s.password = nil

	if s.oprf != nil {
		s.oprf.Flush()
	}
}

// ClientAuthState holds an authentication run's transient values between KE1
// and KE3.
type ClientAuthState struct {
	oprf     *oprf.Client
	ake      *ake.Client
	ke1      *message.KE1
	password []byte
}

// Clear zeroes the retained password bytes and drops the blinding and
// ephemeral-key state.
func (s *ClientAuthState) Clear() {
	encoding.Zeroize(s.password)
	s.password = nil
	s.ke1 = nil

	if s.oprf != nil {
		s.oprf.Flush()
	}

	if s.ake != nil {
		s.ake.Flush()
	}
}

func getClientOptions(options []ClientOptions) ClientOptions {
	if len(options) != 0 {
		return options[0]
	}

	return ClientOptions{}
}

func getFinalizeOptions(options []FinalizeOptions) FinalizeOptions {
	if len(options) != 0 {
		return options[0]
	}

	return FinalizeOptions{}
}

// buildRandomizedPwd derives the randomized password from the OPRF output
// and its stretched form.
func buildRandomizedPwd(conf *internal.Configuration, oprfOutput []byte) []byte {
	stretched := conf.KSF.Harden(oprfOutput, conf.Hash.Size())
	return conf.KDF.Extract(nil, encoding.Concat(oprfOutput, stretched))
}

// RegistrationInit blinds the password and returns the RegistrationRequest
// to send to the server, along with the run's transient state.
func (c *Client) RegistrationInit(password []byte, options ...ClientOptions) (*message.RegistrationRequest, *ClientRegistrationState) {
	op := getClientOptions(options)

	state := &ClientRegistrationState{
		oprf:     c.conf.OPRF.Client(),
		password: append([]byte(nil), password...),
	}
	blinded := state.oprf.Blind(state.password, op.Blind)

	return &message.RegistrationRequest{BlindedMessage: blinded.Encode()}, state
}

// RegistrationFinalize unblinds the server's evaluation, derives the
// randomized password, seals the envelope, and returns the record to upload
// together with the export key. The state is cleared on return.
func (c *Client) RegistrationFinalize(
	state *ClientRegistrationState,
	response *message.RegistrationResponse,
	options ...FinalizeOptions,
) (record *message.RegistrationRecord, exportKey []byte, err error) {
	defer state.Clear()

	op := getFinalizeOptions(options)

	evaluated, err := c.Deserialize.element(response.EvaluatedMessage)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluated message: %w", err)
	}

	if _, err = c.Deserialize.element(response.Pks); err != nil {
		return nil, nil, fmt.Errorf("server public key: %w", err)
	}

	randomizedPwd := buildRandomizedPwd(c.conf, state.oprf.Finalize(evaluated))

	envelope, clientPublicKey, maskingKey, exportKey := keyrecovery.Store(
		c.conf, randomizedPwd, response.Pks, op.ClientIdentity, op.ServerIdentity, op.EnvelopeNonce,
	)

	return &message.RegistrationRecord{
		PublicKey:  clientPublicKey.Encode(),
		MaskingKey: maskingKey,
		Envelope:   envelope,
	}, exportKey, nil
}

// GenerateKE1 blinds the password, generates the session nonce and the
// ephemeral key pair, and returns KE1 with the run's transient state.
func (c *Client) GenerateKE1(password []byte, options ...ClientOptions) (*message.KE1, *ClientAuthState) {
	op := getClientOptions(options)

	state := &ClientAuthState{
		oprf:     c.conf.OPRF.Client(),
		ake:      ake.NewClient(),
		password: append([]byte(nil), password...),
	}

	blinded := state.oprf.Blind(state.password, op.Blind)
	nonce, epk := state.ake.Start(c.conf, ake.Options{
		EphemeralSecretKey: op.EphemeralSecretKey,
		Nonce:              op.Nonce,
	})

	state.ke1 = &message.KE1{
		CredentialRequest:    &message.CredentialRequest{BlindedMessage: blinded.Encode()},
		ClientNonce:          nonce,
		ClientPublicKeyshare: epk,
	}

	return state.ke1, state
}

// GenerateKE3 recovers the credentials from KE2, verifies the server MAC,
// and returns KE3 together with the session key and the export key. A wrong
// password, a bad envelope, or a bad server MAC surfaces as
// ErrAuthenticationFailed; an invalid evaluated element or server key share
// in KE2 surfaces as an ErrInvalidElement error. The state is cleared on
// return; no KE3 is produced on failure.
func (c *Client) GenerateKE3(
	state *ClientAuthState,
	ke2 *message.KE2,
	options ...FinalizeOptions,
) (ke3 *message.KE3, sessionKey, exportKey []byte, err error) {
	defer state.Clear()

	op := getFinalizeOptions(options)

	evaluated, err := c.Deserialize.element(ke2.EvaluatedMessage)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("evaluated message: %w", err)
	}

	randomizedPwd := buildRandomizedPwd(c.conf, state.oprf.Finalize(evaluated))
	maskingKey := keyrecovery.MaskingKey(c.conf, randomizedPwd)

	serverPublicKeyBytes, envelope := masking.Unmask(c.conf, maskingKey, ke2.MaskingNonce, ke2.MaskedResponse)

	serverPublicKey, err := c.Deserialize.element(serverPublicKeyBytes)
	if err != nil {
		// An implausible unmasking result means the password was wrong.
		return nil, nil, nil, fmt.Errorf("%w: unmasked server public key: %w", ErrAuthenticationFailed, err)
	}

	clientSecretKey, clientPublicKey, exportKey, err := keyrecovery.Recover(
		c.conf, randomizedPwd, serverPublicKeyBytes, op.ClientIdentity, op.ServerIdentity, envelope,
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	serverEphemeralPublicKey, err := c.Deserialize.element(ke2.ServerPublicKeyshare)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("server public key share: %w", err)
	}

	identities := ake.Identities{
		ClientIdentity: op.ClientIdentity,
		ServerIdentity: op.ServerIdentity,
	}
	identities.SetIdentities(clientPublicKey.Encode(), serverPublicKeyBytes)

	ke3, sessionKey, err = state.ake.Finalize(
		c.conf, &identities, clientSecretKey, serverPublicKey, serverEphemeralPublicKey, state.ke1, ke2,
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	return ke3, sessionKey, exportKey, nil
}
