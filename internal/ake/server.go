// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package ake

import (
	"github.com/bytemare/ecc"

	"github.com/acheron-labs/opaque/internal"
	"github.com/acheron-labs/opaque/message"
)

// Server exposes the server's AKE functions and holds its state.
type Server struct {
	ephemeralSecretKey *ecc.Scalar
	nonce              []byte
	clientMac          []byte
	sessionSecret      []byte
}

// NewServer returns a new, empty, 3DH server.
func NewServer() *Server {
	return &Server{
		ephemeralSecretKey: nil,
		nonce:              nil,
		clientMac:          nil,
		sessionSecret:      nil,
	}
}

// Response produces a 3DH server response message and retains the expected
// client MAC and session secret.
func (s *Server) Response(
	conf *internal.Configuration,
	identities *Identities,
	serverSecretKey *ecc.Scalar,
	clientPublicKey *ecc.Element,
	clientEphemeralPublicKey *ecc.Element,
	ke1 *message.KE1,
	response *message.CredentialResponse,
	options Options,
) *message.KE2 {
	s.ephemeralSecretKey, s.nonce = setValues(conf, options)
	epks := conf.Group.Base().Multiply(s.ephemeralSecretKey)

	ke2 := &message.KE2{
		CredentialResponse:   response,
		ServerNonce:          s.nonce,
		ServerPublicKeyshare: epks.Encode(),
		ServerMac:            nil,
	}

	ikm := k3dh(
		clientEphemeralPublicKey, s.ephemeralSecretKey,
		clientEphemeralPublicKey, serverSecretKey,
		clientPublicKey, s.ephemeralSecretKey,
	)

	sessionSecret, serverMac, clientMac := core3DH(conf, identities, ikm, ke1, ke2)
	s.sessionSecret = sessionSecret
	s.clientMac = clientMac
	ke2.ServerMac = serverMac

	return ke2
}

// Finalize verifies, in constant time, the authentication tag contained in
// ke3.
func (s *Server) Finalize(conf *internal.Configuration, ke3 *message.KE3) bool {
	return conf.MAC.Equal(s.clientMac, ke3.ClientMac)
}

// SessionKey returns the secret shared session key if a previous call to
// Response() was successful.
func (s *Server) SessionKey() []byte {
	return s.sessionSecret
}

// ExpectedMAC returns the expected client MAC if a previous call to
// Response() was successful.
func (s *Server) ExpectedMAC() []byte {
	return s.clientMac
}

// Flush sets all the server's session related internal AKE values to nil.
func (s *Server) Flush() {
	s.ephemeralSecretKey = nil
	s.nonce = nil
	s.clientMac = nil
	s.sessionSecret = nil
}
