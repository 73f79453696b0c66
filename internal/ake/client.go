// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package ake

import (
	"errors"

	"github.com/bytemare/ecc"

	"github.com/acheron-labs/opaque/internal"
	"github.com/acheron-labs/opaque/message"
)

// ErrAkeInvalidServerMac indicates that the MAC contained in the KE2 message
// is not valid in the given session.
var ErrAkeInvalidServerMac = errors.New("failed to authenticate server: invalid server mac")

// Client exposes the client's AKE functions and holds its state.
type Client struct {
	ephemeralSecretKey *ecc.Scalar
	nonce              []byte
}

// NewClient returns a new, empty, 3DH client.
func NewClient() *Client {
	return &Client{
		ephemeralSecretKey: nil,
		nonce:              nil,
	}
}

// Start generates the client's session nonce and ephemeral key pair, and
// returns the nonce and public key share for KE1.
func (c *Client) Start(conf *internal.Configuration, options Options) (nonce, epk []byte) {
	c.ephemeralSecretKey, c.nonce = setValues(conf, options)
	publicKeyshare := conf.Group.Base().Multiply(c.ephemeralSecretKey)

	return c.nonce, publicKeyshare.Encode()
}

// Finalize runs the client side of the 3DH: it recomputes the transcript,
// verifies the server MAC in constant time, and returns KE3 and the session
// key.
func (c *Client) Finalize(
	conf *internal.Configuration,
	identities *Identities,
	clientSecretKey *ecc.Scalar,
	serverPublicKey *ecc.Element,
	serverEphemeralPublicKey *ecc.Element,
	ke1 *message.KE1,
	ke2 *message.KE2,
) (ke3 *message.KE3, sessionSecret []byte, err error) {
	ikm := k3dh(
		serverEphemeralPublicKey, c.ephemeralSecretKey,
		serverPublicKey, c.ephemeralSecretKey,
		serverEphemeralPublicKey, clientSecretKey,
	)

	sessionSecret, serverMac, clientMac := core3DH(conf, identities, ikm, ke1, ke2)

	if !conf.MAC.Equal(serverMac, ke2.ServerMac) {
		return nil, nil, ErrAkeInvalidServerMac
	}

	return &message.KE3{ClientMac: clientMac}, sessionSecret, nil
}

// Flush sets all the client's session related internal AKE values to nil.
func (c *Client) Flush() {
	c.ephemeralSecretKey = nil
	c.nonce = nil
}
