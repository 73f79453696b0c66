// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package ake provides high-level functions for the 3DH AKE.
package ake

import (
	"github.com/bytemare/ecc"

	"github.com/acheron-labs/opaque/internal"
	"github.com/acheron-labs/opaque/internal/encoding"
	"github.com/acheron-labs/opaque/internal/tag"
	"github.com/acheron-labs/opaque/message"
)

// Identities holds the optional client and server identities bound into the
// transcript and the envelope.
type Identities struct {
	ClientIdentity []byte
	ServerIdentity []byte
}

// SetIdentities defaults absent identities to the respective public keys.
func (i *Identities) SetIdentities(clientPublicKey, serverPublicKey []byte) {
	if len(i.ClientIdentity) == 0 {
		i.ClientIdentity = clientPublicKey
	}

	if len(i.ServerIdentity) == 0 {
		i.ServerIdentity = serverPublicKey
	}
}

// KeyGen returns a fresh private and public key pair in the group.
func KeyGen(g ecc.Group) (sk, pk []byte) {
	scalar := g.NewScalar().Random()
	publicKey := g.Base().Multiply(scalar)

	return scalar.Encode(), publicKey.Encode()
}

// Options force deterministic ephemeral values; both default to fresh
// random values when unset.
type Options struct {
	EphemeralSecretKey *ecc.Scalar
	Nonce              []byte
}

func setValues(conf *internal.Configuration, op Options) (esk *ecc.Scalar, nonce []byte) {
	esk = op.EphemeralSecretKey
	if esk == nil {
		esk = conf.Group.NewScalar().Random()
	}

	nonce = op.Nonce
	if len(nonce) == 0 {
		nonce = conf.RandomBytes(conf.NonceLen)
	}

	return esk, nonce
}

func buildLabel(length int, label, context []byte) []byte {
	return encoding.Concat3(
		encoding.I2OSP(length, 2),
		encoding.EncodeVectorLen(append([]byte(tag.LabelPrefix), label...), 1),
		encoding.EncodeVectorLen(context, 1))
}

func expandLabel(h *internal.KDF, secret, label, context []byte) []byte {
	hkdfLabel := buildLabel(h.Size(), label, context)
	return h.Expand(secret, hkdfLabel, h.Size())
}

func deriveSecret(h *internal.KDF, secret, label, context []byte) []byte {
	return expandLabel(h, secret, label, context)
}

// initTranscript writes the preamble: version tag, context, client identity,
// KE1, server identity, credential response, server nonce and key share.
func initTranscript(conf *internal.Configuration, t internal.Transcript, identities *Identities, ke1 *message.KE1, ke2 *message.KE2) {
	t.Write(
		[]byte(tag.VersionTag),
		encoding.EncodeVector(conf.Context),
		encoding.EncodeVector(identities.ClientIdentity),
		ke1.Serialize(),
		encoding.EncodeVector(identities.ServerIdentity),
		ke2.CredentialResponse.Serialize(),
		ke2.ServerNonce,
		ke2.ServerPublicKeyshare,
	)
}

type macKeys struct {
	serverMacKey, clientMacKey []byte
}

func deriveKeys(h *internal.KDF, ikm, preambleHash []byte) (k *macKeys, sessionSecret []byte) {
	prk := h.Extract(nil, ikm)
	k = &macKeys{}
	handshakeSecret := deriveSecret(h, prk, []byte(tag.Handshake), preambleHash)
	sessionSecret = deriveSecret(h, prk, []byte(tag.SessionKey), preambleHash)
	k.serverMacKey = expandLabel(h, handshakeSecret, []byte(tag.MacServer), nil)
	k.clientMacKey = expandLabel(h, handshakeSecret, []byte(tag.MacClient), nil)

	return k, sessionSecret
}

func k3dh(
	p1 *ecc.Element, s1 *ecc.Scalar,
	p2 *ecc.Element, s2 *ecc.Scalar,
	p3 *ecc.Element, s3 *ecc.Scalar,
) []byte {
	e1 := p1.Copy().Multiply(s1).Encode()
	e2 := p2.Copy().Multiply(s2).Encode()
	e3 := p3.Copy().Multiply(s3).Encode()

	return encoding.Concat3(e1, e2, e3)
}

// core3DH runs the key schedule over the shared secret and transcript. The
// client MAC covers the hash of preamble || serverMac, continuing the same
// running transcript.
func core3DH(
	conf *internal.Configuration,
	identities *Identities,
	ikm []byte,
	ke1 *message.KE1,
	ke2 *message.KE2,
) (sessionSecret, serverMac, clientMac []byte) {
	t := conf.Hash.New()
	initTranscript(conf, t, identities, ke1, ke2)
	preambleHash := t.Sum()

	keys, sessionSecret := deriveKeys(conf.KDF, ikm, preambleHash)
	serverMac = conf.MAC.MAC(keys.serverMacKey, preambleHash)

	t.Write(serverMac)
	clientMac = conf.MAC.MAC(keys.clientMacKey, t.Sum())

	return sessionSecret, serverMac, clientMac
}
