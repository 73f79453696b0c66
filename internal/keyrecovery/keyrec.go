// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package keyrecovery seals and opens the client's key envelope: the
// authenticated blob from which the client's static AKE key pair is
// reconstructed out of the randomized password.
package keyrecovery

import (
	"errors"

	"github.com/bytemare/ecc"

	"github.com/acheron-labs/opaque/internal"
	"github.com/acheron-labs/opaque/internal/encoding"
	"github.com/acheron-labs/opaque/internal/tag"
)

// ErrEnvelopeInvalidTag indicates the envelope auth tag did not verify,
// i.e. the password (or the record) is wrong.
var ErrEnvelopeInvalidTag = errors.New("key recovery: invalid envelope authentication tag")

// AkeKeyPair derives a static AKE key pair from a secret seed.
func AkeKeyPair(conf *internal.Configuration, seed []byte) (*ecc.Scalar, *ecc.Element) {
	sk := conf.OPRF.DeriveKey(seed, []byte(tag.DeriveDiffieHellmanKeyPair))
	return sk, conf.Group.Base().Multiply(sk)
}

func deriveAkeKeyPair(conf *internal.Configuration, randomizedPwd, nonce []byte) (*ecc.Scalar, *ecc.Element) {
	seed := conf.KDF.Expand(
		randomizedPwd,
		encoding.SuffixString(nonce, tag.ExpandPrivateKey),
		conf.Group.ScalarLength(),
	)

	return AkeKeyPair(conf, seed)
}

// MaskingKey expands the randomized password into the record masking key.
// Unlike the other envelope keys it is not bound to the envelope nonce: the
// server must re-derive the pad from the stored record alone.
func MaskingKey(conf *internal.Configuration, randomizedPwd []byte) []byte {
	return conf.KDF.Expand(randomizedPwd, []byte(tag.MaskingKey), conf.Hash.Size())
}

func authKey(conf *internal.Configuration, randomizedPwd, nonce []byte) []byte {
	return conf.KDF.Expand(randomizedPwd, encoding.SuffixString(nonce, tag.AuthKey), conf.Hash.Size())
}

func exportKey(conf *internal.Configuration, randomizedPwd, nonce []byte) []byte {
	return conf.KDF.Expand(randomizedPwd, encoding.SuffixString(nonce, tag.ExportKey), conf.Hash.Size())
}

// cleartextCredentials binds the envelope tag to the server public key and
// both identities. Absent identities default to the respective public keys.
func cleartextCredentials(clientPublicKey, serverPublicKey, clientIdentity, serverIdentity []byte) []byte {
	if len(serverIdentity) == 0 {
		serverIdentity = serverPublicKey
	}

	if len(clientIdentity) == 0 {
		clientIdentity = clientPublicKey
	}

	return encoding.Concat3(
		serverPublicKey,
		encoding.EncodeVector(serverIdentity),
		encoding.EncodeVector(clientIdentity),
	)
}

// Store seals a fresh envelope for the given randomized password and returns
// the envelope bytes (nonce || tag), the client's public key, the masking
// key, and the export key. When envelopeNonce is nil a fresh nonce is drawn;
// tests inject fixed nonces.
func Store(
	conf *internal.Configuration,
	randomizedPwd, serverPublicKey, clientIdentity, serverIdentity, envelopeNonce []byte,
) (envelope []byte, clientPublicKey *ecc.Element, maskingKey, export []byte) {
	if len(envelopeNonce) == 0 {
		envelopeNonce = conf.RandomBytes(conf.NonceLen)
	}

	maskingKey = MaskingKey(conf, randomizedPwd)
	export = exportKey(conf, randomizedPwd, envelopeNonce)

	_, clientPublicKey = deriveAkeKeyPair(conf, randomizedPwd, envelopeNonce)

	creds := cleartextCredentials(clientPublicKey.Encode(), serverPublicKey, clientIdentity, serverIdentity)
	authTag := conf.MAC.MAC(
		authKey(conf, randomizedPwd, envelopeNonce),
		encoding.Concat(envelopeNonce, creds),
	)

	return encoding.Concat(envelopeNonce, authTag), clientPublicKey, maskingKey, export
}

// Recover opens an envelope, verifying its auth tag in constant time, and
// returns the client's key pair and the export key.
func Recover(
	conf *internal.Configuration,
	randomizedPwd, serverPublicKey, clientIdentity, serverIdentity, envelope []byte,
) (clientSecretKey *ecc.Scalar, clientPublicKey *ecc.Element, export []byte, err error) {
	nonce := envelope[:conf.NonceLen]
	authTag := envelope[conf.NonceLen:]

	export = exportKey(conf, randomizedPwd, nonce)
	clientSecretKey, clientPublicKey = deriveAkeKeyPair(conf, randomizedPwd, nonce)

	creds := cleartextCredentials(clientPublicKey.Encode(), serverPublicKey, clientIdentity, serverIdentity)
	expected := conf.MAC.MAC(
		authKey(conf, randomizedPwd, nonce),
		encoding.Concat(nonce, creds),
	)

	if !conf.MAC.Equal(expected, authTag) {
		return nil, nil, nil, ErrEnvelopeInvalidTag
	}

	return clientSecretKey, clientPublicKey, export, nil
}
