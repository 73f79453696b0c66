// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package masking covers the credential response with a keyed pad, hiding
// the stored record from passive observers of the login flow.
package masking

import (
	"github.com/acheron-labs/opaque/internal"
	"github.com/acheron-labs/opaque/internal/encoding"
	"github.com/acheron-labs/opaque/internal/tag"
)

// pad expands the masking key and nonce into a pad covering the server
// public key and the envelope.
func pad(conf *internal.Configuration, maskingKey, maskingNonce []byte) []byte {
	return conf.KDF.Expand(
		maskingKey,
		encoding.SuffixString(maskingNonce, tag.CredentialResponsePad),
		conf.Group.ElementLength()+conf.EnvelopeSize,
	)
}

// Mask masks serverPublicKey || envelope under the record's masking key.
// When maskingNonce is nil a fresh nonce is drawn; tests inject fixed nonces.
func Mask(conf *internal.Configuration, maskingNonce, maskingKey, serverPublicKey, envelope []byte) (nonce, maskedResponse []byte) {
	if len(maskingNonce) == 0 {
		maskingNonce = conf.RandomBytes(conf.NonceLen)
	}

	plaintext := encoding.Concat(serverPublicKey, envelope)
	maskedResponse = encoding.Xor(pad(conf, maskingKey, maskingNonce), plaintext)

	return maskingNonce, maskedResponse
}

// Unmask recovers the server public key and the envelope from a masked
// credential response.
func Unmask(conf *internal.Configuration, maskingKey, maskingNonce, maskedResponse []byte) (serverPublicKey, envelope []byte) {
	unmasked := encoding.Xor(pad(conf, maskingKey, maskingNonce), maskedResponse)

	return unmasked[:conf.Group.ElementLength()], unmasked[conf.Group.ElementLength():]
}
