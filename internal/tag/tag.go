// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package tag collects the protocol's domain separation tags and labels.
package tag

// OPRF tags, per RFC 9497. The mode byte and suite name are appended to
// OPRFVersionPrefix when building the context string.
const (
	// OPRFVersionPrefix is the prefix of the OPRF context string.
	OPRFVersionPrefix = "OPRFV1-"

	// OPRFPointPrefix precedes the context string in the hash-to-group DST.
	OPRFPointPrefix = "HashToGroup-"

	// OPRFScalarPrefix precedes the context string in the hash-to-scalar DST.
	OPRFScalarPrefix = "HashToScalar-"

	// DeriveKeyPairPrefix precedes the context string in the DeriveKeyPair
	// DST. Note the absence of a trailing hyphen.
	DeriveKeyPairPrefix = "DeriveKeyPair"

	// OPRFFinalize is the final suffix of the OPRF Finalize hash input.
	OPRFFinalize = "Finalize"
)

// OPAQUE key derivation tags.
const (
	// DeriveKeyPair is the info used to derive per-credential OPRF keys.
	DeriveKeyPair = "OPAQUE-DeriveKeyPair"

	// DeriveDiffieHellmanKeyPair is the info used to derive AKE key pairs.
	DeriveDiffieHellmanKeyPair = "OPAQUE-DeriveDiffieHellmanKeyPair"

	// ExpandOPRF is appended to the credential identifier when expanding the
	// OPRF seed into a per-credential key seed.
	ExpandOPRF = "OprfKey"

	// ExpandPrivateKey is appended to the envelope nonce when deriving the
	// client's AKE key seed.
	ExpandPrivateKey = "PrivateKey"

	// AuthKey is appended to the envelope nonce when deriving the envelope
	// authentication key.
	AuthKey = "AuthKey"

	// ExportKey is appended to the envelope nonce when deriving the export key.
	ExportKey = "ExportKey"

	// MaskingKey expands the randomized password into the record masking key.
	MaskingKey = "MaskingKey"

	// CredentialResponsePad is appended to the masking nonce when expanding
	// the masking key into the credential response pad.
	CredentialResponsePad = "CredentialResponsePad"
)

// 3DH transcript and key schedule tags.
const (
	// VersionTag initiates the AKE transcript.
	VersionTag = "OPAQUEv1-"

	// LabelPrefix precedes every HKDF-Expand-Label label.
	LabelPrefix = "OPAQUE-"

	// Handshake is the label of the handshake secret.
	Handshake = "HandshakeSecret"

	// SessionKey is the label of the session secret.
	SessionKey = "SessionKey"

	// MacServer is the label of the server MAC key.
	MacServer = "ServerMAC"

	// MacClient is the label of the client MAC key.
	MacClient = "ClientMAC"
)

// Fake record derivation tags, used when answering for unknown credentials.
const (
	// FakeClientKey is appended to the credential identifier when deriving
	// the decoy client key seed.
	FakeClientKey = "FakeClientKey"

	// FakeMaskingKey is appended to the credential identifier when deriving
	// the decoy masking key.
	FakeMaskingKey = "FakeMaskingKey"
)
