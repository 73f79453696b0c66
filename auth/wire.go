// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package auth

import "encoding/base64"

// The wire vocabulary. OPAQUE endpoints carry byte fields as standard
// base64; the OPRF endpoint carries its point as hex. The split is part of
// the interop contract and must not be unified.

// ConfigResponse describes the OPAQUE configuration to clients. A zero
// Argon2MemoryKib denotes the identity KSF (development only).
type ConfigResponse struct {
	CipherSuite       string `json:"cipherSuite"`
	Context           string `json:"context"`
	Argon2MemoryKib   uint32 `json:"argon2MemoryKib"`
	Argon2Iterations  uint32 `json:"argon2Iterations"`
	Argon2Parallelism uint8  `json:"argon2Parallelism"`
}

// RegistrationStartRequest carries the blinded OPRF input.
type RegistrationStartRequest struct {
	CredentialIdentifier string `json:"credentialIdentifier"`
	BlindedElement       string `json:"blindedElement"`
}

// RegistrationStartResponse carries the evaluated element and the server's
// public AKE key.
type RegistrationStartResponse struct {
	EvaluatedElement string `json:"evaluatedElement"`
	ServerPublicKey  string `json:"serverPublicKey"`
}

// RegistrationFinishRequest carries the client's registration record,
// field by field.
type RegistrationFinishRequest struct {
	CredentialIdentifier string `json:"credentialIdentifier"`
	ClientPublicKey      string `json:"clientPublicKey"`
	MaskingKey           string `json:"maskingKey"`
	EnvelopeNonce        string `json:"envelopeNonce"`
	AuthTag              string `json:"authTag"`
}

// RegistrationDeleteRequest names the credential to delete. The bearer token
// authorizing the deletion travels out of band (the Authorization header).
type RegistrationDeleteRequest struct {
	CredentialIdentifier string `json:"credentialIdentifier"`
}

// AuthStartRequest carries KE1.
type AuthStartRequest struct {
	CredentialIdentifier string `json:"credentialIdentifier"`
	BlindedElement       string `json:"blindedElement"`
	ClientNonce          string `json:"clientNonce"`
	ClientAkePublicKey   string `json:"clientAkePublicKey"`
}

// AuthStartResponse carries KE2 and the opaque session token binding it to
// the finish call.
type AuthStartResponse struct {
	SessionToken       string `json:"sessionToken"`
	EvaluatedElement   string `json:"evaluatedElement"`
	MaskingNonce       string `json:"maskingNonce"`
	MaskedResponse     string `json:"maskedResponse"`
	ServerNonce        string `json:"serverNonce"`
	ServerAkePublicKey string `json:"serverAkePublicKey"`
	ServerMac          string `json:"serverMac"`
}

// AuthFinishRequest carries KE3 and the session token from AuthStart.
type AuthFinishRequest struct {
	SessionToken string `json:"sessionToken"`
	ClientMac    string `json:"clientMac"`
}

// AuthFinishResponse carries the session key and the issued bearer token.
type AuthFinishResponse struct {
	SessionKey string `json:"sessionKey"`
	Token      string `json:"token"`
}

// OPRFConfigResponse describes the OPRF ciphersuite.
type OPRFConfigResponse struct {
	CipherSuite string `json:"cipherSuite"`
}

// OPRFRequest carries a blinded element, hex-encoded.
type OPRFRequest struct {
	ECPoint   string `json:"ecPoint"`
	RequestID string `json:"requestId"`
}

// OPRFResponse carries the evaluated element, hex-encoded, and the
// identifier of the evaluating process.
type OPRFResponse struct {
	ECPoint           string `json:"ecPoint"`
	ProcessIdentifier string `json:"processIdentifier"`
}

// decodeField base64-decodes a wire field, enforcing its exact byte length.
// A zero expected length only requires the field to be non-empty.
func decodeField(name, value string, expectedLength int) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, invalidf("field %s: malformed base64", name)
	}

	if expectedLength == 0 {
		if len(raw) == 0 {
			return nil, invalidf("field %s: empty", name)
		}

		return raw, nil
	}

	if len(raw) != expectedLength {
		return nil, invalidf("field %s: expected %d bytes, got %d", name, expectedLength, len(raw))
	}

	return raw, nil
}

func encodeField(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}
