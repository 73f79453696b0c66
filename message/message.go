// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package message provides the protocol's wire messages. All fields hold
// canonical byte encodings: compressed SEC1 for group elements, fixed-width
// big-endian for scalars. Serialization is plain concatenation; the fields
// are fixed-size within a ciphersuite, so no length prefixes are needed.
package message

import "github.com/acheron-labs/opaque/internal/encoding"

// RegistrationRequest is the first message of registration, from client to
// server.
type RegistrationRequest struct {
	// BlindedMessage is the blinded OPRF input.
	BlindedMessage []byte
}

// Serialize returns the byte encoding of the message.
func (r *RegistrationRequest) Serialize() []byte {
	return r.BlindedMessage
}

// RegistrationResponse is the second message of registration, from server to
// client.
type RegistrationResponse struct {
	// EvaluatedMessage is the OPRF evaluation of the blinded message.
	EvaluatedMessage []byte

	// Pks is the server's public AKE key.
	Pks []byte
}

// Serialize returns the byte encoding of the message.
func (r *RegistrationResponse) Serialize() []byte {
	return encoding.Concat(r.EvaluatedMessage, r.Pks)
}

// RegistrationRecord is the final message of registration, stored verbatim
// by the server.
type RegistrationRecord struct {
	// PublicKey is the client's public AKE key.
	PublicKey []byte

	// MaskingKey encrypts the credential response on login.
	MaskingKey []byte

	// Envelope is the client's key envelope: nonce || auth tag.
	Envelope []byte
}

// Serialize returns the byte encoding of the record.
func (r *RegistrationRecord) Serialize() []byte {
	return encoding.Concat3(r.PublicKey, r.MaskingKey, r.Envelope)
}

// Copy returns a deep copy of the record.
func (r *RegistrationRecord) Copy() *RegistrationRecord {
	return &RegistrationRecord{
		PublicKey:  append([]byte(nil), r.PublicKey...),
		MaskingKey: append([]byte(nil), r.MaskingKey...),
		Envelope:   append([]byte(nil), r.Envelope...),
	}
}

// CredentialRequest is the OPRF part of KE1.
type CredentialRequest struct {
	// BlindedMessage is the blinded OPRF input.
	BlindedMessage []byte
}

// Serialize returns the byte encoding of the request.
func (c *CredentialRequest) Serialize() []byte {
	return c.BlindedMessage
}

// CredentialResponse is the OPRF and masked-record part of KE2.
type CredentialResponse struct {
	// EvaluatedMessage is the OPRF evaluation of the blinded message.
	EvaluatedMessage []byte

	// MaskingNonce seeds the credential response pad.
	MaskingNonce []byte

	// MaskedResponse is the xor-masked serverPublicKey || envelope.
	MaskedResponse []byte
}

// Serialize returns the byte encoding of the response.
func (c *CredentialResponse) Serialize() []byte {
	return encoding.Concat3(c.EvaluatedMessage, c.MaskingNonce, c.MaskedResponse)
}

// KE1 is the first message of the AKE, from client to server.
type KE1 struct {
	*CredentialRequest

	// ClientNonce is the client's fresh session nonce.
	ClientNonce []byte

	// ClientPublicKeyshare is the client's ephemeral public AKE key.
	ClientPublicKeyshare []byte
}

// Serialize returns the byte encoding of the message.
func (k *KE1) Serialize() []byte {
	return encoding.Concat3(k.CredentialRequest.Serialize(), k.ClientNonce, k.ClientPublicKeyshare)
}

// KE2 is the second message of the AKE, from server to client.
type KE2 struct {
	*CredentialResponse

	// ServerNonce is the server's fresh session nonce.
	ServerNonce []byte

	// ServerPublicKeyshare is the server's ephemeral public AKE key.
	ServerPublicKeyshare []byte

	// ServerMac authenticates the transcript up to and including KE2.
	ServerMac []byte
}

// Serialize returns the byte encoding of the message.
func (k *KE2) Serialize() []byte {
	return encoding.Concatenate(k.CredentialResponse.Serialize(), k.ServerNonce, k.ServerPublicKeyshare, k.ServerMac)
}

// KE3 is the third message of the AKE, from client to server.
type KE3 struct {
	// ClientMac authenticates the full transcript.
	ClientMac []byte
}

// Serialize returns the byte encoding of the message.
func (k *KE3) Serialize() []byte {
	return k.ClientMac
}
