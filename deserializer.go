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
	"github.com/acheron-labs/opaque/message"
)

var (
	// ErrInvalidMessageLength indicates the message has an invalid length for
	// the configuration.
	ErrInvalidMessageLength = errors.New("invalid message length for the configuration")

	// ErrInvalidElement indicates a message field is not a valid group
	// element: wrong encoding, off-curve, or the point at infinity.
	ErrInvalidElement = errors.New("invalid group element")
)

// Deserializer validates and decodes serialized messages in a given
// configuration. Every group element field is fully validated: a wrong-length
// encoding, an off-curve point, or the identity is rejected.
type Deserializer struct {
	conf *internal.Configuration
}

// element decodes and validates a compressed group element.
func (d *Deserializer) element(input []byte) (*ecc.Element, error) {
	if len(input) != d.conf.Group.ElementLength() {
		return nil, ErrInvalidElement
	}

	e := d.conf.Group.NewElement()
	if err := e.Decode(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidElement, err)
	}

	if e.IsIdentity() {
		return nil, fmt.Errorf("%w: identity element", ErrInvalidElement)
	}

	return e, nil
}

// Element decodes and validates a compressed group element from its byte
// encoding.
func (d *Deserializer) Element(input []byte) (*ecc.Element, error) {
	return d.element(input)
}

// RegistrationRequest decodes a serialized RegistrationRequest message.
func (d *Deserializer) RegistrationRequest(input []byte) (*message.RegistrationRequest, error) {
	if len(input) != d.conf.Group.ElementLength() {
		return nil, ErrInvalidMessageLength
	}

	if _, err := d.element(input); err != nil {
		return nil, fmt.Errorf("blinded message: %w", err)
	}

	return &message.RegistrationRequest{BlindedMessage: input}, nil
}

// RegistrationResponse decodes a serialized RegistrationResponse message.
func (d *Deserializer) RegistrationResponse(input []byte) (*message.RegistrationResponse, error) {
	npk := d.conf.Group.ElementLength()
	if len(input) != 2*npk {
		return nil, ErrInvalidMessageLength
	}

	if _, err := d.element(input[:npk]); err != nil {
		return nil, fmt.Errorf("evaluated message: %w", err)
	}

	if _, err := d.element(input[npk:]); err != nil {
		return nil, fmt.Errorf("server public key: %w", err)
	}

	return &message.RegistrationResponse{
		EvaluatedMessage: input[:npk],
		Pks:              input[npk:],
	}, nil
}

// RegistrationRecord decodes a serialized RegistrationRecord message.
func (d *Deserializer) RegistrationRecord(input []byte) (*message.RegistrationRecord, error) {
	npk := d.conf.Group.ElementLength()
	nh := d.conf.Hash.Size()

	if len(input) != npk+nh+d.conf.EnvelopeSize {
		return nil, ErrInvalidMessageLength
	}

	if _, err := d.element(input[:npk]); err != nil {
		return nil, fmt.Errorf("client public key: %w", err)
	}

	return &message.RegistrationRecord{
		PublicKey:  input[:npk],
		MaskingKey: input[npk : npk+nh],
		Envelope:   input[npk+nh:],
	}, nil
}

// KE1 decodes a serialized KE1 message.
func (d *Deserializer) KE1(input []byte) (*message.KE1, error) {
	npk := d.conf.Group.ElementLength()

	if len(input) != npk+d.conf.NonceLen+npk {
		return nil, ErrInvalidMessageLength
	}

	if _, err := d.element(input[:npk]); err != nil {
		return nil, fmt.Errorf("blinded message: %w", err)
	}

	if _, err := d.element(input[npk+d.conf.NonceLen:]); err != nil {
		return nil, fmt.Errorf("client public key share: %w", err)
	}

	return &message.KE1{
		CredentialRequest:    &message.CredentialRequest{BlindedMessage: input[:npk]},
		ClientNonce:          input[npk : npk+d.conf.NonceLen],
		ClientPublicKeyshare: input[npk+d.conf.NonceLen:],
	}, nil
}

// KE2 decodes a serialized KE2 message.
func (d *Deserializer) KE2(input []byte) (*message.KE2, error) {
	npk := d.conf.Group.ElementLength()
	responseLength := npk + d.conf.NonceLen + npk + d.conf.EnvelopeSize

	if len(input) != responseLength+d.conf.NonceLen+npk+d.conf.MAC.Size() {
		return nil, ErrInvalidMessageLength
	}

	if _, err := d.element(input[:npk]); err != nil {
		return nil, fmt.Errorf("evaluated message: %w", err)
	}

	offset := responseLength + d.conf.NonceLen
	if _, err := d.element(input[offset : offset+npk]); err != nil {
		return nil, fmt.Errorf("server public key share: %w", err)
	}

	return &message.KE2{
		CredentialResponse: &message.CredentialResponse{
			EvaluatedMessage: input[:npk],
			MaskingNonce:     input[npk : npk+d.conf.NonceLen],
			MaskedResponse:   input[npk+d.conf.NonceLen : responseLength],
		},
		ServerNonce:          input[responseLength:offset],
		ServerPublicKeyshare: input[offset : offset+npk],
		ServerMac:            input[offset+npk:],
	}, nil
}

// KE3 decodes a serialized KE3 message.
func (d *Deserializer) KE3(input []byte) (*message.KE3, error) {
	if len(input) != d.conf.MAC.Size() {
		return nil, ErrInvalidMessageLength
	}

	return &message.KE3{ClientMac: input}, nil
}
