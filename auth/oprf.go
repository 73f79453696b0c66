// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package auth

import (
	"encoding/hex"

	"github.com/bytemare/ecc"

	"github.com/acheron-labs/opaque"
)

// oprfMasterKeyInfo is the derivation info binding the standalone OPRF
// endpoint's key to the master key.
const oprfMasterKeyInfo = "OprfMasterKey"

// oprfEndpoint holds the standalone OPRF evaluation key, derived once from
// the master key at construction.
type oprfEndpoint struct {
	suite opaque.Suite
	key   *ecc.Scalar
}

func newOPRFEndpoint(conf *opaque.Configuration, masterKey []byte) oprfEndpoint {
	return oprfEndpoint{
		suite: conf.Suite,
		key:   conf.Suite.OPRF().DeriveKey(masterKey, []byte(oprfMasterKeyInfo)),
	}
}

// OPRFConfig reports the OPRF ciphersuite.
func (o *Orchestrator) OPRFConfig() OPRFConfigResponse {
	return OPRFConfigResponse{CipherSuite: o.conf.Suite.String()}
}

// OPRFEvaluate multiplies the submitted blinded element by the server's OPRF
// key. This endpoint speaks hex, unlike the OPAQUE endpoints.
func (o *Orchestrator) OPRFEvaluate(req OPRFRequest) (OPRFResponse, error) {
	raw, err := hex.DecodeString(req.ECPoint)
	if err != nil {
		return OPRFResponse{}, invalidf("field ecPoint: malformed hex")
	}

	element, err := o.deserializer.Element(raw)
	if err != nil {
		return OPRFResponse{}, invalidf("field ecPoint: %v", err)
	}

	evaluated := o.oprf.suite.OPRF().Evaluate(o.oprf.key, element)
	o.log.Debug("oprf evaluated", "requestId", req.RequestID)

	return OPRFResponse{
		ECPoint:           hex.EncodeToString(evaluated.Encode()),
		ProcessIdentifier: o.processID,
	}, nil
}
