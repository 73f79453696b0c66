// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTManager issues and verifies HMAC-signed bearer tokens. Every issued
// token has a matching row in the session store; verification requires the
// row to still be live, which makes revocation immediate.
type JWTManager struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
	sessions SessionStore
	now      func() time.Time
}

// NewJWTManager returns a JWTManager signing with the given secret.
func NewJWTManager(secret []byte, issuer string, lifetime time.Duration, sessions SessionStore, now func() time.Time) *JWTManager {
	if now == nil {
		now = time.Now
	}

	return &JWTManager{
		secret:   secret,
		issuer:   issuer,
		lifetime: lifetime,
		sessions: sessions,
		now:      now,
	}
}

// Issue creates a token for the credential, writes the backing session row,
// and returns the signed token and its jti.
func (m *JWTManager) Issue(credentialIdentifier string, sessionKey []byte) (token, jti string, err error) {
	jti = uuid.NewString()
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.lifetime)

	claims := jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   credentialIdentifier,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        jti,
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", fmt.Errorf("signing token: %w", err)
	}

	m.sessions.Put(jti, SessionData{
		CredentialIdentifier: credentialIdentifier,
		SessionKey:           encodeField(sessionKey),
		IssuedAt:             issuedAt,
		ExpiresAt:            expiresAt,
	})

	return token, jti, nil
}

// Verify checks the token's signature, issuer, and expiration, then requires
// a live session row for its jti. It returns the session row on success.
func (m *JWTManager) Verify(token string) (SessionData, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return SessionData{}, unauthorizedf("token rejected: %v", err)
	}

	data, ok := m.sessions.Get(claims.ID)
	if !ok {
		return SessionData{}, unauthorizedf("token revoked")
	}

	if subtle.ConstantTimeCompare([]byte(data.CredentialIdentifier), []byte(claims.Subject)) != 1 {
		return SessionData{}, unauthorizedf("token subject mismatch")
	}

	return data, nil
}

// Revoke deletes the session row of the given jti, invalidating its token.
func (m *JWTManager) Revoke(jti string) bool {
	return m.sessions.Revoke(jti)
}
