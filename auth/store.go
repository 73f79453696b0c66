// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package auth

import (
	"sync"
	"time"

	"github.com/acheron-labs/opaque/message"
)

// CredentialStore maps credential identifiers (base64) to registration
// records. Implementations provide single-writer-per-key semantics with
// concurrent readers.
type CredentialStore interface {
	// Save stores or replaces the record for the credential.
	Save(credentialIdentifier string, record *message.RegistrationRecord)

	// Load returns the record for the credential, if present.
	Load(credentialIdentifier string) (*message.RegistrationRecord, bool)

	// Delete removes the record for the credential and reports whether one
	// was present.
	Delete(credentialIdentifier string) bool
}

// MemoryCredentialStore is an in-memory CredentialStore.
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	records map[string]*message.RegistrationRecord
}

// NewMemoryCredentialStore returns an empty in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		records: make(map[string]*message.RegistrationRecord),
	}
}

// Save stores a copy of the record.
func (s *MemoryCredentialStore) Save(credentialIdentifier string, record *message.RegistrationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[credentialIdentifier] = record.Copy()
}

// Load returns the stored record for the credential.
func (s *MemoryCredentialStore) Load(credentialIdentifier string) (*message.RegistrationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[credentialIdentifier]
	if !ok {
		return nil, false
	}

	return record.Copy(), true
}

// Delete removes the stored record for the credential.
func (s *MemoryCredentialStore) Delete(credentialIdentifier string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[credentialIdentifier]
	delete(s.records, credentialIdentifier)

	return ok
}

// SessionData is one issued session, keyed by the token's jti.
type SessionData struct {
	CredentialIdentifier string
	SessionKey           string
	IssuedAt             time.Time
	ExpiresAt            time.Time
}

// SessionStore maps jti values to session rows, with a secondary index by
// credential identifier so a credential's sessions can be revoked without
// scanning every row.
type SessionStore interface {
	// Put stores the session row under jti.
	Put(jti string, data SessionData)

	// Get returns the session row for jti, if present.
	Get(jti string) (SessionData, bool)

	// Revoke removes the row for jti and reports whether one was present.
	Revoke(jti string) bool

	// RevokeByCredentialIdentifier removes every row of the credential and
	// returns the number of sessions revoked.
	RevokeByCredentialIdentifier(credentialIdentifier string) int
}

// MemorySessionStore is an in-memory SessionStore.
type MemorySessionStore struct {
	mu           sync.RWMutex
	rows         map[string]SessionData
	byCredential map[string]map[string]struct{}
}

// NewMemorySessionStore returns an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		rows:         make(map[string]SessionData),
		byCredential: make(map[string]map[string]struct{}),
	}
}

// Put stores the session row under jti and indexes it by credential.
func (s *MemorySessionStore) Put(jti string, data SessionData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[jti] = data

	index, ok := s.byCredential[data.CredentialIdentifier]
	if !ok {
		index = make(map[string]struct{})
		s.byCredential[data.CredentialIdentifier] = index
	}

	index[jti] = struct{}{}
}

// Get returns the session row for jti.
func (s *MemorySessionStore) Get(jti string) (SessionData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.rows[jti]

	return data, ok
}

func (s *MemorySessionStore) removeLocked(jti string) bool {
	data, ok := s.rows[jti]
	if !ok {
		return false
	}

	delete(s.rows, jti)

	if index, ok := s.byCredential[data.CredentialIdentifier]; ok {
		delete(index, jti)
		if len(index) == 0 {
			delete(s.byCredential, data.CredentialIdentifier)
		}
	}

	return true
}

// Revoke removes the row for jti.
func (s *MemorySessionStore) Revoke(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeLocked(jti)
}

// RevokeByCredentialIdentifier removes every live session of the credential
// through the secondary index.
func (s *MemorySessionStore) RevokeByCredentialIdentifier(credentialIdentifier string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.byCredential[credentialIdentifier]
	revoked := 0

	for jti := range index {
		if s.removeLocked(jti) {
			revoked++
		}
	}

	return revoked
}
