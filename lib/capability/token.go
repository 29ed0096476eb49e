// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-foundation/custodia/lib/codec"
	"github.com/custodia-foundation/custodia/lib/ref"
)

// signatureSize is the fixed size of an Ed25519 signature.
const signatureSize = ed25519.SignatureSize // 64 bytes

// Token is the CBOR-encoded payload of a capability bearer token.
type Token struct {
	// Holder is the principal the capability is currently issued
	// to. Services check this against the ledger's holder record
	// at verification time, so a token minted before a transfer
	// stops working the moment the transfer lands.
	Holder ref.Principal `cbor:"1,keyasint"`

	// LedgerID binds the token to one ledger instance. Ledger IDs
	// are random per Initialize and survive restarts via journal
	// replay, so a token cannot be replayed against a parallel
	// deployment but stays valid across a restart of its own.
	LedgerID string `cbor:"2,keyasint"`

	// CapabilityID names the ledger's capability handle.
	CapabilityID string `cbor:"3,keyasint"`

	// ID is a unique token identifier (hex string), recorded in
	// service logs for attribution.
	ID string `cbor:"4,keyasint"`

	// IssuedAt is a Unix timestamp (seconds) of when the service
	// minted this token.
	IssuedAt int64 `cbor:"5,keyasint"`

	// ExpiresAt is a Unix timestamp (seconds) after which this
	// token is no longer valid.
	ExpiresAt int64 `cbor:"6,keyasint"`
}

// Errors returned by Verify and related functions.
var (
	ErrTokenTooShort    = errors.New("capability: token too short for signature")
	ErrInvalidSignature = errors.New("capability: invalid Ed25519 signature")
	ErrTokenExpired     = errors.New("capability: token has expired")
	ErrLedgerMismatch   = errors.New("capability: token bound to a different ledger")
)

// NewTokenID returns a random 16-byte hex token identifier.
func NewTokenID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("capability: generating token id: %w", err)
	}
	return hex.EncodeToString(raw[:]), nil
}

// Mint signs a Token with the service's private key and returns the
// raw wire-format bytes: CBOR-encoded payload followed by the 64-byte
// Ed25519 signature.
func Mint(privateKey ed25519.PrivateKey, token *Token) ([]byte, error) {
	payload, err := codec.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("capability: encoding token payload: %w", err)
	}

	signature := ed25519.Sign(privateKey, payload)

	result := make([]byte, len(payload)+signatureSize)
	copy(result, payload)
	copy(result[len(payload):], signature)

	return result, nil
}

// Verify splits the raw token bytes, verifies the Ed25519 signature,
// CBOR-decodes the payload, and checks expiry. Returns the decoded
// Token on success.
//
// The caller should additionally check the LedgerID against its own
// ledger and the Holder against the ledger's current holder record;
// VerifyForLedger does the first of these.
func Verify(publicKey ed25519.PublicKey, tokenBytes []byte) (*Token, error) {
	return VerifyAt(publicKey, tokenBytes, time.Now())
}

// VerifyAt is like Verify but accepts an explicit time for expiry
// checks. This supports deterministic testing.
func VerifyAt(publicKey ed25519.PublicKey, tokenBytes []byte, now time.Time) (*Token, error) {
	if len(tokenBytes) <= signatureSize {
		return nil, ErrTokenTooShort
	}

	splitPoint := len(tokenBytes) - signatureSize
	payload := tokenBytes[:splitPoint]
	signature := tokenBytes[splitPoint:]

	if !ed25519.Verify(publicKey, payload, signature) {
		return nil, ErrInvalidSignature
	}

	var token Token
	if err := codec.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("capability: decoding token payload: %w", err)
	}

	if now.Unix() >= token.ExpiresAt {
		return nil, ErrTokenExpired
	}

	return &token, nil
}

// VerifyForLedger combines Verify with a ledger binding check. This
// is the standard verification path for the treasury service.
func VerifyForLedger(publicKey ed25519.PublicKey, tokenBytes []byte, ledgerID string) (*Token, error) {
	return VerifyForLedgerAt(publicKey, tokenBytes, ledgerID, time.Now())
}

// VerifyForLedgerAt is like VerifyForLedger but accepts an explicit time.
func VerifyForLedgerAt(publicKey ed25519.PublicKey, tokenBytes []byte, ledgerID string, now time.Time) (*Token, error) {
	token, err := VerifyAt(publicKey, tokenBytes, now)
	if err != nil {
		return nil, err
	}

	if token.LedgerID != ledgerID {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrLedgerMismatch, token.LedgerID, ledgerID)
	}

	return token, nil
}
