// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/custodia-foundation/custodia/lib/ref"
)

func testKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	public, private, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return public, private
}

func testToken(now time.Time) *Token {
	return &Token{
		Holder:       ref.MustPrincipal("governance/executor"),
		LedgerID:     "f00dfeedf00dfeedf00dfeedf00dfeed",
		CapabilityID: "cafecafecafecafecafecafecafecafe",
		ID:           "a1b2c3d4e5f6",
		IssuedAt:     now.Unix(),
		ExpiresAt:    now.Add(5 * time.Minute).Unix(),
	}
}

func TestMintAndVerify(t *testing.T) {
	public, private := testKeypair(t)
	now := time.Now()
	token := testToken(now)

	tokenBytes, err := Mint(private, token)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if len(tokenBytes) <= signatureSize {
		t.Fatalf("token too short: %d bytes", len(tokenBytes))
	}

	verified, err := Verify(public, tokenBytes)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verified.Holder != token.Holder {
		t.Errorf("Holder = %v, want %v", verified.Holder, token.Holder)
	}
	if verified.LedgerID != token.LedgerID {
		t.Errorf("LedgerID = %q, want %q", verified.LedgerID, token.LedgerID)
	}
	if verified.CapabilityID != token.CapabilityID {
		t.Errorf("CapabilityID = %q, want %q", verified.CapabilityID, token.CapabilityID)
	}
	if verified.ID != token.ID {
		t.Errorf("ID = %q, want %q", verified.ID, token.ID)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	public, private := testKeypair(t)
	tokenBytes, err := Mint(private, testToken(time.Now()))
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	tokenBytes[0] ^= 0xFF

	_, err = Verify(public, tokenBytes)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify tampered token: got %v, want ErrInvalidSignature", err)
	}
}

func TestVerify_WrongKey(t *testing.T) {
	_, private := testKeypair(t)
	otherPublic, _ := testKeypair(t)

	tokenBytes, err := Mint(private, testToken(time.Now()))
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	_, err = Verify(otherPublic, tokenBytes)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify with wrong key: got %v, want ErrInvalidSignature", err)
	}
}

func TestVerify_TooShort(t *testing.T) {
	public, _ := testKeypair(t)
	_, err := Verify(public, make([]byte, signatureSize))
	if !errors.Is(err, ErrTokenTooShort) {
		t.Errorf("Verify short token: got %v, want ErrTokenTooShort", err)
	}
}

func TestVerifyAt_Expiry(t *testing.T) {
	public, private := testKeypair(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tokenBytes, err := Mint(private, testToken(now))
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := VerifyAt(public, tokenBytes, now); err != nil {
		t.Errorf("VerifyAt at issue time: %v", err)
	}
	if _, err := VerifyAt(public, tokenBytes, now.Add(4*time.Minute)); err != nil {
		t.Errorf("VerifyAt within TTL: %v", err)
	}
	_, err = VerifyAt(public, tokenBytes, now.Add(5*time.Minute))
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyAt at expiry: got %v, want ErrTokenExpired", err)
	}
	_, err = VerifyAt(public, tokenBytes, now.Add(time.Hour))
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyAt past expiry: got %v, want ErrTokenExpired", err)
	}
}

func TestVerifyForLedger(t *testing.T) {
	public, private := testKeypair(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := testToken(now)
	tokenBytes, err := Mint(private, token)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := VerifyForLedgerAt(public, tokenBytes, token.LedgerID, now); err != nil {
		t.Errorf("VerifyForLedgerAt matching ledger: %v", err)
	}
	_, err = VerifyForLedgerAt(public, tokenBytes, "another-ledger", now)
	if !errors.Is(err, ErrLedgerMismatch) {
		t.Errorf("VerifyForLedgerAt wrong ledger: got %v, want ErrLedgerMismatch", err)
	}
}

func TestNewTokenID(t *testing.T) {
	first, err := NewTokenID()
	if err != nil {
		t.Fatalf("NewTokenID: %v", err)
	}
	if len(first) != 32 {
		t.Errorf("token id length = %d, want 32 hex chars", len(first))
	}
	second, err := NewTokenID()
	if err != nil {
		t.Fatalf("NewTokenID: %v", err)
	}
	if first == second {
		t.Error("NewTokenID returned the same id twice")
	}
}
