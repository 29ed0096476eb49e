// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package treasury

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/custodia-foundation/custodia/lib/ref"
)

// Capability is the unforgeable access token for the governance
// release path. Exactly one exists per ledger, created by [Initialize]
// and never duplicated: the struct's fields are unexported, so no
// other package can construct or copy a usable value, and there is no
// accessor that leaks a second handle.
//
// Possession of the *Capability pointer IS the authorization.
// [Ledger.ReleaseViaCapability] checks only that the handle was issued
// by this ledger — deliberately no identity check, mirroring
// resource-oriented ownership rather than role membership. The Holder
// field tracked here is attribution for the audit journal, not an
// access check: handing the pointer to another principal without
// calling [Ledger.TransferCapability] moves the power but not the
// paper trail, so callers that change hands must transfer.
type Capability struct {
	// issuer pins the capability to the ledger that created it. A
	// capability presented to a different ledger is rejected.
	issuer *Ledger

	// id is a random identifier used to correlate this handle with
	// minted wire tokens (lib/capability) and journal records.
	id string

	// holder is the current holder, guarded by the issuer's mutex.
	holder ref.Principal
}

// newCapability is the only constructor. Called exclusively from
// Initialize.
func newCapability(issuer *Ledger, holder ref.Principal) (*Capability, error) {
	id, err := randomID()
	if err != nil {
		return nil, fmt.Errorf("treasury: generating capability id: %w", err)
	}
	return &Capability{
		issuer: issuer,
		id:     id,
		holder: holder,
	}, nil
}

// ID returns the capability's identifier (hex string). The ID is not
// secret — knowing it grants nothing without the handle itself.
func (c *Capability) ID() string { return c.id }

// Holder returns the principal currently recorded as holding the
// capability.
func (c *Capability) Holder() ref.Principal {
	c.issuer.mutex.Lock()
	defer c.issuer.mutex.Unlock()
	return c.holder
}

// randomID returns 16 random bytes as lowercase hex.
func randomID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}
