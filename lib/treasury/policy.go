// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package treasury

import (
	"slices"

	"github.com/custodia-foundation/custodia/lib/ref"
)

// RosterPolicy authorizes roster and quorum mutations. The custody
// engine deliberately does not hard-wire this: who may reshape the
// approver set is governance policy, not custody mechanics, so
// deployments supply it at [Initialize] time.
//
// Implementations receive the acting principal and a copy of the
// current roster, and return nil to allow or an error (conventionally
// [ErrNotAnApprover]) to deny. The ledger calls the policy before
// touching any state, so a denial has no side effects.
type RosterPolicy interface {
	// AuthorizeRosterChange is consulted by AddApprover and
	// RemoveApprover.
	AuthorizeRosterChange(actor ref.Principal, roster []ref.Principal) error

	// AuthorizeConfigUpdate is consulted by UpdateConfig.
	AuthorizeConfigUpdate(actor ref.Principal, roster []ref.Principal) error
}

// SelfGoverningPolicy is the default policy: any roster member may
// add or remove approvers unilaterally, and anyone at all may update
// the quorum configuration.
//
// This is a known-weak arrangement — a single approver can reshape
// the roster, and the open config update exists for bootstrapping.
// Hardened deployments should wrap config and roster changes behind
// the capability holder or a quorum of their own by supplying a
// different RosterPolicy; the engine's bookkeeping is identical
// either way.
type SelfGoverningPolicy struct {
	// RequireMemberForConfig additionally restricts UpdateConfig to
	// roster members.
	RequireMemberForConfig bool
}

// AuthorizeRosterChange allows any current roster member.
func (p SelfGoverningPolicy) AuthorizeRosterChange(actor ref.Principal, roster []ref.Principal) error {
	if !slices.Contains(roster, actor) {
		return ErrNotAnApprover
	}
	return nil
}

// AuthorizeConfigUpdate allows anyone unless RequireMemberForConfig
// is set.
func (p SelfGoverningPolicy) AuthorizeConfigUpdate(actor ref.Principal, roster []ref.Principal) error {
	if !p.RequireMemberForConfig {
		return nil
	}
	if !slices.Contains(roster, actor) {
		return ErrNotAnApprover
	}
	return nil
}
