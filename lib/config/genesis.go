// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/tidwall/jsonc"

	"github.com/custodia-foundation/custodia/lib/ref"
)

// Genesis is the one-time ledger creation document. It is read once
// when the treasury service boots with an empty state directory;
// after that the journal is the source of truth and the genesis file
// is ignored.
//
// The file format is JSONC: JSON extended with // line comments,
// /* block comments */, and trailing commas. Genesis documents are
// written by operators and reviewed by the approver group, so the
// format tolerates annotation.
type Genesis struct {
	// InitialHolder receives the ledger's single access
	// capability. Required.
	InitialHolder ref.Principal `json:"initial_holder"`

	// Approvers seeds the roster. May be empty; approvers can be
	// added later through AddApprover.
	Approvers []ref.Principal `json:"approvers,omitempty"`

	// MinApprovals is the quorum. Zero means the ledger default.
	MinApprovals int `json:"min_approvals,omitempty"`

	// MaxApprovers is the roster capacity. Zero means the ledger
	// default.
	MaxApprovers int `json:"max_approvers,omitempty"`
}

// ParseGenesis strips JSONC comments and trailing commas from data,
// then unmarshals and validates the result.
func ParseGenesis(data []byte) (*Genesis, error) {
	stripped := jsonc.ToJSON(data)

	var genesis Genesis
	if err := json.Unmarshal(stripped, &genesis); err != nil {
		return nil, fmt.Errorf("parsing genesis: %w", err)
	}

	if err := genesis.validate(); err != nil {
		return nil, err
	}
	return &genesis, nil
}

// LoadGenesis reads and parses a genesis document from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	genesis, err := ParseGenesis(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return genesis, nil
}

func (g *Genesis) validate() error {
	if g.InitialHolder.IsZero() {
		return fmt.Errorf("genesis: initial_holder is required")
	}
	if g.MinApprovals < 0 {
		return fmt.Errorf("genesis: min_approvals must be >= 0")
	}
	if g.MaxApprovers < 0 {
		return fmt.Errorf("genesis: max_approvers must be >= 0")
	}
	for i, approver := range g.Approvers {
		if approver.IsZero() {
			return fmt.Errorf("genesis: approvers[%d] is empty", i)
		}
		if slices.Contains(g.Approvers[:i], approver) {
			return fmt.Errorf("genesis: duplicate approver %q", approver)
		}
	}
	return nil
}
