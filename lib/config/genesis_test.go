// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/custodia-foundation/custodia/lib/ref"
)

func TestParseGenesis(t *testing.T) {
	data := []byte(`{
		// The founding operator holds the governance capability.
		"initial_holder": "governance/executor",
		"approvers": [
			"council/alice",
			"council/bob",
			"council/carol", // trailing comma tolerated
		],
		"min_approvals": 2,
		"max_approvers": 7,
	}`)

	genesis, err := ParseGenesis(data)
	if err != nil {
		t.Fatalf("ParseGenesis: %v", err)
	}
	if genesis.InitialHolder != ref.MustPrincipal("governance/executor") {
		t.Errorf("initial_holder = %v", genesis.InitialHolder)
	}
	if len(genesis.Approvers) != 3 {
		t.Fatalf("approvers = %v, want 3 entries", genesis.Approvers)
	}
	if genesis.Approvers[1] != ref.MustPrincipal("council/bob") {
		t.Errorf("approvers[1] = %v", genesis.Approvers[1])
	}
	if genesis.MinApprovals != 2 || genesis.MaxApprovers != 7 {
		t.Errorf("quorum = %d/%d, want 2/7", genesis.MinApprovals, genesis.MaxApprovers)
	}
}

func TestParseGenesis_Validation(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"missing holder", `{"approvers": ["council/alice"]}`, "initial_holder"},
		{"negative quorum", `{"initial_holder": "gov", "min_approvals": -1}`, "min_approvals"},
		{"duplicate approver", `{"initial_holder": "gov", "approvers": ["council/alice", "council/alice"]}`, "duplicate"},
		{"invalid principal", `{"initial_holder": "NOT VALID"}`, "parsing genesis"},
		{"garbage", `{{{`, "parsing genesis"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGenesis([]byte(tc.data))
			if err == nil {
				t.Fatal("ParseGenesis succeeded")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.jsonc")
	data := `{
		/* single-operator deployment */
		"initial_holder": "ops/root",
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	genesis, err := LoadGenesis(path)
	if err != nil {
		t.Fatalf("LoadGenesis: %v", err)
	}
	if genesis.InitialHolder != ref.MustPrincipal("ops/root") {
		t.Errorf("initial_holder = %v", genesis.InitialHolder)
	}

	if _, err := LoadGenesis(filepath.Join(t.TempDir(), "missing.jsonc")); err == nil {
		t.Error("LoadGenesis of missing file succeeded")
	}
}
