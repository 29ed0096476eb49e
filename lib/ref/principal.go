// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// maxPrincipalLength is the maximum allowed length for a principal
// identifier. Principals appear in journal entries, socket requests,
// and capability tokens; the bound keeps every one of those records
// small and makes length a validation error instead of a storage
// surprise.
const maxPrincipalLength = 128

// allowedChars is the set of characters permitted in principal
// identifiers: a-z, 0-9, and the symbols . _ = - /.
var allowedChars [256]bool

func init() {
	for c := byte('a'); c <= 'z'; c++ {
		allowedChars[c] = true
	}
	for c := byte('0'); c <= '9'; c++ {
		allowedChars[c] = true
	}
	allowedChars['.'] = true
	allowedChars['_'] = true
	allowedChars['='] = true
	allowedChars['-'] = true
	allowedChars['/'] = true
}

// Principal is a validated identity able to call treasury operations
// and be named as an approver or recipient (e.g., "council/alice").
//
// Principal is an immutable value type. The zero value is not valid;
// use IsZero to check.
type Principal struct {
	id string
}

// ParsePrincipal validates and wraps a raw principal string. Returns
// an error if the string is empty, too long, contains characters
// outside the allowed set, has empty or dot-prefixed path segments,
// or has a leading or trailing slash.
func ParsePrincipal(raw string) (Principal, error) {
	if err := validateLocalpart(raw); err != nil {
		return Principal{}, err
	}
	return Principal{id: raw}, nil
}

// MustPrincipal is ParsePrincipal that panics on error. For use in
// tests and package-level declarations where the input is a literal.
func MustPrincipal(raw string) Principal {
	principal, err := ParsePrincipal(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustPrincipal(%q): %v", raw, err))
	}
	return principal
}

// String returns the full principal identifier.
func (p Principal) String() string { return p.id }

// IsZero reports whether the Principal is the zero value.
func (p Principal) IsZero() bool { return p.id == "" }

// MarshalText implements encoding.TextMarshaler so principals
// serialize as plain strings in both JSON and CBOR.
func (p Principal) MarshalText() ([]byte, error) {
	if p.id == "" {
		return []byte{}, nil
	}
	return []byte(p.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// principal format. An empty input produces the zero value.
func (p *Principal) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*p = Principal{}
		return nil
	}
	parsed, err := ParsePrincipal(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// validateLocalpart enforces the identifier safety rules: characters
// restricted to a-z, 0-9, ., _, =, -, /; no leading or trailing slash;
// no empty segments; no segments starting with ".".
func validateLocalpart(raw string) error {
	if raw == "" {
		return fmt.Errorf("principal must not be empty")
	}
	if len(raw) > maxPrincipalLength {
		return fmt.Errorf("principal %q exceeds %d characters", raw, maxPrincipalLength)
	}
	for i := 0; i < len(raw); i++ {
		if !allowedChars[raw[i]] {
			return fmt.Errorf("principal %q contains invalid character %q", raw, raw[i])
		}
	}
	if strings.HasPrefix(raw, "/") || strings.HasSuffix(raw, "/") {
		return fmt.Errorf("principal %q must not start or end with /", raw)
	}
	for _, segment := range strings.Split(raw, "/") {
		if segment == "" {
			return fmt.Errorf("principal %q contains an empty path segment", raw)
		}
		if strings.HasPrefix(segment, ".") {
			return fmt.Errorf("principal %q contains a dot-prefixed segment %q", raw, segment)
		}
	}
	return nil
}
