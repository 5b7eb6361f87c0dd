// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"errors"
	"fmt"
)

// MaxNodeIDLength is the maximum allowed length for a node identifier.
// Node IDs name token files on disk, so the limit keeps filenames well
// under filesystem bounds.
const MaxNodeIDLength = 64

// ErrInvalidIdentifier is returned when a node identifier is empty,
// too long, or contains disallowed characters. Errors from ParseNodeID
// wrap this sentinel, so callers can classify with errors.Is.
var ErrInvalidIdentifier = errors.New("ref: invalid node identifier")

// allowedChars is the set of characters permitted in node identifiers:
// ASCII letters, digits, and the symbols - _ . Checked via a lookup
// table for O(1) per-character validation.
var allowedChars [256]bool

func init() {
	for c := 'a'; c <= 'z'; c++ {
		allowedChars[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		allowedChars[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		allowedChars[c] = true
	}
	allowedChars['-'] = true
	allowedChars['_'] = true
	allowedChars['.'] = true
}

// NodeID identifies one node in the token hierarchy. The zero value is
// invalid; obtain a NodeID through ParseNodeID so that every value in
// circulation satisfies the identifier rules.
type NodeID struct {
	id string
}

// ParseNodeID validates a raw identifier and returns it as a NodeID.
//
// Rules enforced:
//   - Non-empty
//   - Maximum 64 characters
//   - Only ASCII letters, digits, -, _, .
func ParseNodeID(raw string) (NodeID, error) {
	if raw == "" {
		return NodeID{}, fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if len(raw) > MaxNodeIDLength {
		return NodeID{}, fmt.Errorf("%w: %d characters, maximum is %d",
			ErrInvalidIdentifier, len(raw), MaxNodeIDLength)
	}
	for i := 0; i < len(raw); i++ {
		if !allowedChars[raw[i]] {
			return NodeID{}, fmt.Errorf("%w: character %q at position %d (allowed: letters, digits, -, _, .)",
				ErrInvalidIdentifier, raw[i], i)
		}
	}
	return NodeID{id: raw}, nil
}

// String returns the identifier text.
func (n NodeID) String() string { return n.id }

// IsZero reports whether the NodeID is the unset zero value.
func (n NodeID) IsZero() bool { return n.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (n NodeID) MarshalText() ([]byte, error) {
	if n.IsZero() {
		return nil, fmt.Errorf("marshal NodeID: zero value")
	}
	return []byte(n.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NodeID) UnmarshalText(data []byte) error {
	parsed, err := ParseNodeID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal NodeID: %w", err)
	}
	*n = parsed
	return nil
}
