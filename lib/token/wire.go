// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"encoding/json"
	"fmt"

	"github.com/keystone-foundation/keystone/lib/ref"
)

// record is the JSON wire form of a token. The key set is the on-disk
// contract: optional fields serialize as null, and the reserved
// delegation_proof and merkle_proof keys are always present (and
// always null) for compatibility with earlier record layouts.
type record struct {
	NodeID            ref.NodeID      `json:"node_id"`
	IssuerTokenHash   *string         `json:"issuer_token_hash"`
	IssuerID          *ref.NodeID     `json:"issuer_id"`
	Timestamp         string          `json:"timestamp"`
	TokenID           string          `json:"token_id"`
	TokenData         string          `json:"token_data"`
	TokenHash         string          `json:"token_hash"`
	MasterID          *ref.NodeID     `json:"master_id"`
	HierarchyLevel    int             `json:"hierarchy_level"`
	MasterSignature   *string         `json:"master_signature"`
	IssuerSignature   *string         `json:"issuer_signature"`
	DelegationProof   *string         `json:"delegation_proof"`
	MerkleProof       json.RawMessage `json:"merkle_proof"`
	VerificationPaths []string        `json:"verification_paths"`
}

// MarshalJSON implements json.Marshaler.
func (t *Token) MarshalJSON() ([]byte, error) {
	rec := record{
		NodeID:            t.NodeID,
		Timestamp:         t.Timestamp,
		TokenID:           t.TokenID,
		TokenData:         t.TokenData,
		TokenHash:         t.TokenHash,
		HierarchyLevel:    t.HierarchyLevel,
		VerificationPaths: t.Paths(),
	}
	if !t.IsRoot() {
		rec.IssuerTokenHash = &t.IssuerTokenHash
		issuerID := t.IssuerID
		rec.IssuerID = &issuerID
	}
	if !t.MasterID.IsZero() {
		masterID := t.MasterID
		rec.MasterID = &masterID
	}
	if t.MasterSignature != "" {
		rec.MasterSignature = &t.MasterSignature
	}
	if t.IssuerSignature != "" {
		rec.IssuerSignature = &t.IssuerSignature
	}
	return json.Marshal(rec)
}

// UnmarshalJSON implements json.Unmarshaler. Missing hierarchy fields
// default the way earlier record layouts are read: level 0, chain-only
// verification, and a root's master defaulting to itself. Structural
// violations (missing identity fields, issuer hash without issuer ID)
// are errors — the store classifies them as corrupt records.
func (t *Token) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	if rec.NodeID.IsZero() {
		return fmt.Errorf("token record: missing node_id")
	}
	if rec.Timestamp == "" {
		return fmt.Errorf("token record %s: missing timestamp", rec.NodeID)
	}
	if rec.TokenID == "" {
		return fmt.Errorf("token record %s: missing token_id", rec.NodeID)
	}
	if rec.TokenHash == "" {
		return fmt.Errorf("token record %s: missing token_hash", rec.NodeID)
	}
	if (rec.IssuerTokenHash == nil) != (rec.IssuerID == nil) {
		return fmt.Errorf("token record %s: issuer_token_hash and issuer_id must be set together", rec.NodeID)
	}

	decoded := Token{
		NodeID:         rec.NodeID,
		Timestamp:      rec.Timestamp,
		TokenID:        rec.TokenID,
		TokenData:      rec.TokenData,
		TokenHash:      rec.TokenHash,
		HierarchyLevel: rec.HierarchyLevel,
		paths:          map[Path]bool{PathChain: true},
	}
	if rec.IssuerTokenHash != nil {
		decoded.IssuerTokenHash = *rec.IssuerTokenHash
		decoded.IssuerID = *rec.IssuerID
	}
	if rec.MasterID != nil {
		decoded.MasterID = *rec.MasterID
	} else if decoded.IsRoot() {
		decoded.MasterID = decoded.NodeID
	}
	if rec.MasterSignature != nil {
		decoded.MasterSignature = *rec.MasterSignature
	}
	if rec.IssuerSignature != nil {
		decoded.IssuerSignature = *rec.IssuerSignature
	}
	for _, name := range rec.VerificationPaths {
		decoded.paths[Path(name)] = true
	}

	*t = decoded
	return nil
}
