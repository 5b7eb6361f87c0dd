// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/keystone-foundation/keystone/lib/ref"
)

// Path names a verification method a token supports.
type Path string

const (
	// PathChain is hash-chain verification by walking issuer links to
	// the root. Every token supports it.
	PathChain Path = "chain"

	// PathMasterDirect is verification against the root's signature
	// alone, independent of intermediate tokens.
	PathMasterDirect Path = "master-direct"

	// PathIssuerDirect is verification against the issuing node's
	// signature.
	PathIssuerDirect Path = "issuer-direct"
)

// Errors returned by the signature operations.
var (
	// ErrSignatureUnavailable means the token does not carry the
	// requested signature, or the public key needed to check it is
	// missing.
	ErrSignatureUnavailable = errors.New("token: signature unavailable")

	// ErrSignatureInvalid means the signature is present but does not
	// verify against the token content.
	ErrSignatureInvalid = errors.New("token: signature invalid")
)

// tokenIDBytes is the size of the random token nonce. 16 bytes gives a
// 32-character hex string, enough to distinguish tokens with otherwise
// identical content.
const tokenIDBytes = 16

// Token is one node's credential. Construct with New; the fields are
// exported for reading and serialization but must not be mutated after
// construction (the content hash binds them).
type Token struct {
	// NodeID identifies the node this token belongs to.
	NodeID ref.NodeID

	// IssuerTokenHash is the content hash of the issuing token. Empty
	// marks a root token.
	IssuerTokenHash string

	// IssuerID identifies the issuing node. Zero iff IssuerTokenHash
	// is empty.
	IssuerID ref.NodeID

	// Timestamp is the creation time in RFC 3339 UTC form, fixed at
	// construction and included in both the content hash and the
	// signature content.
	Timestamp string

	// TokenID is a random hex nonce distinguishing tokens with
	// otherwise identical content.
	TokenID string

	// TokenData is an opaque descriptive payload.
	TokenData string

	// TokenHash is the SHA-256 hex digest of the canonical content.
	// Computed once at construction; the token's primary key.
	TokenHash string

	// MasterID identifies the hierarchy's root. For a root token this
	// equals its own NodeID.
	MasterID ref.NodeID

	// HierarchyLevel is the distance from the root: the root is 0,
	// every issued token is its issuer's level plus one.
	HierarchyLevel int

	// MasterSignature and IssuerSignature are base64-encoded RSA-PSS
	// signatures over the signing content. Empty when the path is not
	// available.
	MasterSignature string
	IssuerSignature string

	// paths is the set of verification methods this token supports.
	paths map[Path]bool
}

// Params configures New. NodeID is required; the issuer fields are set
// together for issued tokens and left zero for a root token.
type Params struct {
	NodeID          ref.NodeID
	IssuerTokenHash string
	IssuerID        ref.NodeID
	TokenData       string
	MasterID        ref.NodeID
	HierarchyLevel  int

	// Now overrides the construction time. Zero means time.Now().
	// Exists for deterministic tests.
	Now time.Time
}

// New constructs a token and computes its content hash. Chain
// verification is always available; signature paths are added by the
// Attach methods during issuance.
func New(params Params) (*Token, error) {
	if params.NodeID.IsZero() {
		return nil, fmt.Errorf("token: node ID is required")
	}
	if params.IssuerTokenHash == "" != params.IssuerID.IsZero() {
		return nil, fmt.Errorf("token: issuer hash and issuer ID must be set together")
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	nonce := make([]byte, tokenIDBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("token: generating token ID: %w", err)
	}

	data := params.TokenData
	if data == "" {
		data = "token_for_" + params.NodeID.String()
	}

	masterID := params.MasterID
	if masterID.IsZero() && params.IssuerTokenHash == "" {
		masterID = params.NodeID
	}

	t := &Token{
		NodeID:          params.NodeID,
		IssuerTokenHash: params.IssuerTokenHash,
		IssuerID:        params.IssuerID,
		Timestamp:       now.UTC().Format(time.RFC3339Nano),
		TokenID:         hex.EncodeToString(nonce),
		TokenData:       data,
		MasterID:        masterID,
		HierarchyLevel:  params.HierarchyLevel,
		paths:           map[Path]bool{PathChain: true},
	}
	t.TokenHash = t.contentHash()
	return t, nil
}

// contentHash computes the SHA-256 hex digest of the canonical
// colon-joined content. Absent issuer fields encode as empty strings.
// Field order is part of the on-disk contract — never reorder.
func (t *Token) contentHash() string {
	content := t.NodeID.String() + ":" + t.IssuerTokenHash + ":" + t.IssuerID.String() +
		":" + t.Timestamp + ":" + t.TokenID + ":" + t.TokenData
	digest := sha256.Sum256([]byte(content))
	return hex.EncodeToString(digest[:])
}

// IsRoot reports whether this is a root (master) token: one with no
// issuer linkage.
func (t *Token) IsRoot() bool { return t.IssuerTokenHash == "" }

// HasPath reports whether the token supports a verification method.
func (t *Token) HasPath(path Path) bool { return t.paths[path] }

// Paths returns the supported verification methods, sorted.
func (t *Token) Paths() []string {
	names := make([]string, 0, len(t.paths))
	for path := range t.paths {
		names = append(names, string(path))
	}
	sort.Strings(names)
	return names
}

// signContent is the byte content covered by the master and issuer
// signatures: the token's identity and hash bound to the signer and
// the creation time. The signature deliberately covers the token hash
// rather than the raw fields, so a signature check plus a hash check
// covers the whole record.
func (t *Token) signContent(signerID ref.NodeID) []byte {
	return []byte(t.NodeID.String() + ":" + t.TokenHash + ":" + signerID.String() + ":" + t.Timestamp)
}

// pssOptions are the RSA-PSS parameters used for both signing and
// verification: SHA-256 with the maximum salt length the key allows.
var pssOptions = &rsa.PSSOptions{
	SaltLength: rsa.PSSSaltLengthAuto,
	Hash:       crypto.SHA256,
}

func signPSS(key *rsa.PrivateKey, content []byte) (string, error) {
	digest := sha256.Sum256(content)
	signature, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return "", fmt.Errorf("token: signing: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

func verifyPSS(key *rsa.PublicKey, content []byte, encoded string) error {
	signature, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: decoding base64: %v", ErrSignatureInvalid, err)
	}
	digest := sha256.Sum256(content)
	if err := rsa.VerifyPSS(key, crypto.SHA256, digest[:], signature, pssOptions); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}

// AttachMasterSignature signs the token with the master key, records
// the master's identity, and enables the master-direct verification
// path.
func (t *Token) AttachMasterSignature(key *rsa.PrivateKey, masterID ref.NodeID) error {
	if key == nil {
		return fmt.Errorf("%w: no master private key", ErrSignatureUnavailable)
	}
	signature, err := signPSS(key, t.signContent(masterID))
	if err != nil {
		return err
	}
	t.MasterSignature = signature
	t.MasterID = masterID
	t.paths[PathMasterDirect] = true
	return nil
}

// AttachIssuerSignature signs the token with the issuing node's key
// and enables the issuer-direct verification path.
func (t *Token) AttachIssuerSignature(key *rsa.PrivateKey, issuerID ref.NodeID) error {
	if key == nil || issuerID.IsZero() {
		return fmt.Errorf("%w: no issuer private key", ErrSignatureUnavailable)
	}
	signature, err := signPSS(key, t.signContent(issuerID))
	if err != nil {
		return err
	}
	t.IssuerSignature = signature
	t.paths[PathIssuerDirect] = true
	return nil
}

// VerifyMasterSignature checks the master signature against the given
// public key. Returns ErrSignatureUnavailable when the token carries
// no master signature (or no master identity), ErrSignatureInvalid
// when the check fails, nil on success.
func (t *Token) VerifyMasterSignature(key *rsa.PublicKey) error {
	if t.MasterSignature == "" || t.MasterID.IsZero() {
		return fmt.Errorf("%w: token has no master signature", ErrSignatureUnavailable)
	}
	if key == nil {
		return fmt.Errorf("%w: no master public key", ErrSignatureUnavailable)
	}
	return verifyPSS(key, t.signContent(t.MasterID), t.MasterSignature)
}

// VerifyIssuerSignature checks the issuer signature against the given
// public key and issuer identity.
func (t *Token) VerifyIssuerSignature(key *rsa.PublicKey, issuerID ref.NodeID) error {
	if t.IssuerSignature == "" {
		return fmt.Errorf("%w: token has no issuer signature", ErrSignatureUnavailable)
	}
	if key == nil {
		return fmt.Errorf("%w: no issuer public key", ErrSignatureUnavailable)
	}
	return verifyPSS(key, t.signContent(issuerID), t.IssuerSignature)
}
