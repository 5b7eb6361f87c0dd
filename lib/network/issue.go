// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package network

import (
	"errors"
	"fmt"

	"github.com/keystone-foundation/keystone/lib/ref"
	"github.com/keystone-foundation/keystone/lib/token"
)

// Errors returned by issuance operations.
var (
	// ErrDuplicateRoot means a root token already exists in the store.
	ErrDuplicateRoot = errors.New("network: root token already exists")

	// ErrDuplicateNode means the node already has a token.
	ErrDuplicateNode = errors.New("network: node already has a token")

	// ErrMissingRoot means no root token exists yet; descendants
	// cannot be issued before the master.
	ErrMissingRoot = errors.New("network: no root token exists")

	// ErrIssuerNotFound means the named issuer has no token in the
	// store.
	ErrIssuerNotFound = errors.New("network: issuer not found")

	// ErrSelfIssuance means a node tried to issue a token to itself.
	ErrSelfIssuance = errors.New("network: issuer and new node cannot be the same")
)

// CreateMaster creates the self-signed root token for the hierarchy.
// The master keypair is generated (or loaded) first, the token is
// self-signed so it carries the master-direct path like every other
// token, and the result is registered and persisted.
func (n *Network) CreateMaster(masterID ref.NodeID) (*token.Token, error) {
	if n.root != nil {
		return nil, fmt.Errorf("%w: registered root is %s", ErrDuplicateRoot, n.root.NodeID)
	}
	if _, exists := n.tokens[masterID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, masterID)
	}

	masterKeys, err := n.keys.EnsureMaster()
	if err != nil {
		return nil, err
	}

	master, err := token.New(token.Params{
		NodeID:   masterID,
		MasterID: masterID,
	})
	if err != nil {
		return nil, err
	}
	if err := master.AttachMasterSignature(masterKeys.Private, masterID); err != nil {
		// The token still works with chain verification; the path is
		// simply absent.
		n.logger.Warn("master self-signature unavailable", "node", masterID, "error", err)
	}

	if err := n.store.Save(master); err != nil {
		return nil, err
	}
	n.root = master
	n.tokens[masterID] = master
	return master, nil
}

// Issue creates a token for newID, issued by issuerID. The new token
// links to the issuer by token hash, sits one hierarchy level below
// it, and receives best-effort master and issuer signatures: when a
// signing key is unavailable the corresponding verification path is
// absent, but issuance still succeeds — chain verification always
// remains as the fallback.
func (n *Network) Issue(issuerID, newID ref.NodeID, data string) (*token.Token, error) {
	if n.root == nil {
		return nil, ErrMissingRoot
	}
	issuer, ok := n.tokens[issuerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIssuerNotFound, issuerID)
	}
	if issuerID == newID {
		return nil, fmt.Errorf("%w: %s", ErrSelfIssuance, issuerID)
	}
	if _, exists := n.tokens[newID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, newID)
	}

	issued, err := token.New(token.Params{
		NodeID:          newID,
		IssuerTokenHash: issuer.TokenHash,
		IssuerID:        issuerID,
		TokenData:       data,
		MasterID:        n.root.NodeID,
		HierarchyLevel:  issuer.HierarchyLevel + 1,
	})
	if err != nil {
		return nil, err
	}

	// Master signature cascade: every token, however deep, gets a
	// direct path back to the root.
	if masterKeys := n.keys.Master(); masterKeys != nil {
		if err := issued.AttachMasterSignature(masterKeys.Private, n.root.NodeID); err != nil {
			n.logger.Warn("master signature unavailable", "node", newID, "error", err)
		}
	} else {
		n.logger.Warn("master signature unavailable", "node", newID, "error", "no master keypair")
	}

	// Issuer signature: the issuer's keypair is created lazily the
	// first time it issues.
	issuerKeys, err := n.keys.EnsureNode(issuerID)
	if err != nil {
		n.logger.Warn("issuer signature unavailable", "node", newID, "issuer", issuerID, "error", err)
	} else if err := issued.AttachIssuerSignature(issuerKeys.Private, issuerID); err != nil {
		n.logger.Warn("issuer signature unavailable", "node", newID, "issuer", issuerID, "error", err)
	}

	// Pre-create the new node's keypair so it can issue later even if
	// this process never runs again with key generation available.
	if _, err := n.keys.EnsureNode(newID); err != nil {
		n.logger.Warn("could not pre-create node keypair", "node", newID, "error", err)
	}

	if err := n.store.Save(issued); err != nil {
		return nil, err
	}
	n.tokens[newID] = issued
	return issued, nil
}
