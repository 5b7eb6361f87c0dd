// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package network

import (
	"log/slog"
	"sort"

	"github.com/keystone-foundation/keystone/lib/keyring"
	"github.com/keystone-foundation/keystone/lib/ref"
	"github.com/keystone-foundation/keystone/lib/store"
	"github.com/keystone-foundation/keystone/lib/token"
)

// Network is the aggregate state of one token hierarchy: the token
// set, the registered root, and the key material. It is not safe for
// concurrent use.
type Network struct {
	store  *store.Store
	keys   *keyring.Keyring
	logger *slog.Logger

	tokens map[ref.NodeID]*token.Token
	root   *token.Token

	// skipped records the token files excluded at load time, for
	// diagnostics surfaces.
	skipped []store.SkippedRecord
}

// Open loads the persisted token set and key material from a store
// directory. A nil logger means slog.Default(). Per-record corruption
// is tolerated: bad token files and unreadable keypairs are skipped
// with a warning, never fatal.
func Open(dir string, logger *slog.Logger) (*Network, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tokenStore, err := store.Open(dir, logger)
	if err != nil {
		return nil, err
	}
	keys, err := keyring.Open(dir, logger)
	if err != nil {
		return nil, err
	}
	loaded, err := tokenStore.Load()
	if err != nil {
		return nil, err
	}

	return &Network{
		store:   tokenStore,
		keys:    keys,
		logger:  logger,
		tokens:  loaded.Tokens,
		root:    loaded.Root,
		skipped: loaded.Skipped,
	}, nil
}

// Get returns the token for a node, if present.
func (n *Network) Get(id ref.NodeID) (*token.Token, bool) {
	t, ok := n.tokens[id]
	return t, ok
}

// Root returns the registered root token, or nil when none exists.
func (n *Network) Root() *token.Token { return n.root }

// List returns all tokens sorted by node identifier.
func (n *Network) List() []*token.Token {
	all := make([]*token.Token, 0, len(n.tokens))
	for _, t := range n.tokens {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].NodeID.String() < all[j].NodeID.String()
	})
	return all
}

// Len returns the number of tokens in the network.
func (n *Network) Len() int { return len(n.tokens) }

// Skipped returns the token records excluded at load time.
func (n *Network) Skipped() []store.SkippedRecord { return n.skipped }

// Dir returns the backing store directory.
func (n *Network) Dir() string { return n.store.Dir() }

// MasterPublicKeyPEM returns the master public key in PEM form, for
// packaging into distribution bundles.
func (n *Network) MasterPublicKeyPEM() ([]byte, error) {
	return n.keys.MasterPublicPEM()
}

// NodePublicKeyPEM returns a node's public key in PEM form.
func (n *Network) NodePublicKeyPEM(id ref.NodeID) ([]byte, error) {
	return n.keys.NodePublicPEM(id)
}
