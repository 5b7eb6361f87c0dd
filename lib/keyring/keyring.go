// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/keystone-foundation/keystone/lib/ref"
)

const (
	// Subdir is the keys directory under a store directory.
	Subdir = "keys"

	// masterName is the reserved filename stem for the master
	// keypair. A node literally named "master" cannot have its own
	// node keypair — its files would collide with the master's.
	masterName = "master"

	privateSuffix = "_private.pem"
	publicSuffix  = "_public.pem"

	// keyBits is the RSA modulus size for generated keypairs.
	keyBits = 2048
)

// ErrKeyUnavailable is returned when a requested key is not present in
// the keyring (never generated, or its file was missing or corrupt at
// load time).
var ErrKeyUnavailable = errors.New("keyring: key unavailable")

// Pair is an RSA keypair. Private may be nil for pairs loaded from a
// store that only carries the public half.
type Pair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// Keyring holds the key material for one store directory: the master
// pair and the per-node pairs. All state is loaded at Open; Ensure
// methods generate and persist missing pairs on demand.
type Keyring struct {
	dir    string
	logger *slog.Logger
	master *Pair
	nodes  map[string]*Pair
}

// Open creates the keys directory if needed and loads every keypair in
// it. Corrupt or half-missing pairs are logged and skipped; they do
// not fail the open.
func Open(storeDir string, logger *slog.Logger) (*Keyring, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Join(storeDir, Subdir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("keyring: creating %s: %w", dir, err)
	}

	k := &Keyring{
		dir:    dir,
		logger: logger,
		nodes:  make(map[string]*Pair),
	}
	if err := k.loadAll(); err != nil {
		return nil, err
	}
	return k, nil
}

// loadAll scans the keys directory and loads every keypair. A pair is
// recognized by either half: a store that carries only a public key
// (the distributed-verifier case) still yields a pair that can verify,
// just not sign. The master pair is recognized by its reserved name.
func (k *Keyring) loadAll() error {
	entries, err := os.ReadDir(k.dir)
	if err != nil {
		return fmt.Errorf("keyring: reading %s: %w", k.dir, err)
	}

	stems := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, privateSuffix):
			stems[strings.TrimSuffix(name, privateSuffix)] = true
		case strings.HasSuffix(name, publicSuffix):
			stems[strings.TrimSuffix(name, publicSuffix)] = true
		}
	}

	for stem := range stems {
		pair, err := k.loadPair(stem)
		if err != nil {
			k.logger.Warn("skipping unreadable keypair",
				"name", stem, "error", err)
			continue
		}
		if stem == masterName {
			k.master = pair
		} else {
			k.nodes[stem] = pair
		}
	}
	return nil
}

// Generate creates a fresh RSA keypair. No side effects: persistence
// is the caller's concern.
func Generate() (*Pair, error) {
	private, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("keyring: generating RSA keypair: %w", err)
	}
	return &Pair{Private: private, Public: &private.PublicKey}, nil
}

// EnsureMaster returns the master keypair, generating and persisting
// it if it does not exist yet. Idempotent.
func (k *Keyring) EnsureMaster() (*Pair, error) {
	if k.master != nil {
		return k.master, nil
	}
	pair, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := k.savePair(masterName, pair); err != nil {
		return nil, err
	}
	k.master = pair
	return pair, nil
}

// EnsureNode returns the keypair for a node, generating and persisting
// it on first use. Issuance calls this lazily the first time a node
// needs to sign.
func (k *Keyring) EnsureNode(id ref.NodeID) (*Pair, error) {
	if pair, ok := k.nodes[id.String()]; ok {
		return pair, nil
	}
	if id.String() == masterName {
		return nil, fmt.Errorf("%w: %q is reserved for the master keypair", ErrKeyUnavailable, masterName)
	}
	pair, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := k.savePair(id.String(), pair); err != nil {
		return nil, err
	}
	k.nodes[id.String()] = pair
	return pair, nil
}

// Master returns the loaded master pair, or nil when unavailable.
func (k *Keyring) Master() *Pair { return k.master }

// Node returns the loaded pair for a node, or nil when unavailable.
func (k *Keyring) Node(id ref.NodeID) *Pair { return k.nodes[id.String()] }

// MasterPublicPEM returns the PEM encoding of the master public key,
// for packaging into distribution bundles.
func (k *Keyring) MasterPublicPEM() ([]byte, error) {
	if k.master == nil {
		return nil, fmt.Errorf("%w: no master keypair", ErrKeyUnavailable)
	}
	return encodePublicPEM(k.master.Public)
}

// NodePublicPEM returns the PEM encoding of a node's public key.
func (k *Keyring) NodePublicPEM(id ref.NodeID) ([]byte, error) {
	pair, ok := k.nodes[id.String()]
	if !ok {
		return nil, fmt.Errorf("%w: no keypair for node %s", ErrKeyUnavailable, id)
	}
	return encodePublicPEM(pair.Public)
}

// savePair writes both halves of a pair as PEM files. The private key
// file has 0600 permissions; the public key file has 0644.
func (k *Keyring) savePair(stem string, pair *Pair) error {
	privateDER, err := x509.MarshalPKCS8PrivateKey(pair.Private)
	if err != nil {
		return fmt.Errorf("keyring: encoding private key: %w", err)
	}
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateDER})
	if err := os.WriteFile(filepath.Join(k.dir, stem+privateSuffix), privatePEM, 0600); err != nil {
		return fmt.Errorf("keyring: writing private key: %w", err)
	}

	publicPEM, err := encodePublicPEM(pair.Public)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(k.dir, stem+publicSuffix), publicPEM, 0644); err != nil {
		return fmt.Errorf("keyring: writing public key: %w", err)
	}
	return nil
}

// loadPair reads and parses a persisted pair. The public half is
// required; the private half is optional (verification-only stores
// carry public keys alone) but must parse when present.
func (k *Keyring) loadPair(stem string) (*Pair, error) {
	publicBytes, err := os.ReadFile(filepath.Join(k.dir, stem+publicSuffix))
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	public, err := ParsePublicPEM(publicBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}

	pair := &Pair{Public: public}

	privateBytes, err := os.ReadFile(filepath.Join(k.dir, stem+privateSuffix))
	if errors.Is(err, os.ErrNotExist) {
		return pair, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	pair.Private, err = parsePrivatePEM(privateBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return pair, nil
}

func encodePublicPEM(key *rsa.PublicKey) ([]byte, error) {
	publicDER, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("keyring: encoding public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER}), nil
}

func parsePrivatePEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key: %T", parsed)
	}
	return key, nil
}

// ParsePublicPEM parses a PEM-encoded RSA public key. Exported for
// bundle consumers that verify signatures from distributed public key
// files.
func ParsePublicPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key: %T", parsed)
	}
	return key, nil
}
