// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zeebo/blake3"

	"github.com/keystone-foundation/keystone/lib/keyring"
	"github.com/keystone-foundation/keystone/lib/network"
	"github.com/keystone-foundation/keystone/lib/ref"
)

const (
	// ManifestName is the digest manifest filename inside a bundle.
	ManifestName = "manifest.json"

	// readmeName is the verification instructions filename.
	readmeName = "README.txt"

	// masterKeyName is the master public key filename. Fixed so
	// verifiers can find it without consulting the manifest.
	masterKeyName = "master_public.pem"

	dirSuffix = "_bundle"
)

// ErrDigestMismatch means a bundle file's content does not match its
// manifest digest.
var ErrDigestMismatch = errors.New("bundle: file digest mismatch")

// Manifest lists every file in a bundle with its BLAKE3 digest. The
// manifest itself is excluded; it is the trust anchor for the rest.
type Manifest struct {
	NodeID    ref.NodeID        `json:"node_id"`
	CreatedAt string            `json:"created_at"`
	Methods   []string          `json:"verification_methods"`
	Files     map[string]string `json:"files"`
}

// Export writes a distribution bundle for the given node into destDir
// and returns the bundle directory path. The master public key is
// required — a bundle that cannot support master-direct verification
// is not worth distributing. The issuer's public key is included when
// available and silently omitted when not.
func Export(n *network.Network, id ref.NodeID, destDir string) (string, error) {
	t, ok := n.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", network.ErrTokenNotFound, id)
	}

	masterPEM, err := n.MasterPublicKeyPEM()
	if err != nil {
		return "", fmt.Errorf("bundle: master public key required for export: %w", err)
	}

	dir := filepath.Join(destDir, id.String()+dirSuffix)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("bundle: creating %s: %w", dir, err)
	}

	tokenJSON, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("bundle: encoding token: %w", err)
	}

	files := map[string][]byte{
		id.String() + "_token.json": tokenJSON,
		masterKeyName:               masterPEM,
	}

	if !t.IssuerID.IsZero() {
		issuerPEM, err := n.NodePublicKeyPEM(t.IssuerID)
		if err == nil {
			files[t.IssuerID.String()+"_public.pem"] = issuerPEM
		} else if !errors.Is(err, keyring.ErrKeyUnavailable) {
			return "", err
		}
	}

	files[readmeName] = []byte(readme(t.NodeID))

	manifest := Manifest{
		NodeID:    id,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Methods:   t.Paths(),
		Files:     make(map[string]string, len(files)),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0644); err != nil {
			return "", fmt.Errorf("bundle: writing %s: %w", name, err)
		}
		digest := blake3.Sum256(content)
		manifest.Files[name] = hex.EncodeToString(digest[:])
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("bundle: encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), manifestJSON, 0644); err != nil {
		return "", fmt.Errorf("bundle: writing manifest: %w", err)
	}

	return dir, nil
}

// Verify recomputes the digest of every file listed in a bundle's
// manifest. Returns the manifest on success. Missing files and digest
// mismatches both fail with ErrDigestMismatch.
func Verify(dir string) (*Manifest, error) {
	manifestJSON, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("bundle: reading manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return nil, fmt.Errorf("bundle: decoding manifest: %w", err)
	}

	// Deterministic order so the first reported failure is stable.
	names := make([]string, 0, len(manifest.Files))
	for name := range manifest.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDigestMismatch, name, err)
		}
		digest := blake3.Sum256(content)
		if hex.EncodeToString(digest[:]) != manifest.Files[name] {
			return nil, fmt.Errorf("%w: %s", ErrDigestMismatch, name)
		}
	}
	return &manifest, nil
}

func readme(id ref.NodeID) string {
	return fmt.Sprintf(`Keystone distribution bundle for node %q.

Contents:
  %s_token.json    the node's token record
  %s              public key of the hierarchy's master node
  %s        BLAKE3 digests of every file in this bundle
  <issuer>_public.pem   issuer public key, when available

Verification:
  1. Check this bundle's integrity against %s.
  2. Verify the master signature in the token record against the
     master public key (RSA-PSS, SHA-256). This works without any
     other token from the hierarchy.
  3. When the issuer public key is present, the issuer signature can
     be verified the same way.

Security notes:
  - The public keys in this bundle are the trust anchors. Obtain the
    master public key fingerprint out of band before trusting it.
  - This bundle contains no private key material and never should.
`, id, id, masterKeyName, ManifestName, ManifestName)
}
