// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package network

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/keystone-foundation/keystone/lib/keyring"
	"github.com/keystone-foundation/keystone/lib/ref"
	"github.com/keystone-foundation/keystone/lib/store"
	"github.com/keystone-foundation/keystone/lib/token"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustNodeID(t *testing.T, raw string) ref.NodeID {
	t.Helper()
	id, err := ref.ParseNodeID(raw)
	if err != nil {
		t.Fatalf("ParseNodeID(%q): %v", raw, err)
	}
	return id
}

// openNetwork opens a network over a fresh temp store.
func openNetwork(t *testing.T) *Network {
	t.Helper()
	n, err := Open(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return n
}

// buildHierarchy creates root -> mid -> leaf and returns the network.
func buildHierarchy(t *testing.T) *Network {
	t.Helper()
	n := openNetwork(t)
	if _, err := n.CreateMaster(mustNodeID(t, "root")); err != nil {
		t.Fatalf("CreateMaster: %v", err)
	}
	if _, err := n.Issue(mustNodeID(t, "root"), mustNodeID(t, "mid"), ""); err != nil {
		t.Fatalf("Issue(mid): %v", err)
	}
	if _, err := n.Issue(mustNodeID(t, "mid"), mustNodeID(t, "leaf"), ""); err != nil {
		t.Fatalf("Issue(leaf): %v", err)
	}
	return n
}

func TestCreateMaster(t *testing.T) {
	n := openNetwork(t)
	rootID := mustNodeID(t, "root")

	master, err := n.CreateMaster(rootID)
	if err != nil {
		t.Fatalf("CreateMaster: %v", err)
	}
	if !master.IsRoot() || master.HierarchyLevel != 0 {
		t.Error("master token must be a level-0 root")
	}
	if master.MasterID != rootID {
		t.Errorf("MasterID = %v, want own ID", master.MasterID)
	}
	if !master.HasPath(token.PathMasterDirect) {
		t.Error("master token should be self-signed")
	}

	report, err := n.VerifyChain(rootID)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if !report.Valid {
		t.Errorf("fresh root should chain-verify; trace: %v", report.Trace)
	}
	if len(report.Trace) != 1 {
		t.Errorf("root chain trace length = %d, want 1", len(report.Trace))
	}
}

func TestCreateMaster_Duplicates(t *testing.T) {
	n := openNetwork(t)
	if _, err := n.CreateMaster(mustNodeID(t, "root")); err != nil {
		t.Fatalf("CreateMaster: %v", err)
	}

	if _, err := n.CreateMaster(mustNodeID(t, "other")); !errors.Is(err, ErrDuplicateRoot) {
		t.Errorf("second root = %v, want ErrDuplicateRoot", err)
	}
}

func TestIssue_Errors(t *testing.T) {
	n := openNetwork(t)
	rootID := mustNodeID(t, "root")
	nodeID := mustNodeID(t, "node")

	if _, err := n.Issue(rootID, nodeID, ""); !errors.Is(err, ErrMissingRoot) {
		t.Errorf("issue before master = %v, want ErrMissingRoot", err)
	}

	if _, err := n.CreateMaster(rootID); err != nil {
		t.Fatalf("CreateMaster: %v", err)
	}

	if _, err := n.Issue(mustNodeID(t, "ghost"), nodeID, ""); !errors.Is(err, ErrIssuerNotFound) {
		t.Errorf("unknown issuer = %v, want ErrIssuerNotFound", err)
	}
	if _, err := n.Issue(rootID, rootID, ""); !errors.Is(err, ErrSelfIssuance) {
		t.Errorf("self issuance = %v, want ErrSelfIssuance", err)
	}

	if _, err := n.Issue(rootID, nodeID, ""); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := n.Issue(rootID, nodeID, ""); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("duplicate node = %v, want ErrDuplicateNode", err)
	}
}

func TestIssue_HierarchyAndLinkage(t *testing.T) {
	n := buildHierarchy(t)

	root, _ := n.Get(mustNodeID(t, "root"))
	mid, _ := n.Get(mustNodeID(t, "mid"))
	leaf, _ := n.Get(mustNodeID(t, "leaf"))

	if mid.HierarchyLevel != 1 || leaf.HierarchyLevel != 2 {
		t.Errorf("levels = %d, %d, want 1, 2", mid.HierarchyLevel, leaf.HierarchyLevel)
	}
	if mid.IssuerTokenHash != root.TokenHash {
		t.Error("mid's issuer hash must equal root's token hash")
	}
	if leaf.IssuerTokenHash != mid.TokenHash {
		t.Error("leaf's issuer hash must equal mid's token hash")
	}
	if leaf.MasterID != root.NodeID {
		t.Errorf("leaf MasterID = %v, want root", leaf.MasterID)
	}
	if !leaf.HasPath(token.PathMasterDirect) || !leaf.HasPath(token.PathIssuerDirect) {
		t.Errorf("leaf paths = %v, want master-direct and issuer-direct", leaf.Paths())
	}
}

func TestVerifyChain_Scenario(t *testing.T) {
	n := buildHierarchy(t)

	report, err := n.VerifyChain(mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if !report.Valid {
		t.Fatalf("leaf should chain-verify; trace: %v", report.Trace)
	}
	if len(report.Trace) != 3 {
		t.Errorf("trace length = %d, want 3 (leaf, mid, root)", len(report.Trace))
	}

	if _, err := n.VerifyChain(mustNodeID(t, "ghost")); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("unknown target = %v, want ErrTokenNotFound", err)
	}
}

func TestVerifyChain_HashChainBroken(t *testing.T) {
	n := buildHierarchy(t)

	leaf, _ := n.Get(mustNodeID(t, "leaf"))
	leaf.IssuerTokenHash = "0000000000000000000000000000000000000000000000000000000000000000"

	report, err := n.VerifyChain(mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if report.Valid {
		t.Fatal("tampered linkage should fail chain verification")
	}
	if !errors.Is(report.Err, ErrHashChainBroken) {
		t.Errorf("report.Err = %v, want ErrHashChainBroken", report.Err)
	}
}

func TestVerifyChain_MissingIssuer(t *testing.T) {
	n := buildHierarchy(t)
	delete(n.tokens, mustNodeID(t, "mid"))

	report, err := n.VerifyChain(mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if report.Valid {
		t.Fatal("missing intermediate should fail chain verification")
	}
	if !errors.Is(report.Err, ErrIssuerNotFound) {
		t.Errorf("report.Err = %v, want ErrIssuerNotFound", report.Err)
	}
}

func TestVerifyChain_CycleDetected(t *testing.T) {
	n := buildHierarchy(t)

	// Tamper two tokens into a mutual issuer cycle. This cannot arise
	// from issuance; it simulates injected records.
	mid, _ := n.Get(mustNodeID(t, "mid"))
	leaf, _ := n.Get(mustNodeID(t, "leaf"))
	mid.IssuerID = leaf.NodeID
	mid.IssuerTokenHash = leaf.TokenHash
	leaf.IssuerTokenHash = mid.TokenHash

	report, err := n.VerifyChain(mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if report.Valid {
		t.Fatal("cyclic chain should fail verification")
	}
	if !errors.Is(report.Err, ErrCycleDetected) {
		t.Errorf("report.Err = %v, want ErrCycleDetected", report.Err)
	}
}

func TestVerifyMasterDirect(t *testing.T) {
	n := buildHierarchy(t)

	report, err := n.VerifyMasterDirect(mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyMasterDirect: %v", err)
	}
	if !report.Valid {
		t.Errorf("leaf should master-direct verify; trace: %v", report.Trace)
	}
}

func TestVerifyMasterDirect_CorruptedSignature(t *testing.T) {
	n := buildHierarchy(t)

	leaf, _ := n.Get(mustNodeID(t, "leaf"))
	leaf.MasterSignature = "bm90IGEgcmVhbCBzaWduYXR1cmU="

	report, err := n.VerifyMasterDirect(mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyMasterDirect should not error on bad signature: %v", err)
	}
	if report.Valid {
		t.Fatal("corrupted signature should fail, not pass")
	}
	if !errors.Is(report.Err, token.ErrSignatureInvalid) {
		t.Errorf("report.Err = %v, want ErrSignatureInvalid", report.Err)
	}
}

// TestVerifyMasterDirect_NoIntermediates is the key property of the
// master-direct path: a store holding only the target token and the
// master's public key still verifies.
func TestVerifyMasterDirect_NoIntermediates(t *testing.T) {
	source := buildHierarchy(t)
	leaf, _ := source.Get(mustNodeID(t, "leaf"))

	// Build a second store with only the leaf token and the master
	// public key.
	dir := t.TempDir()
	s, err := store.Open(dir, discardLogger())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if err := s.Save(leaf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	masterPEM, err := source.MasterPublicKeyPEM()
	if err != nil {
		t.Fatalf("MasterPublicKeyPEM: %v", err)
	}
	keysDir := filepath.Join(dir, keyring.Subdir)
	if err := os.MkdirAll(keysDir, 0700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(keysDir, "master_public.pem"), masterPEM, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sparse, err := Open(dir, discardLogger())
	if err != nil {
		t.Fatalf("Open sparse store: %v", err)
	}

	report, err := sparse.VerifyMasterDirect(mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyMasterDirect: %v", err)
	}
	if !report.Valid {
		t.Errorf("master-direct should succeed without intermediates; trace: %v", report.Trace)
	}

	// Chain verification in the sparse store fails — that is exactly
	// the gap master-direct exists to cover.
	chain, err := sparse.VerifyChain(mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if chain.Valid {
		t.Error("chain verification should fail without intermediates")
	}
}

func TestVerifyAsIssuer_DirectAndIndirect(t *testing.T) {
	n := buildHierarchy(t)

	direct, err := n.VerifyAsIssuer(mustNodeID(t, "mid"), mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyAsIssuer(mid, leaf): %v", err)
	}
	if !direct.Valid {
		t.Errorf("direct issuance should verify; trace: %v", direct.Trace)
	}

	indirect, err := n.VerifyAsIssuer(mustNodeID(t, "root"), mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyAsIssuer(root, leaf): %v", err)
	}
	if !indirect.Valid {
		t.Errorf("indirect ancestry should verify; trace: %v", indirect.Trace)
	}

	// A sibling that never issued anything is not an ancestor.
	if _, err := n.Issue(mustNodeID(t, "root"), mustNodeID(t, "other"), ""); err != nil {
		t.Fatalf("Issue(other): %v", err)
	}
	unrelated, err := n.VerifyAsIssuer(mustNodeID(t, "other"), mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyAsIssuer(other, leaf): %v", err)
	}
	if unrelated.Valid {
		t.Error("non-ancestor should not verify as issuer")
	}
}

func TestVerifyHybrid(t *testing.T) {
	n := buildHierarchy(t)

	report, err := n.VerifyHybrid(mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyHybrid: %v", err)
	}
	if !report.Valid {
		t.Fatal("hybrid verification should pass for a well-formed token")
	}
	for _, path := range []token.Path{token.PathChain, token.PathMasterDirect, token.PathIssuerDirect} {
		result, ok := report.Results[path]
		if !ok {
			t.Errorf("hybrid results missing %s", path)
			continue
		}
		if !result.Valid {
			t.Errorf("%s result invalid; trace: %v", path, result.Trace)
		}
	}
}

// TestVerifyHybrid_SurvivesBrokenChain verifies the evidence
// accumulation property: a broken chain with an intact master
// signature still yields an overall pass.
func TestVerifyHybrid_SurvivesBrokenChain(t *testing.T) {
	n := buildHierarchy(t)
	delete(n.tokens, mustNodeID(t, "mid"))

	report, err := n.VerifyHybrid(mustNodeID(t, "leaf"))
	if err != nil {
		t.Fatalf("VerifyHybrid: %v", err)
	}
	if chain := report.Results[token.PathChain]; chain.Valid {
		t.Error("chain result should fail with mid deleted")
	}
	if !report.Valid {
		t.Error("hybrid should still pass via master-direct")
	}
}

// TestTwoRootTamper simulates a store with two root-shaped records:
// exactly one becomes the active root, and chains terminating at the
// other fail.
func TestTwoRootTamper(t *testing.T) {
	dirA := t.TempDir()
	netA, err := Open(dirA, discardLogger())
	if err != nil {
		t.Fatalf("Open A: %v", err)
	}
	if _, err := netA.CreateMaster(mustNodeID(t, "zeta-root")); err != nil {
		t.Fatalf("CreateMaster A: %v", err)
	}
	if _, err := netA.Issue(mustNodeID(t, "zeta-root"), mustNodeID(t, "zeta-node"), ""); err != nil {
		t.Fatalf("Issue A: %v", err)
	}

	// Plant a second, lexicographically earlier root record in the
	// same store directory.
	dirB := t.TempDir()
	netB, err := Open(dirB, discardLogger())
	if err != nil {
		t.Fatalf("Open B: %v", err)
	}
	if _, err := netB.CreateMaster(mustNodeID(t, "alpha-root")); err != nil {
		t.Fatalf("CreateMaster B: %v", err)
	}
	planted, err := os.ReadFile(filepath.Join(dirB, "alpha-root"+store.TokenSuffix))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dirA, "alpha-root"+store.TokenSuffix), planted, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tampered, err := Open(dirA, discardLogger())
	if err != nil {
		t.Fatalf("Open tampered: %v", err)
	}
	if tampered.Root() == nil || tampered.Root().NodeID.String() != "alpha-root" {
		t.Fatalf("active root = %v, want alpha-root (lexicographic winner)", tampered.Root())
	}

	// The displaced root itself now fails chain verification.
	report, err := tampered.VerifyChain(mustNodeID(t, "zeta-root"))
	if err != nil {
		t.Fatalf("VerifyChain(zeta-root): %v", err)
	}
	if report.Valid {
		t.Error("displaced root should fail chain verification")
	}
	if !errors.Is(report.Err, ErrRootMismatch) {
		t.Errorf("report.Err = %v, want ErrRootMismatch", report.Err)
	}

	// And so do the tokens it issued: their chain terminates at a
	// root that is not the registered one.
	nodeReport, err := tampered.VerifyChain(mustNodeID(t, "zeta-node"))
	if err != nil {
		t.Fatalf("VerifyChain(zeta-node): %v", err)
	}
	if nodeReport.Valid {
		t.Error("token under displaced root should fail chain verification")
	}
}

func TestReloadMatchesSession(t *testing.T) {
	dir := t.TempDir()
	n, err := Open(dir, discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := n.CreateMaster(mustNodeID(t, "root")); err != nil {
		t.Fatalf("CreateMaster: %v", err)
	}
	if _, err := n.Issue(mustNodeID(t, "root"), mustNodeID(t, "mid"), "payload"); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	reloaded, err := Open(dir, discardLogger())
	if err != nil {
		t.Fatalf("Open (reload): %v", err)
	}
	if reloaded.Len() != n.Len() {
		t.Errorf("reloaded %d tokens, want %d", reloaded.Len(), n.Len())
	}
	if reloaded.Root().NodeID != n.Root().NodeID {
		t.Error("reloaded root differs")
	}

	report, err := reloaded.VerifyHybrid(mustNodeID(t, "mid"))
	if err != nil {
		t.Fatalf("VerifyHybrid after reload: %v", err)
	}
	if !report.Valid {
		t.Error("hybrid verification should pass after reload")
	}
}
