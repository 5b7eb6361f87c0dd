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

	"github.com/keystone-foundation/keystone/cmd/keystone/cli"
	libnetwork "github.com/keystone-foundation/keystone/lib/network"
	"github.com/keystone-foundation/keystone/lib/ref"
	"github.com/keystone-foundation/keystone/lib/store"
	"github.com/keystone-foundation/keystone/lib/token"
)

// run executes a freshly-built command with the given args.
func run(t *testing.T, command *cli.Command, args ...string) error {
	t.Helper()
	return command.Execute(args)
}

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	if err := run(t, initCommand(), "--store", dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "keys"))
	if err != nil || !info.IsDir() {
		t.Errorf("init should create keys/ (err=%v)", err)
	}
}

func TestCreateMasterAndIssue(t *testing.T) {
	dir := t.TempDir()

	if err := run(t, createMasterCommand(), "--store", dir, "root"); err != nil {
		t.Fatalf("create-master: %v", err)
	}
	if err := run(t, issueCommand(), "--store", dir, "--issuer", "root", "branch"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Both tokens persisted.
	for _, name := range []string{"root", "branch"} {
		if _, err := os.Stat(filepath.Join(dir, name+store.TokenSuffix)); err != nil {
			t.Errorf("missing token file for %s: %v", name, err)
		}
	}

	// Duplicate issuance surfaces the underlying sentinel.
	err := run(t, issueCommand(), "--store", dir, "--issuer", "root", "branch")
	if !errors.Is(err, libnetwork.ErrDuplicateNode) {
		t.Errorf("duplicate issue = %v, want ErrDuplicateNode", err)
	}
}

func TestVerifyCommand_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	if err := run(t, createMasterCommand(), "--store", dir, "root"); err != nil {
		t.Fatalf("create-master: %v", err)
	}
	if err := run(t, issueCommand(), "--store", dir, "--issuer", "root", "branch"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Valid token: exit 0 (nil error).
	if err := run(t, verifyCommand(), "--store", dir, "branch"); err != nil {
		t.Errorf("verify valid token = %v, want nil", err)
	}

	// Break the chain by tampering with the stored issuer hash, then
	// verify with the chain method only: exit code 1.
	n, err := libnetwork.Open(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	branch, _ := n.Get(mustNodeID(t, "branch"))
	branch.IssuerTokenHash = "0000000000000000000000000000000000000000000000000000000000000000"
	if err := saveToken(t, dir, branch); err != nil {
		t.Fatalf("saveToken: %v", err)
	}

	err = run(t, verifyCommand(), "--store", dir, "--method", "chain", "branch")
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Errorf("verify broken chain = %v, want ExitError{1}", err)
	}

	// Unknown node: a real error, not an exit code.
	err = run(t, verifyCommand(), "--store", dir, "ghost")
	if !errors.Is(err, libnetwork.ErrTokenNotFound) {
		t.Errorf("verify unknown node = %v, want ErrTokenNotFound", err)
	}
}

func TestVerifyCommand_RejectsUnknownMethod(t *testing.T) {
	dir := t.TempDir()
	if err := run(t, createMasterCommand(), "--store", dir, "root"); err != nil {
		t.Fatalf("create-master: %v", err)
	}
	if err := run(t, verifyCommand(), "--store", dir, "--method", "psychic", "root"); err == nil {
		t.Error("unknown method should error")
	}
}

func mustNodeID(t *testing.T, raw string) ref.NodeID {
	t.Helper()
	id, err := ref.ParseNodeID(raw)
	if err != nil {
		t.Fatalf("ParseNodeID(%q): %v", raw, err)
	}
	return id
}

// saveToken rewrites a token's file in the store directory.
func saveToken(t *testing.T, dir string, tok *token.Token) error {
	t.Helper()
	s, err := store.Open(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}
	return s.Save(tok)
}

func TestListCommand_EmptyStore(t *testing.T) {
	dir := t.TempDir()
	if err := run(t, listCommand(), "--store", dir); err != nil {
		t.Fatalf("list on empty store: %v", err)
	}
}
