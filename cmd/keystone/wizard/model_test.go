// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package wizard

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

// typeAndEnter feeds a line into the model followed by Enter.
func typeAndEnter(t *testing.T, m Model, line string) Model {
	t.Helper()
	var model tea.Model = m
	for _, r := range line {
		model, _ = model.(Model).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	model, _ = model.(Model).Update(tea.KeyMsg{Type: tea.KeyEnter})
	return model.(Model)
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	return New(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWizard_FullFlow(t *testing.T) {
	m := newTestModel(t)

	// Accept the pre-filled store directory.
	var model tea.Model
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(Model)
	if m.Err() != nil {
		t.Fatalf("store step: %v", m.Err())
	}
	if m.phase != phaseMaster {
		t.Fatalf("phase = %d, want phaseMaster", m.phase)
	}

	m = typeAndEnter(t, m, "root")
	if m.Err() != nil {
		t.Fatalf("master step: %v", m.Err())
	}
	if m.phase != phaseIssue {
		t.Fatalf("phase = %d, want phaseIssue", m.phase)
	}

	m = typeAndEnter(t, m, "root branch")
	if m.errMsg != "" {
		t.Fatalf("issue step error: %s", m.errMsg)
	}

	// Empty line finishes.
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(Model)
	if m.phase != phaseDone {
		t.Fatalf("phase = %d, want phaseDone", m.phase)
	}

	if m.network.Len() != 2 {
		t.Errorf("network has %d tokens, want 2", m.network.Len())
	}
	if !strings.Contains(m.View(), "Done.") {
		t.Error("done view should show completion")
	}
}

func TestWizard_RecoverableIssueErrors(t *testing.T) {
	m := newTestModel(t)
	var model tea.Model
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = typeAndEnter(t, model.(Model), "root")

	// Unknown issuer: reported inline, wizard continues.
	m = typeAndEnter(t, m, "ghost node")
	if m.errMsg == "" {
		t.Error("unknown issuer should set an inline error")
	}
	if m.phase != phaseIssue {
		t.Error("wizard should stay in the issue phase after a recoverable error")
	}

	// Malformed line.
	m.input.SetValue("")
	m = typeAndEnter(t, m, "too many fields here")
	if !strings.Contains(m.errMsg, "expected") {
		t.Errorf("malformed line error = %q", m.errMsg)
	}
}

func TestWizard_ReopensExistingStore(t *testing.T) {
	dir := t.TempDir()
	first := New(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var model tea.Model
	model, _ = first.Update(tea.KeyMsg{Type: tea.KeyEnter})
	first = typeAndEnter(t, model.(Model), "root")
	if first.Err() != nil {
		t.Fatalf("first wizard: %v", first.Err())
	}

	// A second run against the same store skips master creation.
	second := New(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	model, _ = second.Update(tea.KeyMsg{Type: tea.KeyEnter})
	second = model.(Model)
	if second.Err() != nil {
		t.Fatalf("second wizard: %v", second.Err())
	}
	if second.phase != phaseIssue {
		t.Errorf("phase = %d, want phaseIssue (root already exists)", second.phase)
	}
}
