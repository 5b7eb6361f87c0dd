// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package wizard

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	libnetwork "github.com/keystone-foundation/keystone/lib/network"
	"github.com/keystone-foundation/keystone/lib/ref"
)

// phase identifies the current wizard step.
type phase int

const (
	// phaseStore asks for the store directory.
	phaseStore phase = iota
	// phaseMaster asks for the root node identifier. Skipped when the
	// opened store already has a root.
	phaseMaster
	// phaseIssue repeatedly asks for "issuer new-node" pairs; an empty
	// line finishes the wizard.
	phaseIssue
	// phaseDone renders the summary and quits on any key.
	phaseDone
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
)

// Model is the wizard's bubbletea model.
type Model struct {
	phase  phase
	input  textinput.Model
	logger *slog.Logger

	network *libnetwork.Network

	// log accumulates one line per completed action for the summary.
	log []string

	// errMsg is the validation error for the current input, cleared on
	// the next keystroke.
	errMsg string

	// fatal aborts the program from Run when the wizard cannot
	// continue (store unreadable, issuance failure).
	fatal error
}

// New returns a wizard model with the store prompt pre-filled.
func New(defaultStore string, logger *slog.Logger) Model {
	input := textinput.New()
	input.SetValue(defaultStore)
	input.Focus()
	input.CharLimit = 256

	return Model{
		phase:  phaseStore,
		input:  input,
		logger: logger,
	}
}

// Err returns the error that aborted the wizard, if any.
func (m Model) Err() error { return m.fatal }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, isKey := msg.(tea.KeyMsg)
	if isKey {
		switch keyMsg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}
		if m.phase == phaseDone {
			return m, tea.Quit
		}
		m.errMsg = ""
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles Enter for the current phase.
func (m Model) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())

	switch m.phase {
	case phaseStore:
		return m.submitStore(value)
	case phaseMaster:
		return m.submitMaster(value)
	case phaseIssue:
		return m.submitIssue(value)
	default:
		return m, tea.Quit
	}
}

func (m Model) submitStore(dir string) (tea.Model, tea.Cmd) {
	if dir == "" {
		m.errMsg = "store directory is required"
		return m, nil
	}

	n, err := libnetwork.Open(dir, m.logger)
	if err != nil {
		m.fatal = err
		return m, tea.Quit
	}
	m.network = n
	m.log = append(m.log, fmt.Sprintf("store opened at %s (%d tokens)", dir, n.Len()))

	if n.Root() != nil {
		m.log = append(m.log, fmt.Sprintf("existing root: %s", n.Root().NodeID))
		m.phase = phaseIssue
	} else {
		m.phase = phaseMaster
	}
	m.input.SetValue("")
	return m, nil
}

func (m Model) submitMaster(raw string) (tea.Model, tea.Cmd) {
	id, err := ref.ParseNodeID(raw)
	if err != nil {
		m.errMsg = err.Error()
		return m, nil
	}

	master, err := m.network.CreateMaster(id)
	if err != nil {
		m.fatal = err
		return m, tea.Quit
	}
	m.log = append(m.log, fmt.Sprintf("created master token for %s", master.NodeID))
	m.phase = phaseIssue
	m.input.SetValue("")
	return m, nil
}

func (m Model) submitIssue(line string) (tea.Model, tea.Cmd) {
	if line == "" {
		m.phase = phaseDone
		return m, nil
	}

	fields := strings.Fields(line)
	if len(fields) != 2 {
		m.errMsg = "expected: <issuer> <new-node>"
		return m, nil
	}
	issuerID, err := ref.ParseNodeID(fields[0])
	if err != nil {
		m.errMsg = fmt.Sprintf("issuer: %v", err)
		return m, nil
	}
	newID, err := ref.ParseNodeID(fields[1])
	if err != nil {
		m.errMsg = fmt.Sprintf("new node: %v", err)
		return m, nil
	}

	issued, err := m.network.Issue(issuerID, newID, "")
	if err != nil {
		// Issuance errors (duplicate node, unknown issuer) are
		// recoverable: report and let the operator try again.
		m.errMsg = err.Error()
		return m, nil
	}
	m.log = append(m.log, fmt.Sprintf("issued token for %s (level %d, issuer %s)",
		issued.NodeID, issued.HierarchyLevel, issued.IssuerID))
	m.input.SetValue("")
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keystone setup wizard"))
	b.WriteString("\n\n")

	for _, line := range m.log {
		b.WriteString(okStyle.Render("  ✓ " + line))
		b.WriteString("\n")
	}
	if len(m.log) > 0 {
		b.WriteString("\n")
	}

	switch m.phase {
	case phaseStore:
		b.WriteString(promptStyle.Render("Store directory:"))
	case phaseMaster:
		b.WriteString(promptStyle.Render("Root node identifier:"))
	case phaseIssue:
		b.WriteString(promptStyle.Render("Issue a token (\"<issuer> <new-node>\", empty line to finish):"))
	case phaseDone:
		b.WriteString(okStyle.Render("Done."))
		b.WriteString("\n")
		b.WriteString(faintStyle.Render("Press any key to exit."))
		return b.String()
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	if m.errMsg != "" {
		b.WriteString(errorStyle.Render("  " + m.errMsg))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(faintStyle.Render("enter to confirm · esc to quit"))
	return b.String()
}
