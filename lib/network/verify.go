// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package network

import (
	"errors"
	"fmt"

	"github.com/keystone-foundation/keystone/lib/ref"
	"github.com/keystone-foundation/keystone/lib/token"
)

// Errors returned by verification operations.
var (
	// ErrTokenNotFound means the verification target has no token in
	// the store.
	ErrTokenNotFound = errors.New("network: token not found")

	// ErrHashChainBroken means a token's issuer hash does not match
	// its issuer's actual token hash — tamper evidence, not missing
	// data.
	ErrHashChainBroken = errors.New("network: hash chain broken")

	// ErrCycleDetected means an issuer walk exceeded the total token
	// count. Correct data cannot cycle; injected records can.
	ErrCycleDetected = errors.New("network: cycle detected in issuer chain")

	// ErrRootMismatch means a chain terminated at a root-shaped token
	// that is not the registered root.
	ErrRootMismatch = errors.New("network: root token is not the registered root")
)

// Report is the outcome of one verification method: a validity
// verdict, a human-readable trace of the steps taken, and — when
// invalid — the sentinel classifying the failing check. The trace is
// for diagnostics and audit, never for control flow.
type Report struct {
	Valid bool
	Trace []string
	Err   error
}

func validReport(trace []string) *Report {
	return &Report{Valid: true, Trace: trace}
}

func invalidReport(trace []string, err error, step string) *Report {
	return &Report{Valid: false, Trace: append(trace, step), Err: err}
}

// chainStep formats one trace entry for an issuer walk.
func chainStep(t *token.Token) string {
	return fmt.Sprintf("%s -> %.16s...", t.NodeID, t.TokenHash)
}

// VerifyChain validates a token by walking issuer links up to the
// registered root, checking hash-chain continuity at every step. The
// walk is bounded by the total token count: exceeding it means the
// issuer graph was tampered into a cycle.
//
// Returns ErrTokenNotFound when the target has no token; every other
// failure is a Report with Valid=false.
func (n *Network) VerifyChain(id ref.NodeID) (*Report, error) {
	current, ok := n.tokens[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, id)
	}

	var trace []string
	for steps := 0; ; steps++ {
		if steps >= len(n.tokens) {
			return invalidReport(trace, ErrCycleDetected,
				fmt.Sprintf("cycle detected after %d steps", steps)), nil
		}
		trace = append(trace, chainStep(current))

		if current.IsRoot() {
			if current == n.root {
				return validReport(trace), nil
			}
			return invalidReport(trace, ErrRootMismatch,
				fmt.Sprintf("%s is not the registered root", current.NodeID)), nil
		}

		issuer, ok := n.tokens[current.IssuerID]
		if !ok {
			return invalidReport(trace, ErrIssuerNotFound,
				fmt.Sprintf("issuer %s not found", current.IssuerID)), nil
		}
		if issuer.TokenHash != current.IssuerTokenHash {
			return invalidReport(trace, ErrHashChainBroken,
				"hash chain broken - issuer token hash mismatch"), nil
		}
		current = issuer
	}
}

// VerifyMasterDirect validates a token against the master signature
// alone. No intermediate tokens are consulted — this is the path that
// works when the chain is incomplete.
func (n *Network) VerifyMasterDirect(id ref.NodeID) (*Report, error) {
	t, ok := n.tokens[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, id)
	}

	if !t.HasPath(token.PathMasterDirect) {
		return invalidReport(nil, token.ErrSignatureUnavailable,
			"master signature verification not available for this token"), nil
	}
	master := n.keys.Master()
	if master == nil {
		return invalidReport(nil, token.ErrSignatureUnavailable,
			"master public key not available"), nil
	}

	if err := t.VerifyMasterSignature(master.Public); err != nil {
		return invalidReport(nil, err, "master signature verification failed"), nil
	}
	return validReport([]string{fmt.Sprintf("master signature verified for %s", id)}), nil
}

// VerifyAsIssuer validates that issuerID issued descendantID, directly
// or transitively. The direct case prefers the issuer's signature when
// both the issuer-direct path and the issuer's public key are present,
// falling back to a hash-chain equality check otherwise. The indirect
// case walks the descendant's chain upward looking for the issuer.
func (n *Network) VerifyAsIssuer(issuerID, descendantID ref.NodeID) (*Report, error) {
	descendant, ok := n.tokens[descendantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, descendantID)
	}
	issuer, ok := n.tokens[issuerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIssuerNotFound, issuerID)
	}

	if descendant.IssuerID == issuerID {
		issuerKeys := n.keys.Node(issuerID)
		if issuerKeys != nil && descendant.HasPath(token.PathIssuerDirect) {
			if err := descendant.VerifyIssuerSignature(issuerKeys.Public, issuerID); err != nil {
				return invalidReport(nil, err, "direct issuer signature verification failed"), nil
			}
			return validReport([]string{
				fmt.Sprintf("direct issuer signature verified: %s -> %s", issuerID, descendantID),
			}), nil
		}

		// No signature available: fall back to the hash linkage.
		if descendant.IssuerTokenHash != issuer.TokenHash {
			return invalidReport(nil, ErrHashChainBroken, "hash chain verification failed"), nil
		}
		return validReport([]string{
			fmt.Sprintf("hash chain verified: %s -> %s", issuerID, descendantID),
		}), nil
	}

	return n.verifyIndirectIssuance(issuer, descendant)
}

// verifyIndirectIssuance walks from the descendant up the issuer chain
// looking for the target issuer among its ancestors.
func (n *Network) verifyIndirectIssuance(issuer, descendant *token.Token) (*Report, error) {
	var trace []string
	current := descendant
	for steps := 0; !current.IsRoot(); steps++ {
		if steps >= len(n.tokens) {
			return invalidReport(trace, ErrCycleDetected,
				fmt.Sprintf("cycle detected after %d steps", steps)), nil
		}
		trace = append(trace, current.NodeID.String())

		if current.IssuerID == issuer.NodeID {
			trace = append(trace, fmt.Sprintf("%s (issuer found)", issuer.NodeID))
			return validReport(trace), nil
		}

		parent, ok := n.tokens[current.IssuerID]
		if !ok {
			return invalidReport(trace, ErrIssuerNotFound,
				fmt.Sprintf("missing issuer: %s", current.IssuerID)), nil
		}
		current = parent
	}

	return invalidReport(trace, ErrIssuerNotFound,
		fmt.Sprintf("issuer %s not found in chain", issuer.NodeID)), nil
}

// HybridReport aggregates the results of every applicable verification
// method. Valid is the logical OR of the attempted methods: one
// passing path is enough evidence of legitimate issuance.
type HybridReport struct {
	Valid   bool
	Results map[token.Path]*Report
}

// VerifyHybrid runs chain verification unconditionally, master-direct
// verification when the token carries that path, and issuer-direct
// verification against the token's own declared issuer when present in
// the store.
func (n *Network) VerifyHybrid(id ref.NodeID) (*HybridReport, error) {
	t, ok := n.tokens[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, id)
	}

	report := &HybridReport{Results: make(map[token.Path]*Report)}

	chain, err := n.VerifyChain(id)
	if err != nil {
		return nil, err
	}
	report.Results[token.PathChain] = chain

	if t.HasPath(token.PathMasterDirect) {
		direct, err := n.VerifyMasterDirect(id)
		if err != nil {
			return nil, err
		}
		report.Results[token.PathMasterDirect] = direct
	}

	if !t.IssuerID.IsZero() {
		if _, ok := n.tokens[t.IssuerID]; ok {
			asIssuer, err := n.VerifyAsIssuer(t.IssuerID, id)
			if err != nil {
				return nil, err
			}
			report.Results[token.PathIssuerDirect] = asIssuer
		}
	}

	for _, result := range report.Results {
		if result.Valid {
			report.Valid = true
			break
		}
	}
	return report, nil
}
