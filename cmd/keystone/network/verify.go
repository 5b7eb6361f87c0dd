// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package network

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/pflag"

	"github.com/keystone-foundation/keystone/cmd/keystone/cli"
	libnetwork "github.com/keystone-foundation/keystone/lib/network"
	"github.com/keystone-foundation/keystone/lib/ref"
	"github.com/keystone-foundation/keystone/lib/token"
)

type verifyParams struct {
	cli.JSONOutput
	Store  string `flag:"store" desc:"store directory (default from config)"`
	Method string `flag:"method,m" desc:"verification method: chain, master, issuer, hybrid" default:"hybrid"`
	Issuer string `flag:"issuer,i" desc:"issuer to verify against (issuer method only; default: the token's own issuer)"`
	Trace  bool   `flag:"trace" desc:"print the verification trace"`
}

// verifyResult is one method's outcome in the JSON output.
type verifyResult struct {
	Method string   `json:"method"`
	Valid  bool     `json:"valid"`
	Error  string   `json:"error,omitempty"`
	Trace  []string `json:"trace"`
}

type verifyOutput struct {
	Node    ref.NodeID     `json:"node"`
	Valid   bool           `json:"valid"`
	Results []verifyResult `json:"results"`
}

func verifyCommand() *cli.Command {
	var params verifyParams

	return &cli.Command{
		Name:    "verify",
		Summary: "Verify a node's token",
		Description: `Verify a node's token. The default hybrid method tries every
applicable verification path and passes when any one of them does;
the chain, master, and issuer methods run a single path.

Exits 0 when verification passes and 1 when it fails.`,
		Usage: "keystone network verify <node-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Hybrid verification with trace output",
				Command:     "keystone network verify till-7 --trace",
			},
			{
				Description: "Chain verification only",
				Command:     "keystone network verify till-7 --method chain",
			},
			{
				Description: "Check that a node descends from a specific issuer",
				Command:     "keystone network verify till-7 --method issuer --issuer headquarters",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("verify", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one node identifier, got %d", len(args))
			}
			id, err := ref.ParseNodeID(args[0])
			if err != nil {
				return err
			}

			logger := cli.NewCommandLogger().With("command", "network/verify")
			n, err := open(params.Store, logger)
			if err != nil {
				return err
			}

			output, err := runVerification(n, id, &params)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(output); done {
				if err != nil {
					return err
				}
				if !output.Valid {
					return &cli.ExitError{Code: 1}
				}
				return nil
			}

			printVerification(output, params.Trace)
			if !output.Valid {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func runVerification(n *libnetwork.Network, id ref.NodeID, params *verifyParams) (*verifyOutput, error) {
	switch params.Method {
	case "chain":
		report, err := n.VerifyChain(id)
		if err != nil {
			return nil, err
		}
		return singleResult(id, "chain", report), nil

	case "master":
		report, err := n.VerifyMasterDirect(id)
		if err != nil {
			return nil, err
		}
		return singleResult(id, "master-direct", report), nil

	case "issuer":
		issuerID, err := resolveIssuer(n, id, params.Issuer)
		if err != nil {
			return nil, err
		}
		report, err := n.VerifyAsIssuer(issuerID, id)
		if err != nil {
			return nil, err
		}
		return singleResult(id, "issuer-direct", report), nil

	case "hybrid":
		report, err := n.VerifyHybrid(id)
		if err != nil {
			return nil, err
		}
		output := &verifyOutput{Node: id, Valid: report.Valid}
		// Stable method order for output.
		methods := make([]token.Path, 0, len(report.Results))
		for method := range report.Results {
			methods = append(methods, method)
		}
		sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
		for _, method := range methods {
			output.Results = append(output.Results, toResult(string(method), report.Results[method]))
		}
		return output, nil

	default:
		return nil, fmt.Errorf("unknown method %q (expected chain, master, issuer, or hybrid)", params.Method)
	}
}

// resolveIssuer picks the issuer to check against: the --issuer flag
// when given, otherwise the token's own declared issuer.
func resolveIssuer(n *libnetwork.Network, id ref.NodeID, flagValue string) (ref.NodeID, error) {
	if flagValue != "" {
		issuerID, err := ref.ParseNodeID(flagValue)
		if err != nil {
			return ref.NodeID{}, fmt.Errorf("invalid --issuer: %w", err)
		}
		return issuerID, nil
	}

	t, ok := n.Get(id)
	if !ok {
		return ref.NodeID{}, fmt.Errorf("%w: %s", libnetwork.ErrTokenNotFound, id)
	}
	if t.IssuerID.IsZero() {
		return ref.NodeID{}, fmt.Errorf("%s is a root token; --issuer is required for the issuer method", id)
	}
	return t.IssuerID, nil
}

func singleResult(id ref.NodeID, method string, report *libnetwork.Report) *verifyOutput {
	return &verifyOutput{
		Node:    id,
		Valid:   report.Valid,
		Results: []verifyResult{toResult(method, report)},
	}
}

func toResult(method string, report *libnetwork.Report) verifyResult {
	result := verifyResult{
		Method: method,
		Valid:  report.Valid,
		Trace:  report.Trace,
	}
	if report.Err != nil {
		result.Error = report.Err.Error()
	}
	if result.Trace == nil {
		result.Trace = []string{}
	}
	return result
}

func printVerification(output *verifyOutput, withTrace bool) {
	verdict := "INVALID"
	if output.Valid {
		verdict = "VALID"
	}
	fmt.Fprintf(os.Stdout, "%s: %s\n", output.Node, verdict)

	for _, result := range output.Results {
		mark := "fail"
		if result.Valid {
			mark = "ok"
		}
		fmt.Fprintf(os.Stdout, "  %-14s %s\n", result.Method, mark)
		if result.Error != "" {
			fmt.Fprintf(os.Stdout, "    error: %s\n", result.Error)
		}
		if withTrace {
			for _, step := range result.Trace {
				fmt.Fprintf(os.Stdout, "    %s\n", step)
			}
		}
	}
}
