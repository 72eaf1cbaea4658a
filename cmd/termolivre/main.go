// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command termolivre moderates Termo live chat: it hides messages that
// reveal or hint at the puzzle answer.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess  = 0 // Operation completed successfully
	CLIExitFindings = 1 // check --exit-code found flagged messages
	CLIExitError    = 2 // Operation failed
)

// errFlagged signals CLIExitFindings without printing an error.
var errFlagged = errors.New("flagged messages found")

// configPath is bound to the persistent --config flag.
var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "termolivre",
		Short: "Live-chat moderation for Termo word-game streams",
		Long: `termolivre hides chat messages that reveal the current Termo answer,
using obfuscation-aware heuristics with an LLM classifier fallback.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to a YAML config file (defaults plus environment when empty)")

	root.AddCommand(newServeCmd(), newCheckCmd(), newConfigCmd())
	return root
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	switch {
	case err == nil:
		return CLIExitSuccess
	case errors.Is(err, errFlagged):
		return CLIExitFindings
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return CLIExitError
	}
}
