// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/AleutianAI/termolivre/pkg/config"
	"github.com/AleutianAI/termolivre/pkg/logging"
	"github.com/AleutianAI/termolivre/pkg/ux"
	"github.com/spf13/cobra"
)

type checkOptions struct {
	local    bool
	json     bool
	exitCode bool
	verbose  bool
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check [message...]",
		Short: "Moderate messages from the arguments or, without any, from stdin",
		Example: `  termolivre check "a resposta é c@5@" "bom dia"
  termolivre check --local < chat.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.local, "local", false, "heuristics only, never call the classifier")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print one JSON object per message")
	cmd.Flags().BoolVar(&opts.exitCode, "exit-code", false, "exit with status 1 when any message is flagged")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline activity to stderr")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string, opts checkOptions) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.Discard()
	if opts.verbose {
		logger = newLogger(cfg.Logging)
	}
	defer logger.Close()

	messages := args
	if len(messages) == 0 {
		if messages, err = readLines(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}

	filter, err := buildFilter(cfg, opts.local, logger, nil)
	if err != nil {
		return err
	}
	verdicts := filter.AreMessagesSafe(cmd.Context(), messages)

	out := cmd.OutOrStdout()
	color := false
	if f, ok := out.(*os.File); ok {
		color = ux.ColorEnabled(f)
	}
	printer := ux.NewPrinter(out, color, opts.json)

	flagged := 0
	for i, msg := range messages {
		v := ux.Verdict{Message: msg, Safe: verdicts[i]}
		if !v.Safe {
			flagged++
			v.Reason = explain(filter.Matcher(), msg)
		}
		if err := printer.Verdict(v); err != nil {
			return err
		}
	}
	if err := printer.Summary(len(messages), flagged); err != nil {
		return err
	}

	if opts.exitCode && flagged > 0 {
		return errFlagged
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
