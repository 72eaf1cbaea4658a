// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package moderation

import (
	"context"
	"strings"

	"github.com/AleutianAI/termolivre/pkg/logging"
)

// Evaluator is the surface the transport layer depends on.
//
// Both methods return true for messages that are safe to display as-is.
type Evaluator interface {
	IsMessageSafe(ctx context.Context, message string) bool
	AreMessagesSafe(ctx context.Context, messages []string) []bool
}

// Filter combines the local Matcher with a Classifier.
//
// # Description
//
// Each message is first checked locally. Heuristic hits are unsafe and never
// leave the process; everything else is sent, in original form, to the
// Classifier, whose flags are negated into verdicts. Filter never returns an
// error: blank input is safe and classifier trouble resolves to safe.
//
// # Thread Safety
//
// Safe for concurrent use as long as the Classifier is.
type Filter struct {
	matcher    *Matcher
	classifier Classifier
	logger     *logging.Logger
	recorder   Recorder
}

// NewFilter creates a Filter.
//
// # Inputs
//
//   - matcher: Built once from the answer set and shared.
//   - classifier: Nil means heuristics only (NopClassifier).
//   - logger: May be nil.
//   - recorder: May be nil.
func NewFilter(matcher *Matcher, classifier Classifier, logger *logging.Logger, recorder Recorder) *Filter {
	if classifier == nil {
		classifier = NopClassifier{}
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Filter{
		matcher:    matcher,
		classifier: classifier,
		logger:     logging.OrDefault(logger).With("component", "filter"),
		recorder:   recorder,
	}
}

// Matcher returns the local matcher.
func (f *Filter) Matcher() *Matcher { return f.matcher }

// IsMessageSafe evaluates one message.
//
// # Examples
//
//	f.IsMessageSafe(ctx, "casa")      // false, no classifier call
//	f.IsMessageSafe(ctx, "casamento") // classifier decides
//	f.IsMessageSafe(ctx, "   ")       // true
func (f *Filter) IsMessageSafe(ctx context.Context, message string) bool {
	if isBlank(message) {
		f.recorder.ObserveVerdict(ReasonBlank, "")
		return true
	}
	if match, ok := f.matcher.Inspect(message); ok {
		f.flagged(match)
		return false
	}
	flags := f.classifier.Classify(ctx, []string{message})
	return f.fromClassifier(len(flags) > 0 && flags[0])
}

// AreMessagesSafe evaluates messages in one pass.
//
// # Description
//
// Messages that pass the local checks are gathered, with their original
// positions, into one Classify call; the result is scattered back. The
// output always has len(messages) entries in input order, and is an empty
// non-nil slice for empty input.
func (f *Filter) AreMessagesSafe(ctx context.Context, messages []string) []bool {
	verdicts := make([]bool, len(messages))
	if len(messages) == 0 {
		return verdicts
	}

	pending := make([]string, 0, len(messages))
	positions := make([]int, 0, len(messages))
	for i, msg := range messages {
		if isBlank(msg) {
			f.recorder.ObserveVerdict(ReasonBlank, "")
			verdicts[i] = true
			continue
		}
		if match, ok := f.matcher.Inspect(msg); ok {
			f.flagged(match)
			continue
		}
		pending = append(pending, msg)
		positions = append(positions, i)
	}
	if len(pending) == 0 {
		return verdicts
	}

	flags := f.classifier.Classify(ctx, pending)
	if len(flags) != len(pending) {
		f.logger.Warn("classifier result length mismatch, missing entries treated as safe",
			"expected", len(pending), "received", len(flags))
	}
	for j, pos := range positions {
		verdicts[pos] = f.fromClassifier(j < len(flags) && flags[j])
	}
	return verdicts
}

func (f *Filter) flagged(match Match) {
	f.logger.Debug("message flagged by heuristics",
		"answer", match.Answer, "strategy", match.Strategy.String())
	f.recorder.ObserveVerdict(ReasonHeuristic, match.Strategy.String())
}

func (f *Filter) fromClassifier(flagged bool) bool {
	if flagged {
		f.recorder.ObserveVerdict(ReasonClassifierFlagged, "")
		return false
	}
	f.recorder.ObserveVerdict(ReasonClassifierSafe, "")
	return true
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

var _ Evaluator = (*Filter)(nil)
