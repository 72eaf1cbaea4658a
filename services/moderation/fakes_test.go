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
	"regexp"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Test Doubles
// =============================================================================

// fakeCompleter answers each prompt through respond and records the
// enumerated messages of every call.
type fakeCompleter struct {
	mu      sync.Mutex
	calls   [][]string
	systems []string
	respond func(ctx context.Context, batch []string) (string, error)
}

var promptLine = regexp.MustCompile(`(?m)^\d+\. "(.*)"$`)

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	var batch []string
	for _, m := range promptLine.FindAllStringSubmatch(user, -1) {
		batch = append(batch, m[1])
	}
	f.mu.Lock()
	f.calls = append(f.calls, batch)
	f.systems = append(f.systems, system)
	f.mu.Unlock()
	if f.respond == nil {
		return strings.TrimSuffix(strings.Repeat("false,", len(batch)), ","), nil
	}
	return f.respond(ctx, batch)
}

func (f *fakeCompleter) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// flagWords returns a responder that flags messages containing any word.
func flagWords(words ...string) func(context.Context, []string) (string, error) {
	return func(_ context.Context, batch []string) (string, error) {
		tokens := make([]string, len(batch))
		for i, msg := range batch {
			tokens[i] = "false"
			for _, w := range words {
				if strings.Contains(msg, w) {
					tokens[i] = "true"
				}
			}
		}
		return strings.Join(tokens, ","), nil
	}
}

// fakeClassifier returns scripted flags and records its inputs.
type fakeClassifier struct {
	mu     sync.Mutex
	calls  [][]string
	result func(messages []string) []bool
}

func (f *fakeClassifier) Classify(_ context.Context, messages []string) []bool {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), messages...))
	f.mu.Unlock()
	if f.result == nil {
		return make([]bool, len(messages))
	}
	return f.result(messages)
}

func (f *fakeClassifier) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

type batchEvent struct {
	outcome string
	size    int
}

type recordingRecorder struct {
	mu       sync.Mutex
	verdicts []string
	batches  []batchEvent
}

func (r *recordingRecorder) ObserveVerdict(reason, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if detail != "" {
		reason += ":" + detail
	}
	r.verdicts = append(r.verdicts, reason)
}

func (r *recordingRecorder) ObserveBatch(outcome string, size int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batchEvent{outcome: outcome, size: size})
}

func (r *recordingRecorder) Batches() []batchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]batchEvent(nil), r.batches...)
}

func (r *recordingRecorder) Verdicts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.verdicts...)
}
