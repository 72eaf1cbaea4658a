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

import "time"

// Verdict reasons reported to a Recorder.
const (
	ReasonBlank             = "blank"
	ReasonHeuristic         = "heuristic"
	ReasonClassifierFlagged = "classifier_flagged"
	ReasonClassifierSafe    = "classifier_safe"
)

// Batch outcomes reported to a Recorder.
const (
	OutcomeOK         = "ok"
	OutcomePadded     = "padded"
	OutcomeTruncated  = "truncated"
	OutcomeError      = "error"
	OutcomeTimeout    = "timeout"
	OutcomeCanceled   = "canceled"
	OutcomeNoChoices  = "no_choices"
	OutcomeOverLength = "over_length"
)

// Recorder receives pipeline events for metrics.
//
// Implementations must be safe for concurrent use and must not block.
type Recorder interface {
	// ObserveVerdict is called once per evaluated message. detail carries
	// the heuristic strategy for ReasonHeuristic and is empty otherwise.
	ObserveVerdict(reason, detail string)

	// ObserveBatch is called once per classifier batch. Over-length messages
	// that never reach the classifier are reported as one OutcomeOverLength
	// event per Classify call, with size set to the skipped count.
	ObserveBatch(outcome string, size int, elapsed time.Duration)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) ObserveVerdict(string, string) {}

func (NopRecorder) ObserveBatch(string, int, time.Duration) {}

var _ Recorder = NopRecorder{}
