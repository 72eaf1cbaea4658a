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
	"errors"
	"time"
	"unicode/utf8"

	"github.com/AleutianAI/termolivre/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Interfaces
// =============================================================================

// Classifier flags messages that try to reveal the answer.
//
// # Description
//
// Classify returns one flag per input message, positionally aligned, where
// true means flagged. This is the inverse polarity of Filter's verdicts.
// Implementations never fail: any internal problem resolves to false.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, messages []string) []bool
}

// Completer performs one chat-completion round trip.
//
// # Description
//
// The AIModerator owns prompting and parsing; a Completer only moves the
// system and user prompts to the model and returns the raw text of the first
// choice. It makes exactly one attempt.
//
// # Outputs
//
//   - string: Raw content of the first choice.
//   - error: Transport failure, non-2xx status, malformed body, timeout,
//     or ErrNoChoices/ErrEmptyMessage for structurally incomplete replies.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

var (
	// ErrNoChoices reports a classifier reply without any choice.
	ErrNoChoices = errors.New("classifier returned no choices")

	// ErrEmptyMessage reports a first choice without a message.
	ErrEmptyMessage = errors.New("classifier choice has no message")
)

// NopClassifier never flags anything. Used for heuristics-only checks.
type NopClassifier struct{}

// Classify returns all-false flags.
func (NopClassifier) Classify(_ context.Context, messages []string) []bool {
	return make([]bool, len(messages))
}

// =============================================================================
// AIModerator
// =============================================================================

// Defaults for AIModeratorConfig.
const (
	DefaultMaxMessageLength = 500
	DefaultMaxBatchSize     = 10
	DefaultBatchConcurrency = 1
	DefaultClassifyTimeout  = 10 * time.Second
)

// AIModeratorConfig bounds the cost of each Classify call.
type AIModeratorConfig struct {
	// MaxMessageLength in runes. Longer messages are never sent and are
	// treated as not flagged. Default: 500.
	MaxMessageLength int

	// MaxBatchSize is the number of messages per classifier request.
	// Default: 10.
	MaxBatchSize int

	// BatchConcurrency is how many batches of one Classify call may be in
	// flight together. Default: 1 (sequential).
	BatchConcurrency int

	// Timeout bounds each classifier request. Default: 10s.
	Timeout time.Duration
}

func (c AIModeratorConfig) withDefaults() AIModeratorConfig {
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = DefaultMaxMessageLength
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = DefaultBatchConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultClassifyTimeout
	}
	return c
}

// AIModerator is the batched, fail-open Classifier backed by a Completer.
//
// # Description
//
// Classify drops over-length messages, cuts the rest into batches, sends
// each batch as one enumerated prompt and scatters the parsed flags back to
// the caller's positions. A failed batch resolves to all false; nothing is
// retried.
//
// # Thread Safety
//
// Safe for concurrent use. Holds no per-call state.
type AIModerator struct {
	completer Completer
	config    AIModeratorConfig
	logger    *logging.Logger
	recorder  Recorder
	tracer    trace.Tracer
}

// NewAIModerator creates an AIModerator.
//
// # Inputs
//
//   - completer: The single-attempt transport to the classifier.
//   - config: Limits; zero values use the package defaults.
//   - logger: May be nil (logging.Default is used).
//   - recorder: May be nil (events are discarded).
func NewAIModerator(completer Completer, config AIModeratorConfig, logger *logging.Logger, recorder Recorder) *AIModerator {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &AIModerator{
		completer: completer,
		config:    config.withDefaults(),
		logger:    logging.OrDefault(logger).With("component", "ai_moderator"),
		recorder:  recorder,
		tracer:    otel.Tracer("termolivre/moderation"),
	}
}

// Config returns the effective limits.
func (m *AIModerator) Config() AIModeratorConfig { return m.config }

// Classify implements Classifier.
//
// # Examples
//
//	flags := m.Classify(ctx, []string{"ok", strings.Repeat("x", 600), "hi"})
//	// len(flags) == 3; flags[1] == false without a network call
func (m *AIModerator) Classify(ctx context.Context, messages []string) []bool {
	flags := make([]bool, len(messages))
	if len(messages) == 0 {
		return flags
	}

	positions := make([]int, 0, len(messages))
	for i, msg := range messages {
		if utf8.RuneCountInString(msg) > m.config.MaxMessageLength {
			continue
		}
		positions = append(positions, i)
	}
	if skipped := len(messages) - len(positions); skipped > 0 {
		m.logger.Debug("over-length messages treated as safe",
			"count", skipped, "max_length", m.config.MaxMessageLength)
		m.recorder.ObserveBatch(OutcomeOverLength, skipped, 0)
	}
	if len(positions) == 0 {
		return flags
	}

	var g errgroup.Group
	g.SetLimit(m.config.BatchConcurrency)
	for start := 0; start < len(positions); start += m.config.MaxBatchSize {
		end := min(start+m.config.MaxBatchSize, len(positions))
		batchPositions := positions[start:end]
		g.Go(func() error {
			texts := make([]string, len(batchPositions))
			for j, pos := range batchPositions {
				texts[j] = messages[pos]
			}
			for j, flagged := range m.classifyBatch(ctx, texts) {
				flags[batchPositions[j]] = flagged
			}
			return nil
		})
	}
	_ = g.Wait()
	return flags
}

// classifyBatch sends one batch and always returns len(batch) flags.
func (m *AIModerator) classifyBatch(ctx context.Context, batch []string) []bool {
	ctx, span := m.tracer.Start(ctx, "moderation.classify_batch",
		trace.WithAttributes(attribute.Int("batch.size", len(batch))))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	started := time.Now()
	content, err := m.completer.Complete(ctx, SystemPrompt, BuildPrompt(batch))
	elapsed := time.Since(started)

	if err != nil {
		outcome := classifyError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		span.SetAttributes(attribute.String("batch.outcome", outcome))
		m.logger.Warn("classifier unavailable, batch treated as safe",
			"batch_size", len(batch),
			"outcome", outcome,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err.Error(),
		)
		m.recorder.ObserveBatch(outcome, len(batch), elapsed)
		return make([]bool, len(batch))
	}

	flags, tokens := ParseVerdicts(content, len(batch))
	outcome := OutcomeOK
	switch {
	case tokens < len(batch):
		outcome = OutcomePadded
		m.logger.Warn("classifier returned too few verdicts, padding with safe",
			"expected", len(batch), "received", tokens)
	case tokens > len(batch):
		outcome = OutcomeTruncated
		m.logger.Warn("classifier returned too many verdicts, truncating",
			"expected", len(batch), "received", tokens)
	}
	span.SetAttributes(attribute.String("batch.outcome", outcome))
	m.logger.Debug("batch classified",
		"batch_size", len(batch), "outcome", outcome, "elapsed_ms", elapsed.Milliseconds())
	m.recorder.ObserveBatch(outcome, len(batch), elapsed)
	return flags
}

// classifyError maps a Completer error to a batch outcome label.
func classifyError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case errors.Is(err, ErrNoChoices), errors.Is(err, ErrEmptyMessage):
		return OutcomeNoChoices
	default:
		return OutcomeError
	}
}

var (
	_ Classifier = (*AIModerator)(nil)
	_ Classifier = NopClassifier{}
)
