// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/termolivre/pkg/logging"
	"github.com/AleutianAI/termolivre/services/moderation"
)

// SuppressMode decides what happens to unsafe messages.
type SuppressMode string

const (
	// SuppressMask broadcasts the message with its content replaced.
	SuppressMask SuppressMode = "mask"
	// SuppressDrop does not broadcast the message at all.
	SuppressDrop SuppressMode = "drop"
)

// Defaults for RelayConfig.
const (
	DefaultRelayBatch  = 10
	DefaultRelayWindow = 250 * time.Millisecond
	DefaultMaskText    = "***"
)

// Relay actions reported to a RelayObserver.
const (
	ActionPublished = "published"
	ActionMasked    = "masked"
	ActionDropped   = "dropped"
)

// RelayObserver receives one action per relayed message.
type RelayObserver interface {
	ObserveRelay(action string)
}

type nopObserver struct{}

func (nopObserver) ObserveRelay(string) {}

// RelayConfig controls windowing and suppression.
type RelayConfig struct {
	// MaxBatch flushes a window early once it holds this many messages.
	MaxBatch int

	// Window is the longest a message waits for companions.
	Window time.Duration

	Mode     SuppressMode
	MaskText string

	// Observer is optional.
	Observer RelayObserver
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.MaxBatch <= 0 {
		c.MaxBatch = DefaultRelayBatch
	}
	if c.Window <= 0 {
		c.Window = DefaultRelayWindow
	}
	if c.Mode == "" {
		c.Mode = SuppressMask
	}
	if c.MaskText == "" {
		c.MaskText = DefaultMaskText
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	return c
}

// ParseSuppressMode validates a configured mode.
func ParseSuppressMode(s string) (SuppressMode, error) {
	switch SuppressMode(s) {
	case "":
		return SuppressMask, nil
	case SuppressMask, SuppressDrop:
		return SuppressMode(s), nil
	default:
		return "", fmt.Errorf("unknown suppress mode %q (want mask or drop)", s)
	}
}

// Relay moderates incoming chat in short windows and broadcasts the result.
//
// # Description
//
// Messages are gathered until MaxBatch is reached or Window has passed since
// the first one, then evaluated with a single AreMessagesSafe call so the
// classifier sees real batches instead of one request per chat line.
//
// # Thread Safety
//
// Publish is safe for concurrent use. Run must have a single caller.
type Relay struct {
	evaluator moderation.Evaluator
	out       Broadcaster
	config    RelayConfig
	logger    *logging.Logger
}

// NewRelay creates a relay.
func NewRelay(evaluator moderation.Evaluator, out Broadcaster, config RelayConfig, logger *logging.Logger) *Relay {
	return &Relay{
		evaluator: evaluator,
		out:       out,
		config:    config.withDefaults(),
		logger:    logging.OrDefault(logger).With("component", "relay"),
	}
}

// Run consumes in until it is closed (returns nil) or ctx ends (returns
// ctx.Err()). Pending messages are flushed when in closes.
func (r *Relay) Run(ctx context.Context, in <-chan Message) error {
	var (
		pending []Message
		timer   *time.Timer
		expired <-chan time.Time
	)
	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, expired = nil, nil
		}
		if len(pending) > 0 {
			r.Publish(ctx, pending)
			pending = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case msg, ok := <-in:
			if !ok {
				flush()
				return nil
			}
			pending = append(pending, msg)
			if len(pending) == 1 {
				timer = time.NewTimer(r.config.Window)
				expired = timer.C
			}
			if len(pending) >= r.config.MaxBatch {
				flush()
			}
		case <-expired:
			timer, expired = nil, nil
			flush()
		}
	}
}

// Publish moderates msgs, broadcasts the outcome and returns what was
// broadcast, in order. Dropped messages are omitted from the result.
func (r *Relay) Publish(ctx context.Context, msgs []Message) []Message {
	if len(msgs) == 0 {
		return []Message{}
	}
	contents := make([]string, len(msgs))
	for i, m := range msgs {
		contents[i] = m.Content
	}
	verdicts := r.evaluator.AreMessagesSafe(ctx, contents)

	sent := make([]Message, 0, len(msgs))
	suppressed := 0
	for i, msg := range msgs {
		msg.Safe = i >= len(verdicts) || verdicts[i]
		action := ActionPublished
		if !msg.Safe {
			suppressed++
			if r.config.Mode == SuppressDrop {
				r.config.Observer.ObserveRelay(ActionDropped)
				continue
			}
			msg.Content = r.config.MaskText
			action = ActionMasked
		}
		r.out.Broadcast(msg)
		r.config.Observer.ObserveRelay(action)
		sent = append(sent, msg)
	}
	if suppressed > 0 {
		r.logger.Info("suppressed chat messages",
			"count", suppressed, "batch_size", len(msgs), "mode", string(r.config.Mode))
	}
	return sent
}
