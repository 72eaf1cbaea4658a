// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"

	"github.com/AleutianAI/termolivre/pkg/logging"
	"github.com/AleutianAI/termolivre/services/moderation"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("termolivre/llm")

// OpenAICompleter talks to an OpenAI-compatible chat completions API.
// DeepSeek is the default endpoint.
type OpenAICompleter struct {
	client  *openai.Client
	model   string
	params  GenerationParams
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewOpenAICompleter creates the client. It never fails; an unreachable or
// misconfigured endpoint surfaces as errors from Complete.
func NewOpenAICompleter(cfg Config, logger *logging.Logger) *OpenAICompleter {
	cfg = cfg.withDefaults()
	logger = logging.OrDefault(logger).With("component", "openai_completer")

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = cfg.HTTPClient

	if cfg.APIKey == "" {
		logger.Warn("classifier API key not set, requests are sent without credentials",
			"base_url", cfg.BaseURL)
	}
	logger.Info("Initializing OpenAI-compatible classifier client",
		"base_url", cfg.BaseURL, "model", cfg.Model)

	return &OpenAICompleter{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		params:  cfg.params(),
		limiter: newLimiter(cfg),
		logger:  logger,
	}
}

// Complete implements moderation.Completer.
func (o *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAICompleter.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	if err := wait(ctx, o.limiter); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.MaxTokens != nil {
		req.MaxTokens = *o.params.MaxTokens
	}
	if len(o.params.Stop) > 0 {
		req.Stop = o.params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Debug("classifier API call failed", "error", err)
		return "", fmt.Errorf("classifier API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, "no choices")
		return "", moderation.ErrNoChoices
	}

	choice := resp.Choices[0]
	if choice.Message.Content == "" {
		span.SetStatus(codes.Error, "empty message")
		return "", moderation.ErrEmptyMessage
	}
	span.SetAttributes(attribute.String("llm.finish_reason", string(choice.FinishReason)))
	o.logger.Debug("Received response from classifier", "finish_reason", choice.FinishReason)
	return choice.Message.Content, nil
}

var _ moderation.Completer = (*OpenAICompleter)(nil)
