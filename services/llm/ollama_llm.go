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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/AleutianAI/termolivre/pkg/logging"
	"github.com/AleutianAI/termolivre/services/moderation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// OllamaCompleter runs the classifier prompt against a local Ollama server
// through its /api/chat endpoint.
type OllamaCompleter struct {
	httpClient *http.Client
	baseURL    string
	model      string
	params     GenerationParams
	limiter    *rate.Limiter
	logger     *logging.Logger
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message   *ollamaMessage `json:"message"`
	CreatedAt string         `json:"created_at"`
	Done      bool           `json:"done"`
}

// NewOllamaCompleter creates the client.
func NewOllamaCompleter(cfg Config, logger *logging.Logger) *OllamaCompleter {
	cfg.Provider = ProviderOllama
	cfg = cfg.withDefaults()
	logger = logging.OrDefault(logger).With("component", "ollama_completer")
	logger.Info("Initializing Ollama classifier client", "base_url", cfg.BaseURL, "model", cfg.Model)
	return &OllamaCompleter{
		httpClient: cfg.HTTPClient,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		params:     cfg.params(),
		limiter:    newLimiter(cfg),
		logger:     logger,
	}
}

// Complete implements moderation.Completer.
func (o *OllamaCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaCompleter.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if err := wait(ctx, o.limiter); err != nil {
		return fail(err)
	}

	options := make(map[string]any)
	if o.params.Temperature != nil {
		options["temperature"] = *o.params.Temperature
	}
	if o.params.MaxTokens != nil {
		options["num_predict"] = *o.params.MaxTokens
	}
	if len(o.params.Stop) > 0 {
		options["stop"] = o.params.Stop
	}
	payload := ollamaChatRequest{
		Model: o.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:  false,
		Options: options,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fail(fmt.Errorf("failed to marshal chat request to Ollama: %w", err))
	}

	chatURL := o.baseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, chatURL, bytes.NewReader(body))
	if err != nil {
		return fail(fmt.Errorf("failed to create chat request to Ollama: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("failed to send the request to %s: %w", chatURL, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("failed to read Ollama response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error string `json:"error"`
		}
		if resp.StatusCode == http.StatusNotFound &&
			json.Unmarshal(respBody, &errResp) == nil &&
			strings.Contains(errResp.Error, "not found") {
			return fail(fmt.Errorf("model '%s' not found. Please run: 'ollama pull %s'", o.model, o.model))
		}
		o.logger.Debug("Ollama chat returned an error", "status_code", resp.StatusCode,
			"response", string(respBody))
		return fail(fmt.Errorf("ollama chat failed with status %d: %s", resp.StatusCode, string(respBody)))
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return fail(fmt.Errorf("failed to parse Ollama chat response: %w", err))
	}
	if chatResp.Message == nil || chatResp.Message.Content == "" {
		return fail(moderation.ErrEmptyMessage)
	}
	return chatResp.Message.Content, nil
}

var _ moderation.Completer = (*OllamaCompleter)(nil)
