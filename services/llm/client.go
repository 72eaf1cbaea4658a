// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the chat-completion transports used by the moderation
// classifier. Each client performs a single attempt per call and reports
// failures as errors; the fail-open policy lives in the caller.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/termolivre/pkg/logging"
	"github.com/AleutianAI/termolivre/services/moderation"
	"golang.org/x/time/rate"
)

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Defaults for Config.
const (
	DefaultBaseURL     = "https://api.deepseek.com"
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = float32(0.1)
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama3.2"
)

// GenerationParams are the sampling options sent with every request.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Config describes one classifier endpoint.
type Config struct {
	// Provider selects the wire protocol: "openai" (any OpenAI-compatible
	// API such as DeepSeek) or "ollama". Default: "openai".
	Provider string

	// BaseURL of the API. A trailing "/chat/completions" is accepted and
	// stripped, so the full DeepSeek endpoint URL can be configured as-is.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	Model       string
	Temperature float32
	MaxTokens   int

	// RequestsPerSecond caps outgoing requests; 0 disables the limiter.
	RequestsPerSecond float64
	Burst             int

	// HTTPClient overrides the transport; mostly for tests.
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.BaseURL == "" {
		if c.Provider == ProviderOllama {
			c.BaseURL = DefaultOllamaURL
		} else {
			c.BaseURL = DefaultBaseURL
		}
	}
	c.BaseURL = strings.TrimSuffix(strings.TrimSuffix(c.BaseURL, "/"), "/chat/completions")
	if c.Model == "" {
		if c.Provider == ProviderOllama {
			c.Model = DefaultOllamaModel
		} else {
			c.Model = DefaultModel
		}
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

func (c Config) params() GenerationParams {
	p := GenerationParams{Temperature: &c.Temperature}
	if c.MaxTokens > 0 {
		p.MaxTokens = &c.MaxTokens
	}
	return p
}

// New builds the Completer for cfg.Provider.
func New(cfg Config, logger *logging.Logger) (moderation.Completer, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		return NewOpenAICompleter(cfg, logger), nil
	case ProviderOllama:
		return NewOllamaCompleter(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}

// newLimiter returns nil when rate limiting is disabled.
func newLimiter(cfg Config) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
}

// wait blocks until the limiter admits one request or ctx ends.
func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}
