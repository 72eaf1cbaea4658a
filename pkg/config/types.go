// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"time"

	"github.com/AleutianAI/termolivre/services/moderation"
)

// Config is the complete runtime configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Moderation ModerationConfig `yaml:"moderation"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Chat       ChatConfig       `yaml:"chat"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// Mode is the gin mode: debug, release or test.
	Mode string `yaml:"mode" validate:"oneof=debug release test"`

	Metrics bool `yaml:"metrics"`

	// OTelEndpoint is the OTLP/gRPC collector (host:port), or "stdout" to
	// print spans to stderr. Empty disables trace export.
	OTelEndpoint string `yaml:"otel_endpoint"`

	// APIToken, when set, is required as a bearer token on POST /v1/chat/send.
	APIToken string `yaml:"api_token" validate:"nocrlf"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

type ModerationConfig struct {
	// Answers of the current puzzle, in match-priority order.
	Answers []string `yaml:"answers" validate:"min=1,dive,required"`

	MaxMessageLength int `yaml:"max_message_length" validate:"min=1"`
	MaxBatchSize     int `yaml:"max_batch_size" validate:"min=1,max=100"`
	BatchConcurrency int `yaml:"batch_concurrency" validate:"min=1,max=16"`
}

type ClassifierConfig struct {
	// Enabled false runs heuristics only.
	Enabled bool `yaml:"enabled"`

	// Provider is "openai" (any OpenAI-compatible API, e.g. DeepSeek) or
	// "ollama". Empty BaseURL and Model take the provider's defaults.
	Provider    string        `yaml:"provider" validate:"oneof=openai ollama"`
	BaseURL     string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey      string        `yaml:"api_key" validate:"nocrlf"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`

	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

type ChatConfig struct {
	// Enabled starts the Twitch reader and relay with the server.
	Enabled bool `yaml:"enabled"`

	// ChannelURL is a Twitch channel URL or bare channel name.
	ChannelURL string `yaml:"channel_url" validate:"nocrlf"`

	IRCURL string `yaml:"irc_url" validate:"required,url"`

	// Nick empty means an anonymous justinfan login.
	Nick string `yaml:"nick" validate:"nocrlf"`

	SuppressMode string `yaml:"suppress_mode" validate:"oneof=mask drop"`
	MaskText     string `yaml:"mask_text"`

	ReconnectDelay time.Duration `yaml:"reconnect_delay" validate:"gt=0"`
	Window         time.Duration `yaml:"window" validate:"gt=0"`
	MaxBatch       int           `yaml:"max_batch" validate:"min=1"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`

	// Dir additionally writes a log file there when set.
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			Mode:            "release",
			Metrics:         true,
			ShutdownTimeout: 10 * time.Second,
		},
		Moderation: ModerationConfig{
			Answers:          append([]string(nil), moderation.DefaultAnswers...),
			MaxMessageLength: moderation.DefaultMaxMessageLength,
			MaxBatchSize:     moderation.DefaultMaxBatchSize,
			BatchConcurrency: moderation.DefaultBatchConcurrency,
		},
		Classifier: ClassifierConfig{
			Enabled:     true,
			Provider:    "openai",
			Temperature: 0.1,
			Timeout:     10 * time.Second,
		},
		Chat: ChatConfig{
			Enabled:        true,
			ChannelURL:     "https://www.twitch.tv/monstercat",
			IRCURL:         "wss://irc-ws.chat.twitch.tv:443",
			SuppressMode:   "mask",
			MaskText:       "***",
			ReconnectDelay: 5 * time.Second,
			Window:         250 * time.Millisecond,
			MaxBatch:       10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Redacted returns a copy with credentials masked, for printing.
func (c Config) Redacted() Config {
	out := c
	out.Moderation.Answers = append([]string(nil), c.Moderation.Answers...)
	if out.Classifier.APIKey != "" {
		out.Classifier.APIKey = redactedValue
	}
	if out.Server.APIToken != "" {
		out.Server.APIToken = redactedValue
	}
	return out
}

const redactedValue = "********"
