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
	"fmt"
	"os"
	"strings"

	"github.com/AleutianAI/termolivre/pkg/config"
	"github.com/AleutianAI/termolivre/pkg/logging"
	"github.com/AleutianAI/termolivre/services/llm"
	"github.com/AleutianAI/termolivre/services/moderation"
)

// newLogger builds the process logger. Text output is used on a terminal
// unless JSON is requested.
func newLogger(cfg config.LoggingConfig) *logging.Logger {
	return logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Level),
		Service: "termolivre",
		JSON:    cfg.JSON || !logging.IsTerminal(os.Stderr),
		LogDir:  cfg.Dir,
	})
}

// llmConfig maps the classifier section to an endpoint config.
func llmConfig(cfg config.ClassifierConfig) llm.Config {
	return llm.Config{
		Provider:          cfg.Provider,
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		Temperature:       cfg.Temperature,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}
}

// buildFilter assembles normalizer, heuristics and (unless local) the
// classifier into the moderation entry point.
func buildFilter(cfg config.Config, local bool, logger *logging.Logger, recorder moderation.Recorder) (*moderation.Filter, error) {
	answers, err := moderation.NewAnswerSet(cfg.Moderation.Answers)
	if err != nil {
		return nil, fmt.Errorf("answer set: %w", err)
	}
	matcher := moderation.NewMatcher(answers)

	var classifier moderation.Classifier = moderation.NopClassifier{}
	if !local && cfg.Classifier.Enabled {
		completer, err := llm.New(llmConfig(cfg.Classifier), logger)
		if err != nil {
			return nil, fmt.Errorf("classifier: %w", err)
		}
		classifier = moderation.NewAIModerator(completer, moderation.AIModeratorConfig{
			MaxMessageLength: cfg.Moderation.MaxMessageLength,
			MaxBatchSize:     cfg.Moderation.MaxBatchSize,
			BatchConcurrency: cfg.Moderation.BatchConcurrency,
			Timeout:          cfg.Classifier.Timeout,
		}, logger, recorder)
	}

	logger.Info("moderation pipeline ready",
		"answers", answers.Len(),
		"classifier", classifierName(cfg.Classifier, local),
		"api_key_present", cfg.Classifier.APIKey != "")
	return moderation.NewFilter(matcher, classifier, logger, recorder), nil
}

func classifierName(cfg config.ClassifierConfig, local bool) string {
	if local || !cfg.Enabled {
		return "none"
	}
	return strings.ToLower(cfg.Provider)
}

// explain describes why raw was flagged, for CLI output.
func explain(matcher *moderation.Matcher, raw string) string {
	if m, ok := matcher.Inspect(raw); ok {
		return fmt.Sprintf("heuristic %s: %s", m.Strategy, m.Answer)
	}
	return "classifier"
}
