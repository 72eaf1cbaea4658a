// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the service configuration from an optional YAML file
// and environment overrides, and validates it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Credentials and names are written into HTTP headers and IRC lines.
	_ = validate.RegisterValidation("nocrlf", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "\r\n")
	})
}

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads the YAML file at path over Default(), applies the process
// environment and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, lookup LookupFunc) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if lookup != nil {
		if err := applyEnv(&cfg, lookup); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(parts, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// WriteDefault writes Default() as YAML to path, creating parent directories.
// Existing files are left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// =============================================================================
// Environment overrides
// =============================================================================

func applyEnv(cfg *Config, lookup LookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	num("TERMO_PORT", &cfg.Server.Port)
	str("TERMO_GIN_MODE", &cfg.Server.Mode)
	flag("TERMO_METRICS", &cfg.Server.Metrics)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Server.OTelEndpoint)
	str("TERMO_API_TOKEN", &cfg.Server.APIToken)

	if v, ok := lookup("TERMO_ANSWERS"); ok && strings.TrimSpace(v) != "" {
		var answers []string
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				answers = append(answers, a)
			}
		}
		cfg.Moderation.Answers = answers
	}
	num("TERMO_MAX_MESSAGE_LENGTH", &cfg.Moderation.MaxMessageLength)
	num("TERMO_MAX_BATCH_SIZE", &cfg.Moderation.MaxBatchSize)
	num("TERMO_BATCH_CONCURRENCY", &cfg.Moderation.BatchConcurrency)

	flag("TERMO_CLASSIFIER_ENABLED", &cfg.Classifier.Enabled)
	str("TERMO_CLASSIFIER_PROVIDER", &cfg.Classifier.Provider)
	str("TERMO_CLASSIFIER_MODEL", &cfg.Classifier.Model)
	dur("TERMO_CLASSIFIER_TIMEOUT", &cfg.Classifier.Timeout)
	str("DEEPSEEK_API_URL", &cfg.Classifier.BaseURL)
	str("DEEPSEEK_API_KEY", &cfg.Classifier.APIKey)

	flag("TERMO_CHAT_ENABLED", &cfg.Chat.Enabled)
	str("TWITCH_CHANNEL_URL", &cfg.Chat.ChannelURL)
	str("TERMO_SUPPRESS_MODE", &cfg.Chat.SuppressMode)

	str("TERMO_LOG_LEVEL", &cfg.Logging.Level)
	flag("TERMO_LOG_JSON", &cfg.Logging.JSON)
	str("TERMO_LOG_DIR", &cfg.Logging.Dir)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
