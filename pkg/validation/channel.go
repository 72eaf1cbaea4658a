// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for values that end up in
// protocol commands.
//
// Channel names are written verbatim into IRC JOIN lines, so anything
// outside the Twitch login alphabet (CR, LF, spaces, commas) must be rejected
// before it reaches the wire.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// channelPattern matches Twitch login names.
// Allows: lowercase letters, digits, underscore (not leading)
// Length: 3-25 characters
var channelPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]{2,24}$`)

// ValidateChannel validates a lower-case Twitch channel name.
//
// Example:
//
//	if err := validation.ValidateChannel(name); err != nil {
//	    return fmt.Errorf("invalid channel: %w", err)
//	}
//	// Safe to use in "JOIN #" + name
func ValidateChannel(name string) error {
	if name == "" {
		return fmt.Errorf("channel cannot be empty")
	}
	if !channelPattern.MatchString(name) {
		return fmt.Errorf("invalid channel name: %q (must be 3-25 lowercase alphanumeric chars or underscores)", name)
	}
	return nil
}

// SanitizeChannel normalizes and validates a channel name.
// Returns the lower-case name without a leading '#', or an error.
//
//	name, err := validation.SanitizeChannel(" #Gaules ")
//	// name == "gaules"
func SanitizeChannel(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
	if err := ValidateChannel(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
