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
	"strconv"
	"strings"
)

// SystemPrompt is the fixed moderation instruction sent with every batch.
const SystemPrompt = "You are a moderator for a word game stream. " +
	"Analyze if the user is trying to reveal the answer to the current word puzzle. " +
	"Respond with only 'true' or 'false' for each message, separated by commas."

// affirmativeToken is the only response token that flags a message.
const affirmativeToken = "true"

const promptHeader = "Analyze the following chat messages and determine if the user is trying to " +
	"reveal the answer to the word puzzle. Respond with only 'true' or 'false' for each message, " +
	"separated by commas. Here are the messages:\n\n"

const promptFooter = "\nResponse format: true,false,true,..."

// BuildPrompt renders the user prompt for one batch.
//
// Each message is listed on its own line with a 1-based ordinal and wrapped
// in double quotes:
//
//	1. "first message"
//	2. "second message"
func BuildPrompt(messages []string) string {
	var b strings.Builder
	size := len(promptHeader) + len(promptFooter)
	for _, m := range messages {
		size += len(m) + 8
	}
	b.Grow(size)

	b.WriteString(promptHeader)
	for i, m := range messages {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". \"")
		b.WriteString(m)
		b.WriteString("\"\n")
	}
	b.WriteString(promptFooter)
	return b.String()
}

// ParseVerdicts turns the classifier's comma-separated answer into exactly
// expected flags.
//
// # Description
//
// Tokens are trimmed and case-folded; only "true" flags a message and every
// other token, including garbage, means not flagged. Missing tokens are
// padded with false and extra tokens are dropped.
//
// # Outputs
//
//   - []bool: len == expected, true = flagged.
//   - int: Number of tokens the classifier actually returned.
func ParseVerdicts(response string, expected int) ([]bool, int) {
	if expected < 0 {
		expected = 0
	}
	verdicts := make([]bool, expected)
	parts := strings.Split(strings.TrimSpace(response), ",")
	for i, part := range parts {
		if i >= expected {
			break
		}
		verdicts[i] = strings.ToLower(strings.TrimSpace(part)) == affirmativeToken
	}
	return verdicts, len(parts)
}
