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
	"errors"
)

// ErrEmptyAnswerSet is returned when no usable answer survives normalization.
var ErrEmptyAnswerSet = errors.New("answer set is empty")

// DefaultAnswers is the answer list used when none is configured.
var DefaultAnswers = []string{
	"casa", "porta", "livro", "mesa", "cadeira",
	"banco", "praia", "flore", "vento", "chuva",
}

// AnswerSet is the fixed, ordered collection of puzzle answers.
//
// # Description
//
// Answers are stored normalized, in the order they were supplied, with
// empty entries and duplicates removed. The set is never mutated after
// NewAnswerSet returns.
//
// # Thread Safety
//
// Safe for unsynchronized concurrent reads.
type AnswerSet struct {
	words []string
}

// NewAnswerSet normalizes and deduplicates words, keeping first-seen order.
//
// # Inputs
//
//   - words: Raw answers, e.g. from configuration. "Cásá" and "casa" collapse
//     to one entry.
//
// # Outputs
//
//   - *AnswerSet: The immutable set.
//   - error: ErrEmptyAnswerSet when nothing usable remains.
func NewAnswerSet(words []string) (*AnswerSet, error) {
	seen := make(map[string]struct{}, len(words))
	normalized := make([]string, 0, len(words))
	for _, w := range words {
		n := Normalize(w)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	if len(normalized) == 0 {
		return nil, ErrEmptyAnswerSet
	}
	return &AnswerSet{words: normalized}, nil
}

// MustAnswerSet is NewAnswerSet for package-level fixtures and tests.
func MustAnswerSet(words ...string) *AnswerSet {
	set, err := NewAnswerSet(words)
	if err != nil {
		panic(err)
	}
	return set
}

// Len returns the number of answers.
func (s *AnswerSet) Len() int { return len(s.words) }

// Words returns a copy of the answers in iteration order.
func (s *AnswerSet) Words() []string {
	out := make([]string, len(s.words))
	copy(out, s.words)
	return out
}
