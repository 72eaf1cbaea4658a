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
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Normalize Tests
// =============================================================================

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"symbols only", "!!! ??? ...", ""},
		{"lower cases", "CASA", "casa"},
		{"folds accents", "Cáçà Não Ôlé Úi", "caca nao ole ui"},
		{"drops unfolded letters", "niño", "ni o"},
		{"replaces punctuation", "casa,porta;livro", "casa porta livro"},
		{"collapses spaces", "a   b \t c", "a b c"},
		{"trims", "  casa  ", "casa"},
		{"keeps digits", "l1vr0", "l1vr0"},
		{"breaks leet symbols", "c@5@", "c 5"},
		{"sentence", "  A palavra é CÁSA!! ", "a palavra e casa"},
		{"decomposed accent", "ca\u0301sa", "casa"},
		{"emoji", "casa 🏠 porta", "casa porta"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Normalize(tc.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"casa",
		"  A palavra é CÁSA!! ",
		"c a s a",
		"ccaassaa",
		"c@5@ l1vr0",
		"ÁÉÍÓÚ çÇ",
		"mixed\tspacing\nand-dashes",
		"ca\u0301sa",
		"\xff\xfe invalid utf8",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "Normalize must be idempotent for %q", in)
	}
}

func TestNormalize_OutputAlphabet(t *testing.T) {
	got := Normalize("Olá, mundo! #Termo @2025 - ótimo?")
	for _, r := range got {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' '
		assert.True(t, ok, "unexpected rune %q in %q", r, got)
	}
	assert.Equal(t, "ola mundo termo 2025 otimo", got)
}

// =============================================================================
// FoldSymbols Tests
// =============================================================================

func TestFoldSymbols(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"C@5@", "c@5@"},
		{"  É   a  c@5@! ", "e a c@5@!"},
		{"L1VR0\n", "l1vr0"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, FoldSymbols(tc.input))
		})
	}
}
