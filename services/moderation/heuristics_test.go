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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultMatcher(t *testing.T) *Matcher {
	t.Helper()
	set, err := NewAnswerSet(DefaultAnswers)
	require.NoError(t, err)
	return NewMatcher(set)
}

// =============================================================================
// Strategy Tests
// =============================================================================

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "exact", StrategyExact.String())
	assert.Equal(t, "spaced", StrategySpaced.String())
	assert.Equal(t, "doubled", StrategyDoubled.String())
	assert.Equal(t, "leet", StrategyLeet.String())
	assert.Equal(t, "reversed", StrategyReversed.String())
	assert.Equal(t, "vowel_stripped", StrategyVowelStripped.String())
	assert.Equal(t, "unknown", Strategy(99).String())
}

func TestForms(t *testing.T) {
	assert.Equal(t, "c a s a", spacedForm("casa"))
	assert.Equal(t, "ccaassaa", doubledForm("casa"))
	assert.Equal(t, "c@5@", leetForm("casa"))
	assert.Equal(t, "l1vr0", leetForm("livro"))
	assert.Equal(t, "p0r7@", leetForm("porta"))
	assert.Equal(t, "asac", reversedForm("casa"))
	assert.Equal(t, "prt", vowelStrippedForm("porta"))
	assert.Equal(t, "cs", vowelStrippedForm("casa"))
}

// =============================================================================
// Matcher Tests
// =============================================================================

func TestMatcher_Inspect(t *testing.T) {
	m := defaultMatcher(t)

	testCases := []struct {
		name     string
		input    string
		flagged  bool
		answer   string
		strategy Strategy
	}{
		{"exact token", "casa", true, "casa", StrategyExact},
		{"exact in sentence", "A palavra é CASA!", true, "casa", StrategyExact},
		{"exact accented", "é cása", true, "casa", StrategyExact},
		{"embedded word", "casamento", false, "", 0},
		{"embedded prefix", "portal", false, "", 0},
		{"spaced", "c a s a", true, "casa", StrategySpaced},
		{"spaced with punctuation", "c-a-s-a", true, "casa", StrategySpaced},
		{"doubled", "ccaassaa", true, "casa", StrategyDoubled},
		{"doubled embedded", "xxccaassaaxx", true, "casa", StrategyDoubled},
		{"leet digits", "l1vr0", true, "livro", StrategyLeet},
		{"leet symbols", "c@5@", true, "casa", StrategyLeet},
		{"leet upper", "P0R7@ hein", true, "porta", StrategyLeet},
		{"reversed", "asac", true, "casa", StrategyReversed},
		{"reversed embedded", "asacada", false, "", 0},
		{"vowel stripped", "prt", true, "porta", StrategyVowelStripped},
		{"vowel stripped embedded", "xprtx", true, "porta", StrategyVowelStripped},
		{"short residue ignored", "cs", false, "", 0},
		{"ordinary chat", "que jogo dificil hoje", false, "", 0},
		{"empty", "", false, "", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			match, ok := m.Inspect(tc.input)
			assert.Equal(t, tc.flagged, ok)
			if tc.flagged {
				assert.Equal(t, tc.answer, match.Answer)
				assert.Equal(t, tc.strategy, match.Strategy)
			}
		})
	}
}

func TestMatcher_IsFlaggedLocally_UsesNormalizedInput(t *testing.T) {
	m := defaultMatcher(t)

	assert.True(t, m.IsFlaggedLocally(Normalize("Casa")))
	assert.True(t, m.IsFlaggedLocally("c a s a"))
	assert.False(t, m.IsFlaggedLocally(Normalize("casamento")))
	assert.False(t, m.IsFlaggedLocally(""))
}

func TestMatcher_DeterministicOrder(t *testing.T) {
	// Both answers are present; the first in set order wins.
	first := NewMatcher(MustAnswerSet("porta", "casa"))
	match, ok := first.Inspect("casa porta")
	require.True(t, ok)
	assert.Equal(t, "porta", match.Answer)

	second := NewMatcher(MustAnswerSet("casa", "porta"))
	match, ok = second.Inspect("casa porta")
	require.True(t, ok)
	assert.Equal(t, "casa", match.Answer)
}

func TestMatcher_StrategyOrderWithinAnswer(t *testing.T) {
	m := NewMatcher(MustAnswerSet("porta"))

	// Exact and vowel-stripped both hit; exact is reported.
	match, ok := m.Inspect("porta prt")
	require.True(t, ok)
	assert.Equal(t, StrategyExact, match.Strategy)
}

func TestMatcher_MultiWordAnswer(t *testing.T) {
	m := NewMatcher(MustAnswerSet("guarda chuva"))

	match, ok := m.Inspect("comprei um Guarda-Chuva")
	require.True(t, ok)
	assert.Equal(t, "guarda chuva", match.Answer)
	assert.Equal(t, StrategyExact, match.Strategy)

	_, ok = m.Inspect("guarda chuvarada")
	assert.False(t, ok)
}

func TestMatcher_ConcurrentUse(t *testing.T) {
	m := defaultMatcher(t)
	inputs := []string{"casa", "casamento", "c@5@", "l1vr0", "prt", "bom dia"}
	expected := []bool{true, false, true, true, true, false}

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				for i, in := range inputs {
					_, ok := m.Inspect(in)
					if ok != expected[i] {
						t.Errorf("Inspect(%q) = %v, want %v", in, ok, expected[i])
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("guarda chuva", "guarda chuva"))
	assert.True(t, containsWord("um guarda chuva azul", "guarda chuva"))
	assert.False(t, containsWord("meuguarda chuva", "guarda chuva"))
	assert.False(t, containsWord("guarda chuvas", "guarda chuva"))
	assert.True(t, containsWord("guarda chuvas guarda chuva", "guarda chuva"))
	assert.False(t, containsWord("anything", ""))
	assert.True(t, containsWord("casa 2", "casa"))
	assert.False(t, containsWord("casa2", "casa"))
}

func TestIsWordByte(t *testing.T) {
	for _, b := range []byte("az09") {
		assert.True(t, isWordByte(b), "%q", b)
	}
	for _, b := range []byte(" -@") {
		assert.False(t, isWordByte(b), "%q", b)
	}
}
