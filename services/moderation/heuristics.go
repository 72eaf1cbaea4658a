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
	"math"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// =============================================================================
// Strategies
// =============================================================================

// Strategy identifies one obfuscation check of the heuristic matcher.
//
// The numeric order is the evaluation order for a single answer.
type Strategy int

const (
	// StrategyExact matches the answer as a whole token ("casa", not "casamento").
	StrategyExact Strategy = iota
	// StrategySpaced matches letters joined by single spaces ("c a s a").
	StrategySpaced
	// StrategyDoubled matches every letter written twice ("ccaassaa").
	StrategyDoubled
	// StrategyLeet matches a->@ e->3 i->1 o->0 s->5 t->7 ("l1vr0").
	StrategyLeet
	// StrategyReversed matches the reversed answer as a whole token ("asac").
	StrategyReversed
	// StrategyVowelStripped matches the answer without vowels ("prt"), only
	// when at least minStrippedLength characters remain.
	StrategyVowelStripped
)

// minStrippedLength guards the vowel-stripped strategy against residues such
// as "cs" that occur in ordinary text.
const minStrippedLength = 3

// String returns the metric/log label of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyExact:
		return "exact"
	case StrategySpaced:
		return "spaced"
	case StrategyDoubled:
		return "doubled"
	case StrategyLeet:
		return "leet"
	case StrategyReversed:
		return "reversed"
	case StrategyVowelStripped:
		return "vowel_stripped"
	default:
		return "unknown"
	}
}

// Match describes the heuristic hit that flagged a message.
type Match struct {
	Answer   string
	Strategy Strategy
}

// =============================================================================
// Pattern Construction
// =============================================================================

// patternRef points back to the answer and strategy that produced a pattern.
// Refs order by answer position first, then strategy.
type patternRef struct {
	answer   int
	strategy Strategy
}

var noRef = patternRef{answer: math.MaxInt, strategy: math.MaxInt}

func (r patternRef) less(o patternRef) bool {
	if r.answer != o.answer {
		return r.answer < o.answer
	}
	return r.strategy < o.strategy
}

func spacedForm(answer string) string {
	return strings.Join(strings.Split(answer, ""), " ")
}

func doubledForm(answer string) string {
	var b strings.Builder
	b.Grow(len(answer) * 2)
	for _, r := range answer {
		b.WriteRune(r)
		b.WriteRune(r)
	}
	return b.String()
}

var leetReplacer = strings.NewReplacer("a", "@", "e", "3", "i", "1", "o", "0", "s", "5", "t", "7")

func leetForm(answer string) string {
	return leetReplacer.Replace(answer)
}

func reversedForm(answer string) string {
	r := []rune(answer)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

var vowelStripper = strings.NewReplacer("a", "", "e", "", "i", "", "o", "", "u", "")

func vowelStrippedForm(answer string) string {
	return vowelStripper.Replace(answer)
}

// substringSet is an Aho-Corasick automaton over deduplicated patterns.
type substringSet struct {
	automaton *ahocorasick.Matcher
	refs      []patternRef
}

func newSubstringSet(patterns []string, refs []patternRef) substringSet {
	// A duplicate pattern stays bound to its first (lowest) ref.
	seen := make(map[string]struct{}, len(patterns))
	var dict []string
	var dictRefs []patternRef
	for i, p := range patterns {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		dict = append(dict, p)
		dictRefs = append(dictRefs, refs[i])
	}
	if len(dict) == 0 {
		return substringSet{}
	}
	return substringSet{automaton: ahocorasick.NewStringMatcher(dict), refs: dictRefs}
}

// best returns the lowest ref among patterns found in text.
func (s substringSet) best(text string, current patternRef) patternRef {
	if s.automaton == nil || text == "" {
		return current
	}
	for _, idx := range s.automaton.MatchThreadSafe([]byte(text)) {
		if idx < 0 || idx >= len(s.refs) {
			continue
		}
		if ref := s.refs[idx]; ref.less(current) {
			current = ref
		}
	}
	return current
}

// =============================================================================
// Matcher
// =============================================================================

// Matcher is the deterministic, local obfuscation detector.
//
// # Description
//
// At construction every answer is expanded into its six strategy forms.
// Whole-token forms (exact, reversed) go into a token table; substring
// forms (spaced, doubled, leet, vowel-stripped) go into one Aho-Corasick
// automaton, so a message is scanned once regardless of the answer count.
//
// When several patterns hit, the reported Match is the first one in
// AnswerSet order, then strategy order, which keeps results reproducible.
//
// # Thread Safety
//
// Immutable after NewMatcher; safe for concurrent use without locking.
type Matcher struct {
	answers *AnswerSet

	// tokens maps single-token exact/reversed forms to their lowest ref.
	tokens map[string]patternRef

	// phrases holds exact/reversed forms of multi-word answers, which cannot
	// be looked up token by token.
	phrases []phrase

	substrings substringSet

	// leet contains only the leet forms, scanned against FoldSymbols view.
	leet substringSet
}

type phrase struct {
	text string
	ref  patternRef
}

// NewMatcher builds the matcher tables for answers.
func NewMatcher(answers *AnswerSet) *Matcher {
	m := &Matcher{
		answers: answers,
		tokens:  make(map[string]patternRef, answers.Len()*2),
	}

	var subPatterns, leetPatterns []string
	var subRefs, leetRefs []patternRef

	for i, answer := range answers.words {
		m.addWhole(answer, patternRef{answer: i, strategy: StrategyExact})

		subPatterns = append(subPatterns, spacedForm(answer), doubledForm(answer), leetForm(answer))
		subRefs = append(subRefs,
			patternRef{answer: i, strategy: StrategySpaced},
			patternRef{answer: i, strategy: StrategyDoubled},
			patternRef{answer: i, strategy: StrategyLeet},
		)
		leetPatterns = append(leetPatterns, leetForm(answer))
		leetRefs = append(leetRefs, patternRef{answer: i, strategy: StrategyLeet})

		m.addWhole(reversedForm(answer), patternRef{answer: i, strategy: StrategyReversed})

		if stripped := vowelStrippedForm(answer); len(stripped) >= minStrippedLength {
			subPatterns = append(subPatterns, stripped)
			subRefs = append(subRefs, patternRef{answer: i, strategy: StrategyVowelStripped})
		}
	}

	m.substrings = newSubstringSet(subPatterns, subRefs)
	m.leet = newSubstringSet(leetPatterns, leetRefs)
	return m
}

func (m *Matcher) addWhole(form string, ref patternRef) {
	if strings.Contains(form, " ") {
		m.phrases = append(m.phrases, phrase{text: form, ref: ref})
		return
	}
	if existing, ok := m.tokens[form]; !ok || ref.less(existing) {
		m.tokens[form] = ref
	}
}

// Answers returns the answer set the matcher was built from.
func (m *Matcher) Answers() *AnswerSet { return m.answers }

// IsFlaggedLocally reports whether normalized text reveals an answer.
//
// normalized must already be the output of Normalize.
func (m *Matcher) IsFlaggedLocally(normalized string) bool {
	_, ok := m.Find(normalized)
	return ok
}

// Find returns the first heuristic match in normalized text.
func (m *Matcher) Find(normalized string) (Match, bool) {
	return m.resolve(m.scan(normalized, "", noRef))
}

// Inspect normalizes a raw message and runs every strategy on it, including
// the leet strategy over the symbol-preserving view.
//
// # Examples
//
//	m.Inspect("A palavra é CASA")  // {casa exact}, true
//	m.Inspect("c@5@")              // {casa leet}, true
//	m.Inspect("casamento")         // {}, false
func (m *Matcher) Inspect(raw string) (Match, bool) {
	return m.resolve(m.scan(Normalize(raw), FoldSymbols(raw), noRef))
}

func (m *Matcher) scan(normalized, symbols string, best patternRef) patternRef {
	if normalized != "" {
		for _, tok := range strings.Split(normalized, " ") {
			if ref, ok := m.tokens[tok]; ok && ref.less(best) {
				best = ref
			}
		}
		for _, p := range m.phrases {
			if p.ref.less(best) && containsWord(normalized, p.text) {
				best = p.ref
			}
		}
		best = m.substrings.best(normalized, best)
	}
	if symbols != "" && symbols != normalized {
		best = m.leet.best(symbols, best)
	}
	return best
}

func (m *Matcher) resolve(ref patternRef) (Match, bool) {
	if ref == noRef {
		return Match{}, false
	}
	return Match{Answer: m.answers.words[ref.answer], Strategy: ref.strategy}, true
}

// containsWord reports whether word occurs in text bounded by the start/end
// of text or by a non-alphanumeric byte on both sides.
func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(word); {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		offset = start + 1
	}
	return false
}

// isWordByte expects Normalize output, whose alphabet is [a-z0-9 ].
func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
