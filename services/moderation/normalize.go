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
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentFold maps the accented vowels and ç used in Portuguese chat to their
// ASCII base letter. Every other rune passes through untouched.
//
// runes.Map transformers carry no state, so one instance is shared.
var accentFold = runes.Map(func(r rune) rune {
	switch r {
	case 'á', 'à', 'â', 'ã', 'ä':
		return 'a'
	case 'é', 'è', 'ê', 'ë':
		return 'e'
	case 'í', 'ì', 'î', 'ï':
		return 'i'
	case 'ó', 'ò', 'ô', 'õ', 'ö':
		return 'o'
	case 'ú', 'ù', 'û', 'ü':
		return 'u'
	case 'ç':
		return 'c'
	}
	return r
})

// Normalize canonicalizes chat text for heuristic matching.
//
// # Description
//
// Applies, in order: Unicode NFC composition, lower-casing, accent folding,
// replacement of every rune outside [a-z0-9 ] with a space, collapsing of
// space runs and trimming. The result contains only [a-z0-9] tokens joined
// by single spaces.
//
// # Inputs
//
//   - text: Any UTF-8 string, including empty.
//
// # Outputs
//
//   - string: Canonical text; "" for empty or symbol-only input.
//
// # Examples
//
//	Normalize("  A palavra é CÁSA!! ") // "a palavra e casa"
//	Normalize("c@s@")                  // "c s"
//
// # Assumptions
//
//   - Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	folded := fold(text)
	if folded == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// FoldSymbols is Normalize without the symbol stripping step.
//
// Leet-speak spellings such as "c@5@" are destroyed by Normalize, so the
// matcher evaluates the leet strategy against this view as well. Whitespace
// runs collapse to one space and the result is trimmed.
func FoldSymbols(text string) string {
	folded := fold(text)
	if folded == "" {
		return ""
	}
	return strings.Join(strings.FieldsFunc(folded, unicode.IsSpace), " ")
}

// fold performs the NFC, lower-case and accent fold steps shared by
// Normalize and FoldSymbols.
func fold(text string) string {
	if text == "" {
		return ""
	}
	lowered := strings.ToLower(norm.NFC.String(text))
	folded, _, err := transform.String(accentFold, lowered)
	if err != nil {
		// runes.Map never fails on valid or invalid UTF-8; keep the
		// lowered text if it ever does.
		return lowered
	}
	return folded
}
