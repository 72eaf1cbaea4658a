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
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/termolivre/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T, c Classifier, rec Recorder) *Filter {
	t.Helper()
	return NewFilter(NewMatcher(MustAnswerSet("casa", "porta")), c, logging.Discard(), rec)
}

// =============================================================================
// IsMessageSafe
// =============================================================================

func TestFilter_IsMessageSafe_Scenarios(t *testing.T) {
	testCases := []struct {
		name           string
		message        string
		safe           bool
		classifierUsed bool
	}{
		{"exact answer", "casa", false, false},
		{"embedded answer", "casamento", true, true},
		{"spaced letters", "c a s a", false, false},
		{"leet", "p0r7@", false, false},
		{"reversed", "asac", false, false},
		{"vowel stripped", "prt", false, false},
		{"empty", "", true, false},
		{"whitespace", "  \t\n", true, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			classifier := &fakeClassifier{}
			f := newTestFilter(t, classifier, nil)

			assert.Equal(t, tc.safe, f.IsMessageSafe(context.Background(), tc.message))
			assert.Equal(t, tc.classifierUsed, len(classifier.Calls()) > 0)
		})
	}
}

func TestFilter_IsMessageSafe_ClassifierFlag(t *testing.T) {
	classifier := &fakeClassifier{result: func(m []string) []bool { return []bool{true} }}
	f := newTestFilter(t, classifier, nil)

	assert.False(t, f.IsMessageSafe(context.Background(), "a resposta rima com asa"))
	require.Len(t, classifier.Calls(), 1)
	assert.Equal(t, []string{"a resposta rima com asa"}, classifier.Calls()[0])
}

func TestFilter_IsMessageSafe_SendsOriginalText(t *testing.T) {
	classifier := &fakeClassifier{}
	f := newTestFilter(t, classifier, nil)

	f.IsMessageSafe(context.Background(), "  Olá, PESSOAL!  ")

	require.Len(t, classifier.Calls(), 1)
	assert.Equal(t, []string{"  Olá, PESSOAL!  "}, classifier.Calls()[0])
}

func TestFilter_IsMessageSafe_EmptyClassifierResult(t *testing.T) {
	classifier := &fakeClassifier{result: func([]string) []bool { return nil }}
	f := newTestFilter(t, classifier, nil)

	assert.True(t, f.IsMessageSafe(context.Background(), "oi"))
}

func TestFilter_NilClassifierIsHeuristicsOnly(t *testing.T) {
	f := NewFilter(NewMatcher(MustAnswerSet("casa")), nil, nil, nil)

	assert.False(t, f.IsMessageSafe(context.Background(), "casa"))
	assert.True(t, f.IsMessageSafe(context.Background(), "bom dia"))
}

// =============================================================================
// AreMessagesSafe
// =============================================================================

func TestFilter_AreMessagesSafe_MixedBatch(t *testing.T) {
	classifier := &fakeClassifier{result: func(m []string) []bool { return []bool{false, false} }}
	f := newTestFilter(t, classifier, nil)

	verdicts := f.AreMessagesSafe(context.Background(), []string{"ok", "casa", "hi"})

	assert.Equal(t, []bool{true, false, true}, verdicts)
	require.Len(t, classifier.Calls(), 1)
	assert.Equal(t, []string{"ok", "hi"}, classifier.Calls()[0])
}

func TestFilter_AreMessagesSafe_ClassifierFailure(t *testing.T) {
	completer := &fakeCompleter{respond: func(context.Context, []string) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	}}
	moderator := NewAIModerator(completer, AIModeratorConfig{}, logging.Discard(), nil)
	f := newTestFilter(t, moderator, nil)

	verdicts := f.AreMessagesSafe(context.Background(), []string{"ok", "casa", "hi"})

	assert.Equal(t, []bool{true, false, true}, verdicts)
	require.Len(t, completer.Calls(), 1)
	assert.Equal(t, []string{"ok", "hi"}, completer.Calls()[0])
}

func TestFilter_AreMessagesSafe_ClassifierFlagsNegated(t *testing.T) {
	completer := &fakeCompleter{respond: flagWords("rima")}
	moderator := NewAIModerator(completer, AIModeratorConfig{}, logging.Discard(), nil)
	f := newTestFilter(t, moderator, nil)

	verdicts := f.AreMessagesSafe(context.Background(), []string{
		"rima com asa", "", "porta", "bom jogo", "   ", strings.Repeat("z", 600),
	})

	assert.Equal(t, []bool{false, true, false, true, true, true}, verdicts)
	require.Len(t, completer.Calls(), 1)
	assert.Equal(t, []string{"rima com asa", "bom jogo"}, completer.Calls()[0])
}

func TestFilter_AreMessagesSafe_Empty(t *testing.T) {
	classifier := &fakeClassifier{}
	f := newTestFilter(t, classifier, nil)

	verdicts := f.AreMessagesSafe(context.Background(), []string{})
	require.NotNil(t, verdicts)
	assert.Empty(t, verdicts)
	assert.Empty(t, classifier.Calls())
}

func TestFilter_AreMessagesSafe_AllHeuristic(t *testing.T) {
	classifier := &fakeClassifier{}
	f := newTestFilter(t, classifier, nil)

	verdicts := f.AreMessagesSafe(context.Background(), []string{"casa", "porta", "ccaassaa"})

	assert.Equal(t, []bool{false, false, false}, verdicts)
	assert.Empty(t, classifier.Calls())
}

func TestFilter_AreMessagesSafe_ShortClassifierResult(t *testing.T) {
	classifier := &fakeClassifier{result: func([]string) []bool { return []bool{true} }}
	f := newTestFilter(t, classifier, nil)

	verdicts := f.AreMessagesSafe(context.Background(), []string{"a", "b", "c"})

	assert.Equal(t, []bool{false, true, true}, verdicts)
}

func TestFilter_AreMessagesSafe_LengthMatchesInput(t *testing.T) {
	f := newTestFilter(t, &fakeClassifier{}, nil)
	for n := 0; n < 30; n++ {
		messages := make([]string, n)
		for i := range messages {
			if i%3 == 0 {
				messages[i] = "casa"
			} else {
				messages[i] = "oi"
			}
		}
		verdicts := f.AreMessagesSafe(context.Background(), messages)
		require.Len(t, verdicts, n)
		for i, v := range verdicts {
			assert.Equal(t, i%3 != 0, v, "position %d of %d", i, n)
		}
	}
}

func TestFilter_RecordsReasons(t *testing.T) {
	rec := &recordingRecorder{}
	classifier := &fakeClassifier{result: func(m []string) []bool { return []bool{true, false} }}
	f := newTestFilter(t, classifier, rec)

	f.AreMessagesSafe(context.Background(), []string{"", "c a s a", "dica", "oi"})

	assert.ElementsMatch(t, []string{
		ReasonBlank,
		ReasonHeuristic + ":spaced",
		ReasonClassifierFlagged,
		ReasonClassifierSafe,
	}, rec.Verdicts())
}
