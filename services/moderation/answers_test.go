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
	"github.com/stretchr/testify/require"
)

func TestNewAnswerSet_NormalizesAndDedupes(t *testing.T) {
	set, err := NewAnswerSet([]string{"Porta", "CASA", "", "  ", "cása", "porta!", "livro"})
	require.NoError(t, err)

	assert.Equal(t, []string{"porta", "casa", "livro"}, set.Words())
	assert.Equal(t, 3, set.Len())
}

func TestNewAnswerSet_Empty(t *testing.T) {
	_, err := NewAnswerSet(nil)
	assert.ErrorIs(t, err, ErrEmptyAnswerSet)

	_, err = NewAnswerSet([]string{"", "!!!", " "})
	assert.ErrorIs(t, err, ErrEmptyAnswerSet)
}

func TestAnswerSet_WordsIsACopy(t *testing.T) {
	set := MustAnswerSet("casa", "porta")
	words := set.Words()
	words[0] = "mutated"

	assert.Equal(t, []string{"casa", "porta"}, set.Words())
}

func TestMustAnswerSet_PanicsOnEmpty(t *testing.T) {
	assert.Panics(t, func() { MustAnswerSet() })
}

func TestDefaultAnswers_BuildCleanly(t *testing.T) {
	set, err := NewAnswerSet(DefaultAnswers)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultAnswers), set.Len())
}
