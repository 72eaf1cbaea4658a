// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false, false)

	require.NoError(t, p.Verdict(Verdict{Message: "bom dia", Safe: true}))
	require.NoError(t, p.Verdict(Verdict{Message: "c@5@", Reason: "heuristic leet: casa"}))
	require.NoError(t, p.Verdict(Verdict{Message: "hint"}))
	require.NoError(t, p.Summary(3, 2))

	assert.Equal(t,
		"✓ SAFE     bom dia\n"+
			"✗ FLAGGED  c@5@  (heuristic leet: casa)\n"+
			"✗ FLAGGED  hint\n"+
			"• 3 checked, 2 flagged\n",
		buf.String())
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true, true)

	require.NoError(t, p.Verdict(Verdict{Message: "ok", Safe: true}))
	require.NoError(t, p.Verdict(Verdict{Message: "casa", Reason: "heuristic exact: casa"}))
	require.NoError(t, p.Summary(2, 1))

	assert.Equal(t,
		`{"message":"ok","safe":true}`+"\n"+
			`{"message":"casa","safe":false,"reason":"heuristic exact: casa"}`+"\n",
		buf.String())
}

func TestColorEnabled_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, ColorEnabled(os.Stdout))
}

func TestColorEnabled_NotATerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, ColorEnabled(f))
}
