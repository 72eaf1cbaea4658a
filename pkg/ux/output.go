// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux renders moderation verdicts for the terminal.
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette
var (
	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#2C4A54")
)

// Icon provides status icons.
type Icon string

const (
	IconSafe    Icon = "✓"
	IconFlagged Icon = "✗"
	IconBullet  Icon = "•"
)

// Verdict is one rendered moderation result.
type Verdict struct {
	Message string `json:"message"`
	Safe    bool   `json:"safe"`

	// Reason explains a flag, e.g. "heuristic leet: casa". Empty when safe.
	Reason string `json:"reason,omitempty"`
}

// Printer writes verdicts as styled lines or JSON lines.
//
// # Thread Safety
//
// Not safe for concurrent use.
type Printer struct {
	w     io.Writer
	color bool
	json  bool

	safe    lipgloss.Style
	flagged lipgloss.Style
	muted   lipgloss.Style
	bold    lipgloss.Style
}

// NewPrinter creates a printer on w. color enables ANSI styling; asJSON
// switches to one JSON object per line and ignores color.
func NewPrinter(w io.Writer, color, asJSON bool) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		color:   color && !asJSON,
		json:    asJSON,
		safe:    r.NewStyle().Foreground(ColorSuccess),
		flagged: r.NewStyle().Foreground(ColorError).Bold(true),
		muted:   r.NewStyle().Foreground(ColorMuted),
		bold:    r.NewStyle().Bold(true),
	}
}

// ColorEnabled reports whether f is a terminal and NO_COLOR is unset.
func ColorEnabled(f *os.File) bool {
	if _, off := os.LookupEnv("NO_COLOR"); off {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Verdict prints one result.
func (p *Printer) Verdict(v Verdict) error {
	if p.json {
		return json.NewEncoder(p.w).Encode(v)
	}
	var line string
	if v.Safe {
		line = fmt.Sprintf("%s %s  %s",
			p.style(p.safe, string(IconSafe)), p.style(p.safe, "SAFE   "), v.Message)
	} else {
		line = fmt.Sprintf("%s %s  %s",
			p.style(p.flagged, string(IconFlagged)), p.style(p.flagged, "FLAGGED"), v.Message)
		if v.Reason != "" {
			line += "  " + p.style(p.muted, "("+v.Reason+")")
		}
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}

// Summary prints the closing tally. It prints nothing in JSON mode.
func (p *Printer) Summary(total, flagged int) error {
	if p.json {
		return nil
	}
	_, err := fmt.Fprintf(p.w, "%s %s checked, %s flagged\n",
		IconBullet, p.style(p.bold, fmt.Sprint(total)), p.style(p.flagged, fmt.Sprint(flagged)))
	return err
}
