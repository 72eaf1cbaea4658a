// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chat

import (
	"errors"
	"strings"
)

// ErrEmptyLine is returned by ParseLine for blank input.
var ErrEmptyLine = errors.New("empty IRC line")

// Line is one parsed IRC message with IRCv3 tags.
//
//	@display-name=Foo;color=#FF0000 :foo!foo@foo.tmi.twitch.tv PRIVMSG #chan :hello there
//	└──────────── Tags ───────────┘ └─────── Prefix ────────┘ └Command┘ └Params┘ └Trailing┘
type Line struct {
	Tags     map[string]string
	Prefix   string
	Command  string
	Params   []string
	Trailing string
}

// ParseLine parses a single IRC line without its CRLF terminator.
//
// # Outputs
//
//   - Line: The parsed message. Trailing is also appended to Params, the
//     way servers treat it as the final parameter.
//   - error: ErrEmptyLine, or a malformed-line error when no command is
//     present.
func ParseLine(raw string) (Line, error) {
	raw = strings.TrimRight(raw, "\r\n")
	if strings.TrimSpace(raw) == "" {
		return Line{}, ErrEmptyLine
	}

	var line Line
	rest := raw

	if strings.HasPrefix(rest, "@") {
		tags, after, _ := strings.Cut(rest[1:], " ")
		line.Tags = parseTags(tags)
		rest = strings.TrimLeft(after, " ")
	}

	if strings.HasPrefix(rest, ":") {
		prefix, after, _ := strings.Cut(rest[1:], " ")
		line.Prefix = prefix
		rest = strings.TrimLeft(after, " ")
	}

	head, trailing, hasTrailing := strings.Cut(rest, " :")
	if strings.HasPrefix(rest, ":") {
		head, trailing, hasTrailing = "", rest[1:], true
	}
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return Line{}, errors.New("malformed IRC line: missing command")
	}
	line.Command = strings.ToUpper(fields[0])
	line.Params = fields[1:]
	if hasTrailing {
		line.Trailing = trailing
		line.Params = append(line.Params, trailing)
	}
	return line, nil
}

// Nick returns the nickname part of the prefix ("foo" for "foo!foo@host").
func (l Line) Nick() string {
	nick, _, _ := strings.Cut(l.Prefix, "!")
	nick, _, _ = strings.Cut(nick, "@")
	return nick
}

// Tag returns the unescaped tag value and whether it was present.
func (l Line) Tag(key string) (string, bool) {
	v, ok := l.Tags[key]
	return v, ok
}

func parseTags(raw string) map[string]string {
	tags := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		tags[key] = unescapeTag(value)
	}
	return tags
}

var tagUnescaper = strings.NewReplacer(`\:`, ";", `\s`, " ", `\\`, `\`, `\r`, "\r", `\n`, "\n")

func unescapeTag(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	return tagUnescaper.Replace(v)
}
