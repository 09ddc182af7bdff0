// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshconfig reads and rewrites the identity references of an SSH
// client configuration file. Only Host and IdentityFile directives are
// interpreted; every other line passes through untouched.
package sshconfig // import "github.com/toeirei/keyrot/internal/sshconfig"

import (
	"strings"

	"github.com/toeirei/keyrot/internal/keypath"
	"github.com/toeirei/keyrot/internal/model"
)

// directive is one meaningful line of the configuration.
type directive struct {
	keyword    string
	value      string // Quotes stripped.
	quoted     bool
	valueStart int // Byte offset of the raw value within the line.
	valueEnd   int
}

// splitDirective splits a configuration line into keyword and value.
// Blank lines and comments yield ok == false. Keywords may be separated from
// their value by whitespace and/or a single '='.
func splitDirective(line string) (d directive, ok bool) {
	body := strings.TrimRight(line, "\r\n")
	start := len(body) - len(strings.TrimLeft(body, " \t"))
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return d, false
	}

	end := start
	for end < len(body) && body[end] != ' ' && body[end] != '\t' && body[end] != '=' {
		end++
	}
	d.keyword = body[start:end]

	v := end
	for v < len(body) && (body[v] == ' ' || body[v] == '\t') {
		v++
	}
	if v < len(body) && body[v] == '=' {
		v++
		for v < len(body) && (body[v] == ' ' || body[v] == '\t') {
			v++
		}
	}
	d.valueStart = v
	d.valueEnd = len(strings.TrimRight(body, " \t"))
	if d.valueEnd < d.valueStart {
		d.valueEnd = d.valueStart
	}
	d.value = body[d.valueStart:d.valueEnd]
	if len(d.value) >= 2 && d.value[0] == '"' && d.value[len(d.value)-1] == '"' {
		d.value = d.value[1 : len(d.value)-1]
		d.quoted = true
	}
	return d, true
}

func isHost(d directive) bool         { return strings.EqualFold(d.keyword, "Host") }
func isMatch(d directive) bool        { return strings.EqualFold(d.keyword, "Match") }
func isIdentityFile(d directive) bool { return strings.EqualFold(d.keyword, "IdentityFile") }

// Parse scans configuration text in a single pass and returns the Host blocks
// with their identity references. Identity values are expanded with r.
// A Match block ends the current Host context.
func Parse(text string, r keypath.Resolver) []model.ConfigHostEntry {
	var entries []model.ConfigHostEntry
	current := -1
	for i, line := range strings.Split(text, "\n") {
		d, ok := splitDirective(line)
		if !ok {
			continue
		}
		switch {
		case isHost(d):
			entries = append(entries, model.ConfigHostEntry{Host: d.value, Line: i + 1})
			current = len(entries) - 1
		case isMatch(d):
			current = -1
		case isIdentityFile(d) && current >= 0 && d.value != "":
			e := &entries[current]
			e.RawIdentities = append(e.RawIdentities, d.value)
			e.IdentityFiles = append(e.IdentityFiles, r.Expand(d.value))
		}
	}
	return entries
}
