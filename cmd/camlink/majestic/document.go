// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package majestic edits and reloads the configuration of the Majestic
// streamer that runs next to camlink on the camera.
//
// The editor never round-trips the document through a YAML encoder. Majestic
// configs are hand-maintained and carry comments, odd spacing and keys camlink
// knows nothing about, so every edit is a line-level rewrite of exactly one
// key inside exactly one top-level section.
package majestic

import (
	"strings"
)

const (
	DefaultSection = "video0"
	DefaultKey     = "crop"

	// Indentation added below a section header when a key has to be created.
	insertIndent = "  "
)

// Target names the section/key pair an edit is allowed to touch.
type Target struct {
	Section string
	Key     string
}

// DefaultTarget is the crop region of the first video pipeline.
var DefaultTarget = Target{Section: DefaultSection, Key: DefaultKey}

// Document is a config file split into lines. Every line keeps its own
// terminator, so joining the lines gives back the original bytes.
type Document struct {
	Lines []string
}

func ParseDocument(data []byte) *Document {
	lines := strings.SplitAfter(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return &Document{Lines: lines}
}

func (d *Document) Bytes() []byte {
	var b strings.Builder
	for _, line := range d.Lines {
		b.WriteString(line)
	}
	return []byte(b.String())
}

type lineKind int

const (
	kindOther lineKind = iota
	kindHeader
	kindInSection
	kindKey
)

func (k lineKind) String() string {
	switch k {
	case kindHeader:
		return "header"
	case kindInSection:
		return "in-section"
	case kindKey:
		return "key"
	default:
		return "other"
	}
}

// classify tags each line relative to the first occurrence of the target
// section. Lines after the section has ended are always kindOther.
func classify(lines []string, target Target) []lineKind {
	kinds := make([]lineKind, len(lines))
	seen := false
	inSection := false
	for i, line := range lines {
		switch {
		case !seen && isSectionHeader(line, target.Section):
			kinds[i] = kindHeader
			seen = true
			inSection = true
		case inSection && continuesSection(line):
			if isKeyLine(line, target.Key) {
				kinds[i] = kindKey
			} else {
				kinds[i] = kindInSection
			}
		default:
			inSection = false
			kinds[i] = kindOther
		}
	}
	return kinds
}

// isSectionHeader reports whether line is "<section>:" starting at column 0.
// Anything after the colon must be whitespace or a comment.
func isSectionHeader(line string, section string) bool {
	if !strings.HasPrefix(line, section+":") {
		return false
	}
	rest := strings.TrimSpace(line[len(section)+1:])
	return rest == "" || strings.HasPrefix(rest, "#")
}

// continuesSection reports whether line is nested under the current section,
// which is any line that starts with whitespace (blank lines included).
func continuesSection(line string) bool {
	if line == "" {
		return false
	}
	switch line[0] {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

func isKeyLine(line string, key string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, key+":") {
		return false
	}
	rest := trimmed[len(key)+1:]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\r' || rest[0] == '\n'
}

// splitLine returns the leading whitespace, the content and the terminator of
// a line.
func splitLine(line string) (indent, content, eol string) {
	body := line
	switch {
	case strings.HasSuffix(body, "\r\n"):
		eol = "\r\n"
	case strings.HasSuffix(body, "\n"):
		eol = "\n"
	}
	body = body[:len(body)-len(eol)]
	content = strings.TrimLeft(body, " \t")
	indent = body[:len(body)-len(content)]
	return indent, content, eol
}

// trailingComment returns the comment of a key line together with the
// whitespace in front of it, if any. A '#' only starts a comment after
// whitespace.
func trailingComment(content string) string {
	for i := 1; i < len(content); i++ {
		if content[i] != '#' || !isBlank(content[i-1]) {
			continue
		}
		start := i - 1
		for start > 0 && isBlank(content[start-1]) {
			start--
		}
		return content[start:]
	}
	return ""
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

type Op int

const (
	OpNone Op = iota
	OpRewrite
	OpInsert
)

// Plan is the outcome of scanning a document: what would change and how the
// edit will be reported.
type Plan struct {
	Result Result
	Op     Op
	// Index of the rewritten line, or the position the new line is inserted at.
	Index int
	Line  string
	// Set when the header is the last line and has no terminator.
	terminateHeader bool
}

// PlanEdit decides how to set target to value. It does not modify doc.
func PlanEdit(doc *Document, target Target, value string, mayCreate bool) Plan {
	kinds := classify(doc.Lines, target)
	header := -1
	for i, kind := range kinds {
		switch kind {
		case kindHeader:
			header = i
		case kindKey:
			indent, content, eol := splitLine(doc.Lines[i])
			line := indent + target.Key + ": " + value + trailingComment(content) + eol
			return Plan{Result: ResultUpdated, Op: OpRewrite, Index: i, Line: line}
		}
	}

	if header < 0 {
		return Plan{Result: ResultSectionNotFound}
	}
	if !mayCreate {
		return Plan{Result: ResultKeyNotFound}
	}

	headerIndent, _, eol := splitLine(doc.Lines[header])
	plan := Plan{Result: ResultInserted, Op: OpInsert, Index: header + 1}
	if eol == "" {
		eol = "\n"
		plan.terminateHeader = true
	}
	plan.Line = headerIndent + insertIndent + target.Key + ": " + value + eol
	return plan
}

// Apply carries out the plan on doc.
func (d *Document) Apply(plan Plan) {
	switch plan.Op {
	case OpRewrite:
		d.Lines[plan.Index] = plan.Line
	case OpInsert:
		if plan.terminateHeader {
			d.Lines[plan.Index-1] += "\n"
		}
		d.Lines = append(d.Lines, "")
		copy(d.Lines[plan.Index+1:], d.Lines[plan.Index:])
		d.Lines[plan.Index] = plan.Line
	}
}
