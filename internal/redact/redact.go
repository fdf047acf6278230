// Package redact splits listing files into lines and strips credential
// fields for buyer previews.
//
// A line of the form "url:login:password:orders..." is shown as
// "url orders...". The projection is deterministic: matching a buyer's
// submission re-derives it and compares text, so Redact must never depend on
// anything but its input.
package redact

import "strings"

// minCredentialFields is the field count at which a line is treated as
// carrying credentials in fields 1 and 2.
const minCredentialFields = 4

// Line is a non-blank line of a listing file. Position counts non-blank
// lines only.
type Line struct {
	Position int
	Raw      string
}

// ProjectedLine pairs a raw line with its buyer-safe form.
type ProjectedLine struct {
	Position int
	Raw      string
	Safe     string
}

// SplitLines splits content on newlines, drops blank lines and strips a
// trailing carriage return so CRLF files project the same as LF files.
func SplitLines(content string) []Line {
	parts := strings.Split(content, "\n")
	lines := make([]Line, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSuffix(part, "\r")
		if strings.TrimSpace(part) == "" {
			continue
		}
		lines = append(lines, Line{Position: len(lines), Raw: part})
	}
	return lines
}

// Redact returns the buyer-safe form of a raw line.
func Redact(raw string) string {
	fields := strings.Split(raw, ":")
	if len(fields) < minCredentialFields {
		return raw
	}
	return fields[0] + " " + strings.Join(fields[3:], ":")
}

// Project redacts every line of content.
func Project(content string) []ProjectedLine {
	lines := SplitLines(content)
	out := make([]ProjectedLine, len(lines))
	for i, l := range lines {
		out[i] = ProjectedLine{Position: l.Position, Raw: l.Raw, Safe: Redact(l.Raw)}
	}
	return out
}

// ParseSelection turns buyer-submitted text (pasted or uploaded) into trimmed,
// non-empty lines.
func ParseSelection(text string) []string {
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
