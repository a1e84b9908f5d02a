// Package trc reads and writes PEAK CAN TRC trace files.
//
// Only file version 2.1 is read. Older versions are detected from the first
// line and rejected, since their column layouts differ and would decode to
// garbage. Loading is all or nothing: the first structural error aborts the
// load and no partial trace is returned.
package trc

import (
	"strings"

	"canlogconvert/internal/trace"
)

// SupportedVersion is the only file version Load accepts.
const SupportedVersion = "2.1"

// DefaultVersion is assumed when the first line carries no version.
const DefaultVersion = "1.0"

// Header directive names, as carried by HeaderParseError.
const (
	DirectiveFileVersion = "FILEVERSION"
	DirectiveStartTime   = "STARTTIME"
	DirectiveColumns     = "COLUMNS"
)

// versionHeaders are the first lines that identify a version. Version 1.0
// files have no header line at all.
var versionHeaders = map[string]string{
	";$FILEVERSION=1.1": "1.1",
	";$FILEVERSION=1.2": "1.2",
	";$FILEVERSION=1.3": "1.3",
	";$FILEVERSION=2.0": "2.0",
	";$FILEVERSION=2.1": "2.1",
}

// Load parses a complete TRC file.
func Load(text string) (*trace.Trace, error) {
	lines := splitLines(text)

	if v := resolveVersion(lines); v != SupportedVersion {
		return nil, &UnsupportedVersionError{Version: v}
	}

	header, err := parseHeader(lines)
	if err != nil {
		return nil, err
	}

	var events []trace.BusEvent
	for i := headerLines; i < len(lines); i++ {
		line, lineNo := lines[i], i+1
		if strings.TrimSpace(line) == "" {
			continue
		}
		if stamp, ok := matchStartTimeComment(line); ok {
			if header.StartTimeComment == "" {
				header.StartTimeComment = stamp
			}
			continue
		}
		if _, ok := matchLineComment(line); ok {
			continue
		}
		dl, err := matchDataLine(line, header.Columns)
		if err != nil {
			return nil, &BodyParseError{Line: lineNo, Text: line, Reason: err.Error()}
		}
		ev, err := decodeEvent(dl, header.Columns, lineNo, line)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return trace.New(header, events), nil
}

// DetectVersion returns the file version announced by the first line of
// text, or DefaultVersion when there is none.
func DetectVersion(text string) string {
	return resolveVersion(splitLines(text))
}

// splitLines splits on "\n", drops a trailing "\r" from every line and
// removes trailing blank lines. A leading UTF-8 byte order mark is ignored.
func splitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func resolveVersion(lines []string) string {
	if len(lines) > 0 {
		if v, ok := versionHeaders[strings.TrimRight(lines[0], " \t")]; ok {
			return v
		}
	}
	return DefaultVersion
}

const headerLines = 3

// parseHeader reads the three directives, which must be the first three
// lines in fixed order.
func parseHeader(lines []string) (trace.Header, error) {
	line := func(i int) string {
		if i < len(lines) {
			return lines[i]
		}
		return ""
	}
	missing := func(i int) string {
		if i < len(lines) {
			return "expected "
		}
		return "missing, expected "
	}

	var h trace.Header

	version, ok := matchFileVersion(line(0))
	if !ok {
		return h, &HeaderParseError{Directive: DirectiveFileVersion, Line: 1, Text: line(0), Reason: missing(0) + fileVersionSyntax}
	}
	h.FileVersion = version

	raw, ok := matchStartTime(line(1))
	if !ok {
		return h, &HeaderParseError{Directive: DirectiveStartTime, Line: 2, Text: line(1), Reason: missing(1) + startTimeSyntax}
	}
	st, err := trace.ParseStartTime(raw)
	if err != nil {
		return h, &HeaderParseError{Directive: DirectiveStartTime, Line: 2, Text: line(1), Reason: err.Error()}
	}
	h.StartTime = st

	cols, ok := matchColumns(line(2))
	if !ok {
		reason := missing(2) + columnsSyntax
		if list, found := strings.CutPrefix(strings.TrimSpace(line(2)), ";$COLUMNS="); found {
			if _, err := ParseColumnList(list); err != nil {
				reason = err.Error()
			}
		}
		return h, &HeaderParseError{Directive: DirectiveColumns, Line: 3, Text: line(2), Reason: reason}
	}
	h.Columns = cols

	return h, nil
}
