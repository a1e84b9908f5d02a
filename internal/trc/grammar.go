package trc

import (
	"fmt"
	"strings"

	"canlogconvert/internal/trace"
)

// Directive syntax, as reported in header errors.
const (
	fileVersionSyntax = ";$FILEVERSION=<1.0|1.1|1.2|1.3|2.0|2.1>"
	startTimeSyntax   = ";$STARTTIME=<days>.<fraction>"
	columnsSyntax     = ";$COLUMNS=[N,]O,T,[B,]I,d,[R,](l|L),D"
)

// validVersions are the only version numbers PEAK defines.
var validVersions = []string{"1.0", "1.1", "1.2", "1.3", "2.0", "2.1"}

// input is the unread remainder of one line. Rules take it by value and
// hand back an advanced copy only when they match, so a rule that fails
// never consumes anything and the caller can try the next alternative.
type input struct {
	s   string
	pos int
}

func newInput(line string) input { return input{s: line} }

func (in input) rest() string { return in.s[in.pos:] }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isBlank(c byte) bool { return c == ' ' || c == '\t' }

func isHex(c byte) bool {
	return isDigit(c) || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// literal matches the exact text l.
func literal(in input, l string) (input, bool) {
	if !strings.HasPrefix(in.rest(), l) {
		return in, false
	}
	in.pos += len(l)
	return in, true
}

// oneOf matches the longest of the given literals.
func oneOf(in input, lits ...string) (string, input, bool) {
	best := ""
	for _, l := range lits {
		if len(l) > len(best) && strings.HasPrefix(in.rest(), l) {
			best = l
		}
	}
	if best == "" {
		return "", in, false
	}
	in.pos += len(best)
	return best, in, true
}

// many matches zero or more bytes satisfying pred.
func many(in input, pred func(byte) bool) (string, input) {
	start := in.pos
	for in.pos < len(in.s) && pred(in.s[in.pos]) {
		in.pos++
	}
	return in.s[start:in.pos], in
}

// many1 is many with at least one byte.
func many1(in input, pred func(byte) bool) (string, input, bool) {
	tok, next := many(in, pred)
	if tok == "" {
		return "", in, false
	}
	return tok, next, true
}

func skipBlanks(in input) input {
	_, in = many(in, isBlank)
	return in
}

// end matches optional trailing blanks followed by the end of the line.
func end(in input) bool {
	return skipBlanks(in).pos == len(in.s)
}

// separator matches the gap between two data fields: blanks, with at most
// one comma among them.
func separator(in input) (input, bool) {
	next := skipBlanks(in)
	if after, ok := literal(next, ","); ok {
		next = skipBlanks(after)
	}
	if next.pos == in.pos {
		return in, false
	}
	return next, true
}

// word matches one field: everything up to the next separator.
func word(in input) (string, input, bool) {
	return many1(in, func(c byte) bool { return !isBlank(c) && c != ',' })
}

// matchFileVersion matches ";$FILEVERSION=<version>".
func matchFileVersion(line string) (string, bool) {
	in, ok := literal(newInput(line), ";$FILEVERSION=")
	if !ok {
		return "", false
	}
	v, in, ok := oneOf(in, validVersions...)
	if !ok || !end(in) {
		return "", false
	}
	return v, true
}

// matchStartTime matches ";$STARTTIME=<digits>.<digits>" where either run
// of digits may be empty.
func matchStartTime(line string) (string, bool) {
	in, ok := literal(newInput(line), ";$STARTTIME=")
	if !ok {
		return "", false
	}
	start := in.pos
	_, in = many(in, isDigit)
	if in, ok = literal(in, "."); !ok {
		return "", false
	}
	_, in = many(in, isDigit)
	if !end(in) {
		return "", false
	}
	return in.s[start:in.pos], true
}

// columnRule is one element of the column grammar.
type columnRule struct {
	alts     []trace.Column
	optional bool
}

// columnGrammar is [N,]O,T,[B,]I,d,[R,](l|L),D.
var columnGrammar = []columnRule{
	{alts: []trace.Column{trace.ColumnNumber}, optional: true},
	{alts: []trace.Column{trace.ColumnOffset}},
	{alts: []trace.Column{trace.ColumnType}},
	{alts: []trace.Column{trace.ColumnBus}, optional: true},
	{alts: []trace.Column{trace.ColumnID}},
	{alts: []trace.Column{trace.ColumnDirection}},
	{alts: []trace.Column{trace.ColumnReserved}, optional: true},
	{alts: []trace.Column{trace.ColumnLength, trace.ColumnDLC}},
	{alts: []trace.Column{trace.ColumnData}},
}

// ParseColumnList parses the comma separated value of a $COLUMNS directive,
// e.g. "N,O,T,B,I,d,R,L,D".
func ParseColumnList(s string) (trace.Columns, error) {
	tokens := strings.Split(s, ",")
	var cols []byte
	i := 0
	for _, rule := range columnGrammar {
		if i < len(tokens) && len(tokens[i]) == 1 && rule.accepts(trace.Column(tokens[i][0])) {
			cols = append(cols, tokens[i][0])
			i++
			continue
		}
		if !rule.optional {
			return "", fmt.Errorf("column list %q: expected %s at position %d", s, rule, i+1)
		}
	}
	if i != len(tokens) {
		return "", fmt.Errorf("column list %q: unexpected %q at position %d", s, tokens[i], i+1)
	}
	return trace.Columns(cols), nil
}

func (r columnRule) accepts(c trace.Column) bool {
	for _, a := range r.alts {
		if a == c {
			return true
		}
	}
	return false
}

func (r columnRule) String() string {
	parts := make([]string, len(r.alts))
	for i, a := range r.alts {
		parts[i] = string(rune(a))
	}
	return strings.Join(parts, "|")
}

// matchColumns matches ";$COLUMNS=<column list>".
func matchColumns(line string) (trace.Columns, bool) {
	in, ok := literal(newInput(line), ";$COLUMNS=")
	if !ok {
		return "", false
	}
	list, in := many(in, func(c byte) bool { return !isBlank(c) })
	if !end(in) {
		return "", false
	}
	cols, err := ParseColumnList(list)
	if err != nil {
		return "", false
	}
	return cols, true
}

// matchStartTimeComment matches "; Start time: YYYY-MM-DD HH:MM:SS.mmm.uuu"
// and returns the date and time part. Blanks between ';' and "Start time:"
// are allowed, PEAK tools indent the comment.
func matchStartTimeComment(line string) (string, bool) {
	in, ok := literal(newInput(line), ";")
	if !ok {
		return "", false
	}
	in = skipBlanks(in)
	if in, ok = literal(in, "Start time:"); !ok {
		return "", false
	}
	in = skipBlanks(in)
	start := in.pos
	in, ok = digitGroups(in, "-", "-", "")
	if !ok {
		return "", false
	}
	if in, ok = literal(in, " "); !ok {
		return "", false
	}
	in, ok = digitGroups(in, ":", ":", ".", ".", "")
	if !ok || !end(in) {
		return "", false
	}
	return strings.TrimRight(in.s[start:], " \t"), true
}

// digitGroups matches runs of digits, each followed by the given delimiter.
func digitGroups(in input, delims ...string) (input, bool) {
	next := in
	for _, d := range delims {
		var ok bool
		if _, next, ok = many1(next, isDigit); !ok {
			return in, false
		}
		if d == "" {
			continue
		}
		if next, ok = literal(next, d); !ok {
			return in, false
		}
	}
	return next, true
}

// matchLineComment matches any ';' line that is not one of the structured
// comment forms.
func matchLineComment(line string) (string, bool) {
	in, ok := literal(newInput(line), ";")
	if !ok {
		return "", false
	}
	if _, ok := matchFileVersion(line); ok {
		return "", false
	}
	if _, ok := matchStartTime(line); ok {
		return "", false
	}
	if _, ok := matchColumns(line); ok {
		return "", false
	}
	if _, ok := matchStartTimeComment(line); ok {
		return "", false
	}
	return in.rest(), true
}

// dataLine holds the raw fields of one data line. Columns missing from the
// layout are left empty.
type dataLine struct {
	number   string
	offset   string
	typeCode string
	bus      string
	id       string
	dir      string
	reserved string
	length   string
	data     []string
	text     string // EV rows
}

// fieldError tells which column of a data line did not match.
type fieldError struct {
	column trace.Column
	text   string
}

func (e *fieldError) Error() string {
	if e.text == "" {
		return fmt.Sprintf("missing %s", columnName(e.column))
	}
	return fmt.Sprintf("malformed %s %q", columnName(e.column), e.text)
}

func columnName(c trace.Column) string {
	switch c {
	case trace.ColumnNumber:
		return "message number"
	case trace.ColumnOffset:
		return "time offset"
	case trace.ColumnType:
		return "message type"
	case trace.ColumnBus:
		return "bus"
	case trace.ColumnID:
		return "CAN-ID"
	case trace.ColumnDirection:
		return "direction"
	case trace.ColumnReserved:
		return "reserved field"
	case trace.ColumnLength:
		return "data length"
	case trace.ColumnDLC:
		return "data length code"
	case trace.ColumnData:
		return "data"
	}
	return fmt.Sprintf("column %c", byte(c))
}

// fieldRules holds the shape of every column except D, which is matched
// separately since it spans several tokens.
var fieldRules = map[trace.Column]func(string) bool{
	trace.ColumnNumber:    allOf(isDigit),
	trace.ColumnOffset:    isOffset,
	trace.ColumnType:      isTypeCode,
	trace.ColumnBus:       isBus,
	trace.ColumnID:        isID,
	trace.ColumnDirection: func(s string) bool { return s != "" },
	trace.ColumnReserved:  func(s string) bool { return s == "-" || allOf(isDigit)(s) },
	trace.ColumnLength:    allOf(isDigit),
	trace.ColumnDLC:       allOf(isDigit),
}

func allOf(pred func(byte) bool) func(string) bool {
	return func(s string) bool {
		if s == "" {
			return false
		}
		for i := 0; i < len(s); i++ {
			if !pred(s[i]) {
				return false
			}
		}
		return true
	}
}

func isOffset(s string) bool {
	whole, frac, ok := strings.Cut(s, ".")
	return ok && allOf(isDigit)(whole) && allOf(isDigit)(frac)
}

// isID accepts '-' or a CAN-ID written with exactly 4 (standard) or 8
// (extended) hex digits.
func isID(s string) bool {
	if s == "-" {
		return true
	}
	return (len(s) == 4 || len(s) == 8) && allOf(isHex)(s)
}

func isTypeCode(s string) bool {
	_, ok := trace.MessageTypeFromCode(s)
	return ok
}

func isBus(s string) bool {
	if s == "-" {
		return true
	}
	if len(s) > 2 || !allOf(isDigit)(s) || s[0] == '0' {
		return false
	}
	n := int(s[0] - '0')
	if len(s) == 2 {
		n = n*10 + int(s[1]-'0')
	}
	return n >= 1 && n <= trace.MaxBus
}

// matchDataLine matches one data line against the given layout.
func matchDataLine(line string, cols trace.Columns) (dataLine, error) {
	var dl dataLine
	in := skipBlanks(newInput(line))
	first := true

	for _, col := range cols.List() {
		if col == trace.ColumnData {
			data, ok := matchData(in)
			if !ok {
				return dataLine{}, &fieldError{column: col, text: strings.TrimSpace(in.rest())}
			}
			dl.data = data
			return dl, nil
		}

		next := in
		if !first {
			var ok bool
			if next, ok = separator(in); !ok {
				return dataLine{}, &fieldError{column: col}
			}
		}
		tok, next, ok := word(next)
		if !ok {
			return dataLine{}, &fieldError{column: col}
		}
		if !fieldRules[col](tok) {
			return dataLine{}, &fieldError{column: col, text: tok}
		}
		in, first = next, false
		dl.set(col, tok)

		// EV rows end with free text right after the bus column, or after
		// the type column when there is no bus column.
		if dl.typeCode == "EV" && (col == trace.ColumnBus || col == trace.ColumnType && !cols.Has(trace.ColumnBus)) {
			// Only blanks separate the text; a leading comma belongs to it.
			in = skipBlanks(in)
			dl.text = strings.TrimRight(in.rest(), " \t")
			return dl, nil
		}
	}
	return dl, nil
}

func (dl *dataLine) set(col trace.Column, tok string) {
	switch col {
	case trace.ColumnNumber:
		dl.number = tok
	case trace.ColumnOffset:
		dl.offset = tok
	case trace.ColumnType:
		dl.typeCode = tok
	case trace.ColumnBus:
		dl.bus = tok
	case trace.ColumnID:
		dl.id = tok
	case trace.ColumnDirection:
		dl.dir = tok
	case trace.ColumnReserved:
		dl.reserved = tok
	case trace.ColumnLength, trace.ColumnDLC:
		dl.length = tok
	}
}

// matchData matches zero or more two-digit hex bytes up to the end of the
// line.
func matchData(in input) ([]string, bool) {
	var out []string
	for {
		if end(in) {
			return out, true
		}
		next, ok := separator(in)
		if !ok {
			return nil, false
		}
		if end(next) {
			return out, true
		}
		tok, after, ok := word(next)
		if !ok || len(tok) != 2 || !allOf(isHex)(tok) {
			return nil, false
		}
		out = append(out, tok)
		in = after
	}
}
