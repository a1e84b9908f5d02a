package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"canlogconvert/internal/trace"
)

// Inspect prints every CBOR item in data. Trace snapshots are shown as a
// header summary plus one line per event; any other item is printed as a
// generic tree, so the command also works on foreign CBOR input.
func Inspect(w io.Writer, data []byte) error {
	dec := cbor.NewDecoder(bytes.NewReader(data))
	for n := 1; ; n++ {
		var raw cbor.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("inspect: item %d: %w", n, err)
		}

		if wt, ok := asSnapshot(raw); ok {
			fmt.Fprintf(w, "Item %d: trace snapshot v%d (%d bytes)\n", n, wt.Version, len(raw))
			printSnapshot(w, wt)
			continue
		}

		var item any
		if err := cbor.Unmarshal(raw, &item); err != nil {
			return fmt.Errorf("inspect: item %d: %w", n, err)
		}
		fmt.Fprintf(w, "Item %d (%d bytes)\n", n, len(raw))
		printNode(w, 1, "", item)
	}
}

// asSnapshot reports whether raw is a trace snapshot document. Events are
// not validated here so broken snapshots can still be looked at.
func asSnapshot(raw cbor.RawMessage) (wireTrace, bool) {
	var wt wireTrace
	if err := cbor.Unmarshal(raw, &wt); err != nil || wt.Format != formatName {
		return wireTrace{}, false
	}
	return wt, true
}

func printSnapshot(w io.Writer, wt wireTrace) {
	start := wt.StartTime
	if st, err := trace.ParseStartTime(wt.StartTime); err == nil {
		start += " (" + st.Comment() + ")"
	}
	fmt.Fprintf(w, "  file version: %s\n", wt.FileVersion)
	fmt.Fprintf(w, "  start time:   %s\n", start)
	if wt.StartTimeComment != "" {
		fmt.Fprintf(w, "  comment:      %s\n", wt.StartTimeComment)
	}
	fmt.Fprintf(w, "  columns:      %s\n", wt.Columns)
	fmt.Fprintf(w, "  events:       %d\n", len(wt.Events))
	for i, we := range wt.Events {
		fmt.Fprintf(w, "    %s\n", we.describe(i+1))
	}
}

// describe renders one event on a line, e.g.
// "#1 123.456 DT (DATA) bus 1 id 0100 Rx dlc 3 data 11 22 33".
func (we wireEvent) describe(pos int) string {
	var b strings.Builder
	n := we.Number
	if n == 0 {
		n = pos
	}
	fmt.Fprintf(&b, "#%d %s %s", n, we.Timestamp, we.Type)
	mt, known := trace.MessageTypeFromCode(we.Type)
	if known {
		fmt.Fprintf(&b, " (%s)", mt)
	}
	if bus := trace.Bus(we.Bus).String(); bus != "" {
		fmt.Fprintf(&b, " bus %s", bus)
	}
	if known && mt == trace.Event {
		fmt.Fprintf(&b, " %q", we.Text)
		return b.String()
	}

	switch {
	case known && !mt.HasIdentifier():
		b.WriteString(" id -")
	case we.Extended:
		fmt.Fprintf(&b, " id %08X", we.ID)
	default:
		fmt.Fprintf(&b, " id %04X", we.ID)
	}
	if we.Direction != "" {
		b.WriteString(" " + we.Direction)
	}
	if we.Reserved != nil {
		fmt.Fprintf(&b, " reserved %d", *we.Reserved)
	}
	kind := "len"
	if we.DLC {
		kind = "dlc"
	}
	fmt.Fprintf(&b, " %s %d", kind, we.Length)
	if len(we.Data) == 0 {
		b.WriteString(" no data")
	} else {
		fmt.Fprintf(&b, " data % X", we.Data)
	}
	return b.String()
}

// printNode prints one CBOR value, nesting maps and arrays by depth.
func printNode(w io.Writer, depth int, label string, v any) {
	pad := strings.Repeat("  ", depth)
	switch x := v.(type) {
	case map[any]any:
		fmt.Fprintf(w, "%s%smap(%d)\n", pad, label, len(x))
		keys := make([]any, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		// Sorted so repeated runs print identically.
		sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j]) })
		for _, k := range keys {
			printNode(w, depth+1, fmt.Sprintf("%v: ", k), x[k])
		}
	case []any:
		fmt.Fprintf(w, "%s%sarray(%d)\n", pad, label, len(x))
		for i, e := range x {
			printNode(w, depth+1, fmt.Sprintf("[%d] ", i), e)
		}
	default:
		fmt.Fprintf(w, "%s%s%s\n", pad, label, scalar(x))
	}
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return fmt.Sprintf("bool %t", x)
	case uint64:
		return fmt.Sprintf("uint %d (0x%X)", x, x)
	case int64:
		return fmt.Sprintf("int %d", x)
	case []byte:
		return fmt.Sprintf("bytes(%d) %X |%s|", len(x), x, printable(x))
	case string:
		s := fmt.Sprintf("text(%d) %q", len(x), x)
		if printable([]byte(x)) != x {
			s += fmt.Sprintf(" raw %X", x)
		}
		return s
	}
	return fmt.Sprintf("%T %v", v, v)
}

// printable replaces bytes outside printable ASCII with '.'.
func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 32 && c < 127 {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
