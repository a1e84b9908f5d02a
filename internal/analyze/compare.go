package analyze

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"canlogconvert/internal/trace"
)

// Difference is one mismatch between two traces. Index is the zero-based
// event position; it is -1 for trace level differences.
type Difference struct {
	Index int
	Field string
	Want  string
	Got   string
}

func (d Difference) String() string {
	if d.Index < 0 {
		return fmt.Sprintf("%s: %s != %s", d.Field, d.Want, d.Got)
	}
	return fmt.Sprintf("event %d %s: %s != %s", d.Index+1, d.Field, d.Want, d.Got)
}

// Compare reports the differences between a and b on the fields a round
// trip through the text format preserves: identifier, data and timestamp.
// Timestamps compare numerically. Events are paired by position; when the
// counts differ only the common prefix is compared. A nil result means the
// traces are equal.
func Compare(a, b *trace.Trace) []Difference {
	var diffs []Difference
	if a.Len() != b.Len() {
		diffs = append(diffs, Difference{
			Index: -1,
			Field: "count",
			Want:  fmt.Sprint(a.Len()),
			Got:   fmt.Sprint(b.Len()),
		})
	}

	n := min(a.Len(), b.Len())
	for i := range n {
		x, y := a.Event(i), b.Event(i)
		if x.Type.HasIdentifier() || y.Type.HasIdentifier() {
			if x.ID != y.ID || x.Extended != y.Extended {
				diffs = append(diffs, Difference{i, "id", eventID(x), eventID(y)})
			}
		}
		if !bytes.Equal(x.Data, y.Data) {
			diffs = append(diffs, Difference{i, "data", hexData(x.Data), hexData(y.Data)})
		}
		if !x.Timestamp.Equal(y.Timestamp) {
			diffs = append(diffs, Difference{i, "timestamp", string(x.Timestamp), string(y.Timestamp)})
		}
	}
	return diffs
}

// PrintDifferences lists diffs under the names of the compared inputs.
func PrintDifferences(w io.Writer, nameA, nameB string, diffs []Difference) {
	fmt.Fprintln(w, "===================================================")
	fmt.Fprintln(w, "📊 TRACE COMPARISON")
	fmt.Fprintln(w, "===================================================")
	fmt.Fprintf(w, "  [1] %s\n  [2] %s\n", nameA, nameB)
	if len(diffs) == 0 {
		fmt.Fprintln(w, "\n✅ Traces are equal")
		fmt.Fprintln(w, "===================================================")
		return
	}

	fmt.Fprintf(w, "\n🔀 Differences (%d):\n", len(diffs))
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, d := range diffs {
		fmt.Fprintf(w, "  %s\n", d)
	}
	fmt.Fprintln(w, "===================================================")
}

func eventID(e trace.BusEvent) string {
	if !e.Type.HasIdentifier() {
		return "-"
	}
	return formatID(e.ID, e.Extended)
}

func hexData(b []byte) string {
	if len(b) == 0 {
		return "(none)"
	}
	return fmt.Sprintf("% X", b)
}
