package analyze

import (
	"fmt"
	"io"
	"strings"

	"canlogconvert/internal/trace"
)

// printEvent prints one event line with its metadata
func printEvent(w io.Writer, e trace.BusEvent) {
	if !e.Type.HasIdentifier() {
		if e.Type == trace.Event {
			fmt.Fprintf(w, "📍 Bus:%s [%s] %q\n", busLabel(e.Bus), e.Type, e.Text)
			return
		}
		fmt.Fprintf(w, "📍 Bus:%s [%s] %s Data[%d]: %X\n",
			busLabel(e.Bus), e.Type, e.Direction, len(e.Data), e.Data)
		return
	}
	idType := "Std"
	if e.Extended {
		idType = "Ext"
	}
	fmt.Fprintf(w, "📍 ID:0x%s(%s) Bus:%s [%s] %s Data[%d]: %X\n",
		formatID(e.ID, e.Extended), idType, busLabel(e.Bus), e.Type, e.Direction, len(e.Data), e.Data)
}

// PrintGrouped prints events grouped by identifier. Groups are sorted by
// identifier; inside a group events keep their trace order. Rows without an
// identifier are listed last.
func PrintGrouped(w io.Writer, tr *trace.Trace) {
	grouped := make(map[idKey][]seqEvent)
	var other []seqEvent
	for i, e := range tr.All() {
		se := seqEvent{seq: i + 1, BusEvent: e}
		if !e.Type.HasIdentifier() {
			other = append(other, se)
			continue
		}
		k := idKey{e.ID, e.Extended}
		grouped[k] = append(grouped[k], se)
	}

	var ids []idKey
	for id := range grouped {
		ids = append(ids, id)
	}
	sortIDs(ids)

	fmt.Fprintln(w, "===================================================")
	fmt.Fprintln(w, "📋 EVENTS GROUPED BY CAN ID")
	fmt.Fprintln(w, "===================================================")

	for _, id := range ids {
		events := grouped[id]
		fmt.Fprintf(w, "\n🔖 CAN ID: 0x%s (%d frames)\n", id, len(events))
		fmt.Fprintln(w, strings.Repeat("-", 60))
		printGroup(w, events)
	}
	if len(other) > 0 {
		fmt.Fprintf(w, "\n🔖 No identifier (%d events)\n", len(other))
		fmt.Fprintln(w, strings.Repeat("-", 60))
		printGroup(w, other)
	}

	fmt.Fprintln(w, "\n===================================================")
}

type seqEvent struct {
	seq int
	trace.BusEvent
}

func printGroup(w io.Writer, events []seqEvent) {
	for _, e := range events {
		fmt.Fprintf(w, "  [%s #%d] ", e.Timestamp, e.seq)
		printEvent(w, e.BusEvent)
	}
}
