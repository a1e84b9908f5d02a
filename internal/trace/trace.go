package trace

import (
	"iter"
	"slices"
)

// Header is the trace level metadata read from the directive lines.
type Header struct {
	FileVersion string
	StartTime   StartTime
	Columns     Columns

	// StartTimeComment is the "; Start time:" echo when the file had one.
	// It is informational only; StartTime is authoritative.
	StartTimeComment string
}

// Trace is a complete, immutable trace. Events keep the order in which
// they appeared in the source.
type Trace struct {
	header Header
	events []BusEvent
}

// New builds a Trace from a header and events in source order. The events
// are copied, later changes to the argument do not affect the Trace.
func New(header Header, events []BusEvent) *Trace {
	own := make([]BusEvent, len(events))
	for i, e := range events {
		own[i] = e.clone()
	}
	return &Trace{header: header, events: own}
}

func (t *Trace) Header() Header {
	return t.header
}

// Len returns the number of events.
func (t *Trace) Len() int {
	return len(t.events)
}

// Event returns a copy of the i-th event.
func (t *Trace) Event(i int) BusEvent {
	return t.events[i].clone()
}

// Events returns a copy of all events in order.
func (t *Trace) Events() []BusEvent {
	out := make([]BusEvent, len(t.events))
	for i, e := range t.events {
		out[i] = e.clone()
	}
	return out
}

// All iterates over the events in order without copying the slice.
func (t *Trace) All() iter.Seq2[int, BusEvent] {
	return func(yield func(int, BusEvent) bool) {
		for i, e := range t.events {
			if !yield(i, e.clone()) {
				return
			}
		}
	}
}

// Buses returns the distinct buses seen in the trace, sorted.
// BusUnassociated is not reported.
func (t *Trace) Buses() []Bus {
	var buses []Bus
	for _, e := range t.events {
		if e.Bus == BusUnassociated || slices.Contains(buses, e.Bus) {
			continue
		}
		buses = append(buses, e.Bus)
	}
	slices.Sort(buses)
	return buses
}
