// Package snapshot stores traces as CBOR documents so they can be reloaded
// without going through a text format.
package snapshot

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"canlogconvert/internal/trace"
	"canlogconvert/internal/trc"
)

const (
	formatName    = "canlogconvert/trace"
	formatVersion = 1
)

// ErrFormat is returned when a document is not a trace snapshot.
var ErrFormat = errors.New("snapshot: not a trace snapshot")

type wireTrace struct {
	Format           string      `cbor:"format"`
	Version          int         `cbor:"version"`
	FileVersion      string      `cbor:"file_version"`
	StartTime        string      `cbor:"start_time"`
	StartTimeComment string      `cbor:"start_time_comment,omitempty"`
	Columns          string      `cbor:"columns"`
	Events           []wireEvent `cbor:"events"`
}

// Data has no omitempty: nil and empty payloads stay distinct.
type wireEvent struct {
	Number    int    `cbor:"number,omitempty"`
	Timestamp string `cbor:"timestamp"`
	Type      string `cbor:"type"`
	Bus       int8   `cbor:"bus,omitempty"`
	ID        uint32 `cbor:"id,omitempty"`
	Extended  bool   `cbor:"extended,omitempty"`
	Direction string `cbor:"direction,omitempty"`
	Reserved  *uint8 `cbor:"reserved,omitempty"`
	Length    int    `cbor:"length"`
	DLC       bool   `cbor:"dlc,omitempty"`
	Data      []byte `cbor:"data"`
	Text      string `cbor:"text,omitempty"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Encode writes t to w as one CBOR document.
func Encode(w io.Writer, t *trace.Trace) error {
	h := t.Header()
	wt := wireTrace{
		Format:           formatName,
		Version:          formatVersion,
		FileVersion:      h.FileVersion,
		StartTime:        h.StartTime.Raw,
		StartTimeComment: h.StartTimeComment,
		Columns:          h.Columns.String(),
		Events:           make([]wireEvent, 0, t.Len()),
	}
	for _, e := range t.All() {
		we := wireEvent{
			Number:    e.Number,
			Timestamp: string(e.Timestamp),
			Type:      e.Type.Code(),
			Bus:       int8(e.Bus),
			ID:        e.ID,
			Extended:  e.Extended,
			Length:    e.Length,
			DLC:       e.LengthKind == trace.LengthDLC,
			Data:      e.Data,
			Text:      e.Text,
		}
		if e.Type != trace.Event {
			we.Direction = e.Direction.String()
		}
		if e.HasReserved {
			r := e.Reserved
			we.Reserved = &r
		}
		wt.Events = append(wt.Events, we)
	}
	if err := encMode.NewEncoder(w).Encode(wt); err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	return nil
}

// Decode reads one snapshot document from r.
func Decode(r io.Reader) (*trace.Trace, error) {
	var wt wireTrace
	if err := cbor.NewDecoder(r).Decode(&wt); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if wt.Format != formatName {
		return nil, ErrFormat
	}
	if wt.Version != formatVersion {
		return nil, fmt.Errorf("snapshot: unsupported snapshot version %d", wt.Version)
	}

	h := trace.Header{FileVersion: wt.FileVersion, StartTimeComment: wt.StartTimeComment}
	if wt.StartTime != "" {
		st, err := trace.ParseStartTime(wt.StartTime)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		h.StartTime = st
	}
	cols, err := trc.ParseColumnList(wt.Columns)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	h.Columns = cols

	events := make([]trace.BusEvent, 0, len(wt.Events))
	for i, we := range wt.Events {
		e, err := we.event()
		if err != nil {
			return nil, fmt.Errorf("snapshot: event %d: %w", i+1, err)
		}
		events = append(events, e)
	}
	return trace.New(h, events), nil
}

func (we wireEvent) event() (trace.BusEvent, error) {
	mt, ok := trace.MessageTypeFromCode(we.Type)
	if !ok {
		return trace.BusEvent{}, fmt.Errorf("unknown message type %q", we.Type)
	}
	e := trace.BusEvent{
		Number:    we.Number,
		Timestamp: trace.Timestamp(we.Timestamp),
		Type:      mt,
		Bus:       trace.Bus(we.Bus),
		ID:        we.ID,
		Extended:  we.Extended,
		Length:    we.Length,
		Data:      we.Data,
		Text:      we.Text,
	}
	switch we.Direction {
	case "", "Rx":
	case "Tx":
		e.Direction = trace.TX
	default:
		return trace.BusEvent{}, fmt.Errorf("unknown direction %q", we.Direction)
	}
	if we.Reserved != nil {
		e.Reserved, e.HasReserved = *we.Reserved, true
	}
	if we.DLC {
		e.LengthKind = trace.LengthDLC
	}
	// Decoded traces follow the same row rules as loaded ones, so they
	// always render to a file Load reads back.
	if err := trc.ValidateEvent(e); err != nil {
		return trace.BusEvent{}, err
	}
	return e, nil
}
