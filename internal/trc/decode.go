package trc

import (
	"errors"
	"fmt"

	"canlogconvert/internal/trace"
)

// decodeEvent turns the raw fields of a data line into a BusEvent. The
// message type decides how the identifier and data columns are read.
func decodeEvent(dl dataLine, cols trace.Columns, lineNo int, raw string) (trace.BusEvent, error) {
	bodyErr := func(format string, args ...any) error {
		return &BodyParseError{Line: lineNo, Text: raw, Reason: fmt.Sprintf(format, args...)}
	}

	mt, _ := trace.MessageTypeFromCode(dl.typeCode)
	ev := trace.BusEvent{
		Timestamp:  trace.Timestamp(dl.offset),
		Type:       mt,
		LengthKind: cols.LengthKind(),
	}

	if cols.Has(trace.ColumnNumber) {
		n, err := parseCount("message number", dl.number)
		if err != nil {
			return ev, bodyErr("%v", err)
		}
		ev.Number = n
	}

	if cols.Has(trace.ColumnBus) {
		bus, err := parseBus(dl.bus)
		if err != nil {
			return ev, bodyErr("%v", err)
		}
		ev.Bus = bus
	}

	if mt == trace.Event {
		ev.Text = dl.text
		return ev, checked(ev, lineNo, raw)
	}

	switch {
	case mt.HasIdentifier() && dl.id == "-":
		return ev, bodyErr("%s message requires a CAN-ID", mt.Code())
	case mt.HasIdentifier():
		id, ext, err := parseID(dl.id)
		if err != nil {
			return ev, bodyErr("%v", err)
		}
		ev.ID, ev.Extended = id, ext
	case dl.id != "-":
		return ev, bodyErr("%s message takes '-' as CAN-ID, found %q", mt.Code(), dl.id)
	}

	dir, ok := parseDirection(dl.dir)
	if !ok {
		return ev, &UnknownDirectionError{Line: lineNo, Token: dl.dir}
	}
	ev.Direction = dir

	if cols.Has(trace.ColumnReserved) {
		r, has, err := parseReserved(dl.reserved)
		if err != nil {
			return ev, bodyErr("%v", err)
		}
		ev.Reserved, ev.HasReserved = r, has
	}

	length, err := parseCount("data length", dl.length)
	if err != nil {
		return ev, bodyErr("%v", err)
	}
	ev.Length = length

	data, err := parseData(dl.data)
	if err != nil {
		return ev, bodyErr("%v", err)
	}
	ev.Data = data

	return ev, checked(ev, lineNo, raw)
}

// checked runs ValidateEvent on a decoded row and ties any failure to the
// row's line.
func checked(ev trace.BusEvent, lineNo int, raw string) error {
	err := ValidateEvent(ev)
	if err == nil {
		return nil
	}
	var mismatch *MessageBodyMismatchError
	if errors.As(err, &mismatch) {
		mismatch.Line = lineNo
		return mismatch
	}
	return &BodyParseError{Line: lineNo, Text: raw, Reason: err.Error()}
}

var errUnassociatedBus = errors.New("bus '-' is only allowed on EV rows")

// ValidateEvent checks ev against the row rules Load enforces, so a trace
// built from another source renders to a file Load accepts. Payload
// mismatches are reported as *MessageBodyMismatchError without a line number.
func ValidateEvent(ev trace.BusEvent) error {
	if !isOffset(string(ev.Timestamp)) {
		return fmt.Errorf("invalid time offset %q", ev.Timestamp)
	}
	if ev.Bus < trace.BusUnassociated || ev.Bus > trace.MaxBus {
		return fmt.Errorf("bus %d out of range", ev.Bus)
	}
	if ev.Type == trace.Event {
		return nil
	}
	if ev.Bus == trace.BusUnassociated {
		return errUnassociatedBus
	}
	if ev.Type.HasIdentifier() && !ev.Extended && ev.ID > 0xFFFF {
		return fmt.Errorf("standard CAN-ID %X does not fit four hex digits", ev.ID)
	}
	if ev.Length < 0 {
		return fmt.Errorf("negative data length %d", ev.Length)
	}

	expected, err := expectedDataLength(ev)
	if err != nil {
		return err
	}
	if len(ev.Data) != expected {
		return &MessageBodyMismatchError{Type: ev.Type, Expected: expected, Actual: len(ev.Data)}
	}
	return nil
}

// expectedDataLength returns how many data bytes a row of ev's type and
// length must carry.
func expectedDataLength(ev trace.BusEvent) (int, error) {
	if n, ok := ev.Type.FixedDataLength(); ok {
		return n, nil
	}
	if ev.Type == trace.RemoteRequest {
		return 0, nil
	}
	n, ok := ev.PayloadLength()
	if !ok {
		return 0, fmt.Errorf("data length %d out of range for %s message", ev.Length, ev.Type.Code())
	}
	return n, nil
}
