package trace

import "strings"

// Column is one identifier of the $COLUMNS directive.
type Column byte

const (
	ColumnNumber    Column = 'N' // message number
	ColumnOffset    Column = 'O' // time offset in ms
	ColumnType      Column = 'T' // message type
	ColumnBus       Column = 'B' // bus 1..16
	ColumnID        Column = 'I' // CAN-ID in hex
	ColumnDirection Column = 'd' // Rx or Tx
	ColumnReserved  Column = 'R' // J1939 destination address
	ColumnLength    Column = 'l' // data length in bytes
	ColumnDLC       Column = 'L' // data length code
	ColumnData      Column = 'D' // data bytes
)

// Columns is an ordered column layout, stored as the bare column letters
// ("NOTBIdRLD"). Values are only produced by a layout parser that checks the
// fixed order, so a Columns value is always well formed.
type Columns string

// DefaultColumns is the full version 2.1 layout.
const DefaultColumns Columns = "NOTBIdRLD"

// Has reports whether c is part of the layout.
func (c Columns) Has(col Column) bool {
	return strings.IndexByte(string(c), byte(col)) >= 0
}

// List returns the columns in declared order.
func (c Columns) List() []Column {
	out := make([]Column, len(c))
	for i := 0; i < len(c); i++ {
		out[i] = Column(c[i])
	}
	return out
}

// LengthKind tells whether the layout carries 'l' or 'L'.
func (c Columns) LengthKind() LengthKind {
	if c.Has(ColumnDLC) {
		return LengthDLC
	}
	return LengthBytes
}

// String returns the comma separated form used by the $COLUMNS directive.
func (c Columns) String() string {
	var b strings.Builder
	for i := 0; i < len(c); i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte(c[i])
	}
	return b.String()
}
