// Package trace holds the version independent in-memory form of a CAN bus
// trace: an ordered sequence of bus events plus the header metadata that
// came with them.
package trace

import (
	"bytes"
	"fmt"
)

// Limits of the PEAK trace format.
const (
	MaxBus        = 16
	MaxDataLength = 1785

	// Identifier masks for standard (11-bit) and extended (29-bit) frames.
	SFFMask uint32 = 0x000007FF
	EFFMask uint32 = 0x1FFFFFFF
)

// Direction tells whether a frame was received or transmitted.
type Direction uint8

const (
	RX Direction = iota
	TX
)

// String returns the token used in trace files ("Rx" or "Tx").
func (d Direction) String() string {
	if d == TX {
		return "Tx"
	}
	return "Rx"
}

// MessageType is the kind of row found in the T column.
type MessageType uint8

const (
	Data               MessageType = iota // DT: CAN or J1939 data frame
	FDData                                // FD: CAN FD data frame
	FDDataBRS                             // FB: CAN FD data frame, Bit Rate Switch set
	FDDataESI                             // FE: CAN FD data frame, Error State Indicator set
	FDDataBRSESI                          // BI: CAN FD data frame, BRS and ESI set
	RemoteRequest                         // RR: remote request frame
	HWStatusChange                        // ST: hardware status change
	ErrorCounterChange                    // EC: error counter change
	ErrorFrame                            // ER: error frame
	Event                                 // EV: user-defined text event
)

var messageTypeCodes = [...]string{"DT", "FD", "FB", "FE", "BI", "RR", "ST", "EC", "ER", "EV"}

var messageTypeNames = [...]string{
	"DATA", "FD_DATA", "FD_DATA_BRS", "FD_DATA_ESI", "FD_DATA_BRS_ESI",
	"REMOTE_REQUEST", "HW_STATUS_CHANGE", "ERROR_COUNTER_CHANGE", "ERROR_FRAME", "EVENT",
}

// MessageTypeFromCode maps a two-letter T column code to its MessageType.
func MessageTypeFromCode(code string) (MessageType, bool) {
	for i, c := range messageTypeCodes {
		if c == code {
			return MessageType(i), true
		}
	}
	return 0, false
}

// Code returns the two-letter code written in the T column.
func (t MessageType) Code() string {
	if int(t) < len(messageTypeCodes) {
		return messageTypeCodes[t]
	}
	return "??"
}

func (t MessageType) String() string {
	if int(t) < len(messageTypeNames) {
		return messageTypeNames[t]
	}
	return fmt.Sprintf("MessageType(%d)", uint8(t))
}

// IsDataFrame reports whether rows of this type carry a frame payload.
func (t MessageType) IsDataFrame() bool {
	return t <= FDDataBRSESI
}

// IsFD reports whether the type is one of the CAN FD data frame variants.
func (t MessageType) IsFD() bool {
	return t >= FDData && t <= FDDataBRSESI
}

// HasIdentifier reports whether the I column holds a real CAN identifier.
// ST, EC and ER rows carry '-' instead, EV rows have no I column at all.
func (t MessageType) HasIdentifier() bool {
	return t <= RemoteRequest
}

// FixedDataLength returns the exact payload size for status, error counter
// and error frame rows.
func (t MessageType) FixedDataLength() (int, bool) {
	switch t {
	case HWStatusChange:
		return 4, true
	case ErrorCounterChange:
		return 2, true
	case ErrorFrame:
		return 5, true
	}
	return 0, false
}

// Bus is the B column value. Zero means the trace has no bus column and
// every event belongs to one implicit bus.
type Bus int8

const (
	BusImplicit     Bus = 0
	BusUnassociated Bus = -1 // '-' on EV rows
)

func (b Bus) String() string {
	switch b {
	case BusImplicit:
		return ""
	case BusUnassociated:
		return "-"
	}
	return fmt.Sprintf("%d", int8(b))
}

// LengthKind tells how BusEvent.Length must be read.
type LengthKind uint8

const (
	LengthBytes LengthKind = iota // 'l': number of data bytes
	LengthDLC                     // 'L': Data Length Code
)

// BusEvent is one decoded data line of a trace.
type BusEvent struct {
	Number      int // N column, 0 when absent
	Timestamp   Timestamp
	Type        MessageType
	Bus         Bus
	ID          uint32
	Extended    bool // identifier was written with 8 hex digits
	Direction   Direction
	Reserved    uint8 // J1939 transport destination address
	HasReserved bool
	Length      int
	LengthKind  LengthKind
	Data        []byte
	Text        string // EV rows only
}

// ValidID reports whether the identifier fits the 11-bit or 29-bit range
// implied by its written width. Rows without an identifier are always valid.
func (e BusEvent) ValidID() bool {
	if !e.Type.HasIdentifier() {
		return true
	}
	if e.Extended {
		return e.ID&^EFFMask == 0
	}
	return e.ID&^SFFMask == 0
}

// clone returns a copy that shares no memory with e.
func (e BusEvent) clone() BusEvent {
	e.Data = bytes.Clone(e.Data)
	return e
}
