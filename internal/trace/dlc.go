package trace

// fdLengths maps a CAN FD data length code to its payload size.
var fdLengths = [16]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// DLCToLength converts a data length code to a byte count. Classic frames
// above 8 are J1939 payloads whose code already is the byte count.
func DLCToLength(dlc int, fd bool) (int, bool) {
	switch {
	case dlc < 0:
		return 0, false
	case fd:
		if dlc >= len(fdLengths) {
			return 0, false
		}
		return fdLengths[dlc], true
	case dlc > MaxDataLength:
		return 0, false
	}
	return dlc, true
}

// LengthToDLC is the inverse of DLCToLength. CAN FD sizes that have no exact
// code fail.
func LengthToDLC(n int, fd bool) (int, bool) {
	switch {
	case n < 0:
		return 0, false
	case fd:
		for dlc, l := range fdLengths {
			if l == n {
				return dlc, true
			}
		}
		return 0, false
	case n > MaxDataLength:
		return 0, false
	}
	return n, true
}

// PayloadLength returns the number of data bytes the event's length field
// announces.
func (e BusEvent) PayloadLength() (int, bool) {
	if e.LengthKind == LengthDLC {
		return DLCToLength(e.Length, e.Type.IsFD())
	}
	if e.Length < 0 || e.Length > MaxDataLength {
		return 0, false
	}
	return e.Length, true
}
