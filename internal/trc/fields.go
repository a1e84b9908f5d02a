package trc

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"canlogconvert/internal/trace"
)

// parseID decodes a 4 or 8 digit hex CAN-ID. Width above 4 digits marks an
// extended identifier.
func parseID(s string) (uint32, bool, error) {
	id, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, false, fmt.Errorf("invalid CAN-ID %q: %w", s, err)
	}
	return uint32(id), len(s) > 4, nil
}

// parseData decodes space separated hex byte pairs, e.g. "11 22 33".
func parseData(tokens []string) ([]byte, error) {
	if len(tokens) == 0 {
		return []byte{}, nil
	}
	data, err := hex.DecodeString(strings.Join(tokens, ""))
	if err != nil {
		return nil, fmt.Errorf("invalid data bytes: %w", err)
	}
	return data, nil
}

// parseDirection maps "Rx" and "Tx"; anything else is rejected.
func parseDirection(s string) (trace.Direction, bool) {
	switch s {
	case "Rx":
		return trace.RX, true
	case "Tx":
		return trace.TX, true
	}
	return 0, false
}

// parseBus decodes the B column. '-' marks an event not tied to a bus.
func parseBus(s string) (trace.Bus, error) {
	if s == "-" {
		return trace.BusUnassociated, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > trace.MaxBus {
		return 0, fmt.Errorf("invalid bus %q", s)
	}
	return trace.Bus(n), nil
}

// parseReserved decodes the R column: '-' or a J1939 destination address.
func parseReserved(s string) (uint8, bool, error) {
	if s == "-" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, false, fmt.Errorf("invalid reserved field %q: %w", s, err)
	}
	return uint8(n), true, nil
}

// parseCount decodes a non-negative decimal field such as N, l or L.
func parseCount(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}
