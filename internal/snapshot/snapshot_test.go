package snapshot

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canlogconvert/internal/trace"
)

func sample(t *testing.T) *trace.Trace {
	t.Helper()
	st, err := trace.ParseStartTime("43474.7738065227")
	require.NoError(t, err)
	h := trace.Header{
		FileVersion:      "2.1",
		StartTime:        st,
		Columns:          trace.DefaultColumns,
		StartTimeComment: "2019-01-09 18:34:16.884.0",
	}
	return trace.New(h, []trace.BusEvent{
		{Number: 1, Timestamp: "123.456", Type: trace.Data, Bus: 1, ID: 0x100, Length: 3, LengthKind: trace.LengthDLC, Data: []byte{0x11, 0x22, 0x33}},
		{Number: 2, Timestamp: "130.002", Type: trace.FDDataBRS, Bus: 2, ID: 0x18FEF100, Extended: true, Direction: trace.TX, Length: 9, LengthKind: trace.LengthDLC, Data: make([]byte, 12)},
		{Number: 3, Timestamp: "140.100", Type: trace.RemoteRequest, Bus: 1, ID: 0x200, Length: 8, LengthKind: trace.LengthDLC, Data: []byte{}},
		{Number: 4, Timestamp: "180.000", Type: trace.Event, Bus: trace.BusUnassociated, LengthKind: trace.LengthDLC, Text: "marker"},
		{Number: 5, Timestamp: "190.500", Type: trace.Data, Bus: 1, ID: 0x18EAFF00, Extended: true, Reserved: 23, HasReserved: true, Length: 3, LengthKind: trace.LengthDLC, Data: []byte{0, 0xEE, 0}},
	})
}

func encode(t *testing.T, tr *trace.Trace) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, tr))
	return buf.Bytes()
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := sample(t)
	back, err := Decode(bytes.NewReader(encode(t, src)))
	require.NoError(t, err)

	if diff := cmp.Diff(src.Header(), back.Header()); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(src.Events(), back.Events(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	src := sample(t)
	assert.Equal(t, encode(t, src), encode(t, src))
}

func TestDecodeRejectsForeignDocument(t *testing.T) {
	data, err := cbor.Marshal(map[string]int{"answer": 42})
	require.NoError(t, err)
	_, err = Decode(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestDecodeRejectsBadEvents(t *testing.T) {
	tests := map[string]struct {
		event   wireEvent
		wantErr string
	}{
		"unknown type":       {wireEvent{Timestamp: "1.0", Type: "XX"}, `unknown message type "XX"`},
		"bus out of range":   {wireEvent{Timestamp: "1.0", Type: "DT", Bus: 17}, "bus 17 out of range"},
		"bad direction":      {wireEvent{Timestamp: "1.0", Type: "DT", Direction: "Up"}, `unknown direction "Up"`},
		"invalid timestamp":  {wireEvent{Timestamp: "1.x", Type: "DT"}, `invalid time offset "1.x"`},
		"exponent timestamp": {wireEvent{Timestamp: "1e3", Type: "DT"}, `invalid time offset "1e3"`},
		"negative timestamp": {wireEvent{Timestamp: "-5", Type: "DT"}, `invalid time offset "-5"`},
		"dash bus on DT":     {wireEvent{Timestamp: "1.0", Type: "DT", Bus: -1}, "only allowed on EV"},
		"status 3 bytes":     {wireEvent{Timestamp: "1.0", Type: "ST", Length: 4, Data: []byte{0, 0, 8}}, "ST message expects 4 data bytes, found 3"},
		"remote with data":   {wireEvent{Timestamp: "1.0", Type: "RR", ID: 0x100, Length: 2, Data: []byte{1, 2}}, "RR message expects 0 data bytes, found 2"},
		"length mismatch":    {wireEvent{Timestamp: "1.0", Type: "DT", ID: 0x100, Length: 8, Data: []byte{1, 2}}, "DT message expects 8 data bytes, found 2"},
		"wide standard ID":   {wireEvent{Timestamp: "1.0", Type: "DT", ID: 0x12345}, "does not fit four hex digits"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			data, err := cbor.Marshal(wireTrace{
				Format:  formatName,
				Version: formatVersion,
				Columns: "O,T,I,d,l,D",
				Events:  []wireEvent{tc.event},
			})
			require.NoError(t, err)
			_, err = Decode(bytes.NewReader(data))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestDecodeRejectsNewerVersion(t *testing.T) {
	data, err := cbor.Marshal(wireTrace{Format: formatName, Version: 99, Columns: "O,T,I,d,l,D"})
	require.NoError(t, err)
	_, err = Decode(bytes.NewReader(data))
	assert.ErrorContains(t, err, "unsupported snapshot version 99")
}

func TestInspect(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Inspect(&out, encode(t, sample(t))))

	s := out.String()
	assert.True(t, strings.HasPrefix(s, "Item 1: trace snapshot v1 ("), s)
	assert.Contains(t, s, "  file version: 2.1\n")
	assert.Contains(t, s, "  start time:   43474.7738065227 (2019-01-09 18:34:16.884.0)\n")
	assert.Contains(t, s, "  columns:      N,O,T,B,I,d,R,L,D\n")
	assert.Contains(t, s, "  events:       5\n")
	assert.Contains(t, s, "    #1 123.456 DT (DATA) bus 1 id 0100 Rx dlc 3 data 11 22 33\n")
	assert.Contains(t, s, "    #2 130.002 FB (FD_DATA_BRS) bus 2 id 18FEF100 Tx dlc 9 data 00 00")
	assert.Contains(t, s, "    #3 140.100 RR (REMOTE_REQUEST) bus 1 id 0200 Rx dlc 8 no data\n")
	assert.Contains(t, s, "    #4 180.000 EV (EVENT) bus - \"marker\"\n")
	assert.Contains(t, s, "    #5 190.500 DT (DATA) bus 1 id 18EAFF00 Rx reserved 23 dlc 3 data 00 EE 00\n")
	assert.NotContains(t, s, "Item 2")
}

func TestInspectBrokenSnapshot(t *testing.T) {
	// Inspect shows events that Decode would reject.
	data, err := cbor.Marshal(wireTrace{
		Format:  formatName,
		Version: formatVersion,
		Columns: "O,T,I,d,l,D",
		Events:  []wireEvent{{Timestamp: "1e3", Type: "ST", Length: 4, Data: []byte{0, 0, 8}}},
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Inspect(&out, data))
	assert.Contains(t, out.String(), "#1 1e3 ST (HW_STATUS_CHANGE) id - len 4 data 00 00 08\n")
}

func TestInspectGenericItems(t *testing.T) {
	a, err := cbor.Marshal("hi")
	require.NoError(t, err)
	b, err := cbor.Marshal(-5)
	require.NoError(t, err)
	c, err := cbor.Marshal(map[string]any{"id": []byte{0x41, 0x00}, "n": 7, "list": []any{true, nil}})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Inspect(&out, bytes.Join([][]byte{a, b, c}, nil)))
	s := out.String()
	assert.Contains(t, s, "Item 1 (3 bytes)\n  text(2) \"hi\"\n")
	assert.Contains(t, s, "Item 2 (1 bytes)\n  int -5\n")
	assert.Contains(t, s, "Item 3 (")
	assert.Contains(t, s, "  map(3)\n")
	assert.Contains(t, s, "    id: bytes(2) 4100 |A.|\n")
	assert.Contains(t, s, "    list: array(2)\n      [0] bool true\n      [1] null\n")
	assert.Contains(t, s, "    n: uint 7 (0x7)\n")
	assert.NotContains(t, s, "trace snapshot")
}

func TestInspectTruncated(t *testing.T) {
	data := encode(t, sample(t))
	err := Inspect(&bytes.Buffer{}, data[:len(data)-1])
	assert.Error(t, err)
}
