package trc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canlogconvert/internal/trace"
)

func render(t *testing.T, cfg RendererConfig, tr *trace.Trace) string {
	t.Helper()
	r, err := NewRenderer(cfg)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, tr))
	return buf.String()
}

func TestRenderRoundTrip(t *testing.T) {
	src, err := Load(sampleTrace)
	require.NoError(t, err)

	out := render(t, RendererConfig{Comment: "converted\nsecond line"}, src)
	assert.True(t, strings.HasPrefix(out, fullHeader), out)
	assert.Contains(t, out, ";   Start time: 2019-01-09 18:34:16.884.0\n")
	assert.Contains(t, out, ";   converted\n;   second line\n")
	assert.Contains(t, out, "      1       123.456 DT 1  0100     Rx - 3    11 22 33\n")
	assert.Contains(t, out, "      7       180.000 EV -  User marker: engine start\n")

	back, err := Load(out)
	require.NoError(t, err, out)
	require.Equal(t, src.Len(), back.Len())
	for i := range src.Len() {
		a, b := src.Event(i), back.Event(i)
		assert.Equal(t, a.ID, b.ID, "event %d", i)
		assert.Equal(t, a.Data, b.Data, "event %d", i)
		assert.Equal(t, a.Timestamp, b.Timestamp, "event %d", i)
	}
	assert.Equal(t, src.Events(), back.Events())
	assert.Equal(t, src.Header().StartTime, back.Header().StartTime)
}

func TestRenderEmptyTrace(t *testing.T) {
	src, err := Load(fullHeader)
	require.NoError(t, err)

	back, err := Load(render(t, RendererConfig{}, src))
	require.NoError(t, err)
	assert.Equal(t, 0, back.Len())
	assert.Equal(t, "43474.7738065227", back.Header().StartTime.Raw)
}

func TestRenderChangesLayout(t *testing.T) {
	src, err := Load(sampleTrace)
	require.NoError(t, err)

	out := render(t, RendererConfig{Columns: "OTIdlD"}, src)
	assert.Contains(t, out, ";$COLUMNS=O,T,I,d,l,D\n")
	// FD code 9 becomes 12 data bytes.
	assert.Contains(t, out, "      130.002 FB 18FEF100 Tx 12   00 01 02")

	back, err := Load(out)
	require.NoError(t, err, out)
	require.Equal(t, src.Len(), back.Len())
	for i := range src.Len() {
		assert.Equal(t, src.Event(i).Data, back.Event(i).Data)
		assert.Equal(t, trace.LengthBytes, back.Event(i).LengthKind)
	}
	assert.Equal(t, "User marker: engine start", back.Event(6).Text)

	// And back to codes.
	again, err := Load(render(t, RendererConfig{Columns: trace.DefaultColumns}, back))
	require.NoError(t, err)
	assert.Equal(t, 9, again.Event(1).Length)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, numbers(again))
}

func TestRenderEventTextWithLeadingComma(t *testing.T) {
	st, err := trace.ParseStartTime("45000.5")
	require.NoError(t, err)
	src := trace.New(trace.Header{FileVersion: "2.1", StartTime: st, Columns: trace.DefaultColumns}, []trace.BusEvent{
		{Number: 1, Timestamp: "1.0", Type: trace.Event, Bus: trace.BusUnassociated, Text: ", x"},
	})

	for _, cols := range []trace.Columns{trace.DefaultColumns, "OTIdlD"} {
		out := render(t, RendererConfig{Columns: cols}, src)
		back, err := Load(out)
		require.NoError(t, err, out)
		assert.Equal(t, ", x", back.Event(0).Text, out)
	}
}

func TestRenderRejectsUnencodableLength(t *testing.T) {
	tr := trace.New(trace.Header{Columns: "OTIdlD"}, []trace.BusEvent{
		{Timestamp: "1.0", Type: trace.FDData, Length: 13, LengthKind: trace.LengthBytes, Data: make([]byte, 13)},
	})
	r, err := NewRenderer(RendererConfig{Columns: trace.DefaultColumns})
	require.NoError(t, err)
	err = r.Render(&bytes.Buffer{}, tr)
	assert.ErrorContains(t, err, "no data length code")
}

func TestNewRendererValidatesColumns(t *testing.T) {
	_, err := NewRenderer(RendererConfig{Columns: "NOTBIdRlLD"})
	assert.Error(t, err)
}

func numbers(tr *trace.Trace) []int {
	var out []int
	for _, e := range tr.All() {
		out = append(out, e.Number)
	}
	return out
}
