// Package analyze computes statistics over a loaded trace and compares
// traces with each other.
package analyze

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"canlogconvert/internal/trace"
)

// Count is one bucket of a histogram.
type Count struct {
	Key   string `yaml:"key"`
	Count int    `yaml:"count"`
}

// ErrorCounters holds the last error counter change seen on a bus.
type ErrorCounters struct {
	Bus       string          `yaml:"bus"`
	Timestamp trace.Timestamp `yaml:"timestamp"`
	RX        uint8           `yaml:"rx"`
	TX        uint8           `yaml:"tx"`
}

// Summary describes a trace at a glance.
type Summary struct {
	FileVersion string          `yaml:"file_version"`
	StartTime   string          `yaml:"start_time,omitempty"`
	Events      int             `yaml:"events"`
	First       trace.Timestamp `yaml:"first,omitempty"`
	Last        trace.Timestamp `yaml:"last,omitempty"`
	Duration    decimal.Decimal `yaml:"-"` // milliseconds
	DurationStr string          `yaml:"duration,omitempty"`

	ByType []Count `yaml:"by_type,omitempty"`
	ByBus  []Count `yaml:"by_bus,omitempty"`
	ByID   []Count `yaml:"by_id,omitempty"`

	ErrorCounters []ErrorCounters `yaml:"error_counters,omitempty"`
	StatusChanges int             `yaml:"status_changes"`
	ErrorFrames   int             `yaml:"error_frames"`
	// Data frames whose payload is all zero, usually keep-alives.
	ZeroPayloads int `yaml:"zero_payloads"`
	// Identifiers wider than their written 11 or 29 bits allow.
	InvalidIDs int `yaml:"invalid_ids"`
}

// Summarize walks the trace once and collects its statistics.
func Summarize(tr *trace.Trace) Summary {
	h := tr.Header()
	s := Summary{FileVersion: h.FileVersion, Events: tr.Len()}
	if !h.StartTime.Time.IsZero() {
		s.StartTime = h.StartTime.Comment()
	}

	var (
		byType  = make(map[trace.MessageType]int)
		byBus   = make(map[trace.Bus]int)
		byID    = make(map[idKey]int)
		counter = make(map[trace.Bus]ErrorCounters)

		minTS, maxTS decimal.Decimal
		seen         bool
	)
	for _, e := range tr.All() {
		byType[e.Type]++
		byBus[e.Bus]++
		if e.Type.HasIdentifier() {
			byID[idKey{e.ID, e.Extended}]++
			if !e.ValidID() {
				s.InvalidIDs++
			}
		}

		switch e.Type {
		case trace.HWStatusChange:
			s.StatusChanges++
		case trace.ErrorFrame:
			s.ErrorFrames++
		case trace.ErrorCounterChange:
			if len(e.Data) >= 2 {
				counter[e.Bus] = ErrorCounters{Bus: busLabel(e.Bus), Timestamp: e.Timestamp, RX: e.Data[0], TX: e.Data[1]}
			}
		}
		if isZeroPayload(e) {
			s.ZeroPayloads++
		}

		ts, err := e.Timestamp.Decimal()
		if err != nil {
			continue
		}
		if !seen || ts.LessThan(minTS) {
			minTS, s.First = ts, e.Timestamp
		}
		if !seen || ts.GreaterThan(maxTS) {
			maxTS, s.Last = ts, e.Timestamp
		}
		seen = true
	}
	if seen {
		s.Duration = maxTS.Sub(minTS)
		s.DurationStr = formatDuration(s.Duration)
	}

	for mt := trace.Data; mt <= trace.Event; mt++ {
		if n := byType[mt]; n > 0 {
			s.ByType = append(s.ByType, Count{Key: mt.Code(), Count: n})
		}
	}

	buses := make([]trace.Bus, 0, len(byBus))
	for b := range byBus {
		buses = append(buses, b)
	}
	slices.Sort(buses)
	for _, b := range buses {
		s.ByBus = append(s.ByBus, Count{Key: busLabel(b), Count: byBus[b]})
		if ec, ok := counter[b]; ok {
			s.ErrorCounters = append(s.ErrorCounters, ec)
		}
	}

	ids := make([]idKey, 0, len(byID))
	for k := range byID {
		ids = append(ids, k)
	}
	sortIDs(ids)
	for _, k := range ids {
		s.ByID = append(s.ByID, Count{Key: k.String(), Count: byID[k]})
	}
	return s
}

// WriteText prints the summary for a terminal.
func (s Summary) WriteText(w io.Writer) error {
	var b strings.Builder
	b.WriteString("===================================================\n")
	b.WriteString("📊 Trace Summary\n")
	b.WriteString("===================================================\n")
	fmt.Fprintf(&b, "   File version: %s\n", s.FileVersion)
	if s.StartTime != "" {
		fmt.Fprintf(&b, "   Start time: %s\n", s.StartTime)
	}
	fmt.Fprintf(&b, "   Events: %d\n", s.Events)
	if s.DurationStr != "" {
		fmt.Fprintf(&b, "   Duration: %s (%s ms)\n", s.DurationStr, s.Duration.String())
		fmt.Fprintf(&b, "   From: %s to %s ms\n", s.First, s.Last)
	}
	fmt.Fprintf(&b, "   Status changes: %d\n", s.StatusChanges)
	fmt.Fprintf(&b, "   Error frames: %d\n", s.ErrorFrames)
	fmt.Fprintf(&b, "   Zero payload frames: %d\n", s.ZeroPayloads)
	if s.InvalidIDs > 0 {
		fmt.Fprintf(&b, "   ⚠️ Identifiers out of range: %d\n", s.InvalidIDs)
	}

	writeCounts(&b, "By type", s.ByType)
	writeCounts(&b, "By bus", s.ByBus)
	writeCounts(&b, "By identifier", s.ByID)

	if len(s.ErrorCounters) > 0 {
		b.WriteString("\nError counters (latest):\n")
		for _, ec := range s.ErrorCounters {
			fmt.Fprintf(&b, "  Bus %s at %s: Rx %d Tx %d\n", ec.Bus, ec.Timestamp, ec.RX, ec.TX)
		}
	}
	b.WriteString("===================================================\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteYAML prints the summary as a YAML document.
func (s Summary) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return enc.Close()
}

func writeCounts(b *strings.Builder, title string, counts []Count) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, c := range counts {
		fmt.Fprintf(b, "  %-10s %d\n", c.Key, c.Count)
	}
}

type idKey struct {
	id       uint32
	extended bool
}

// sortIDs orders identifiers numerically, standard before extended.
func sortIDs(ids []idKey) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].id == ids[j].id {
			return !ids[i].extended && ids[j].extended
		}
		return ids[i].id < ids[j].id
	})
}

func (k idKey) String() string {
	return formatID(k.id, k.extended)
}

func formatID(id uint32, extended bool) string {
	if extended {
		return fmt.Sprintf("%08X", id)
	}
	return fmt.Sprintf("%04X", id)
}

func busLabel(b trace.Bus) string {
	switch b {
	case trace.BusImplicit:
		return "1"
	case trace.BusUnassociated:
		return "-"
	}
	return b.String()
}

// isZeroPayload reports data frames that carry only zero bytes.
func isZeroPayload(e trace.BusEvent) bool {
	if !e.Type.IsDataFrame() || len(e.Data) == 0 {
		return false
	}
	for _, b := range e.Data {
		if b != 0 {
			return false
		}
	}
	return true
}

var (
	thousand = decimal.NewFromInt(1000)
	sixty    = decimal.NewFromInt(60)
)

// formatDuration formats milliseconds to a human-readable string
func formatDuration(ms decimal.Decimal) string {
	if ms.LessThan(thousand) {
		return ms.StringFixed(2) + " ms"
	}

	seconds := ms.Div(thousand)
	if seconds.LessThan(sixty) {
		return seconds.StringFixed(2) + " sec"
	}

	totalSecs := seconds.IntPart()
	minutes := totalSecs / 60
	if minutes < 60 {
		return fmt.Sprintf("%d min %d sec", minutes, totalSecs%60)
	}
	return fmt.Sprintf("%d hour %d min", minutes/60, minutes%60)
}
