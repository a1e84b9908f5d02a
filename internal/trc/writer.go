package trc

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"canlogconvert/internal/trace"
)

const trcTemplate = `;$FILEVERSION={{.Version}}
;$STARTTIME={{.StartTime.Raw}}
;$COLUMNS={{.Columns}}
;
;   Start time: {{.StartTime.Comment}}
{{range .Comments}};   {{.}}
{{end}};
{{range .Legend}};   {{.}}
{{end}};-------------------------------------------------------------------------------
{{range .Rows}}{{.}}
{{end}}`

// RendererConfig selects the layout of rendered files.
type RendererConfig struct {
	// Columns is the target layout. Empty keeps the layout of each trace.
	Columns trace.Columns
	// Comment is written as comment lines below the start time.
	Comment string
}

// Renderer writes traces as version 2.1 TRC files. It owns its template, so
// renderers with different settings can be used side by side.
type Renderer struct {
	cfg  RendererConfig
	tmpl *template.Template
}

// NewRenderer checks cfg and compiles the file template.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if cfg.Columns != "" {
		if _, err := ParseColumnList(cfg.Columns.String()); err != nil {
			return nil, fmt.Errorf("renderer: %w", err)
		}
	}
	tmpl, err := template.New("trc").Parse(trcTemplate)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	return &Renderer{cfg: cfg, tmpl: tmpl}, nil
}

type fileView struct {
	Version   string
	StartTime trace.StartTime
	Columns   string
	Comments  []string
	Legend    []string
	Rows      []string
}

// Render writes t to w. Start time and event timestamps are copied verbatim.
func (r *Renderer) Render(w io.Writer, t *trace.Trace) error {
	h := t.Header()
	cols := r.cfg.Columns
	if cols == "" {
		cols = h.Columns
	}

	view := fileView{
		Version:   SupportedVersion,
		StartTime: h.StartTime,
		Columns:   cols.String(),
		Rows:      make([]string, 0, t.Len()),
	}
	if r.cfg.Comment != "" {
		view.Comments = strings.Split(strings.TrimRight(r.cfg.Comment, "\n"), "\n")
	}
	for _, c := range cols.List() {
		view.Legend = append(view.Legend, fmt.Sprintf("%c: %s", byte(c), columnName(c)))
	}

	hasNumbers := h.Columns.Has(trace.ColumnNumber)
	for i, ev := range t.All() {
		if !hasNumbers {
			ev.Number = i + 1
		}
		row, err := formatRow(ev, cols)
		if err != nil {
			return fmt.Errorf("render event %d: %w", i+1, err)
		}
		view.Rows = append(view.Rows, row)
	}

	return r.tmpl.Execute(w, view)
}

// formatRow writes one data line in the given layout.
func formatRow(ev trace.BusEvent, cols trace.Columns) (string, error) {
	var fields []string
	for _, c := range cols.List() {
		switch c {
		case trace.ColumnNumber:
			fields = append(fields, fmt.Sprintf("%7d", ev.Number))
		case trace.ColumnOffset:
			fields = append(fields, fmt.Sprintf("%13s", string(ev.Timestamp)))
		case trace.ColumnType:
			fields = append(fields, ev.Type.Code())
		case trace.ColumnBus:
			fields = append(fields, fmt.Sprintf("%-2s", formatBus(ev.Bus)))
		case trace.ColumnID:
			fields = append(fields, fmt.Sprintf("%-8s", formatID(ev)))
		case trace.ColumnDirection:
			fields = append(fields, ev.Direction.String())
		case trace.ColumnReserved:
			if ev.HasReserved {
				fields = append(fields, fmt.Sprintf("%d", ev.Reserved))
			} else {
				fields = append(fields, "-")
			}
		case trace.ColumnLength, trace.ColumnDLC:
			n, err := convertLength(ev, cols.LengthKind())
			if err != nil {
				return "", err
			}
			fields = append(fields, fmt.Sprintf("%-4d", n))
		case trace.ColumnData:
			for _, b := range ev.Data {
				fields = append(fields, fmt.Sprintf("%02X", b))
			}
		}

		if ev.Type == trace.Event && (c == trace.ColumnBus || c == trace.ColumnType && !cols.Has(trace.ColumnBus)) {
			fields = append(fields, ev.Text)
			break
		}
	}
	return strings.TrimRight(strings.Join(fields, " "), " "), nil
}

func formatBus(b trace.Bus) string {
	if b == trace.BusImplicit {
		return "1"
	}
	return b.String()
}

func formatID(ev trace.BusEvent) string {
	switch {
	case !ev.Type.HasIdentifier():
		return "-"
	case ev.Extended:
		return fmt.Sprintf("%08X", ev.ID)
	}
	return fmt.Sprintf("%04X", ev.ID)
}

// convertLength expresses the event's length field in the target kind.
func convertLength(ev trace.BusEvent, target trace.LengthKind) (int, error) {
	if target == ev.LengthKind {
		return ev.Length, nil
	}
	fd := ev.Type.IsFD()
	if target == trace.LengthBytes {
		if n, ok := trace.DLCToLength(ev.Length, fd); ok {
			return n, nil
		}
		return 0, fmt.Errorf("data length code %d has no byte count", ev.Length)
	}
	if dlc, ok := trace.LengthToDLC(ev.Length, fd); ok {
		return dlc, nil
	}
	return 0, fmt.Errorf("data length %d has no data length code", ev.Length)
}
