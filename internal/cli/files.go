package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"canlogconvert/internal/ctxlog"
	"canlogconvert/internal/snapshot"
	"canlogconvert/internal/trace"
	"canlogconvert/internal/trc"
)

// File formats known to the converter.
const (
	formatTRC  = "trc"
	formatCBOR = "cbor"
)

// Streams are the standard streams a command works with.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// resolveFormat picks the format of path from an explicit override or from
// the file extension. "-" (a standard stream) needs the override.
func resolveFormat(path, override string) (string, error) {
	if override != "" {
		switch override {
		case formatTRC, formatCBOR:
			return override, nil
		}
		return "", usageError("unsupported format %q: must be 'trc' or 'cbor'", override)
	}
	if path == "-" {
		return "", usageError("reading or writing a standard stream needs -from or -to")
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".trc":
		return formatTRC, nil
	case ".cbor":
		return formatCBOR, nil
	default:
		return "", usageError("unsupported file extension %q for %s", ext, path)
	}
}

func readInput(path string, s Streams) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(s.In)
	}
	return os.ReadFile(path)
}

// loadTrace reads path in the given format.
func loadTrace(ctx context.Context, path, format string, s Streams) (*trace.Trace, error) {
	logger := ctxlog.FromContext(ctx).With("input", path, "format", format)
	logger.Debug("Loading trace")

	data, err := readInput(path, s)
	if err != nil {
		return nil, failure(fmt.Errorf("read %s: %w", path, err))
	}

	var tr *trace.Trace
	switch format {
	case formatCBOR:
		tr, err = snapshot.Decode(bytes.NewReader(data))
	default:
		tr, err = trc.Load(string(data))
	}
	if err != nil {
		return nil, failure(fmt.Errorf("load %s: %w", path, err))
	}
	logger.Debug("Trace loaded", "events", tr.Len(), "version", tr.Header().FileVersion)
	return tr, nil
}

// saveTrace writes tr to path in the given format. The output is rendered
// in memory first so a failed render never leaves a partial file behind.
func saveTrace(ctx context.Context, tr *trace.Trace, path, format string, r *trc.Renderer, s Streams) error {
	logger := ctxlog.FromContext(ctx).With("output", path, "format", format)
	logger.Debug("Writing trace")

	var buf bytes.Buffer
	var err error
	switch format {
	case formatCBOR:
		err = snapshot.Encode(&buf, tr)
	default:
		err = r.Render(&buf, tr)
	}
	if err != nil {
		return failure(fmt.Errorf("write %s: %w", path, err))
	}

	size := buf.Len()
	if path == "-" {
		_, err = buf.WriteTo(s.Out)
	} else {
		err = os.WriteFile(path, buf.Bytes(), 0644)
	}
	if err != nil {
		return failure(fmt.Errorf("write %s: %w", path, err))
	}
	logger.Debug("Trace written", "bytes", size)
	return nil
}
