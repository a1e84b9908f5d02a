package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canlogconvert/internal/ctxlog"
	"canlogconvert/internal/trc"
)

const sampleTRC = `;$FILEVERSION=2.1
;$STARTTIME=43474.7738065227
;$COLUMNS=N,O,T,B,I,d,R,L,D
      1       123.456 DT 1  0100     Rx -  3    11 22 33
      2       130.002 FB 2  18FEF100 Tx -  9    00 01 02 03 04 05 06 07 08 09 0A 0B
      3       150.000 ST 1  -        Rx -  4    00 00 00 08
      4       180.000 EV -  marker
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// execute parses args and runs the command with captured streams.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	opts, shouldExit, err := Parse(args, &stderr)
	if err != nil || shouldExit {
		return stderr.String(), err
	}
	ctx := ctxlog.WithLogger(context.Background(), NewLogger(opts.Config.LogLevel, opts.Config.LogFormat, &stderr))
	err = Execute(ctx, opts, Streams{In: strings.NewReader(stdin), Out: &stdout, Err: &stderr})
	return stdout.String(), err
}

func requireExitCode(t *testing.T, err error, code int) *ExitError {
	t.Helper()
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, code, exitErr.Code, exitErr.Message)
	return exitErr
}

func TestParse(t *testing.T) {
	t.Run("help", func(t *testing.T) {
		var out bytes.Buffer
		opts, shouldExit, err := Parse([]string{"-h"}, &out)
		require.NoError(t, err)
		assert.True(t, shouldExit)
		assert.Nil(t, opts)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("version", func(t *testing.T) {
		var out bytes.Buffer
		_, shouldExit, err := Parse([]string{"-version"}, &out)
		require.NoError(t, err)
		assert.True(t, shouldExit)
		assert.Equal(t, "canlogconvert dev\n", out.String())
	})

	t.Run("no command", func(t *testing.T) {
		_, _, err := Parse(nil, &bytes.Buffer{})
		requireExitCode(t, err, ExitUsage)
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, _, err := Parse([]string{"-nope", "info"}, &bytes.Buffer{})
		e := requireExitCode(t, err, ExitUsage)
		assert.Contains(t, e.Message, "flag provided but not defined: -nope")
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, _, err := Parse([]string{"-log-level", "loud", "info"}, &bytes.Buffer{})
		requireExitCode(t, err, ExitUsage)
	})

	t.Run("command and args", func(t *testing.T) {
		opts, _, err := Parse([]string{"-debug", "compare", "a.trc", "b.trc"}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.True(t, opts.Debug)
		assert.Equal(t, "compare", opts.Command)
		assert.Equal(t, []string{"a.trc", "b.trc"}, opts.Args)
	})
}

func TestParseConfigMerge(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.yaml", "log_level: debug\nlog_format: json\nwriter:\n  comment: bench\n")

	opts, _, err := Parse([]string{"-config", path, "-log-format", "text", "info"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "debug", opts.Config.LogLevel, "file value kept")
	assert.Equal(t, "text", opts.Config.LogFormat, "flag overrides file")
	assert.Equal(t, "bench", opts.Config.Writer.Comment)

	_, _, err = Parse([]string{"-config", filepath.Join(dir, "missing.yaml"), "info"}, &bytes.Buffer{})
	requireExitCode(t, err, ExitUsage)
}

func TestConvertRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "in.trc", sampleTRC)
	snap := filepath.Join(dir, "mid.cbor")
	back := filepath.Join(dir, "out.trc")

	_, err := execute(t, "", "convert", "-I", src, "-O", snap)
	require.NoError(t, err)
	_, err = execute(t, "", "convert", "-I", snap, "-O", back, "-columns", "O,T,I,d,l,D", "-comment", "via cbor")
	require.NoError(t, err)

	text, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.Contains(t, string(text), ";$COLUMNS=O,T,I,d,l,D\n")
	assert.Contains(t, string(text), ";   via cbor\n")

	out, err := execute(t, "", "compare", src, back)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Traces are equal")
}

func TestConvertStreams(t *testing.T) {
	out, err := execute(t, sampleTRC, "convert", "-I", "-", "-from", "trc", "-O", "-", "-to", "trc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, ";$FILEVERSION=2.1\n;$STARTTIME=43474.7738065227\n"), out)

	_, err = execute(t, sampleTRC, "convert", "-I", "-", "-O", "-", "-to", "trc")
	requireExitCode(t, err, ExitUsage)
}

func TestConvertUsageErrors(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "in.trc", sampleTRC)

	tests := map[string][]string{
		"missing output":  {"convert", "-I", src},
		"bad extension":   {"convert", "-I", src, "-O", filepath.Join(dir, "out.csv")},
		"bad format name": {"convert", "-I", src, "-O", "-", "-to", "asc"},
		"bad columns":     {"convert", "-I", src, "-O", "-", "-to", "trc", "-columns", "N,O"},
		"unknown command": {"frobnicate"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, "", args...)
			requireExitCode(t, err, ExitUsage)
		})
	}

	_, err := execute(t, "", "convert", "-I", src, "-O", filepath.Join(dir, "out.csv"))
	assert.ErrorContains(t, err, `unsupported file extension ".csv"`)
}

func TestConvertParseFailure(t *testing.T) {
	src := writeFile(t, t.TempDir(), "bad.trc", strings.Replace(sampleTRC, " Rx -  3 ", " Up -  3 ", 1))

	_, err := execute(t, "", "convert", "-I", src, "-O", "-", "-to", "cbor")
	requireExitCode(t, err, ExitFailure)
	assert.ErrorIs(t, err, trc.ErrParse)
	var dirErr *trc.UnknownDirectionError
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, "Up", dirErr.Token)
}

func TestConvertRenderFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	// 13 data bytes have no CAN FD length code, so the L layout cannot hold them.
	src := writeFile(t, dir, "fd.trc", ";$FILEVERSION=2.1\n;$STARTTIME=45000.5\n;$COLUMNS=O,T,I,d,l,D\n"+
		"1.0 FD 0100 Rx 13 00 01 02 03 04 05 06 07 08 09 0A 0B 0C\n")
	fresh := filepath.Join(dir, "fresh.trc")
	kept := writeFile(t, dir, "kept.trc", "previous content")

	for _, out := range []string{fresh, kept} {
		_, err := execute(t, "", "convert", "-I", src, "-O", out, "-columns", "N,O,T,B,I,d,R,L,D")
		requireExitCode(t, err, ExitFailure)
		assert.ErrorContains(t, err, "no data length code")
	}

	_, err := os.Stat(fresh)
	assert.True(t, errors.Is(err, os.ErrNotExist), "no partial output file")
	text, err := os.ReadFile(kept)
	require.NoError(t, err)
	assert.Equal(t, "previous content", string(text))
}

func TestInfo(t *testing.T) {
	src := writeFile(t, t.TempDir(), "in.trc", sampleTRC)

	out, err := execute(t, "", "info", "-I", src, "-group-by-id")
	require.NoError(t, err)
	assert.Contains(t, out, "Events: 4")
	assert.Contains(t, out, "EVENTS GROUPED BY CAN ID")

	out, err = execute(t, "", "info", "-I", src, "-format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "events: 4\n")

	_, err = execute(t, "", "info", "-I", src, "-format", "xml")
	requireExitCode(t, err, ExitUsage)
}

func TestCompareDifferent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.trc", sampleTRC)
	b := writeFile(t, dir, "b.trc", strings.Replace(sampleTRC, "11 22 33", "11 22 34", 1))

	out, err := execute(t, "", "compare", a, b)
	e := requireExitCode(t, err, ExitFailure)
	assert.Equal(t, "traces differ (1 differences)", e.Message)
	assert.Contains(t, out, "event 1 data: 11 22 33 != 11 22 34")

	_, err = execute(t, "", "compare", a)
	requireExitCode(t, err, ExitUsage)
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "in.trc", sampleTRC)
	snap := filepath.Join(dir, "in.cbor")
	_, err := execute(t, "", "convert", "-I", src, "-O", snap)
	require.NoError(t, err)

	out, err := execute(t, "", "inspect", "-I", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "Item 1: trace snapshot v1 (")
	assert.Contains(t, out, "  events:       4\n")
	assert.Contains(t, out, "    #3 150.000 ST (HW_STATUS_CHANGE) bus 1 id - Rx dlc 4 data 00 00 00 08\n")
	assert.Contains(t, out, `    #4 180.000 EV (EVENT) bus - "marker"`)

	_, err = execute(t, "", "inspect", "-I", filepath.Join(dir, "missing.cbor"))
	requireExitCode(t, err, ExitFailure)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPrintChain(t *testing.T) {
	inner := errors.New("boom")
	err := failure(inner)

	var out bytes.Buffer
	PrintChain(&out, err)
	assert.Equal(t, "  [0] *cli.ExitError: boom\n  [1] *errors.errorString: boom\n", out.String())
}
