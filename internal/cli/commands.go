package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"canlogconvert/internal/analyze"
	"canlogconvert/internal/ctxlog"
	"canlogconvert/internal/snapshot"
	"canlogconvert/internal/trace"
	"canlogconvert/internal/trc"
)

// Execute runs the command selected in opts.
func Execute(ctx context.Context, opts *Options, s Streams) error {
	switch opts.Command {
	case "convert":
		return runConvert(ctx, opts, s)
	case "info":
		return runInfo(ctx, opts, s)
	case "compare":
		return runCompare(ctx, opts, s)
	case "inspect":
		return runInspect(ctx, opts, s)
	}
	return usageError("unknown command %q", opts.Command)
}

// parseCommand parses the command flags. done reports that help was
// printed and the command should stop without error.
func parseCommand(fs *flag.FlagSet, args []string, s Streams) (done bool, err error) {
	fs.SetOutput(s.Err)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	return false, nil
}

func runConvert(ctx context.Context, opts *Options, s Streams) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	in := fs.String("I", "", "Input file, '-' for standard input.")
	out := fs.String("O", "", "Output file, '-' for standard output.")
	from := fs.String("from", "", "Input format when it cannot be told from the extension: 'trc' or 'cbor'.")
	to := fs.String("to", "", "Output format when it cannot be told from the extension: 'trc' or 'cbor'.")
	columns := fs.String("columns", "", "Column layout of written .trc files, e.g. 'O,T,I,d,l,D'.")
	comment := fs.String("comment", "", "Comment written into .trc output.")
	if done, err := parseCommand(fs, opts.Args, s); done || err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return usageError("convert needs both -I and -O")
	}

	inFormat, err := resolveFormat(*in, *from)
	if err != nil {
		return err
	}
	outFormat, err := resolveFormat(*out, *to)
	if err != nil {
		return err
	}

	cfg := opts.Config
	if *columns != "" {
		cfg.Writer.Columns = *columns
	}
	if *comment != "" {
		cfg.Writer.Comment = *comment
	}
	cols, err := cfg.Columns()
	if err != nil {
		return &ExitError{Code: ExitUsage, Message: err.Error(), Err: err}
	}
	renderer, err := trc.NewRenderer(trc.RendererConfig{Columns: cols, Comment: cfg.Writer.Comment})
	if err != nil {
		return failure(err)
	}

	tr, err := loadTrace(ctx, *in, inFormat, s)
	if err != nil {
		return err
	}
	if err := saveTrace(ctx, tr, *out, outFormat, renderer, s); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Converted trace", "input", *in, "output", *out, "events", tr.Len())
	return nil
}

func runInfo(ctx context.Context, opts *Options, s Streams) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	in := fs.String("I", "", "Input file, '-' for standard input.")
	from := fs.String("from", "", "Input format when it cannot be told from the extension: 'trc' or 'cbor'.")
	groupByID := fs.Bool("group-by-id", false, "Also list events grouped by CAN ID.")
	format := fs.String("format", "text", "Summary format. Options: 'text' or 'yaml'.")
	if done, err := parseCommand(fs, opts.Args, s); done || err != nil {
		return err
	}
	if *in == "" {
		return usageError("info needs -I")
	}
	if *format != "text" && *format != "yaml" {
		return usageError("invalid format %q: must be 'text' or 'yaml'", *format)
	}
	inFormat, err := resolveFormat(*in, *from)
	if err != nil {
		return err
	}

	tr, err := loadTrace(ctx, *in, inFormat, s)
	if err != nil {
		return err
	}
	summary := analyze.Summarize(tr)
	if *format == "yaml" {
		err = summary.WriteYAML(s.Out)
	} else {
		err = summary.WriteText(s.Out)
	}
	if err != nil {
		return failure(err)
	}
	if *groupByID {
		analyze.PrintGrouped(s.Out, tr)
	}
	ctxlog.FromContext(ctx).Info("Summarized trace", "input", *in, "events", summary.Events)
	return nil
}

func runCompare(ctx context.Context, opts *Options, s Streams) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	if done, err := parseCommand(fs, opts.Args, s); done || err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usageError("compare needs exactly two files")
	}

	traces := make([]*trace.Trace, 2)
	for i, path := range fs.Args() {
		format, err := resolveFormat(path, "")
		if err != nil {
			return err
		}
		if traces[i], err = loadTrace(ctx, path, format, s); err != nil {
			return err
		}
	}

	ctxlog.FromContext(ctx).Debug("Comparing traces")
	diffs := analyze.Compare(traces[0], traces[1])
	analyze.PrintDifferences(s.Out, fs.Arg(0), fs.Arg(1), diffs)
	if len(diffs) > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("traces differ (%d differences)", len(diffs))}
	}
	ctxlog.FromContext(ctx).Info("Traces are equal", "events", traces[0].Len())
	return nil
}

func runInspect(ctx context.Context, opts *Options, s Streams) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	in := fs.String("I", "", "CBOR file, '-' for standard input.")
	if done, err := parseCommand(fs, opts.Args, s); done || err != nil {
		return err
	}
	if *in == "" {
		return usageError("inspect needs -I")
	}

	data, err := readInput(*in, s)
	if err != nil {
		return failure(fmt.Errorf("read %s: %w", *in, err))
	}
	ctxlog.FromContext(ctx).Debug("Inspecting CBOR", "input", *in, "bytes", len(data))
	if err := snapshot.Inspect(s.Out, data); err != nil {
		return failure(fmt.Errorf("inspect %s: %w", *in, err))
	}
	return nil
}
