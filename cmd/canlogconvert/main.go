package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"canlogconvert/internal/cli"
	"canlogconvert/internal/ctxlog"
)

// main is the entrypoint for the canlogconvert tool.
func main() {
	// Use a minimal logger until the configured one exists.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "error:", exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.ExitFailure)
	}
}

// run holds the program logic so tests can drive it with their own streams.
func run(stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	opts, shouldExit, err := cli.Parse(args, stderr)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := cli.NewLogger(opts.Config.LogLevel, opts.Config.LogFormat, stderr)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	err = cli.Execute(ctx, opts, cli.Streams{In: stdin, Out: stdout, Err: stderr})
	if err != nil && opts.Debug {
		fmt.Fprintln(stderr, "error chain:")
		cli.PrintChain(stderr, err)
	}
	return err
}
