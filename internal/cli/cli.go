package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"canlogconvert/internal/config"
)

// Version is reported by -version.
var Version = "dev"

// Exit codes.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError is an error that carries the process exit code. Err, when set,
// is the underlying cause.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: ExitUsage, Message: fmt.Sprintf(format, args...)}
}

func failure(err error) *ExitError {
	return &ExitError{Code: ExitFailure, Message: err.Error(), Err: err}
}

// Options is the parsed global command line.
type Options struct {
	Config  config.Config
	Debug   bool
	Command string
	Args    []string // arguments after the command name
}

const usageText = `
canlogconvert - convert and inspect PEAK CAN TRC trace files.

Usage:
  canlogconvert [options] <command> [command options]

Commands:
  convert  -I <in> -O <out>    convert between .trc and .cbor
  info     -I <in>             summarize a trace
  compare  <a> <b>             compare identifiers, data and timestamps
  inspect  -I <file.cbor>      dump the structure of a CBOR file

Options:
`

// Parse processes the global flags and the command name. It returns the
// options, whether the program should exit cleanly right away (help or
// version), or an *ExitError.
func Parse(args []string, output io.Writer) (*Options, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("canlogconvert", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usageText)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to a .yaml, .yml or .hcl configuration file.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	debugFlag := flagSet.Bool("debug", false, "Print the full error chain on failure.")
	versionFlag := flagSet.Bool("version", false, "Print the version and exit.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	if *versionFlag {
		fmt.Fprintf(output, "canlogconvert %s\n", Version)
		return nil, true, nil
	}

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, false, usageError("no command given")
	}

	cfg := config.Default()
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			return nil, false, &ExitError{Code: ExitUsage, Message: err.Error(), Err: err}
		}
		cfg = loaded
	}

	// Flags win over the file, but only when given explicitly.
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.LogLevel = *logLevelFlag
		case "log-format":
			cfg.LogFormat = *logFormatFlag
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error(), Err: err}
	}

	opts := &Options{
		Config:  cfg,
		Debug:   *debugFlag,
		Command: flagSet.Arg(0),
		Args:    flagSet.Args()[1:],
	}
	slog.Debug("CLI parser finished successfully.", "command", opts.Command)
	return opts, false, nil
}

// PrintChain writes every error in err's wrap chain, outermost first.
func PrintChain(w io.Writer, err error) {
	for depth := 0; err != nil; depth++ {
		fmt.Fprintf(w, "  [%d] %T: %v\n", depth, err, err)
		err = errors.Unwrap(err)
	}
}
