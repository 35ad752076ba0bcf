// Command mwrest reads and edits MediaWiki pages through the REST API.
//
//	mwrest [global flags] <command> [flags] [args]
//
// Configuration comes from a YAML file (-config or MWREST_CONFIG), a .env
// file in the working directory, MWREST_* environment variables and
// global flags, later sources winning.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/wiki-saikou/mwrest-go/internal/tracing"
	"github.com/wiki-saikou/mwrest-go/mwrest"
)

const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 2
	exitConflict = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries what every subcommand needs.
type app struct {
	cfg    config
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	client *mwrest.Client
}

// rest builds the REST client on first use so that commands which do not
// talk to a wiki still run without one configured.
func (a *app) rest() (*mwrest.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	ep, err := a.cfg.endpoint()
	if err != nil {
		return nil, err
	}
	c, err := mwrest.NewClient(ep, a.cfg.auth(a.logger), a.cfg.clientOptions(a.logger)...)
	if err != nil {
		return nil, err
	}
	a.client = c
	return c, nil
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// errConflictReported marks a conflict whose details were already printed.
var errConflictReported = errors.New("edit conflict")

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	g := newGlobalFlags()
	g.fs.SetOutput(stderr)
	g.fs.Usage = func() { printUsage(stderr, g.fs) }
	if err := g.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	rest := g.fs.Args()
	if len(rest) == 0 {
		printUsage(stderr, g.fs)
		return exitUsage
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "mwrest: unknown command %q\n", rest[0])
		printUsage(stderr, g.fs)
		return exitUsage
	}

	cfg, err := loadConfig(g)
	if err != nil {
		fmt.Fprintf(stderr, "mwrest: %v\n", err)
		return exitError
	}

	// stdout carries command output, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: cfg.slogLevel(),
	}))

	shutdown, err := tracing.Setup(ctx, tracing.DefaultConfig())
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("tracing shutdown", "error", err)
			}
		}()
	}

	a := &app{cfg: cfg, logger: logger, stdin: stdin, stdout: stdout, stderr: stderr}
	err = cmd.run(ctx, a, rest[1:])

	var uerr *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.As(err, &uerr):
		fmt.Fprintf(stderr, "mwrest %s: %v\nusage: mwrest %s %s\n", cmd.name, err, cmd.name, cmd.usage)
		return exitUsage
	case errors.Is(err, errConflictReported):
		return exitConflict
	case mwrest.KindOf(err) == mwrest.KindConflict:
		printError(stderr, err)
		return exitConflict
	default:
		printError(stderr, err)
		return exitError
	}
}

// printError avoids doubling the prefix *mwrest.Error already carries.
func printError(w io.Writer, err error) {
	if _, ok := mwrest.AsError(err); ok {
		fmt.Fprintln(w, err)
		return
	}
	fmt.Fprintf(w, "mwrest: %v\n", err)
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: mwrest [global flags] <command> [flags] [args]")
	fmt.Fprintln(w, "\ncommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nglobal flags:")
	fs.PrintDefaults()
}
