package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// CmdBuilder creates the command for the runner. The returned func is called
// once the process has exited.
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// Result is the outcome of one runner invocation.
type Result struct {
	Args     []string
	ExitCode int
	Duration time.Duration
	// Output is the end of the combined runner output, ANSI sequences removed.
	Output string
}

// Passed reports whether the runner exited with code 0.
func (r *Result) Passed() bool {
	return r.ExitCode == 0
}

// Executor runs vstest.console against a set of test files.
type Executor struct {
	workDir    string
	out        io.Writer
	cmdBuilder CmdBuilder
	log        log.Logger
}

// NewExecutor creates an Executor. Runner output is streamed to out (stdout
// when nil). A nil cmdBuilder runs the real process in workDir.
func NewExecutor(logger log.Logger, workDir string, out io.Writer, cmdBuilder CmdBuilder) *Executor {
	if out == nil {
		out = os.Stdout
	}
	e := &Executor{
		workDir:    workDir,
		out:        out,
		cmdBuilder: cmdBuilder,
		log:        logger,
	}
	if e.cmdBuilder == nil {
		e.cmdBuilder = e.defaultCmd
	}
	return e
}

func (e *Executor) defaultCmd(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Dir = e.workDir
	return cmd, func() {}
}

// BuildArgs returns the runner argv: the test files, the flags parsed from
// args, then the TRX logger flag.
func BuildArgs(files []string, args string) []string {
	argv := make([]string, 0, len(files)+8)
	argv = append(argv, files...)
	argv = append(argv, SplitArgs(args)...)
	return append(argv, TrxLoggerFlag)
}

// Run executes runnerPath with the given test files and flag string. A non-zero
// exit code is reported in the Result; an error means the runner could not be
// run at all.
func (e *Executor) Run(ctx context.Context, runnerPath string, files []string, args string) (*Result, error) {
	if runnerPath == "" {
		return nil, errors.New("runner path cannot be empty")
	}
	if len(files) == 0 {
		return nil, errors.New("no test files to run")
	}

	argv := BuildArgs(files, args)
	cmd, cleanup := e.cmdBuilder(ctx, runnerPath, argv...)
	defer cleanup()

	tail := newTailBuffer(defaultOutputTailBytes)
	cmd.Stdout = io.MultiWriter(e.out, tail)
	cmd.Stderr = io.MultiWriter(e.out, tail)

	e.log.Info("Running tests", "runner", runnerPath, "files", len(files))
	e.log.Debug("Runner command line", "cmd", runnerPath+" "+strings.Join(argv, " "))

	start := time.Now()
	runErr := cmd.Run()
	result := &Result{
		Args:     argv,
		Duration: time.Since(start),
		Output:   tail.Text(),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("failed to run %s: %w", runnerPath, runErr)
		}
		result.ExitCode = exitErr.ExitCode()
		if result.ExitCode < 0 {
			result.ExitCode = ExitCodeUnknown
		}
	}

	e.log.Info("Runner finished", "exit_code", result.ExitCode, "duration", result.Duration)
	return result, nil
}

// SplitArgs splits a command-line string into arguments. Whitespace separates
// arguments outside double quotes; quotes are removed. A backslash only
// escapes a following double quote, so Windows paths pass through unchanged.
func SplitArgs(s string) []string {
	var (
		args    []string
		current strings.Builder
		inQuote bool
		started bool
	)
	flush := func() {
		if started {
			args = append(args, current.String())
		}
		current.Reset()
		started = false
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\\' && i+1 < len(runes) && runes[i+1] == '"':
			current.WriteRune('"')
			started = true
			i++
		case c == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			flush()
		default:
			current.WriteRune(c)
			started = true
		}
	}
	flush()
	return args
}
