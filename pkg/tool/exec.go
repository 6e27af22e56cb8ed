// Package tool describes and runs the external programs of the pipeline.
package tool

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/kballard/go-shellquote"
	"github.com/liserjrqlxue/goUtil/fmtUtil"
	"github.com/liserjrqlxue/goUtil/osUtil"
	"github.com/liserjrqlxue/goUtil/simpleUtil"
)

// Invocation is one call of an external program.
type Invocation struct {
	// Step names the pipeline stage, e.g. "align" or "assemble_5".
	Step    string
	Program string
	Args    []string

	// Stdout, when set, receives the program's standard output.
	Stdout string

	Inputs  []string
	Outputs []string

	// SkipIfExists gates the call on the absence of this file.
	SkipIfExists string
}

// String renders the invocation as a shell command line.
func (inv Invocation) String() string {
	s := shellquote.Join(append([]string{inv.Program}, inv.Args...)...)
	if inv.Stdout != "" {
		s += " > " + shellquote.Join(inv.Stdout)
	}
	return s
}

// Runner executes invocations one at a time.
type Runner interface {
	Run(inv Invocation) error
}

// CommandError reports a failed invocation. Launch is set when the program
// could not be started at all; otherwise ExitStatus holds its exit code.
type CommandError struct {
	Invocation Invocation
	Launch     bool
	ExitStatus int
	Err        error
}

func (e *CommandError) Error() string {
	if e.Launch {
		return fmt.Sprintf("command '%s' failed due to O/S error: %v", e.Invocation, e.Err)
	}
	return fmt.Sprintf("command '%s' failed with non-zero exit status: %d", e.Invocation, e.ExitStatus)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Exec runs invocations as subprocesses, waiting for each to finish.
type Exec struct {
	Logger *slog.Logger
	// Stderr receives the program's standard error, and its standard
	// output when no redirect is given. Defaults to os.Stderr.
	Stderr io.Writer
}

func (e *Exec) Run(inv Invocation) (err error) {
	var stderr = e.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	cmd := exec.Command(inv.Program, inv.Args...)
	e.Logger.Info("Running", "step", inv.Step, "CMD", inv.String())
	cmd.Stderr = stderr
	cmd.Stdout = stderr

	if inv.Stdout != "" {
		var out *os.File
		out, err = os.Create(inv.Stdout)
		if err != nil {
			return &CommandError{Invocation: inv, Launch: true, Err: err}
		}
		defer simpleUtil.DeferClose(out)
		cmd.Stdout = out
	}

	err = cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{Invocation: inv, ExitStatus: exitErr.ExitCode(), Err: err}
	}
	return &CommandError{Invocation: inv, Launch: true, Err: err}
}

// DryRun prints each invocation instead of running it.
type DryRun struct {
	Logger *slog.Logger
	Out    io.Writer
}

func (d *DryRun) Run(inv Invocation) error {
	d.Logger.Debug("dry run", "step", inv.Step, "CMD", inv.String())
	fmtUtil.Fprintln(d.Out, inv.String())
	return nil
}

// RunGated runs inv through r unless its SkipIfExists file is present.
// It reports whether the invocation ran.
func RunGated(r Runner, logger *slog.Logger, inv Invocation) (ran bool, err error) {
	if inv.SkipIfExists != "" && osUtil.FileExists(inv.SkipIfExists) {
		logger.Info("Index is already built", "step", inv.Step, "index", inv.SkipIfExists)
		return false, nil
	}
	if err = r.Run(inv); err != nil {
		return false, err
	}
	return true, nil
}
