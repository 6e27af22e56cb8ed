package tool

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

var ErrMissingTool = errors.New("missing prerequisite tool")

// Requirement describes how to ask an installed program for its version.
type Requirement struct {
	Name    string
	Program string
	Args    []string
	// Identifier must appear in the combined output of the version command.
	Identifier string
	Version    string
}

// MissingToolError reports a program that is absent or the wrong version.
type MissingToolError struct {
	Requirement Requirement
	// Installed is false when the program could not be started.
	Installed bool
	Err       error
}

func (e *MissingToolError) Error() string {
	if !e.Installed {
		return fmt.Sprintf("could not determine the version of %s (%v); do you have %s installed in your PATH?",
			e.Requirement.Name, e.Err, e.Requirement.Name)
	}
	return fmt.Sprintf("incorrect version of %s installed: %s version %s is required; check the %s found in your PATH",
		e.Requirement.Name, e.Requirement.Name, e.Requirement.Version, e.Requirement.Program)
}

func (e *MissingToolError) Is(target error) bool { return target == ErrMissingTool }

func (e *MissingToolError) Unwrap() error { return e.Err }

// CheckVersion runs the version command and matches its output against the identifier.
// A non-zero exit is tolerated since some programs (samtools, bwa) exit with
// an error status when printing their usage.
func CheckVersion(logger *slog.Logger, req Requirement) error {
	cmd := exec.Command(req.Program, req.Args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			logger.Error("Failed command", "CMD", Invocation{Program: req.Program, Args: req.Args}.String(), "err", err)
			return &MissingToolError{Requirement: req, Err: err}
		}
	}
	if !strings.Contains(string(out), req.Identifier) {
		logger.Error("Incorrect version", "tool", req.Name, "required", req.Version)
		return &MissingToolError{Requirement: req, Installed: true}
	}
	logger.Debug("version ok", "tool", req.Name, "required", req.Version)
	return nil
}

// CheckVersions stops at the first failing requirement.
func CheckVersions(logger *slog.Logger, reqs ...Requirement) error {
	for _, req := range reqs {
		if err := CheckVersion(logger, req); err != nil {
			return err
		}
	}
	return nil
}
