// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
)

// ToolKind selects the exit code contract of an external tool.
type ToolKind int

const (
	// ToolZip is unzip/zip.
	ToolZip ToolKind = iota + 1

	// ToolTar is tar.
	ToolTar

	// ToolGeneric is the generic multi-format tool (7z).
	ToolGeneric
)

// String returns the name of the tool kind.
func (k ToolKind) String() string {
	switch k {
	case ToolZip:
		return "zip"
	case ToolTar:
		return "tar"
	case ToolGeneric:
		return "generic"
	}
	return "unknown"
}

// nonFatalExitCodes are exit codes that are logged as warning but count as success.
//
// zip: 1 is a warning of unzip, 18 is reported by zip when some file attributes or
// entries could not be read, which happens on scratch volumes.
// tar: 1 is "file changed as we read it".
var nonFatalExitCodes = map[ToolKind][]int{
	ToolZip: {1, 18},
	ToolTar: {1},
}

// Outcome is the classification of a finished invocation.
type Outcome int

const (
	// OutcomeSuccess is exit code 0.
	OutcomeSuccess Outcome = iota

	// OutcomeWarning is a non-fatal exit code of the tool.
	OutcomeWarning

	// OutcomeFailure is every other exit code or a launch error.
	OutcomeFailure
)

// String returns the name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeWarning:
		return "warning"
	}
	return "failure"
}

// Invocation describes one run of an external tool.
type Invocation struct {
	// Tool selects the exit code contract
	Tool ToolKind

	// Path is the binary, either absolute or resolved via PATH
	Path string

	// Args are the arguments without the binary
	Args []string

	// Dir is the working directory, empty for the current one
	Dir string
}

// String returns the command line of the invocation.
func (i Invocation) String() string {
	return strings.Join(append([]string{i.Path}, i.Args...), " ")
}

// Result is the classified outcome of an [Invocation].
type Result struct {
	// Invocation is the invocation the result belongs to
	Invocation Invocation

	// Outcome is the classification of ExitCode
	Outcome Outcome

	// ExitCode is the exit code of the process, -1 if it was not started
	ExitCode int

	// Stderr is the captured standard error
	Stderr string

	// Err is set when the process could not be started or awaited
	Err error
}

// Failed reports whether the invocation counts as a failure.
func (r Result) Failed() bool {
	return r.Outcome == OutcomeFailure
}

// Diagnostic returns the captured stderr, truncated for logging.
func (r Result) Diagnostic() string {
	return truncate(strings.TrimSpace(r.Stderr), maxDiagnosticLength)
}

// ToolError converts a failed result into a [ToolError]. It returns nil on success.
func (r Result) ToolError() error {
	if !r.Failed() {
		return nil
	}
	return &ToolError{
		Tool:       filepath.Base(r.Invocation.Path),
		ExitCode:   r.ExitCode,
		Diagnostic: strings.TrimSpace(r.Stderr),
		Err:        r.Err,
	}
}

// Runner launches external tools. Start must deliver exactly one [Result] on the
// returned channel and close it afterwards.
type Runner interface {
	Start(ctx context.Context, inv Invocation) <-chan Result
}

// Run starts inv with r and waits for the result.
func Run(ctx context.Context, r Runner, inv Invocation) Result {
	return <-r.Start(ctx, inv)
}

// ExecRunner is the [Runner] that executes tools with os/exec.
type ExecRunner struct {
	logger logger
}

// NewExecRunner creates a runner that logs warnings and failures to l.
func NewExecRunner(l logger) *ExecRunner {
	if l == nil {
		l = defaultLogger
	}
	return &ExecRunner{logger: l}
}

// Start launches the tool in its own goroutine. A started process is always awaited;
// ctx is only consulted before the launch, so an extraction or repack cannot be
// interrupted halfway.
func (e *ExecRunner) Start(ctx context.Context, inv Invocation) <-chan Result {
	results := make(chan Result, 1)

	go func() {
		defer close(results)
		results <- e.run(ctx, inv)
	}()

	return results
}

func (e *ExecRunner) run(ctx context.Context, inv Invocation) Result {
	res := Result{Invocation: inv, ExitCode: -1, Outcome: OutcomeFailure}

	// last chance to cancel
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	var stderr bytes.Buffer
	cmd := exec.Command(inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stderr = &stderr

	e.logger.Debug("starting tool", "cmd", inv.String(), "dir", inv.Dir)
	if err := cmd.Start(); err != nil {
		res.Err = err
		e.logger.Error("cannot start tool", "cmd", inv.Path, "error", err)
		return res
	}

	err := cmd.Wait()
	res.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.Err = err
	}

	res.Outcome = classify(inv.Tool, res.ExitCode)
	switch res.Outcome {
	case OutcomeWarning:
		e.logger.Warn("tool finished with warning", "cmd", inv.Path, "code", res.ExitCode, "stderr", res.Diagnostic())
	case OutcomeFailure:
		e.logger.Error("tool failed", "cmd", inv.Path, "code", res.ExitCode, "stderr", res.Diagnostic())
	}
	return res
}

// classify maps the exit code of a tool to an [Outcome].
func classify(tool ToolKind, code int) Outcome {
	if code == 0 {
		return OutcomeSuccess
	}
	if code < 0 {
		return OutcomeFailure
	}
	for _, c := range nonFatalExitCodes[tool] {
		if c == code {
			return OutcomeWarning
		}
	}
	return OutcomeFailure
}
