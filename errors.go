// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrUnsupportedFormat is returned when the file name has no known archive extension.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrExtractionFailed is returned when all tools failed to extract an archive.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrRepackFailed is returned when an archive could not be rebuilt. The original
	// archive has been restored when this error is returned.
	ErrRepackFailed = errors.New("repack failed")

	// ErrToolNotFound is returned when the generic tool is not installed at any of
	// the tried locations.
	ErrToolNotFound = errors.New("generic archive tool not found")

	// ErrOpenTimeout is returned when a concurrent open of the same archive did not
	// finish in time. The open can be retried.
	ErrOpenTimeout = errors.New("archive is still being opened")

	// ErrInspectionNotSupported is returned by [Inspect] for formats that cannot be
	// read in-process.
	ErrInspectionNotSupported = errors.New("inspection not supported for format")

	// ErrMaxFilesExceeded indicates that the maximum number of files is exceeded.
	ErrMaxFilesExceeded = errors.New("maximum files exceeded")

	// ErrMaxExtractionSizeExceeded indicates that the maximum size is exceeded.
	ErrMaxExtractionSizeExceeded = errors.New("maximum extraction size exceeded")
)

// maxDiagnosticLength limits how much of a tool's stderr ends up in errors and logs
const maxDiagnosticLength = 512

// ToolError is the failure of a single external tool invocation.
type ToolError struct {
	// Tool is the binary that was executed
	Tool string

	// ExitCode is the exit code of the tool, -1 if it could not be started
	ExitCode int

	// Diagnostic is the captured standard error of the tool
	Diagnostic string

	// Err is the launch or wait error, if any
	Err error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Err != nil && e.ExitCode < 0 {
		return fmt.Sprintf("%s: %s", e.Tool, e.Err)
	}
	if len(e.Diagnostic) == 0 {
		return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, truncate(e.Diagnostic, maxDiagnosticLength))
}

// Unwrap returns the launch or wait error.
func (e *ToolError) Unwrap() error {
	return e.Err
}

// truncate shortens s to at most n bytes and marks the cut. The cut never splits a
// multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
