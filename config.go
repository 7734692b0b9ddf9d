// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// Config provides a configuration struct and options to adjust the configuration.
//
// The configuration struct holds all options of a [Registry]: where scratch
// directories live, which external tools are used, how duplicate opens are
// resolved and which limits are checked before an archive is extracted.
type Config struct {
	// genericToolCandidates is the ordered list of paths tried for the generic
	// multi-format tool (7z and friends)
	genericToolCandidates []string

	// logger stream for the registry and the tool runner
	logger logger

	// maxExtractionSize is the maximum size of all entries of an archive.
	// Set value to -1 to disable the check.
	maxExtractionSize int64

	// maxFiles is the maximum of entries (including folders and symlinks) in an archive.
	// Set value to -1 to disable the check.
	maxFiles int64

	// pollAttempts is the number of polls a duplicate open performs before it gives up
	pollAttempts int

	// pollInterval is the pause between two polls of a duplicate open
	pollInterval time.Duration

	// runner launches the external tools
	runner Runner

	// scratchDir is the process scoped base directory for temp directories. It is
	// wiped when a registry is created.
	scratchDir string

	// tarCommand is the tar binary, resolved with exec.LookPath
	tarCommand string

	// telemetryHook is a function to consume telemetry data after an open or close
	// Important: do not adjust this value after the registry was created
	telemetryHook TelemetryHook

	// unzipCommand is the binary used to extract zip archives
	unzipCommand string

	// zipCommand is the binary used to rebuild zip archives
	zipCommand string
}

// CheckMaxFiles checks if counter exceeds the configured maximum. If the maximum is exceeded,
// a [ErrMaxFilesExceeded] error is returned.
func (c *Config) CheckMaxFiles(counter int64) error {

	// check if disabled
	if c.MaxFiles() == -1 {
		return nil
	}

	// check value
	if counter > c.MaxFiles() {
		return ErrMaxFilesExceeded
	}
	return nil
}

// CheckExtractionSize checks if size exceeds configured maximum. If the maximum is exceeded,
// a [ErrMaxExtractionSizeExceeded] error is returned.
func (c *Config) CheckExtractionSize(size int64) error {

	// check if disabled
	if c.MaxExtractionSize() == -1 {
		return nil
	}

	// check value
	if size > c.MaxExtractionSize() {
		return ErrMaxExtractionSizeExceeded
	}
	return nil
}

// GenericToolCandidates returns the ordered list of paths tried for the generic tool.
func (c *Config) GenericToolCandidates() []string {
	return c.genericToolCandidates
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// MaxExtractionSize returns the maximum size over all entries of an archive.
func (c *Config) MaxExtractionSize() int64 {
	return c.maxExtractionSize
}

// MaxFiles returns the maximum of entries (including folders and symlinks) in an archive.
func (c *Config) MaxFiles() int64 {
	return c.maxFiles
}

// PollAttempts returns how often a duplicate open checks for the first opener.
func (c *Config) PollAttempts() int {
	return c.pollAttempts
}

// PollInterval returns the pause between two checks of a duplicate open.
func (c *Config) PollInterval() time.Duration {
	return c.pollInterval
}

// Runner returns the runner that launches external tools.
func (c *Config) Runner() Runner {
	return c.runner
}

// ScratchDir returns the base directory of all temp directories.
func (c *Config) ScratchDir() string {
	return c.scratchDir
}

// TarCommand returns the tar binary.
func (c *Config) TarCommand() string {
	return c.tarCommand
}

// TelemetryHook returns the telemetry hook.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return func(ctx context.Context, d *TelemetryData) {
			// noop
		}
	}
	return c.telemetryHook
}

// UnzipCommand returns the binary used to extract zip archives.
func (c *Config) UnzipCommand() string {
	return c.unzipCommand
}

// ZipCommand returns the binary used to rebuild zip archives.
func (c *Config) ZipCommand() string {
	return c.zipCommand
}

// needsInspection reports whether any limit is enabled.
func (c *Config) needsInspection() bool {
	return c.maxFiles != -1 || c.maxExtractionSize != -1
}

const (
	defaultMaxExtractionSize = -1                     // don't inspect archive size
	defaultMaxFiles          = -1                     // don't inspect entry count
	defaultPollAttempts      = 30                     // 30 polls
	defaultPollInterval      = 100 * time.Millisecond // 3 seconds in total
	defaultTarCommand        = "tar"                  // resolved via PATH
	defaultUnzipCommand      = "unzip"                // resolved via PATH
	defaultZipCommand        = "zip"                  // resolved via PATH
)

var (
	// default locations of the generic tool, tried in order
	defaultGenericToolCandidates = []string{
		"/opt/homebrew/bin/7zz",
		"/opt/homebrew/bin/7z",
		"/usr/local/bin/7zz",
		"/usr/local/bin/7z",
		"/usr/bin/7zz",
		"/usr/bin/7z",
		"/usr/bin/7za",
		"/usr/lib/p7zip/7z",
	}

	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	// no operation telemetry hook
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {
		// noop
	}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style.
func NewConfig(opts ...ConfigOption) *Config {

	// setup default values
	config := &Config{
		genericToolCandidates: defaultGenericToolCandidates,
		logger:                defaultLogger,
		maxExtractionSize:     defaultMaxExtractionSize,
		maxFiles:              defaultMaxFiles,
		pollAttempts:          defaultPollAttempts,
		pollInterval:          defaultPollInterval,
		scratchDir:            filepath.Join(os.TempDir(), "archivedir"),
		tarCommand:            defaultTarCommand,
		telemetryHook:         defaultTelemetryHook,
		unzipCommand:          defaultUnzipCommand,
		zipCommand:            defaultZipCommand,
	}

	// Loop through each option
	for _, opt := range opts {
		opt(config)
	}

	// the runner logs through the final logger
	if config.runner == nil {
		config.runner = NewExecRunner(config.logger)
	}

	return config
}

// WithGenericToolCandidates options pattern function to replace the ordered list of
// paths that are tried for the generic tool.
func WithGenericToolCandidates(paths ...string) ConfigOption {
	return func(c *Config) {
		c.genericToolCandidates = paths
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithMaxExtractionSize options pattern function to set maximum size over all entries
// of an archive, checked before extraction. (-1 to disable check)
func WithMaxExtractionSize(maxExtractionSize int64) ConfigOption {
	return func(c *Config) {
		c.maxExtractionSize = maxExtractionSize
	}
}

// WithMaxFiles options pattern function to set maximum number of files, directories
// and symlinks in an archive, checked before extraction. (-1 to disable check)
func WithMaxFiles(maxFiles int64) ConfigOption {
	return func(c *Config) {
		c.maxFiles = maxFiles
	}
}

// WithPolling options pattern function to tune how a duplicate open waits for the
// first opener of the same archive.
func WithPolling(interval time.Duration, attempts int) ConfigOption {
	return func(c *Config) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if attempts > 0 {
			c.pollAttempts = attempts
		}
	}
}

// WithRunner options pattern function to set the [Runner] that launches external tools.
func WithRunner(r Runner) ConfigOption {
	return func(c *Config) {
		c.runner = r
	}
}

// WithScratchDir options pattern function to set the base directory of temp directories.
//
// Important: the directory is wiped when the registry is created.
func WithScratchDir(dir string) ConfigOption {
	return func(c *Config) {
		if len(dir) > 0 {
			c.scratchDir = dir
		}
	}
}

// WithTarCommand options pattern function to set the tar binary.
func WithTarCommand(cmd string) ConfigOption {
	return func(c *Config) {
		if len(cmd) > 0 {
			c.tarCommand = cmd
		}
	}
}

// WithTelemetryHook options pattern function to set a [TelemetryHook], which is called
// after every open and close.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}

// WithZipCommands options pattern function to set the zip extraction and creation binaries.
func WithZipCommands(unzip, zip string) ConfigOption {
	return func(c *Config) {
		if len(unzip) > 0 {
			c.unzipCommand = unzip
		}
		if len(zip) > 0 {
			c.zipCommand = zip
		}
	}
}
