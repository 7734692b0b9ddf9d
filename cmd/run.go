// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	archivedir "github.com/hashicorp/go-archivedir"
	"github.com/pkg/errors"
)

// CLI are the cli parameters for the archivedir binary
type CLI struct {
	GenericTool       []string         `name:"generic-tool" env:"ARCHIVEDIR_GENERIC_TOOL" help:"Candidate paths of the generic archive tool (7z), tried in order."`
	MaxExtractionSize int64            `optional:"" default:"-1" help:"Maximum size of all entries of an archive (in bytes). (disable check: -1)"`
	MaxFiles          int64            `optional:"" default:"-1" help:"Maximum entries of an archive. (disable check: -1)"`
	Metrics           bool             `short:"M" optional:"" default:"false" help:"Print telemetry data to log after open and close."`
	ScratchDir        string           `optional:"" env:"ARCHIVEDIR_SCRATCH_DIR" help:"Base directory of extracted archives. Wiped on start!"`
	Tar               string           `optional:"" default:"tar" env:"ARCHIVEDIR_TAR" help:"tar binary."`
	Verbose           bool             `short:"v" optional:"" help:"Verbose logging."`
	Version           kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`

	Detect  DetectCmd  `cmd:"" help:"Print the archive format of file names."`
	Edit    EditCmd    `cmd:"" help:"Open an archive as a directory, run a command inside it and repack it if changed."`
	Inspect InspectCmd `cmd:"" help:"Print entry count and size of an archive without extracting it."`
}

// DetectCmd prints the detected format of each name
type DetectCmd struct {
	Names []string `arg:"" name:"name" help:"File names to classify."`
}

// Run prints one line per name.
func (d *DetectCmd) Run(out io.Writer) error {
	for _, name := range d.Names {
		f, ok := archivedir.Detect(name)
		if !ok {
			fmt.Fprintf(out, "%s\tunsupported\n", name)
			continue
		}
		compound := ""
		if archivedir.IsCompoundArchive(name) {
			compound = "\tcompound"
		}
		fmt.Fprintf(out, "%s\t%s%s\n", name, f, compound)
	}
	return nil
}

// InspectCmd summarizes an archive
type InspectCmd struct {
	Archive string `arg:"" name:"archive" help:"Path to archive." type:"existingfile"`
}

// Run prints the summary of the archive.
func (i *InspectCmd) Run(ctx context.Context, out io.Writer, opts []archivedir.ConfigOption) error {
	sum, err := archivedir.Inspect(ctx, i.Archive, archivedir.NewConfig(opts...))
	if err != nil {
		return errors.Wrap(err, "cannot inspect archive")
	}
	fmt.Fprintf(out, "%s\t%s\t%d entries\t%d bytes\t%d bytes compressed\n", i.Archive, sum.Format, sum.Entries, sum.Size, sum.InputSize)
	return nil
}

// EditCmd opens an archive and runs a command in its temp directory
type EditCmd struct {
	Archive  string   `arg:"" name:"archive" help:"Path to archive." type:"existingfile"`
	Command  []string `arg:"" optional:"" passthrough:"" help:"Command to run inside the archive (default: $SHELL)."`
	NoRepack bool     `short:"n" help:"Discard changes instead of repacking the archive."`
}

// Run opens the archive, runs the command and closes the archive again.
func (e *EditCmd) Run(ctx context.Context, logger *slog.Logger, opts []archivedir.ConfigOption) error {
	registry, err := archivedir.NewRegistry(opts...)
	if err != nil {
		return errors.Wrap(err, "cannot create registry")
	}

	// termination removes the temp directories, interrupts belong to the command
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)
	go func() {
		for sig := range sigs {
			if sig == os.Interrupt {
				continue
			}
			logger.Error("terminated, changes are discarded", "signal", sig)
			if err := registry.Cleanup(); err != nil {
				logger.Error("cleanup failed", "error", err)
			}
			os.Exit(1)
		}
	}()

	tempDir, err := registry.Open(ctx, e.Archive)
	if err != nil {
		return errors.Wrap(err, "cannot open archive")
	}

	command := e.Command
	if len(command) == 0 {
		shell := os.Getenv("SHELL")
		if len(shell) == 0 {
			shell = "/bin/sh"
		}
		command = []string{shell}
	}

	c := exec.Command(command[0], command[1:]...)
	c.Dir = tempDir
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	runErr := c.Run()
	if runErr != nil {
		logger.Warn("command failed", "command", command[0], "error", runErr)
	}

	if err := registry.Close(ctx, e.Archive, !e.NoRepack); err != nil {
		return errors.Wrap(err, "cannot close archive")
	}
	return nil
}

// Run the entrypoint into archivedir as a cli tool
func Run(version, commit, date string) {
	ctx := context.Background()
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Description("Open archives as directories"),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(os.Stdout, (*io.Writer)(nil)),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
		},
	)

	// Check for verbose output
	logLevel := slog.LevelError
	if cli.Verbose {
		logLevel = slog.LevelDebug
	} else if cli.Metrics {
		logLevel = slog.LevelInfo
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// setup telemetry hook
	telemetryToLog := func(ctx context.Context, td *archivedir.TelemetryData) {
		if cli.Metrics {
			logger.Info(fmt.Sprintf("%s finished", td.Operation), "telemetry", td)
		}
	}

	// process cli params
	opts := []archivedir.ConfigOption{
		archivedir.WithLogger(logger),
		archivedir.WithMaxExtractionSize(cli.MaxExtractionSize),
		archivedir.WithMaxFiles(cli.MaxFiles),
		archivedir.WithScratchDir(cli.ScratchDir),
		archivedir.WithTarCommand(cli.Tar),
		archivedir.WithTelemetryHook(telemetryToLog),
	}
	if len(cli.GenericTool) > 0 {
		opts = append(opts, archivedir.WithGenericToolCandidates(cli.GenericTool...))
	}

	if err := kctx.Run(logger, opts); err != nil {
		logger.Error("archivedir failed", "error", err)
		os.Exit(-1)
	}
}
