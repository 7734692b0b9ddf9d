// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// tarCompressionFlags are the tar arguments that select the compression of a tar
// container, for extraction and creation alike.
var tarCompressionFlags = map[Compression][]string{
	CompressionNone:  nil,
	CompressionGzip:  {"-z"},
	CompressionBzip2: {"-j"},
	CompressionXz:    {"-J"},
	CompressionLzma:  {"--lzma"},
	CompressionZstd:  {"--zstd"},
	CompressionLz4:   {"-I", "lz4"},
	CompressionLzo:   {"--lzop"},
	CompressionLzip:  {"--lzip"},
}

// tarFlags returns the compression arguments of a tar-family format.
func tarFlags(f Format) []string {
	if f.Kind == KindCompress {
		return []string{"-Z"}
	}
	return tarCompressionFlags[f.Compression]
}

// toolReport tells which tool finally handled an extraction or a rebuild.
type toolReport struct {
	tool     string
	fallback bool
}

// toolchain dispatches extraction and rebuilds to the external tools.
type toolchain struct {
	cfg     *Config
	locator *toolLocator
}

func newToolchain(cfg *Config) *toolchain {
	return &toolchain{
		cfg:     cfg,
		locator: newToolLocator(cfg.GenericToolCandidates()),
	}
}

// extract extracts archive with format f into dst. A failed tar-family extraction is
// retried with the generic tool before it is reported.
func (tc *toolchain) extract(ctx context.Context, archive string, f Format, dst string) (toolReport, error) {
	tc.cfg.Logger().Info("extracting archive", "archive", archive, "format", f.String())

	switch {
	case f.Kind == KindZip:
		inv := Invocation{
			Tool: ToolZip,
			Path: tc.cfg.UnzipCommand(),
			Args: []string{"-o", "-q", archive, "-d", dst},
		}
		report := toolReport{tool: inv.Path}
		if err := Run(ctx, tc.cfg.Runner(), inv).ToolError(); err != nil {
			return report, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, archive, err)
		}
		return report, nil

	case f.isTarFamily():
		args := []string{"-x"}
		args = append(args, tarFlags(f)...)
		args = append(args, "-f", archive, "-C", dst)
		inv := Invocation{Tool: ToolTar, Path: tc.cfg.TarCommand(), Args: args}
		tarErr := Run(ctx, tc.cfg.Runner(), inv).ToolError()
		if tarErr == nil {
			return toolReport{tool: inv.Path}, nil
		}

		// some tar variants choke on archives the generic tool reads fine
		tc.cfg.Logger().Warn("tar extraction failed, retrying with generic tool", "archive", archive, "error", tarErr)
		if err := clearDir(dst); err != nil {
			return toolReport{tool: inv.Path}, fmt.Errorf("%w: %s: cannot reset destination: %w", ErrExtractionFailed, archive, err)
		}
		report, err := tc.extractGeneric(ctx, archive, dst)
		report.fallback = true
		if err != nil {
			return report, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, archive, errors.Join(tarErr, err))
		}
		return report, nil

	case f.NeedsGenericTool():
		report, err := tc.extractGeneric(ctx, archive, dst)
		if errors.Is(err, ErrToolNotFound) {
			return report, err
		}
		if err != nil {
			return report, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, archive, err)
		}
		return report, nil
	}

	return toolReport{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, archive)
}

// extractGeneric extracts archive into dst with the generic tool.
func (tc *toolchain) extractGeneric(ctx context.Context, archive string, dst string) (toolReport, error) {
	path, err := tc.locator.locate()
	if err != nil {
		return toolReport{}, err
	}
	inv := Invocation{
		Tool: ToolGeneric,
		Path: path,
		Args: []string{"x", "-y", "-o" + dst, archive},
	}
	return toolReport{tool: path}, Run(ctx, tc.cfg.Runner(), inv).ToolError()
}

// pack writes archive with format f from the given top-level entries of srcDir. The
// same tar to generic tool fallback as for extraction applies; partial output of a
// failed attempt is removed before the next one.
func (tc *toolchain) pack(ctx context.Context, archive string, f Format, srcDir string, entries []string) (toolReport, error) {
	tc.cfg.Logger().Info("rebuilding archive", "archive", archive, "format", f.String(), "entries", len(entries))

	switch {
	case f.Kind == KindZip:
		args := append([]string{"-r", "-y", "-q", archive}, entries...)
		inv := Invocation{Tool: ToolZip, Path: tc.cfg.ZipCommand(), Args: args, Dir: srcDir}
		return toolReport{tool: inv.Path}, Run(ctx, tc.cfg.Runner(), inv).ToolError()

	case f.isTarFamily():
		args := []string{"-c"}
		args = append(args, tarFlags(f)...)
		args = append(args, "-f", archive, "-C", srcDir)
		if len(entries) == 0 {
			// tar refuses to write an empty archive without an explicit file list
			args = append(args, "-T", os.DevNull)
		}
		args = append(args, entries...)
		inv := Invocation{Tool: ToolTar, Path: tc.cfg.TarCommand(), Args: args}
		tarErr := Run(ctx, tc.cfg.Runner(), inv).ToolError()
		if tarErr == nil {
			return toolReport{tool: inv.Path}, nil
		}

		tc.cfg.Logger().Warn("tar rebuild failed, retrying with generic tool", "archive", archive, "error", tarErr)
		if err := removeIfExists(archive); err != nil {
			return toolReport{tool: inv.Path}, errors.Join(tarErr, err)
		}
		report, err := tc.packGeneric(ctx, archive, srcDir, entries)
		report.fallback = true
		if err != nil {
			return report, errors.Join(tarErr, err)
		}
		return report, nil

	case f.NeedsGenericTool():
		return tc.packGeneric(ctx, archive, srcDir, entries)
	}

	return toolReport{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, archive)
}

// packGeneric writes archive from entries of srcDir with the generic tool.
func (tc *toolchain) packGeneric(ctx context.Context, archive string, srcDir string, entries []string) (toolReport, error) {
	path, err := tc.locator.locate()
	if err != nil {
		return toolReport{}, err
	}
	args := append([]string{"a", "-y", archive}, entries...)
	inv := Invocation{Tool: ToolGeneric, Path: path, Args: args, Dir: srcDir}
	return toolReport{tool: path}, Run(ctx, tc.cfg.Runner(), inv).ToolError()
}

// topLevelEntries lists the direct children of dir as "./name" so that names starting
// with a dash are never taken for flags.
func topLevelEntries(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]string, 0, len(des))
	for _, de := range des {
		entries = append(entries, "."+string(filepath.Separator)+de.Name())
	}
	return entries, nil
}

// clearDir removes all children of dir but keeps dir itself.
func clearDir(dir string) error {
	des, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, de := range des {
		if err := os.RemoveAll(filepath.Join(dir, de.Name())); err != nil {
			return err
		}
	}
	return nil
}

// removeIfExists removes path and ignores a missing file.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
