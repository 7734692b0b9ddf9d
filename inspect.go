// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bodgit/sevenzip"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/nwaples/rardecode"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Summary describes the content of an archive without extracting it.
type Summary struct {
	// Format is the detected format
	Format Format

	// Entries is the number of files, folders and symlinks
	Entries int64

	// Size is the uncompressed size of all entries
	Size int64

	// InputSize is the size of the archive file
	InputSize int64
}

// Inspect reads the headers of archive in-process and summarizes its content. The
// limits of cfg are checked while reading, so an oversized archive is rejected early
// with [ErrMaxFilesExceeded] or [ErrMaxExtractionSizeExceeded]. Formats that need an
// external tool to be read return [ErrInspectionNotSupported].
func Inspect(ctx context.Context, archive string, cfg *Config) (Summary, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	f, ok := Detect(archive)
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, archive)
	}
	return inspect(ctx, archive, f, cfg)
}

// entryFunc is called once per archive entry with its uncompressed size.
type entryFunc func(size int64) error

func inspect(ctx context.Context, archive string, f Format, cfg *Config) (Summary, error) {
	sum := Summary{Format: f}

	fi, err := os.Stat(archive)
	if err != nil {
		return sum, fmt.Errorf("cannot stat archive: %w", err)
	}
	sum.InputSize = fi.Size()

	count := func(size int64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		sum.Entries++
		sum.Size += size
		if err := cfg.CheckMaxFiles(sum.Entries); err != nil {
			return err
		}
		return cfg.CheckExtractionSize(sum.Size)
	}

	switch {
	case f.Kind == KindZip:
		err = inspectZip(archive, count)
	case f.Kind == KindTar:
		err = inspectTar(archive, f.Compression, count)
	case f.Kind == KindSevenZip:
		err = inspect7zip(archive, count)
	case f.Kind == KindGeneric && f.Extension == "rar":
		err = inspectRar(archive, count)
	default:
		err = fmt.Errorf("%w: %s", ErrInspectionNotSupported, f)
	}

	if err != nil {
		return sum, err
	}
	cfg.Logger().Debug("archive inspected", "archive", archive, "entries", sum.Entries, "size", sum.Size)
	return sum, nil
}

// inspectZip walks the central directory of a zip archive.
func inspectZip(archive string, fn entryFunc) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("cannot create zip reader: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := fn(int64(f.UncompressedSize64)); err != nil {
			return err
		}
	}
	return nil
}

// inspect7zip walks the headers of a 7zip archive.
func inspect7zip(archive string, fn entryFunc) error {
	r, err := sevenzip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("cannot create 7zip reader: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := fn(f.FileInfo().Size()); err != nil {
			return err
		}
	}
	return nil
}

// inspectRar walks the headers of a rar archive.
func inspectRar(archive string, fn entryFunc) error {
	r, err := rardecode.OpenReader(archive, "")
	if err != nil {
		return fmt.Errorf("cannot create rar decoder: %w", err)
	}
	defer r.Close()

	for {
		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cannot read rar header: %w", err)
		}
		if err := fn(hdr.UnPackedSize); err != nil {
			return err
		}
	}
}

// inspectTar walks the headers of a tar container wrapped in compression c.
func inspectTar(archive string, c Compression, fn entryFunc) error {
	file, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer file.Close()

	// the content has the last word, "a.tar.gz" is sometimes a plain tar
	hr, err := newHeaderReader(file, sniffHeaderLength)
	if err != nil {
		return err
	}
	stream, err := decompressStream(hr, streamCompression(hr.PeekHeader(), c))
	if err != nil {
		return fmt.Errorf("cannot start decompression: %w", err)
	}
	defer stream.Close()

	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cannot read tar header: %w", err)
		}
		if err := fn(hdr.Size); err != nil {
			return err
		}
	}
}

// decompressStream wraps src with the reader of compression c.
func decompressStream(src io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(src), nil
	case CompressionGzip:
		return gzip.NewReader(src)
	case CompressionBzip2:
		return bzip2.NewReader(src, nil)
	case CompressionXz:
		r, err := xz.NewReader(src)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(r), nil
	case CompressionLzma:
		r, err := lzma.NewReader(src)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(r), nil
	case CompressionZstd:
		r, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}
		return r.IOReadCloser(), nil
	case CompressionLz4:
		return io.NopCloser(lz4.NewReader(src)), nil
	}
	return nil, fmt.Errorf("%w: tar.%s", ErrInspectionNotSupported, c)
}
