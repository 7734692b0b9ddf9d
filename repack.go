// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// repack rebuilds the archive of s from its temp directory.
//
// The archive is copied to a backup next to it before it is deleted and rebuilt. If
// the rebuild fails for any reason, the backup is moved back in place before the
// error is returned, so the original archive survives a crashing tool. On success
// the backup is removed and the attributes of the original are applied.
func (tc *toolchain) repack(ctx context.Context, s *Session) (toolReport, error) {
	archive := s.ArchivePath
	backup := backupPath(archive)

	if err := copyFile(archive, backup); err != nil {
		if rmErr := removeIfExists(backup); rmErr != nil {
			tc.cfg.Logger().Warn("cannot remove incomplete backup", "backup", backup, "error", rmErr)
		}
		return toolReport{}, fmt.Errorf("%w: %s: cannot create backup: %w", ErrRepackFailed, archive, err)
	}
	tc.cfg.Logger().Debug("archive backed up", "archive", archive, "backup", backup)

	if err := os.Remove(archive); err != nil {
		if rmErr := removeIfExists(backup); rmErr != nil {
			tc.cfg.Logger().Warn("cannot remove backup", "backup", backup, "error", rmErr)
		}
		return toolReport{}, fmt.Errorf("%w: %s: cannot remove original: %w", ErrRepackFailed, archive, err)
	}

	report, err := tc.rebuild(ctx, archive, s)
	if err != nil {
		if restoreErr := os.Rename(backup, archive); restoreErr != nil {
			tc.cfg.Logger().Error("cannot restore archive from backup", "archive", archive, "backup", backup, "error", restoreErr)
			return report, fmt.Errorf("%w: %s: %w (backup kept at %s: %w)", ErrRepackFailed, archive, err, backup, restoreErr)
		}
		tc.cfg.Logger().Warn("archive restored from backup", "archive", archive, "error", err)
		return report, fmt.Errorf("%w: %s: %w", ErrRepackFailed, archive, err)
	}

	if err := os.Remove(backup); err != nil {
		tc.cfg.Logger().Warn("cannot remove backup", "backup", backup, "error", err)
	}
	if err := restoreAttributes(archive, s.Attributes, time.Now(), tc.cfg.Logger()); err != nil {
		tc.cfg.Logger().Warn("cannot apply archive attributes", "archive", archive, "error", err)
	}
	tc.cfg.Logger().Info("archive repacked", "archive", archive, "tool", report.tool, "fallback", report.fallback)
	return report, nil
}

// rebuild writes archive from the current top-level entries of the temp directory.
func (tc *toolchain) rebuild(ctx context.Context, archive string, s *Session) (toolReport, error) {
	entries, err := topLevelEntries(s.TempDir)
	if err != nil {
		return toolReport{}, fmt.Errorf("cannot list temp directory: %w", err)
	}

	report, err := tc.pack(ctx, archive, s.Format, s.TempDir, entries)
	if err != nil {
		return report, err
	}

	// a tool that exits cleanly without writing anything is a failure as well
	fi, err := os.Stat(archive)
	if err != nil {
		return report, fmt.Errorf("rebuilt archive missing: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return report, fmt.Errorf("rebuilt archive is not a regular file")
	}
	return report, nil
}

// backupPath returns a unique hidden sibling of archive.
func backupPath(archive string) string {
	dir, name := filepath.Split(archive)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.bak", name, uuid.NewString()))
}

// copyFile copies src to the new file dst and syncs it to disk.
func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		return errors.Join(err, out.Close())
	}
	if err := out.Sync(); err != nil {
		return errors.Join(err, out.Close())
	}
	return out.Close()
}
