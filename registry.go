// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// phase is the transitional state of an archive path.
type phase int

const (
	phaseOpening phase = iota + 1
	phaseClosing
)

// Registry keeps track of all open archives of the process.
//
// Each archive path moves through Absent, Opening, Open and Closing. The registry
// lock only guards this bookkeeping; extraction and repack run without it. Two opens
// of the same path never extract twice: the second caller polls until the first one
// finished.
type Registry struct {
	config     *Config
	tools      *toolchain
	scratchDir string

	mu       sync.Mutex
	sessions map[string]*Session
	pending  map[string]phase
}

// NewRegistry creates a registry. The scratch directory is wiped and recreated, since
// leftovers of a previous process are never reused.
func NewRegistry(opts ...ConfigOption) (*Registry, error) {
	cfg := NewConfig(opts...)

	if err := os.RemoveAll(cfg.ScratchDir()); err != nil {
		return nil, fmt.Errorf("cannot wipe scratch directory: %w", err)
	}
	if err := os.MkdirAll(cfg.ScratchDir(), 0700); err != nil {
		return nil, fmt.Errorf("cannot create scratch directory: %w", err)
	}

	return &Registry{
		config:     cfg,
		tools:      newToolchain(cfg),
		scratchDir: canonicalPath(cfg.ScratchDir()),
		sessions:   make(map[string]*Session),
		pending:    make(map[string]phase),
	}, nil
}

// Config returns the configuration of the registry.
func (r *Registry) Config() *Config {
	return r.config
}

// ScratchDir returns the canonical base directory of all temp directories.
func (r *Registry) ScratchDir() string {
	return r.scratchDir
}

// Open extracts archive into a fresh temp directory and returns it. Opening an
// archive that is already open returns the existing temp directory without
// extracting again. A concurrent open of the same archive waits for the first one
// and fails with [ErrOpenTimeout] if that takes too long.
func (r *Registry) Open(ctx context.Context, archive string) (string, error) {

	// prepare telemetry data collection and emit
	td := &TelemetryData{Operation: OperationOpen}
	defer r.config.TelemetryHook()(ctx, td)
	defer captureDuration(td, time.Now())

	tempDir, err := r.open(ctx, archive, td)
	td.Error = err
	return tempDir, err
}

func (r *Registry) open(ctx context.Context, archive string, td *TelemetryData) (string, error) {
	path := canonicalPath(archive)
	td.Archive = path

	// fail fast without side effects; the name the caller sees decides the format,
	// a symlink target may be named anything
	f, ok := Detect(archive)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, archive)
	}
	td.Format = f.String()

	for {
		r.mu.Lock()
		if s, ok := r.sessions[path]; ok {
			r.mu.Unlock()
			r.config.Logger().Debug("archive already open", "archive", path, "tempDir", s.TempDir)
			td.Entries = int64(len(s.Baseline))
			return s.TempDir, nil
		}
		if _, busy := r.pending[path]; busy {
			r.mu.Unlock()
			tempDir, absent, err := r.awaitSession(ctx, path)
			if err != nil {
				return "", err
			}
			if absent {
				// the other caller gave up or closed the archive, try on our own
				continue
			}
			return tempDir, nil
		}
		r.pending[path] = phaseOpening
		r.mu.Unlock()
		break
	}

	s, err := r.extractSession(ctx, path, f, td)

	r.mu.Lock()
	delete(r.pending, path)
	if err == nil {
		r.sessions[path] = s
	}
	r.mu.Unlock()

	if err != nil {
		return "", err
	}
	r.config.Logger().Info("archive opened", "archive", path, "tempDir", s.TempDir, "entries", len(s.Baseline))
	return s.TempDir, nil
}

// awaitSession polls until path is open or absent again. absent is true if the path
// is neither open nor pending anymore, e.g. because the first opener failed.
func (r *Registry) awaitSession(ctx context.Context, path string) (tempDir string, absent bool, err error) {
	r.config.Logger().Debug("waiting for concurrent operation", "archive", path)

	for i := 0; i < r.config.PollAttempts(); i++ {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(r.config.PollInterval()):
		}

		r.mu.Lock()
		s, open := r.sessions[path]
		_, busy := r.pending[path]
		r.mu.Unlock()

		if open {
			return s.TempDir, false, nil
		}
		if !busy {
			return "", true, nil
		}
	}

	return "", false, fmt.Errorf("%w: %s", ErrOpenTimeout, path)
}

// extractSession runs the long part of an open without holding the registry lock.
func (r *Registry) extractSession(ctx context.Context, path string, f Format, td *TelemetryData) (*Session, error) {
	_, toolErr := r.tools.locator.locate()
	if f.NeedsGenericTool() && toolErr != nil {
		return nil, toolErr
	}

	attrs, err := captureAttributes(path)
	if err != nil {
		return nil, err
	}

	r.verifyHeader(path, f)

	if r.config.needsInspection() {
		if _, err := inspect(ctx, path, f, r.config); err != nil && !errors.Is(err, ErrInspectionNotSupported) {
			return nil, err
		}
	}

	tempDir, err := os.MkdirTemp(r.scratchDir, tempDirPattern(path))
	if err != nil {
		return nil, fmt.Errorf("cannot create temp directory: %w", err)
	}
	tempDir = canonicalPath(tempDir)

	report, err := r.tools.extract(ctx, path, f, tempDir)
	td.Tool = report.tool
	td.Fallback = report.fallback
	if err != nil {
		r.removeTempDir(tempDir)
		return nil, err
	}

	baseline, err := snapshot(tempDir)
	if err != nil {
		r.removeTempDir(tempDir)
		return nil, err
	}
	td.Entries = int64(len(baseline))

	return &Session{
		ArchivePath:          path,
		TempDir:              tempDir,
		Format:               f,
		GenericToolAvailable: toolErr == nil,
		CreatedAt:            time.Now().Round(0),
		Attributes:           attrs,
		Baseline:             baseline,
	}, nil
}

// verifyHeader logs a warning if the content of the archive does not look like its
// extension says. Detection stays extension based; the tools have the last word.
func (r *Registry) verifyHeader(path string, f Format) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	hr, err := newHeaderReader(file, sniffHeaderLength)
	if err != nil {
		return
	}

	if sniffed, ok := Sniff(hr.PeekHeader()); ok && !sameContainer(f, sniffed) {
		r.config.Logger().Warn("archive content does not match its extension", "archive", path, "extension", f.String(), "content", sniffed.String())
	}
}

// MarkDirty flags the session of archive as changed. It returns false if the archive
// is not open.
func (r *Registry) MarkDirty(archive string) bool {
	path := canonicalPath(archive)

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[path]
	if !ok {
		return false
	}
	r.markDirty(s)
	return true
}

// MarkDirtyByTempPath flags the session whose temp directory contains path as
// changed. It returns false if path is not inside an open archive.
func (r *Registry) MarkDirtyByTempPath(path string) bool {
	path = canonicalPath(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.lookup(path)
	if s == nil {
		return false
	}
	r.markDirty(s)
	return true
}

// markDirty must be called with the lock held.
func (r *Registry) markDirty(s *Session) {
	if !s.Dirty {
		r.config.Logger().Debug("session marked dirty", "archive", s.ArchivePath)
	}
	s.Dirty = true
}

// Close ends the session of archive. Changes are detected from explicit marks and a
// scan of the temp directory; a dirty session is repacked if repackIfDirty is set.
// The temp directory is removed in any case. Closing an archive that is not open is
// a no-op.
func (r *Registry) Close(ctx context.Context, archive string, repackIfDirty bool) error {
	path := canonicalPath(archive)

	r.mu.Lock()
	s, ok := r.sessions[path]
	if !ok {
		r.mu.Unlock()
		r.config.Logger().Debug("close of unknown archive ignored", "archive", path)
		return nil
	}
	delete(r.sessions, path)
	r.pending[path] = phaseClosing
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, path)
		r.mu.Unlock()
	}()

	// prepare telemetry data collection and emit
	td := &TelemetryData{
		Operation: OperationClose,
		Archive:   path,
		Format:    s.Format.String(),
		Entries:   int64(len(s.Baseline)),
	}
	defer r.config.TelemetryHook()(ctx, td)
	defer captureDuration(td, time.Now())

	err := r.closeSession(ctx, s, repackIfDirty, td)
	td.Error = err
	return err
}

func (r *Registry) closeSession(ctx context.Context, s *Session, repackIfDirty bool, td *TelemetryData) error {
	dirty := s.Dirty
	if !dirty {
		changed, err := changedSince(s.TempDir, s.CreatedAt, s.Baseline)
		if err != nil {
			// edits cannot be ruled out, a repack is backed up and safe
			r.config.Logger().Warn("dirty scan failed, assuming changes", "archive", s.ArchivePath, "error", err)
			changed = true
		}
		dirty = changed
	}
	td.Dirty = dirty

	var repackErr error
	switch {
	case dirty && repackIfDirty:
		report, err := r.tools.repack(ctx, s)
		td.Tool = report.tool
		td.Fallback = report.fallback
		td.Repacked = err == nil
		repackErr = err
	case dirty:
		r.config.Logger().Info("discarding changes", "archive", s.ArchivePath)
	}

	if err := os.RemoveAll(s.TempDir); err != nil {
		r.config.Logger().Warn("cannot remove temp directory", "tempDir", s.TempDir, "error", err)
		if repackErr == nil {
			return fmt.Errorf("cannot remove temp directory: %w", err)
		}
	}

	if repackErr == nil {
		r.config.Logger().Info("archive closed", "archive", s.ArchivePath, "dirty", dirty, "repacked", td.Repacked)
	}
	return repackErr
}

// SessionForPath returns a copy of the session whose temp directory contains path.
func (r *Registry) SessionForPath(path string) (Session, bool) {
	path = canonicalPath(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.lookup(path); s != nil {
		return *s, true
	}
	return Session{}, false
}

// IsInsideArchive reports whether path lies inside the temp directory of an open archive.
func (r *Registry) IsInsideArchive(path string) bool {
	_, ok := r.SessionForPath(path)
	return ok
}

// ArchivePath returns the archive a temp path belongs to.
func (r *Registry) ArchivePath(tempPath string) (string, bool) {
	s, ok := r.SessionForPath(tempPath)
	if !ok {
		return "", false
	}
	return s.ArchivePath, true
}

// Sessions returns copies of all open sessions ordered by archive path.
func (r *Registry) Sessions() []Session {
	r.mu.Lock()
	sessions := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, *s)
	}
	r.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ArchivePath < sessions[j].ArchivePath
	})
	return sessions
}

// lookup must be called with the lock held.
func (r *Registry) lookup(path string) *Session {
	for _, s := range r.sessions {
		if s.Contains(path) {
			return s
		}
	}
	return nil
}

// Cleanup removes the temp directories of all sessions without repacking. It is meant
// for process shutdown; changes that were not closed properly are lost.
func (r *Registry) Cleanup() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	eg := &errgroup.Group{}
	for _, s := range sessions {
		tempDir := s.TempDir
		eg.Go(func() error {
			if err := os.RemoveAll(tempDir); err != nil {
				return fmt.Errorf("cannot remove temp directory %s: %w", tempDir, err)
			}
			return nil
		})
	}

	err := eg.Wait()
	r.config.Logger().Info("registry cleaned up", "sessions", len(sessions), "error", err)
	return err
}

// removeTempDir removes a temp directory of a failed open.
func (r *Registry) removeTempDir(tempDir string) {
	if err := os.RemoveAll(tempDir); err != nil {
		r.config.Logger().Warn("cannot remove temp directory", "tempDir", tempDir, "error", err)
	}
}
