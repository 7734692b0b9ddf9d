// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
)

// errChangeFound stops a dirty scan at the first change.
var errChangeFound = errors.New("change found")

// walkVisible calls fn for every entry below root that is not hidden and not inside a
// hidden directory. root itself is reported with rel ".". fn may be called from
// several goroutines at once.
func walkVisible(root string, fn func(rel string, fi fs.FileInfo) error) error {
	conf := fastwalk.Config{Follow: false}
	return fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if rel != "." && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("cannot stat %s: %w", path, err)
		}
		return fn(rel, fi)
	})
}

// snapshot captures the modification time of every visible entry below root.
func snapshot(root string) (map[string]time.Time, error) {
	var mu sync.Mutex
	baseline := make(map[string]time.Time)

	err := walkVisible(root, func(rel string, fi fs.FileInfo) error {
		if rel == "." {
			return nil
		}
		mu.Lock()
		baseline[rel] = fi.ModTime()
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot snapshot %s: %w", root, err)
	}
	return baseline, nil
}

// changedSince reports whether the visible content of root changed after since. A
// file counts as changed when its modification time is after since or differs from
// the baseline. Any entry missing from the baseline, or a baseline entry that is
// gone, is a change as well. Directory modification times are not compared: hidden
// files touch them too, and visible additions or removals show up in the baseline.
func changedSince(root string, since time.Time, baseline map[string]time.Time) (bool, error) {
	var mu sync.Mutex
	seen := make(map[string]struct{}, len(baseline))

	err := walkVisible(root, func(rel string, fi fs.FileInfo) error {
		if rel == "." {
			return nil
		}

		known, ok := baseline[rel]
		if !ok {
			return errChangeFound
		}
		if !fi.IsDir() {
			mtime := fi.ModTime()
			if mtime.After(since) || !known.Equal(mtime) {
				return errChangeFound
			}
		}

		mu.Lock()
		seen[rel] = struct{}{}
		mu.Unlock()
		return nil
	})
	if errors.Is(err, errChangeFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("cannot scan %s: %w", root, err)
	}

	return len(seen) != len(baseline), nil
}
