// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"fmt"
	"os"
	"sync"
)

// toolLocator finds the generic tool once and remembers the answer.
type toolLocator struct {
	candidates []string
	once       sync.Once
	path       string
	err        error
}

func newToolLocator(candidates []string) *toolLocator {
	return &toolLocator{candidates: candidates}
}

// locate returns the first candidate that is an executable regular file. The
// candidates are tried on the first call only.
func (l *toolLocator) locate() (string, error) {
	l.once.Do(func() {
		for _, c := range l.candidates {
			fi, err := os.Stat(c)
			if err != nil {
				continue
			}
			if fi.Mode().IsRegular() && fi.Mode().Perm()&0111 != 0 {
				l.path = c
				return
			}
		}
		l.err = fmt.Errorf("%w: tried %d locations", ErrToolNotFound, len(l.candidates))
	})
	return l.path, l.err
}
