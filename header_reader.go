// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"errors"
	"fmt"
	"io"
)

// headerReader is an io.Reader that keeps the leading bytes of a file so they can
// be sniffed before the whole stream is handed to a decompressor.
type headerReader struct {
	r      io.Reader
	header []byte
	pos    int
}

func newHeaderReader(r io.Reader, headerSize int) (*headerReader, error) {
	// a file shorter than the header is fine, keep whatever was read
	buf := make([]byte, headerSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	return &headerReader{r: r, header: buf[:n]}, nil
}

func (h *headerReader) Read(b []byte) (int, error) {
	// replay the header first
	if h.pos < len(h.header) {
		n := copy(b, h.header[h.pos:])
		h.pos += n
		return n, nil
	}
	return h.r.Read(b)
}

// PeekHeader returns the leading bytes without consuming them.
func (h *headerReader) PeekHeader() []byte {
	return h.header
}

// streamCompression returns the compression the header shows for a tar-family
// stream. When the header is not recognized the compression of the extension is kept.
func streamCompression(header []byte, fromExtension Compression) Compression {
	sniffed, ok := Sniff(header)
	if !ok || sniffed.Kind != KindTar {
		return fromExtension
	}
	return sniffed.Compression
}
