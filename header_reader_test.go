package archivedir

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestHeaderReader(t *testing.T) {
	tests := []struct {
		name       string
		src        io.Reader
		size       int
		wantHeader string
		wantErr    bool
	}{
		{
			name:       "header shorter than content",
			src:        bytes.NewBufferString("test data"),
			size:       4,
			wantHeader: "test",
		},
		{
			name:       "content shorter than header",
			src:        bytes.NewBufferString("tiny"),
			size:       16,
			wantHeader: "tiny",
		},
		{
			name:       "empty content",
			src:        bytes.NewBuffer(nil),
			size:       16,
			wantHeader: "",
		},
		{
			name:    "read error",
			src:     failingReader{},
			size:    16,
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			hr, err := newHeaderReader(test.src, test.size)
			if (err != nil) != test.wantErr {
				t.Fatalf("newHeaderReader() error = %v, wantErr %v", err, test.wantErr)
			}
			if err != nil {
				return
			}
			if got := string(hr.PeekHeader()); got != test.wantHeader {
				t.Errorf("PeekHeader() = %q, want %q", got, test.wantHeader)
			}
		})
	}
}

func TestHeaderReaderReplaysHeader(t *testing.T) {
	hr, err := newHeaderReader(bytes.NewBufferString("test data"), 4)
	if err != nil {
		t.Fatal(err)
	}
	all, err := io.ReadAll(hr)
	if err != nil {
		t.Fatal(err)
	}
	if string(all) != "test data" {
		t.Errorf("expected full content, got %q", all)
	}
	if string(hr.PeekHeader()) != "test" {
		t.Errorf("expected header to stay available after reading")
	}
}

func TestStreamCompression(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		ext    Compression
		want   Compression
	}{
		{"gzip content", []byte{0x1f, 0x8b, 0x08}, CompressionGzip, CompressionGzip},
		{"plain content behind gzip extension", append(make([]byte, 257), []byte("ustar\x0000")...), CompressionGzip, CompressionNone},
		{"xz content behind gzip extension", []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}, CompressionGzip, CompressionXz},
		{"unknown content", []byte("garbage"), CompressionLzma, CompressionLzma},
		{"zip content", []byte{0x50, 0x4B, 0x03, 0x04}, CompressionGzip, CompressionGzip},
	}

	for _, test := range tests {
		if got := streamCompression(test.header, test.ext); got != test.want {
			t.Errorf("%s: streamCompression() = %s, want %s", test.name, got, test.want)
		}
	}
}
