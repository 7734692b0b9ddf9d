// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Kind is the container family of an archive format.
type Kind int

const (
	// KindZip is a zip container, handled by the zip tools.
	KindZip Kind = iota + 1

	// KindTar is a tar container, optionally wrapped in a compression stream.
	KindTar

	// KindCompress is a unix-compress (.Z) stream, handled by tar's -Z flag.
	KindCompress

	// KindSevenZip is a native 7z archive, handled by the generic tool.
	KindSevenZip

	// KindGeneric is any other known archive, handed to the generic tool.
	KindGeneric
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindZip:
		return "zip"
	case KindTar:
		return "tar"
	case KindCompress:
		return "compress"
	case KindSevenZip:
		return "7z"
	case KindGeneric:
		return "generic"
	}
	return "unknown"
}

// Compression is the compression stream that wraps a tar container.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionBzip2
	CompressionXz
	CompressionLzma
	CompressionZstd
	CompressionLz4
	CompressionLzo
	CompressionLzip
)

// String returns the conventional short name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gz"
	case CompressionBzip2:
		return "bz2"
	case CompressionXz:
		return "xz"
	case CompressionLzma:
		return "lzma"
	case CompressionZstd:
		return "zst"
	case CompressionLz4:
		return "lz4"
	case CompressionLzo:
		return "lzo"
	case CompressionLzip:
		return "lz"
	}
	return ""
}

// Format identifies how an archive is extracted and rebuilt. It is resolved once when
// the archive is opened and never changes afterwards.
type Format struct {
	// Kind is the container family
	Kind Kind

	// Compression is the compression around a tar container. It is
	// CompressionNone for every other kind.
	Compression Compression

	// Extension is the matched file extension without the leading dot, lower case
	Extension string
}

// String returns a readable representation, e.g. "tar.zst" or "zip".
func (f Format) String() string {
	if f.Kind == KindTar && f.Compression != CompressionNone {
		return "tar." + f.Compression.String()
	}
	return f.Kind.String()
}

// NeedsGenericTool reports whether the format is only handled by the generic tool.
func (f Format) NeedsGenericTool() bool {
	return f.Kind == KindSevenZip || f.Kind == KindGeneric
}

// isTarFamily reports whether the format is handled by tar with the generic tool as fallback.
func (f Format) isTarFamily() bool {
	return f.Kind == KindTar || f.Kind == KindCompress
}

func tarFormat(ext string, c Compression) Format {
	return Format{Kind: KindTar, Compression: c, Extension: ext}
}

// compoundExtensions are tested before the single extension table. The order does
// not matter as long as no entry is a suffix of another one.
var compoundExtensions = []Format{
	tarFormat("tar.gz", CompressionGzip),
	tarFormat("tar.bz2", CompressionBzip2),
	tarFormat("tar.bz", CompressionBzip2),
	tarFormat("tar.xz", CompressionXz),
	tarFormat("tar.lzma", CompressionLzma),
	tarFormat("tar.zst", CompressionZstd),
	tarFormat("tar.zstd", CompressionZstd),
	tarFormat("tar.lz4", CompressionLz4),
	tarFormat("tar.lzo", CompressionLzo),
	tarFormat("tar.lz", CompressionLzip),
	{Kind: KindCompress, Extension: "tar.z"},
}

// singleExtensions maps a trailing extension to a specific format.
var singleExtensions = map[string]Format{
	"zip":  {Kind: KindZip, Extension: "zip"},
	"jar":  {Kind: KindZip, Extension: "jar"},
	"tar":  tarFormat("tar", CompressionNone),
	"tgz":  tarFormat("tgz", CompressionGzip),
	"tbz":  tarFormat("tbz", CompressionBzip2),
	"tbz2": tarFormat("tbz2", CompressionBzip2),
	"txz":  tarFormat("txz", CompressionXz),
	"tlz":  tarFormat("tlz", CompressionLzma),
	"tzst": tarFormat("tzst", CompressionZstd),
	"taz":  {Kind: KindCompress, Extension: "taz"},
	"z":    {Kind: KindCompress, Extension: "z"},
	"7z":   {Kind: KindSevenZip, Extension: "7z"},
}

// knownArchiveExtensions lists everything the generic tool is expected to read. Entries
// without a specific mapping in singleExtensions resolve to KindGeneric.
var knownArchiveExtensions = map[string]struct{}{
	"zip": {}, "jar": {}, "tar": {}, "tgz": {}, "tbz": {}, "tbz2": {}, "txz": {}, "tlz": {},
	"tzst": {}, "taz": {}, "z": {}, "7z": {},
	"rar": {}, "gz": {}, "bz2": {}, "xz": {}, "lzma": {}, "zst": {}, "lz4": {}, "lz": {},
	"iso": {}, "cab": {}, "arj": {}, "lzh": {}, "cpio": {}, "rpm": {}, "deb": {},
	"wim": {}, "dmg": {}, "xar": {},
}

// Detect resolves the archive format from the file name alone. Compound suffixes such
// as ".tar.gz" are matched before the trailing extension, so "a.tar.gz" is a gzip
// compressed tar and not a plain gzip stream. Matching is case-insensitive.
func Detect(name string) (Format, bool) {
	base := strings.ToLower(filepath.Base(name))

	// compound suffixes first
	for _, f := range compoundExtensions {
		if strings.HasSuffix(base, "."+f.Extension) {
			return f, true
		}
	}

	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	if len(ext) == 0 {
		return Format{}, false
	}

	if f, ok := singleExtensions[ext]; ok {
		return f, true
	}

	if _, ok := knownArchiveExtensions[ext]; ok {
		return Format{Kind: KindGeneric, Extension: ext}, true
	}

	return Format{}, false
}

// IsArchive reports whether name has an extension the catalog can open.
func IsArchive(name string) bool {
	_, ok := Detect(name)
	return ok
}

// IsCompoundArchive reports whether name ends with a two-part suffix like ".tar.gz".
func IsCompoundArchive(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	for _, f := range compoundExtensions {
		if strings.HasSuffix(base, "."+f.Extension) {
			return true
		}
	}
	return false
}

// magic bytes of the containers and streams Sniff can recognize
var (
	magicBytesZip      = [][]byte{{0x50, 0x4B, 0x03, 0x04}, {0x50, 0x4B, 0x05, 0x06}}
	magicBytes7zip     = [][]byte{{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}}
	magicBytesRar      = [][]byte{{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}, {0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}}
	magicBytesGzip     = [][]byte{{0x1f, 0x8b}}
	magicBytesBzip2    = [][]byte{[]byte("BZh")}
	magicBytesXz       = [][]byte{{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}}
	magicBytesZstd     = [][]byte{{0x28, 0xb5, 0x2f, 0xfd}}
	magicBytesLz4      = [][]byte{{0x04, 0x22, 0x4D, 0x18}}
	magicBytesLzip     = [][]byte{[]byte("LZIP")}
	magicBytesCompress = [][]byte{{0x1F, 0x9D}}
	magicBytesTar      = [][]byte{[]byte("ustar\x00tar\x00"), []byte("ustar\x0000"), []byte("ustar  \x00")}
)

// offsetTar is the offset of the ustar signature in a tar header
const offsetTar = 257

// sniffHeaderLength is the number of leading bytes Sniff needs to see all signatures.
const sniffHeaderLength = offsetTar + 8

// Sniff identifies the outer container or compression stream from the leading bytes of
// a file. A compression stream is reported as a tar of that compression, since the
// stream content is not decompressed. Sniff never replaces Detect; it is a consistency
// check for files whose extension lies.
func Sniff(header []byte) (Format, bool) {
	switch {
	case matchesMagicBytes(header, 0, magicBytesZip):
		return Format{Kind: KindZip, Extension: "zip"}, true
	case matchesMagicBytes(header, 0, magicBytes7zip):
		return Format{Kind: KindSevenZip, Extension: "7z"}, true
	case matchesMagicBytes(header, 0, magicBytesRar):
		return Format{Kind: KindGeneric, Extension: "rar"}, true
	case matchesMagicBytes(header, 0, magicBytesGzip):
		return tarFormat("gz", CompressionGzip), true
	case matchesMagicBytes(header, 0, magicBytesBzip2):
		return tarFormat("bz2", CompressionBzip2), true
	case matchesMagicBytes(header, 0, magicBytesXz):
		return tarFormat("xz", CompressionXz), true
	case matchesMagicBytes(header, 0, magicBytesZstd):
		return tarFormat("zst", CompressionZstd), true
	case matchesMagicBytes(header, 0, magicBytesLz4):
		return tarFormat("lz4", CompressionLz4), true
	case matchesMagicBytes(header, 0, magicBytesLzip):
		return tarFormat("lz", CompressionLzip), true
	case matchesMagicBytes(header, 0, magicBytesCompress):
		return Format{Kind: KindCompress, Extension: "z"}, true
	case matchesMagicBytes(header, offsetTar, magicBytesTar):
		return tarFormat("tar", CompressionNone), true
	}
	return Format{}, false
}

// sameContainer reports whether a sniffed format agrees with the detected one. Only
// the parts a header can tell apart are compared.
func sameContainer(detected, sniffed Format) bool {
	switch detected.Kind {
	case KindGeneric:
		// the generic tool reads all sorts of formats, nothing to compare
		return true
	case KindTar:
		return sniffed.Kind == KindTar && sniffed.Compression == detected.Compression
	}
	return detected.Kind == sniffed.Kind
}

// matchesMagicBytes checks if the bytes in data are equal to magicBytes after a given offset.
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	for _, magicBytes := range magicBytes {
		if offset+len(magicBytes) > len(data) {
			continue
		}
		if bytes.Equal(magicBytes, data[offset:offset+len(magicBytes)]) {
			return true
		}
	}
	return false
}
