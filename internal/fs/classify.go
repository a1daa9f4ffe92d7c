package fs

import (
	"bytes"
	"errors"
	"io"
	"unicode/utf8"
)

const (
	// SampleSize is the number of leading bytes inspected to decide whether
	// a file is text.
	SampleSize = 128

	// PrintableASCIIThreshold is the minimum share of printable ASCII bytes
	// a sample needs to be treated as text.
	PrintableASCIIThreshold = 0.7
)

// binarySignatures are magic numbers of common binary formats.
var binarySignatures = [][]byte{
	[]byte("\x7fELF"),                    // ELF
	[]byte("MZ"),                         // PE / DOS executables
	{0xfe, 0xed, 0xfa, 0xce},             // Mach-O 32
	{0xfe, 0xed, 0xfa, 0xcf},             // Mach-O 64
	{0xce, 0xfa, 0xed, 0xfe},             // Mach-O 32 (reversed)
	{0xcf, 0xfa, 0xed, 0xfe},             // Mach-O 64 (reversed)
	{0xca, 0xfe, 0xba, 0xbe},             // Java class / Mach-O fat
	[]byte("\x89PNG\r\n\x1a\n"),          // PNG
	{0xff, 0xd8, 0xff},                   // JPEG
	[]byte("GIF87a"),                     // GIF
	[]byte("GIF89a"),                     // GIF
	[]byte("%PDF-"),                      // PDF
	[]byte("PK\x03\x04"),                 // ZIP, JAR, OOXML
	{0x1f, 0x8b},                         // gzip
	[]byte("BZh"),                        // bzip2
	{0xfd, '7', 'z', 'X', 'Z', 0x00},     // xz
	{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c},   // 7z
	[]byte("Rar!\x1a\x07"),               // RAR
	{0x28, 0xb5, 0x2f, 0xfd},             // zstd
	[]byte("\x00asm"),                    // WebAssembly
	[]byte("SQLite format 3\x00"),        // SQLite
	{0x00, 0x00, 0x01, 0x00},             // ICO
	[]byte("OggS"),                       // Ogg
	[]byte("RIFF"),                       // WAV, AVI, WebP
	[]byte("ID3"),                        // MP3
	[]byte("fLaC"),                       // FLAC
	[]byte("wOFF"),                       // WOFF
	[]byte("wOF2"),                       // WOFF2
	{0x00, 0x01, 0x00, 0x00, 0x00},       // TrueType
	[]byte("!<arch>\n"),                  // ar / .deb / static libraries
	{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1}, // legacy Office (OLE2)
}

// ReadSample reads up to SampleSize bytes from r. A short read is not an
// error.
func ReadSample(r io.Reader) ([]byte, error) {
	buf := make([]byte, SampleSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:n], nil
}

// IsSearchableText decides whether a file whose first bytes are sample is
// worth searching line by line.
func IsSearchableText(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	if len(sample) > SampleSize {
		sample = sample[:SampleSize]
	}

	if hasBinarySignature(sample) {
		return false
	}

	// Null bytes are a strong indicator of binary
	if bytes.IndexByte(sample, 0) >= 0 {
		return false
	}

	if !validUTF8Prefix(sample) {
		return false
	}

	return proportionOfPrintableASCII(sample) >= PrintableASCIIThreshold
}

// hasBinarySignature reports whether the sample starts with a known binary
// magic number. The MP4 family carries its marker at offset 4.
func hasBinarySignature(sample []byte) bool {
	for _, sig := range binarySignatures {
		if bytes.HasPrefix(sample, sig) {
			return true
		}
	}
	return len(sample) >= 8 && bytes.Equal(sample[4:8], []byte("ftyp"))
}

// validUTF8Prefix is utf8.Valid, except that a rune cut short by the end of
// the sample is accepted.
func validUTF8Prefix(sample []byte) bool {
	for i := 0; i < len(sample); {
		if sample[i] < utf8.RuneSelf {
			i++
			continue
		}
		r, size := utf8.DecodeRune(sample[i:])
		if r == utf8.RuneError && size == 1 {
			return !utf8.FullRune(sample[i:]) && len(sample)-i < utf8.UTFMax
		}
		i += size
	}
	return true
}

// proportionOfPrintableASCII returns the share of bytes that are printable
// ASCII or common whitespace.
func proportionOfPrintableASCII(sample []byte) float64 {
	printable := 0
	for _, b := range sample {
		if (b >= 0x20 && b < 0x7f) || b == '\t' || b == '\n' || b == '\r' {
			printable++
		}
	}
	return float64(printable) / float64(len(sample))
}
