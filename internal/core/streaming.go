package core

// streaming.go decodes import files to UTF-8 while they are read.
//
// Logbook exports come from spreadsheet programs and club software in
// whatever code page the machine used. DecodeReader picks the decoder from
// the encoding name:
//
//   - UTF-8: the BOM is skipped and invalid bytes are replaced with '?'
//   - anything known to the WHATWG or IANA index (windows-1252, latin1,
//     iso-8859-15, ...): decoded with golang.org/x/text

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// DecodeReader wraps r so that it yields UTF-8 text decoded from the named
// encoding. It returns an error for unknown encoding names.
func DecodeReader(r io.Reader, name string) (io.Reader, error) {
	if isUTF8(name) {
		return NewStreamingUTF8Sanitizer(NewBOMSkippingReader(r)), nil
	}

	enc, err := LookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// LookupEncoding resolves an encoding name via the WHATWG index first and
// the IANA registry second.
func LookupEncoding(name string) (encoding.Encoding, error) {
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("encoding error: unsupported encoding %q", name)
	}
	return enc, nil
}

func isUTF8(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return true
	}
	return false
}

// StreamingUTF8Sanitizer wraps an io.Reader and replaces invalid UTF-8 bytes
// with '?' on the fly, keeping the byte count unchanged. Multi-byte
// sequences split across reads are carried over to the next read.
type StreamingUTF8Sanitizer struct {
	reader   io.Reader
	pending  []byte
	replaced int
}

// NewStreamingUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewStreamingUTF8Sanitizer(r io.Reader) *StreamingUTF8Sanitizer {
	return &StreamingUTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Replaced returns how many invalid bytes have been replaced so far.
func (s *StreamingUTF8Sanitizer) Replaced() int {
	return s.replaced
}

// Read implements io.Reader.
func (s *StreamingUTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	// A sequence cut off at the end makes the chunk invalid, so valid
	// chunks need no further look.
	if utf8.Valid(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize rewrites data in place and returns the number of bytes to hand
// out. A possibly incomplete sequence at the end is kept for the next read
// unless atEOF.
func (s *StreamingUTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		if !atEOF && !utf8.FullRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			s.replaced++
			write++
			read++
			continue
		}
		write += copy(data[write:], data[read:read+size])
		read += size
	}
	return write
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewBOMSkippingReader returns a reader that drops a leading UTF-8 BOM, as
// written by Windows spreadsheet programs.
func NewBOMSkippingReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
