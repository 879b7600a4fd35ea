package render

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// DecodeState carries the trailing bytes of an incomplete UTF-8 sequence
// from one call of Decode to the next. The zero value is ready to use.
type DecodeState struct {
	pending []byte
}

// Pending returns the number of buffered bytes.
func (s DecodeState) Pending() int {
	return len(s.pending)
}

// Decode converts p to text, prefixed by any bytes buffered in state.
// A multi-byte sequence cut at the end of p is held back and returned in
// the new state. When atEOF is set nothing is held back and an incomplete
// sequence becomes U+FFFD. Invalid bytes always become U+FFFD.
func Decode(state DecodeState, p []byte, atEOF bool) (DecodeState, string) {
	src := p
	if len(state.pending) > 0 {
		src = make([]byte, 0, len(state.pending)+len(p))
		src = append(append(src, state.pending...), p...)
	}
	if len(src) == 0 {
		return DecodeState{}, ""
	}

	// Each input byte yields at most 3 output bytes (U+FFFD).
	dst := make([]byte, len(src)*3+utf8.UTFMax)
	nDst, nSrc, _ := unicode.UTF8.NewDecoder().Transform(dst, src, atEOF)

	var next DecodeState
	if nSrc < len(src) {
		next.pending = bytes.Clone(src[nSrc:])
	}
	return next, string(dst[:nDst])
}

// Decoder is a stateful wrapper around Decode for a single stream.
type Decoder struct {
	state DecodeState
}

// Write decodes the next chunk of the stream.
func (d *Decoder) Write(p []byte) string {
	var text string
	d.state, text = Decode(d.state, p, false)
	return text
}

// Flush ends the stream and returns whatever was still buffered.
func (d *Decoder) Flush() string {
	var text string
	d.state, text = Decode(d.state, nil, true)
	return text
}
