package frame

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultMaxPending bounds the text held back while waiting for a newline.
const DefaultMaxPending = 1024 * 1024

// Decoder decodes a sequence of chunks from one stream.
//
// With carry enabled, text after the last newline of a chunk is held and
// prepended to the next chunk, so Feed only ever decodes complete lines.
// Flush decodes whatever is still held once the stream has ended.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	carry      bool
	maxPending int
	pending    string
}

// NewDecoder creates a Decoder. With carry disabled every chunk is decoded on
// its own, exactly like Decode.
func NewDecoder(carry bool) *Decoder {
	return &Decoder{
		carry:      carry,
		maxPending: DefaultMaxPending,
	}
}

// SetMaxPending changes the limit on held-back text. n <= 0 restores the default.
func (d *Decoder) SetMaxPending(n int) {
	if n <= 0 {
		n = DefaultMaxPending
	}
	d.maxPending = n
}

// Feed decodes the complete frames available after appending chunk.
func (d *Decoder) Feed(chunk string) ([]json.RawMessage, error) {
	if !d.carry {
		return Decode(chunk)
	}

	text := d.pending + chunk
	cut := strings.LastIndexByte(text, '\n')
	if cut < 0 {
		if len(text) > d.maxPending {
			d.pending = ""
			return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(text))
		}
		d.pending = text
		return nil, nil
	}

	if rest := len(text) - cut - 1; rest > d.maxPending {
		d.pending = ""
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, rest)
	}
	d.pending = text[cut+1:]
	return Decode(text[:cut+1])
}

// Flush decodes and clears any held-back text.
func (d *Decoder) Flush() ([]json.RawMessage, error) {
	text := d.pending
	d.pending = ""
	return Decode(text)
}

// Pending returns the number of bytes held back.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

// Reset drops held-back text.
func (d *Decoder) Reset() {
	d.pending = ""
}
