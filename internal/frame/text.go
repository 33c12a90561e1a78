package frame

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DefaultCharset is used when neither configuration nor the response names one.
const DefaultCharset = "utf-8"

// ErrUnknownCharset is returned for a charset label htmlindex does not know.
var ErrUnknownCharset = errors.New("unknown charset")

// NewTextReader returns a reader that yields UTF-8 text decoded from r.
//
// Multi-byte sequences split across reads of r are held until complete, so
// every Read returns whole characters. An empty charset means UTF-8.
func NewTextReader(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" {
		charset = DefaultCharset
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, charset)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// CharsetFromContentType extracts the charset parameter of a Content-Type
// header value, or "" when there is none.
func CharsetFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}
