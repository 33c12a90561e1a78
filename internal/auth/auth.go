// Package auth supplies bearer tokens for stream requests.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// ErrEmptyToken is returned when a token source yields nothing.
var ErrEmptyToken = errors.New("empty token")

// TokenSource returns the bearer token for the next request.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

// Token returns the token itself.
func (s StaticToken) Token() (string, error) {
	if s == "" {
		return "", ErrEmptyToken
	}
	return string(s), nil
}

// FileToken reads the token from a file on every call, so a rotated file is
// picked up without a restart.
type FileToken struct {
	Path string
}

// Token reads and trims the file contents.
func (f FileToken) Token() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyToken, f.Path)
	}
	return token, nil
}

// LoadTokenSource picks a source from configuration. A literal token wins
// over a path. Both empty means no authentication: nil, nil.
func LoadTokenSource(token, path string) (TokenSource, error) {
	if token != "" {
		return StaticToken(token), nil
	}
	if path == "" {
		return nil, nil
	}

	src := FileToken{Path: path}
	// Fail at startup rather than on the first connect.
	if _, err := src.Token(); err != nil {
		return nil, err
	}
	return src, nil
}

// SetBearer sets the Authorization header from src.
func SetBearer(h http.Header, src TokenSource) error {
	token, err := src.Token()
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	h.Set("Authorization", "Bearer "+token)
	return nil
}

// RoundTripper adds a bearer token to every request.
type RoundTripper struct {
	Base   http.RoundTripper // nil means http.DefaultTransport
	Source TokenSource
}

// NewRoundTripper wraps base.
func NewRoundTripper(base http.RoundTripper, src TokenSource) *RoundTripper {
	return &RoundTripper{Base: base, Source: src}
}

// RoundTrip clones the request, sets the header and delegates.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := rt.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if rt.Source == nil {
		return base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if err := SetBearer(clone.Header, rt.Source); err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	return base.RoundTrip(clone)
}

// NewStreamClient returns a client for long-lived streams: no overall
// timeout, and a bearer token when src is non-nil.
func NewStreamClient(src TokenSource) *http.Client {
	if src == nil {
		return &http.Client{}
	}
	return &http.Client{Transport: NewRoundTripper(nil, src)}
}
