package connection

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rickgao/ssefeed/internal/frame"
	"github.com/rickgao/ssefeed/internal/version"
)

// Transport opens the byte stream for a URL.
type Transport interface {
	// Open starts the stream. Cancelling ctx must abort both the open and
	// any later read of the returned body.
	Open(ctx context.Context, url string) (*Stream, error)
}

// Stream is an open byte stream.
type Stream struct {
	Body    io.ReadCloser
	Charset string // Charset announced by the server, "" if none
}

// HTTPTransport issues a plain streaming GET.
//
// Authentication belongs in the client's RoundTripper (see auth.RoundTripper);
// the transport itself only sets the event-stream headers.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates an HTTPTransport. A nil client uses a client with
// no overall timeout, which would otherwise cut long-lived streams.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client}
}

// Open issues the GET request and returns the response body.
func (t *HTTPTransport) Open(ctx context.Context, rawURL string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransportOpen, err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportOpen, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", ErrTransportOpen, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("%w: response has no body", ErrStreamUnsupported)
	}

	return &Stream{
		Body:    resp.Body,
		Charset: frame.CharsetFromContentType(resp.Header.Get("Content-Type")),
	}, nil
}

// AutoTransport picks the WebSocket transport for ws:// and wss:// URLs and
// the HTTP transport for everything else.
type AutoTransport struct {
	HTTP      *HTTPTransport
	WebSocket *WebSocketTransport
}

// NewAutoTransport creates an AutoTransport; nil arguments get defaults.
func NewAutoTransport(h *HTTPTransport, ws *WebSocketTransport) *AutoTransport {
	if h == nil {
		h = NewHTTPTransport(nil)
	}
	if ws == nil {
		ws = NewWebSocketTransport(nil)
	}
	return &AutoTransport{HTTP: h, WebSocket: ws}
}

// Open dispatches on the URL scheme.
func (t *AutoTransport) Open(ctx context.Context, rawURL string) (*Stream, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", ErrTransportOpen, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		return t.WebSocket.Open(ctx, rawURL)
	default:
		return t.HTTP.Open(ctx, rawURL)
	}
}
