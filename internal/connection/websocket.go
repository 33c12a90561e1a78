package connection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/ssefeed/internal/auth"
	"github.com/rickgao/ssefeed/internal/version"
)

// WebSocketTransport reads the same data frames from a WebSocket.
//
// Every text or binary message is one chunk. A message that does not end in a
// newline gets one, so a message boundary is always a frame boundary.
type WebSocketTransport struct {
	dialer *websocket.Dialer
	token  auth.TokenSource
}

// NewWebSocketTransport creates a WebSocketTransport. token may be nil.
func NewWebSocketTransport(token auth.TokenSource) *WebSocketTransport {
	return &WebSocketTransport{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		token: token,
	}
}

// Open dials the WebSocket.
func (t *WebSocketTransport) Open(ctx context.Context, rawURL string) (*Stream, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("User-Agent", version.UserAgent())
	if t.token != nil {
		if err := auth.SetBearer(header, t.token); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransportOpen, err)
		}
	}

	conn, resp, err := t.dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: handshake status %d: %v", ErrTransportOpen, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransportOpen, err)
	}

	body := &wsBody{conn: conn}
	// The dial context only covers the handshake; tie reads to it as well.
	context.AfterFunc(ctx, func() { body.Close() })

	return &Stream{Body: body, Charset: "utf-8"}, nil
}

// wsBody adapts a WebSocket connection to io.ReadCloser.
type wsBody struct {
	conn *websocket.Conn
	buf  []byte

	closeOnce sync.Once
	closeErr  error
}

func (b *wsBody) Read(p []byte) (int, error) {
	for len(b.buf) == 0 {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
			data = append(data, '\n')
		}
		b.buf = data
	}

	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

func (b *wsBody) Close() error {
	b.closeOnce.Do(func() {
		b.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		b.closeErr = b.conn.Close()
	})
	return b.closeErr
}
