package connection

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/ssefeed/internal/auth"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*http.Request, *websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(r, conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// drain reads until the peer goes away.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeNormally(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func TestHTTPTransport_Open(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", got)
		}
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "ssewatch/") {
			t.Errorf("User-Agent = %q, want ssewatch/...", got)
		}
		w.Header().Set("Content-Type", "text/event-stream; charset=ISO-8859-1")
		_, _ = io.WriteString(w, "data: 1\n")
	}))
	defer server.Close()

	stream, err := NewHTTPTransport(nil).Open(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Body.Close()

	if stream.Charset != "iso-8859-1" {
		t.Errorf("Charset = %q, want iso-8859-1", stream.Charset)
	}
	body, err := io.ReadAll(stream.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "data: 1\n" {
		t.Errorf("body = %q", body)
	}
}

func TestHTTPTransport_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPTransport(nil).Open(context.Background(), server.URL)
	if !errors.Is(err, ErrTransportOpen) {
		t.Fatalf("err = %v, want ErrTransportOpen", err)
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "upstream unavailable") {
		t.Errorf("err = %q, want status and body excerpt", err)
	}
}

func TestHTTPTransport_NoBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	_, err := NewHTTPTransport(nil).Open(context.Background(), server.URL)
	if !errors.Is(err, ErrStreamUnsupported) {
		t.Errorf("err = %v, want ErrStreamUnsupported", err)
	}
}

func TestHTTPTransport_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPTransport(nil).Open(context.Background(), url)
	if !errors.Is(err, ErrTransportOpen) {
		t.Errorf("err = %v, want ErrTransportOpen", err)
	}
}

func TestHTTPTransport_BearerRoundTripper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "data: 1\n")
	}))
	defer server.Close()

	transport := NewHTTPTransport(auth.NewStreamClient(auth.StaticToken("secret")))
	stream, err := transport.Open(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	stream.Body.Close()
}

func TestWebSocketTransport_ReadsFrames(t *testing.T) {
	server := mockWSServer(t, func(r *http.Request, conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`data: {"a":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("data: {\"b\":2}\n"))
		closeNormally(conn)
		drain(conn)
	})
	defer server.Close()

	stream, err := NewWebSocketTransport(nil).Open(context.Background(), wsURL(server))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Body.Close()

	body, err := io.ReadAll(stream.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	want := "data: {\"a\":1}\ndata: {\"b\":2}\n"
	if string(body) != want {
		t.Errorf("body = %q, want %q", body, want)
	}
	if stream.Charset != "utf-8" {
		t.Errorf("Charset = %q, want utf-8", stream.Charset)
	}
}

func TestWebSocketTransport_SendsBearer(t *testing.T) {
	got := make(chan string, 1)
	server := mockWSServer(t, func(r *http.Request, conn *websocket.Conn) {
		got <- r.Header.Get("Authorization")
		closeNormally(conn)
		drain(conn)
	})
	defer server.Close()

	stream, err := NewWebSocketTransport(auth.StaticToken("secret")).Open(context.Background(), wsURL(server))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Body.Close()

	if header := <-got; header != "Bearer secret" {
		t.Errorf("Authorization = %q, want Bearer secret", header)
	}
}

func TestWebSocketTransport_HandshakeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewWebSocketTransport(nil).Open(context.Background(), wsURL(server))
	if !errors.Is(err, ErrTransportOpen) {
		t.Fatalf("err = %v, want ErrTransportOpen", err)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("err = %q, want handshake status", err)
	}
}

func TestWebSocketTransport_CancelAbortsRead(t *testing.T) {
	server := mockWSServer(t, func(r *http.Request, conn *websocket.Conn) {
		drain(conn)
	})
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := NewWebSocketTransport(nil).Open(ctx, wsURL(server))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Body.Close()

	readErr := make(chan error, 1)
	go func() {
		_, err := stream.Body.Read(make([]byte, 16))
		readErr <- err
	}()

	cancel()
	select {
	case err := <-readErr:
		if err == nil || err == io.EOF {
			t.Errorf("Read err = %v, want a read failure", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("Read not aborted by cancel")
	}
}

func TestAutoTransport_DispatchesOnScheme(t *testing.T) {
	ws := mockWSServer(t, func(r *http.Request, conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("data: \"ws\"\n"))
		closeNormally(conn)
		drain(conn)
	})
	defer ws.Close()

	sse := sseServer(t, func(r *http.Request, send func(string)) {
		send("data: \"sse\"\n")
	})
	defer sse.Close()

	auto := NewAutoTransport(nil, nil)
	for _, tt := range []struct {
		url  string
		want string
	}{
		{wsURL(ws), "data: \"ws\"\n"},
		{sse.URL, "data: \"sse\"\n"},
	} {
		stream, err := auto.Open(context.Background(), tt.url)
		if err != nil {
			t.Fatalf("Open(%s) failed: %v", tt.url, err)
		}
		body, err := io.ReadAll(stream.Body)
		stream.Body.Close()
		if err != nil {
			t.Fatalf("read %s: %v", tt.url, err)
		}
		if string(body) != tt.want {
			t.Errorf("Open(%s) body = %q, want %q", tt.url, body, tt.want)
		}
	}
}

func TestManager_OverWebSocket(t *testing.T) {
	server := mockWSServer(t, func(r *http.Request, conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`data: {"n":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`data: {"n":2}`))
		closeNormally(conn)
		drain(conn)
	})
	defer server.Close()

	m := newTestManager(wsURL(server))
	defer m.Close()

	rec := newRecorder()
	unsubscribe, _ := m.Subscribe(rec.observe)
	defer unsubscribe()

	first := rec.waitFor(t, "first message", (*State).Connected)
	second := rec.next(t)
	end := rec.next(t)

	if string(first.LastMessage) != `{"n":1}` || string(second.LastMessage) != `{"n":2}` {
		t.Errorf("messages = %s, %s", first.LastMessage, second.LastMessage)
	}
	if end.Phase != PhaseDisconnected || end.Err != "" {
		t.Errorf("end = %v (err %q), want clean disconnect", end.Phase, end.Err)
	}
}
