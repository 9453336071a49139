package transport

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

	"hotmic/internal/ports"
)

func TestWebsocketTransportRoundTrip(t *testing.T) {
	t.Parallel()

	received := make(chan receivedFrame, 4)
	server := newEchoServer(t, func(conn *websocket.Conn) {
		for i := 0; i < 2; i++ {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- receivedFrame{kind: kind, payload: string(payload)}
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status","status":"idle"}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	})

	conn, err := NewWebsocketTransport(time.Second).Dial(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(ports.MessageText, []byte(`{"type":"start_recording"}`)); err != nil {
		t.Fatalf("write text failed: %v", err)
	}
	if err := conn.WriteMessage(ports.MessageBinary, []byte("pcm")); err != nil {
		t.Fatalf("write binary failed: %v", err)
	}

	first := <-received
	second := <-received
	if first.kind != websocket.TextMessage || first.payload != `{"type":"start_recording"}` {
		t.Fatalf("unexpected first frame: %+v", first)
	}
	if second.kind != websocket.BinaryMessage || second.payload != "pcm" {
		t.Fatalf("unexpected second frame: %+v", second)
	}

	kind, payload, err := conn.ReadMessage()
	if err != nil || kind != ports.MessageText || !strings.Contains(string(payload), "idle") {
		t.Fatalf("unexpected text read: kind=%d payload=%q err=%v", kind, payload, err)
	}
	kind, _, err = conn.ReadMessage()
	if err != nil || kind != ports.MessageBinary {
		t.Fatalf("unexpected binary read: kind=%d err=%v", kind, err)
	}
	if _, _, err := conn.ReadMessage(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on normal close, got %v", err)
	}
}

func TestWebsocketTransportCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	server := newEchoServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	conn, err := NewWebsocketTransport(0).Dial(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	_ = conn.Close()
	_ = conn.Close()
	if err := conn.WriteMessage(ports.MessageText, []byte("x")); err == nil {
		t.Fatalf("expected write after close to fail")
	}
}

func TestWebsocketTransportDialRespectsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWebsocketTransport(0).Dial(ctx, "ws://127.0.0.1:1/")
	if err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestWebsocketTransportRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := toFrameType(ports.MessageKind(99)); err == nil {
		t.Fatalf("expected unsupported kind error")
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"ws://localhost:8000/ws":    "ws://localhost:8000/ws",
		" wss://stt.example.com/ ":  "wss://stt.example.com/",
		"http://127.0.0.1:9000/ws":  "ws://127.0.0.1:9000/ws",
		"https://stt.example.com/a": "wss://stt.example.com/a",
	}
	for input, want := range cases {
		got, err := NormalizeEndpoint(input)
		if err != nil {
			t.Fatalf("NormalizeEndpoint(%q) failed: %v", input, err)
		}
		if got != want {
			t.Fatalf("NormalizeEndpoint(%q) = %q, want %q", input, got, want)
		}
	}

	for _, bad := range []string{"", "localhost:8000", "ftp://host/x", "ws:///path"} {
		if _, err := NormalizeEndpoint(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestIsNormalClose(t *testing.T) {
	t.Parallel()

	if !IsNormalClose(&websocket.CloseError{Code: websocket.CloseNormalClosure}) {
		t.Fatalf("normal closure should be normal")
	}
	if !IsNormalClose(websocket.ErrCloseSent) {
		t.Fatalf("ErrCloseSent should be normal")
	}
	if IsNormalClose(&websocket.CloseError{Code: websocket.CloseInternalServerErr}) {
		t.Fatalf("internal error close should not be normal")
	}
	if IsNormalClose(errors.New("connection reset by peer")) {
		t.Fatalf("reset should not be normal")
	}
}

type receivedFrame struct {
	kind    int
	payload string
}

func newEchoServer(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(server.Close)
	return server
}
