package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hotmic/internal/ports"
)

const defaultWriteTimeout = 5 * time.Second

// WebsocketTransport implements ports.Transport over gorilla/websocket.
type WebsocketTransport struct {
	dialer       *websocket.Dialer
	header       http.Header
	writeTimeout time.Duration
}

func NewWebsocketTransport(writeTimeout time.Duration) *WebsocketTransport {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	dialer := *websocket.DefaultDialer
	return &WebsocketTransport{
		dialer:       &dialer,
		header:       http.Header{},
		writeTimeout: writeTimeout,
	}
}

// Dial opens a connection. The caller bounds the handshake with ctx.
func (t *WebsocketTransport) Dial(ctx context.Context, endpoint string) (ports.Conn, error) {
	endpoint, err := NormalizeEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	conn, _, err := t.dialer.DialContext(ctx, endpoint, t.header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	return &wsConn{conn: conn, writeTimeout: t.writeTimeout}, nil
}

// wsConn serializes writes: gorilla allows one concurrent writer and one
// concurrent reader per connection.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) WriteMessage(kind ports.MessageKind, payload []byte) error {
	messageType, err := toFrameType(kind)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadMessage returns io.EOF once the peer or this side closed the
// connection in an orderly way.
func (c *wsConn) ReadMessage() (ports.MessageKind, []byte, error) {
	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if IsNormalClose(err) {
				return 0, nil, io.EOF
			}
			return 0, nil, err
		}
		switch messageType {
		case websocket.TextMessage:
			return ports.MessageText, payload, nil
		case websocket.BinaryMessage:
			return ports.MessageBinary, payload, nil
		}
	}
}

// Close sends a normal close frame best-effort, then closes the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// NormalizeEndpoint maps http(s) URLs onto ws(s) and rejects anything that is
// not an absolute websocket URL.
func NormalizeEndpoint(raw string) (string, error) {
	endpoint := strings.TrimSpace(raw)
	if strings.HasPrefix(endpoint, "https://") {
		endpoint = "wss://" + strings.TrimPrefix(endpoint, "https://")
	} else if strings.HasPrefix(endpoint, "http://") {
		endpoint = "ws://" + strings.TrimPrefix(endpoint, "http://")
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid endpoint %q: scheme must be ws or wss", raw)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q: missing host", raw)
	}
	return parsed.String(), nil
}

func toFrameType(kind ports.MessageKind) (int, error) {
	switch kind {
	case ports.MessageText:
		return websocket.TextMessage, nil
	case ports.MessageBinary:
		return websocket.BinaryMessage, nil
	default:
		return 0, fmt.Errorf("unsupported message kind %d", kind)
	}
}

// IsNormalClose reports whether err is an orderly shutdown rather than a
// transport failure.
func IsNormalClose(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed)
}
