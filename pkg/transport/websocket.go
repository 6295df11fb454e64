package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/objbridge/internal/codec"
	"github.com/vango-dev/objbridge/pkg/bridge"
	"github.com/vango-dev/objbridge/pkg/protocol"
)

// WSConfig configures a WebSocket transport.
type WSConfig struct {
	// ReadTimeout is the maximum time to wait for a frame, pongs included.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// PingInterval is the time between heartbeat pings. Zero disables them.
	// Default: 30 seconds.
	PingInterval time.Duration

	// MaxMessageSize is the maximum size of an incoming frame.
	// Default: protocol.MaxMessageSize.
	MaxMessageSize int64

	// Logger receives transport logs.
	// Default: slog.Default().
	Logger *slog.Logger
}

// DefaultWSConfig returns a WSConfig with sensible defaults.
func DefaultWSConfig() *WSConfig {
	return &WSConfig{
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: protocol.MaxMessageSize,
		Logger:         slog.Default(),
	}
}

func (c *WSConfig) withDefaults() WSConfig {
	out := *DefaultWSConfig()
	if c == nil {
		return out
	}
	if c.ReadTimeout > 0 {
		out.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		out.WriteTimeout = c.WriteTimeout
	}
	out.PingInterval = c.PingInterval
	if c.MaxMessageSize > 0 {
		out.MaxMessageSize = c.MaxMessageSize
	}
	if c.Logger != nil {
		out.Logger = c.Logger
	}
	return out
}

// WebSocket carries bridge messages over a WebSocket connection.
type WebSocket struct {
	conn   *websocket.Conn
	config WSConfig
	logger *slog.Logger

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocket wraps an established connection. A nil config uses
// DefaultWSConfig.
func NewWebSocket(conn *websocket.Conn, config *WSConfig) *WebSocket {
	cfg := config.withDefaults()
	return &WebSocket{
		conn:   conn,
		config: cfg,
		logger: cfg.Logger.With("remote_addr", conn.RemoteAddr().String()),
		done:   make(chan struct{}),
	}
}

// Send writes m as one binary frame. It is safe for concurrent use.
func (w *WebSocket) Send(m *protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	select {
	case <-w.done:
		return ErrConnectionClosed
	default:
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Serve reads frames into b until the connection ends, ctx is cancelled or
// b reports a protocol error. The bridge is closed when Serve returns.
func (w *WebSocket) Serve(ctx context.Context, b *bridge.Bridge) error {
	defer w.Close()
	stop := context.AfterFunc(ctx, func() { w.Close() })
	defer stop()

	w.conn.SetReadLimit(w.config.MaxMessageSize)
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))
	})
	if w.config.PingInterval > 0 {
		go w.pingLoop()
	}

	for {
		w.conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))

		typ, data, err := w.conn.ReadMessage()
		if err != nil {
			return w.readFailed(ctx, b, err)
		}
		if typ != websocket.BinaryMessage {
			w.logger.Warn("ignoring non-binary frame", "type", typ)
			continue
		}

		m, err := protocol.Decode(data)
		if err != nil {
			logUndecodable(ctx, w.logger, data, err)
			perr := &bridge.ProtocolError{Op: "decode", Err: err}
			b.Close(perr)
			return perr
		}
		if err := b.HandleMessage(m); err != nil {
			if errors.Is(err, bridge.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (w *WebSocket) readFailed(ctx context.Context, b *bridge.Bridge, err error) error {
	if ctx.Err() != nil {
		b.Close(ctx.Err())
		return ctx.Err()
	}
	select {
	case <-w.done:
		b.Close(ErrConnectionClosed)
		return nil
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		b.Close(ErrConnectionClosed)
		return nil
	}
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNormalClosure) {
		w.logger.Error("read error", "error", err)
	}
	err = fmt.Errorf("transport: read: %w", err)
	b.Close(err)
	return err
}

// maxDiagnosticLen bounds the frame dump in debug logs.
const maxDiagnosticLen = 512

// logUndecodable logs a frame that is not a valid message, in CBOR
// diagnostic notation when it is well-formed CBOR and as hex otherwise.
func logUndecodable(ctx context.Context, logger *slog.Logger, data []byte, err error) {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	dump, derr := codec.Diagnose(data)
	if derr != nil {
		dump = fmt.Sprintf("%x", data[:min(len(data), maxDiagnosticLen/2)])
	}
	if len(dump) > maxDiagnosticLen {
		dump = dump[:maxDiagnosticLen] + "..."
	}
	logger.Debug("undecodable frame", "error", err, "size", len(data), "frame", dump)
}

func (w *WebSocket) pingLoop() {
	ticker := time.NewTicker(w.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(w.config.WriteTimeout)
			if err := w.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				w.logger.Debug("ping failed", "error", err)
				return
			}
		case <-w.done:
			return
		}
	}
}

// Close sends a close frame and closes the connection. It is idempotent.
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		deadline := time.Now().Add(w.config.WriteTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		err = w.conn.Close()
	})
	return err
}

// Dial connects to a bridge endpoint and returns the transport together
// with a bridge sending through it. The caller runs Serve.
func Dial(ctx context.Context, url string, config *WSConfig, opts ...bridge.Option) (*WebSocket, *bridge.Bridge, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	ws := NewWebSocket(conn, config)
	b, err := bridge.New(ws.Send, opts...)
	if err != nil {
		ws.Close()
		return nil, nil, err
	}
	return ws, b, nil
}
