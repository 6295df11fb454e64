package transport

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/objbridge/pkg/bridge"
)

// Handler upgrades HTTP requests to WebSockets and serves one bridge per
// connection.
type Handler struct {
	// Upgrader upgrades the request. A zero Upgrader checks that the
	// request origin matches the host.
	Upgrader websocket.Upgrader

	// Config configures each connection's transport.
	Config *WSConfig

	// Options configure each bridge.
	Options []bridge.Option

	// OnConnect runs once the bridge exists and before any message is
	// read, usually to call SendRoot. An error closes the connection.
	OnConnect func(r *http.Request, b *bridge.Bridge) error

	// OnDisconnect runs after the bridge has closed.
	OnDisconnect func(r *http.Request, b *bridge.Bridge)
}

// ServeHTTP implements http.Handler. It returns when the connection ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		return
	}
	ws := NewWebSocket(conn, h.Config)

	b, err := bridge.New(ws.Send, h.Options...)
	if err != nil {
		ws.logger.Error("bridge setup failed", "error", err)
		ws.Close()
		return
	}
	if h.OnConnect != nil {
		if err := h.OnConnect(r, b); err != nil {
			ws.logger.Error("connect handler failed", "error", err)
			b.Close(err)
			ws.Close()
			return
		}
	}

	if err := ws.Serve(r.Context(), b); err != nil {
		ws.logger.Debug("connection ended", "error", err)
	}
	if h.OnDisconnect != nil {
		h.OnDisconnect(r, b)
	}
}
