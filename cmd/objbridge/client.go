package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	clierrors "github.com/vango-dev/objbridge/internal/errors"
	"github.com/vango-dev/objbridge/pkg/bridge"
	"github.com/vango-dev/objbridge/pkg/overlay"
	"github.com/vango-dev/objbridge/pkg/transport"
)

// session is a client connection whose root has arrived.
type session struct {
	ws     *transport.WebSocket
	bridge *bridge.Bridge
	root   *bridge.Proxy
	done   chan error
}

// dial connects to the configured server and waits for its root object.
func (a *app) dial(ctx context.Context) (*session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, a.cfg.Client.Timeout())
	defer cancel()

	ws, b, err := transport.Dial(dialCtx, a.cfg.Client.URL, a.wsConfig(), a.bridgeOptions()...)
	if err != nil {
		return nil, clierrors.New("B010").
			Wrap(err).
			WithSuggestion("Start a server with: objbridge serve")
	}
	s := &session{ws: ws, bridge: b, done: make(chan error, 1)}
	go func() { s.done <- ws.Serve(ctx, b) }()

	v, err := b.Root().Await(dialCtx)
	if err != nil {
		s.close()
		return nil, clientError(err)
	}
	root, ok := v.(*bridge.Proxy)
	if !ok {
		s.close()
		return nil, clierrors.Newf(clierrors.CategoryProtocol, "root is a plain value, not an object: %s", display(v))
	}
	s.root = root
	return s, nil
}

func (s *session) close() {
	s.bridge.Close(nil)
	_ = s.ws.Close()
}

// clientError maps a bridge or transport failure to a CLI error.
func clientError(err error) error {
	var remote *overlay.RemoteError
	switch {
	case errors.As(err, &remote):
		return clierrors.New("B030").Wrap(err)
	case errors.Is(err, context.DeadlineExceeded):
		return clierrors.New("B013").Wrap(err)
	case errors.Is(err, bridge.ErrDesync):
		return clierrors.New("B020").Wrap(err)
	case errors.Is(err, bridge.ErrClosed), errors.Is(err, transport.ErrConnectionClosed):
		return clierrors.New("B011").Wrap(err)
	}
	return clierrors.New("B030").Wrap(err)
}

// display converts a mirrored value into something encoding/json can print.
func display(v any) any {
	switch v := v.(type) {
	case *bridge.Proxy:
		return v.String()
	case overlay.UndefinedValue:
		return v.String()
	case *overlay.RemoteError:
		return map[string]any{"error": v.Name, "message": v.Message}
	case error:
		return map[string]any{"error": v.Error()}
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = display(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = display(e)
		}
		return out
	}
	return v
}

// formatValue renders a mirrored value as compact JSON.
func formatValue(v any) string {
	data, err := json.Marshal(display(v))
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
