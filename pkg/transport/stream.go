package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vango-dev/objbridge/internal/codec"
	"github.com/vango-dev/objbridge/pkg/bridge"
	"github.com/vango-dev/objbridge/pkg/protocol"
)

// Stream carries bridge messages as a CBOR sequence over a byte stream.
type Stream struct {
	rw io.ReadWriter

	mu  sync.Mutex
	enc *codec.Encoder
	dec *codec.Decoder
}

// NewStream wraps rw. If rw is an io.Closer it is closed when Serve's
// context is cancelled.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{
		rw:  rw,
		enc: codec.NewEncoder(rw),
		dec: codec.NewDecoder(rw),
	}
}

// Send writes m to the stream. It is safe for concurrent use.
func (s *Stream) Send(m *protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(m); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Serve decodes messages into b until the stream ends, ctx is cancelled or
// b reports a protocol error. The bridge is closed when Serve returns.
func (s *Stream) Serve(ctx context.Context, b *bridge.Bridge) error {
	if c, ok := s.rw.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	for {
		var m protocol.Message
		if err := s.dec.Decode(&m); err != nil {
			switch {
			case ctx.Err() != nil:
				b.Close(ctx.Err())
				return ctx.Err()
			case errors.Is(err, io.EOF):
				b.Close(ErrConnectionClosed)
				return nil
			}
			perr := &bridge.ProtocolError{Op: "decode", Err: err}
			b.Close(perr)
			return perr
		}
		if err := b.HandleMessage(&m); err != nil {
			if errors.Is(err, bridge.ErrClosed) {
				return nil
			}
			return err
		}
	}
}
