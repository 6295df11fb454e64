// Package transport carries bridge messages between processes.
//
// WebSocket sends each message as one binary frame holding its CBOR
// encoding. Stream writes messages as a CBOR sequence to any byte stream,
// such as subprocess pipes or a Unix socket.
//
// Both expose Send, suitable as a bridge.SendFunc, and Serve, which reads
// incoming messages into a bridge until the connection ends.
//
//	ws, b, err := transport.Dial(ctx, "ws://localhost:8080/ws", nil)
//	go ws.Serve(ctx, b)
//	root, err := b.Root().Await(ctx)
package transport
