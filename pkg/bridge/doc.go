// Package bridge mirrors a graph of Go objects to a remote peer and lets
// the peer call their methods.
//
// Each Bridge has two halves. The server half walks the objects reachable
// from the root passed to SendRoot, assigns them identifiers and sends
// creation, update and deletion records whenever their properties change.
// The client half applies the peer's records to a table of *Proxy values
// and resolves the futures of calls made through them.
//
//	srv, _ := bridge.New(conn.Send)
//	srv.SendRoot(&Counter{})
//
//	cli, _ := bridge.New(conn.Send)
//	root, _ := cli.Root().Await(ctx)
//	n, err := root.(*bridge.Proxy).Call("increment", 1).Await(ctx)
//
// Both ends exchange protocol.Message values; pkg/transport carries them
// over WebSockets and byte streams.
package bridge
