package transport

import "errors"

// ErrConnectionClosed closes a bridge whose connection ended normally.
var ErrConnectionClosed = errors.New("transport: connection closed")
