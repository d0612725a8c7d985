// Package transport
// Author: momentics <momentics@gmail.com>
//
// Platform-independent socket options and dialer facade.

package transport

import (
	"time"

	"github.com/momentics/vdma-stream/api"
)

// DialOptions describe the connected socket a Sender writes to.
type DialOptions struct {
	Kind    api.TransportKind
	Address string
	// SendBuffer sets SO_SNDBUF when positive.
	SendBuffer int
	// NoDelay disables Nagle on stream sockets.
	NoDelay bool
	// ConnectTimeout bounds the stream handshake.
	ConnectTimeout time.Duration
}

// Dial opens a non-blocking socket connected to opts.Address. Send calls on
// the returned socket never block; a full socket buffer is reported as
// api.ErrWouldBlock.
func Dial(opts DialOptions) (api.Socket, error) {
	if opts.Address == "" {
		return nil, api.ConfigError("transport address is empty")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	return dialPlatform(opts)
}
