// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame delivery for vdma-stream. Provides a connected, non-blocking
// datagram or stream socket on top of raw syscalls, and a Sender that puts
// one header plus payload on the wire, turning socket backpressure into
// either a skipped frame or a bounded retry.

package transport
