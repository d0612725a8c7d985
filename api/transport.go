// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Connected socket abstraction consumed by the transport sender.

package api

// Socket is an already-connected, non-blocking socket.
//
// Implementations report a send that would block as ErrWouldBlock with the
// number of bytes accepted so far, and every other failure as a fatal error.
type Socket interface {
	// Send writes p as one datagram (datagram sockets) or as many bytes of p
	// as the kernel accepts (stream sockets).
	Send(p []byte) (int, error)

	// SendBuffers writes the buffers in order as a single gathered write
	// and returns the total number of bytes accepted.
	SendBuffers(bufs [][]byte) (int, error)

	// Close releases the socket.
	Close() error
}
