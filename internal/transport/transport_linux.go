// internal/transport/transport_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux sockets over raw syscalls: non-blocking connect, MSG_DONTWAIT sends
// and scatter-gather via SendmsgBuffers.

package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/vdma-stream/api"
)

const sendFlags = unix.MSG_DONTWAIT | unix.MSG_NOSIGNAL

type linuxSocket struct {
	fd     int
	kind   api.TransportKind
	closed atomic.Bool
}

func dialPlatform(opts DialOptions) (api.Socket, error) {
	sa, family, err := resolve(opts.Kind, opts.Address)
	if err != nil {
		return nil, err
	}
	typ, proto := unix.SOCK_DGRAM, unix.IPPROTO_UDP
	if opts.Kind == api.TransportStream {
		typ, proto = unix.SOCK_STREAM, unix.IPPROTO_TCP
	}
	fd, err := unix.Socket(family, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", os.NewSyscallError("socket", err))
	}
	if opts.SendBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBuffer)
	}
	if opts.Kind == api.TransportStream && opts.NoDelay {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}
	if err := connect(fd, sa, opts.ConnectTimeout); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("connect %s %s: %w", opts.Kind, opts.Address, err)
	}
	return &linuxSocket{fd: fd, kind: opts.Kind}, nil
}

func resolve(kind api.TransportKind, address string) (unix.Sockaddr, int, error) {
	var ip net.IP
	var port int
	switch kind {
	case api.TransportDatagram:
		a, err := net.ResolveUDPAddr("udp", address)
		if err != nil {
			return nil, 0, api.ConfigError("resolve %q: %v", address, err)
		}
		ip, port = a.IP, a.Port
	case api.TransportStream:
		a, err := net.ResolveTCPAddr("tcp", address)
		if err != nil {
			return nil, 0, api.ConfigError("resolve %q: %v", address, err)
		}
		ip, port = a.IP, a.Port
	default:
		return nil, 0, api.ConfigError("unknown transport kind %d", kind)
	}
	if ip == nil {
		ip = net.IPv4(127, 0, 0, 1)
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return sa, unix.AF_INET6, nil
}

func connect(fd int, sa unix.Sockaddr, timeout time.Duration) error {
	err := unix.Connect(fd, sa)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EINPROGRESS) {
		return os.NewSyscallError("connect", err)
	}
	deadline := time.Now().Add(timeout)
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return os.NewSyscallError("connect", unix.ETIMEDOUT)
		}
		n, err := unix.Poll(pfd, int(left/time.Millisecond)+1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return os.NewSyscallError("poll", err)
		}
		if n > 0 {
			break
		}
	}
	soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return os.NewSyscallError("getsockopt", err)
	}
	if soerr != 0 {
		return os.NewSyscallError("connect", unix.Errno(soerr))
	}
	return nil
}

// Send writes one datagram or a prefix of p on a stream socket.
func (s *linuxSocket) Send(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, api.ErrTransportClosed
	}
	for {
		n, err := unix.SendmsgN(s.fd, p, nil, nil, sendFlags)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, classify("sendmsg", err)
		}
		return n, nil
	}
}

// SendBuffers gathers bufs into one sendmsg call.
func (s *linuxSocket) SendBuffers(bufs [][]byte) (int, error) {
	if s.closed.Load() {
		return 0, api.ErrTransportClosed
	}
	for {
		n, err := unix.SendmsgBuffers(s.fd, bufs, nil, nil, sendFlags)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, classify("sendmsg", err)
		}
		return n, nil
	}
}

// Close releases the descriptor. Later calls are no-ops.
func (s *linuxSocket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return os.NewSyscallError("close", unix.Close(s.fd))
}

// classify maps EAGAIN onto api.ErrWouldBlock; everything else is fatal.
func classify(op string, err error) error {
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
		return api.ErrWouldBlock
	}
	return os.NewSyscallError(op, err)
}
