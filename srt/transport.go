// Package srt implements the connection-tracked broadcast and relay engine
// on top of a reliable transport. The transport itself is abstracted by the
// Transport, Listener and Conn interfaces. NewTransport provides an
// implementation based on github.com/datarhei/gosrt.
package srt

import (
	"errors"
	"io"
	"net"
	"os"
)

var (
	// ErrWouldBlock is returned by Accept or Read of a non-blocking
	// Listener or Conn if no connection or data is ready.
	ErrWouldBlock = errors.New("srt: not ready")

	// ErrNotConnected is returned by Read if the connection is not yet
	// established.
	ErrNotConnected = errors.New("srt: not connected")

	// ErrListenerClosed is returned by Accept after the listener has been closed.
	ErrListenerClosed = errors.New("srt: listener closed")
)

// DisconnectFunc is called when a connection ends. err is the reason, it is
// nil if the connection has been closed locally.
type DisconnectFunc func(addr net.Addr, err error)

// Conn is an established connection.
type Conn interface {
	io.ReadWriteCloser

	RemoteAddr() net.Addr

	// SocketId identifies the connection for its lifetime.
	SocketId() uint32

	// Stats returns the current connection statistics.
	Stats() Statistics

	// OnDisconnect arms fn to be called exactly once when the connection
	// ends, either because the peer went away or because it has been closed.
	// fn is never called from within OnDisconnect itself. The connection
	// may consume incoming data for detecting the disconnect, don't read
	// from a watched connection.
	OnDisconnect(fn DisconnectFunc) error
}

// Listener accepts incoming connections.
type Listener interface {
	// Accept returns the next connection. A non-blocking listener returns
	// ErrWouldBlock if there's no pending connection.
	Accept() (Conn, error)

	// Close stops the listener. It's safe to call Close more than once.
	Close() error

	Addr() net.Addr
}

// Transport creates listeners and outgoing connections.
type Transport interface {
	Listen(address string) (Listener, error)
	Dial(address string) (Conn, error)
}

// IsTransient returns whether err only means that nothing is ready yet.
func IsTransient(err error) bool {
	return errors.Is(err, ErrWouldBlock) || errors.Is(err, ErrNotConnected)
}

// isTimeout returns whether err is a deadline or timeout error of a
// datagram socket.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}

	return false
}
