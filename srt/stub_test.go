package srt

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	timesrc "github.com/datarhei/srtrelay/time"
)

type readStep struct {
	data []byte
	err  error
}

type stubConn struct {
	id   uint32
	addr net.Addr

	lock       sync.Mutex
	reads      []readStep
	writes     [][]byte
	writeErr   error
	armErr     error
	disconnect DisconnectFunc
	closed     bool
	statsCalls int

	// clock is advanced by readAdvance on every Read.
	clock       *timesrc.TestSource
	readAdvance time.Duration
}

func newStubConn(id uint32, ip string) *stubConn {
	return &stubConn{
		id:   id,
		addr: &net.UDPAddr{IP: net.ParseIP(ip), Port: 40000 + int(id)},
	}
}

func (c *stubConn) Read(p []byte) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.clock != nil {
		c.clock.Advance(c.readAdvance)
	}

	if len(c.reads) == 0 {
		return 0, io.EOF
	}

	step := c.reads[0]
	c.reads = c.reads[1:]

	if step.err != nil {
		return 0, step.err
	}

	return copy(p, step.data), nil
}

func (c *stubConn) Write(p []byte) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.writeErr != nil {
		return 0, c.writeErr
	}

	c.writes = append(c.writes, append([]byte(nil), p...))

	return len(p), nil
}

func (c *stubConn) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.closed = true

	return nil
}

func (c *stubConn) RemoteAddr() net.Addr {
	return c.addr
}

func (c *stubConn) SocketId() uint32 {
	return c.id
}

func (c *stubConn) Stats() Statistics {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.statsCalls++

	return Statistics{
		MbpsBandwidth: 100,
		PktRecvUnique: uint64(c.statsCalls),
	}
}

func (c *stubConn) OnDisconnect(fn DisconnectFunc) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.armErr != nil {
		return c.armErr
	}

	c.disconnect = fn

	return nil
}

// fireDisconnect calls the armed disconnect func, if any.
func (c *stubConn) fireDisconnect(err error) {
	c.lock.Lock()
	fn := c.disconnect
	c.lock.Unlock()

	if fn != nil {
		fn(c.addr, err)
	}
}

// IsWatched reports whether a disconnect func has been armed.
func (c *stubConn) IsWatched() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.disconnect != nil
}

func (c *stubConn) Writes() [][]byte {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([][]byte(nil), c.writes...)
}

func (c *stubConn) IsClosed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.closed
}

type acceptStep struct {
	conn Conn
	err  error
}

// stubListener first returns the scripted steps, then blocks for
// connections on conns until it's closed.
type stubListener struct {
	lock   sync.Mutex
	script []acceptStep

	conns     chan Conn
	closed    chan struct{}
	closeOnce sync.Once
}

func newStubListener(script ...acceptStep) *stubListener {
	return &stubListener{
		script: script,
		conns:  make(chan Conn),
		closed: make(chan struct{}),
	}
}

func (l *stubListener) Accept() (Conn, error) {
	l.lock.Lock()
	if len(l.script) != 0 {
		step := l.script[0]
		l.script = l.script[1:]
		l.lock.Unlock()

		return step.conn, step.err
	}
	l.lock.Unlock()

	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, ErrListenerClosed
	}
}

func (l *stubListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
	})

	return nil
}

func (l *stubListener) IsClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

func (l *stubListener) Addr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4zero, Port: 9000}
}

type stubTransport struct {
	listener *stubListener
	conn     *stubConn
	dialed   []string
}

func (t *stubTransport) Listen(address string) (Listener, error) {
	if t.listener == nil {
		return nil, errors.New("no listener")
	}

	return t.listener, nil
}

func (t *stubTransport) Dial(address string) (Conn, error) {
	t.dialed = append(t.dialed, address)

	if t.conn == nil {
		return nil, errors.New("connection refused")
	}

	return t.conn, nil
}

type stubSink struct {
	lock     sync.Mutex
	writes   [][]byte
	writeErr error
}

func (s *stubSink) WriteDatagram(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.writeErr != nil {
		return 0, s.writeErr
	}

	s.writes = append(s.writes, append([]byte(nil), p...))

	return len(p), nil
}

type stubSource struct {
	lock  sync.Mutex
	reads []readStep
}

func (s *stubSource) ReadDatagram(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.reads) == 0 {
		return 0, io.EOF
	}

	step := s.reads[0]
	s.reads = s.reads[1:]

	if step.err != nil {
		return 0, step.err
	}

	return copy(p, step.data), nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
