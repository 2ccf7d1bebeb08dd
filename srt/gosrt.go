package srt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/datarhei/srtrelay/log"
	"github.com/datarhei/srtrelay/srt/url"

	gosrt "github.com/datarhei/gosrt"
)

// TransportConfig configures the gosrt based transport.
type TransportConfig struct {
	// Passphrase for encrypted connections. Listeners reject unencrypted
	// callers if it's set, and encrypted callers if it isn't.
	Passphrase string

	// Token is required in the streamid of callers if set.
	Token string

	// StreamID is sent by Dial. Listeners require callers to ask for the
	// same resource if it's set.
	StreamID string

	// Latency is the SRT latency. Zero uses the gosrt default.
	Latency time.Duration

	// Blocking selects whether Accept and Read block until a connection or
	// data is available, or return ErrWouldBlock.
	Blocking bool

	// LogTopics are the gosrt log topics forwarded to Logger at debug level.
	LogTopics []string

	Logger log.Logger
}

// GoSRT is a Transport based on github.com/datarhei/gosrt.
type GoSRT struct {
	passphrase string
	token      string
	streamID   string
	resource   string
	latency    time.Duration
	blocking   bool

	logger    log.Logger
	srtlogger gosrt.Logger
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewTransport(config TransportConfig) *GoSRT {
	t := &GoSRT{
		passphrase: config.Passphrase,
		token:      config.Token,
		streamID:   config.StreamID,
		latency:    config.Latency,
		blocking:   config.Blocking,
		logger:     config.Logger,
	}

	if t.logger == nil {
		t.logger = log.New("")
	}

	if len(t.streamID) != 0 {
		if si, err := url.ParseStreamId(t.streamID); err == nil {
			t.resource = si.Resource
		} else {
			t.resource = t.streamID
		}
	}

	var ctx context.Context
	ctx, t.cancel = context.WithCancel(context.Background())

	if len(config.LogTopics) != 0 {
		t.srtlogger = gosrt.NewLogger(config.LogTopics)
		go t.srtlogListener(ctx)
	}

	return t
}

// Close stops forwarding the gosrt log. Listeners and connections are not affected.
func (t *GoSRT) Close() {
	t.closeOnce.Do(func() {
		t.cancel()

		if t.srtlogger != nil {
			t.srtlogger.Close()
		}
	})
}

func (t *GoSRT) srtlogListener(ctx context.Context) {
	logs := t.srtlogger.Listen()

	for {
		select {
		case <-ctx.Done():
			return
		case l, ok := <-logs:
			if !ok {
				return
			}

			t.logger.Debug().WithFields(log.Fields{
				"topic":     l.Topic,
				"socket_id": l.SocketId,
			}).Log(l.Message)
		}
	}
}

// config returns the gosrt config and the host:port for an address, which
// is either host:port or an srt:// URL with options.
func (t *GoSRT) config(address string) (string, gosrt.Config, error) {
	config := gosrt.DefaultConfig()

	if t.latency > 0 {
		config.Latency = t.latency
	}

	config.Passphrase = t.passphrase
	config.StreamId = t.streamID

	if t.srtlogger != nil {
		config.Logger = t.srtlogger
	}

	host := address

	if url.IsURL(address) {
		var err error
		host, err = config.UnmarshalURL(address)
		if err != nil {
			return "", config, fmt.Errorf("invalid address '%s': %w", address, err)
		}
	}

	return host, config, nil
}

func (t *GoSRT) Dial(address string) (Conn, error) {
	host, config, err := t.config(address)
	if err != nil {
		return nil, err
	}

	c, err := gosrt.Dial("srt", host, config)
	if err != nil {
		return nil, err
	}

	return newConn(c, t.blocking, nil), nil
}

func (t *GoSRT) Listen(address string) (Listener, error) {
	host, config, err := t.config(address)
	if err != nil {
		return nil, err
	}

	ln, err := gosrt.Listen("srt", host, config)
	if err != nil {
		return nil, err
	}

	l := &listener{
		ln:       ln,
		t:        t,
		blocking: t.blocking,
		results:  make(chan acceptResult),
		done:     make(chan struct{}),
	}

	go l.pump()

	return l, nil
}

func (t *GoSRT) handleConnect(req gosrt.ConnRequest) gosrt.ConnType {
	client := req.RemoteAddr()
	streamId := req.StreamId()

	si := url.StreamInfo{}

	if len(streamId) != 0 {
		var err error
		si, err = url.ParseStreamId(streamId)
		if err != nil {
			t.log("INVALID", streamId, err.Error(), client)
			return gosrt.REJECT
		}
	}

	if len(t.resource) != 0 && si.Resource != t.resource {
		t.log("NOTFOUND", si.Resource, "unknown resource", client)
		return gosrt.REJECT
	}

	if len(t.token) != 0 && si.Token != t.token {
		t.log("FORBIDDEN", si.Resource, "invalid token", client)
		return gosrt.REJECT
	}

	if len(t.passphrase) != 0 {
		if !req.IsEncrypted() {
			t.log("FORBIDDEN", si.Resource, "connection has to be encrypted", client)
			return gosrt.REJECT
		}

		if err := req.SetPassphrase(t.passphrase); err != nil {
			t.log("FORBIDDEN", si.Resource, err.Error(), client)
			return gosrt.REJECT
		}
	} else if req.IsEncrypted() {
		t.log("INVALID", si.Resource, "connection must not be encrypted", client)
		return gosrt.REJECT
	}

	if si.Mode == "publish" {
		return gosrt.PUBLISH
	}

	return gosrt.SUBSCRIBE
}

func (t *GoSRT) log(status, resource, message string, client net.Addr) {
	t.logger.Info().WithFields(log.Fields{
		"status":   status,
		"resource": resource,
		"client":   client.String(),
	}).Log(message)
}

type acceptResult struct {
	conn gosrt.Conn
	err  error
}

// listener wraps a gosrt listener. gosrt closes all accepted connections
// together with the listener, so the underlying listener stays open until
// the last accepted connection has been closed.
type listener struct {
	ln       gosrt.Listener
	t        *GoSRT
	blocking bool

	results chan acceptResult
	done    chan struct{}
	err     error

	lock   sync.Mutex
	closed bool
	active int
}

// pump runs the blocking gosrt accept and hands the connections to Accept.
func (l *listener) pump() {
	for {
		c, mode, err := l.ln.Accept(l.handleConnect)
		if err != nil {
			if errors.Is(err, gosrt.ErrListenerClosed) {
				err = ErrListenerClosed
			}

			select {
			case l.results <- acceptResult{err: err}:
			case <-l.done:
			}

			return
		}

		if mode == gosrt.REJECT || c == nil {
			continue
		}

		select {
		case l.results <- acceptResult{conn: c}:
		case <-l.done:
			c.Close()
		}
	}
}

func (l *listener) handleConnect(req gosrt.ConnRequest) gosrt.ConnType {
	l.lock.Lock()
	closed := l.closed
	l.lock.Unlock()

	if closed {
		return gosrt.REJECT
	}

	return l.t.handleConnect(req)
}

func (l *listener) Accept() (Conn, error) {
	var r acceptResult

	if l.blocking {
		select {
		case r = <-l.results:
		case <-l.done:
			return nil, ErrListenerClosed
		}
	} else {
		select {
		case r = <-l.results:
		case <-l.done:
			return nil, ErrListenerClosed
		default:
			return nil, ErrWouldBlock
		}
	}

	if r.err != nil {
		return nil, r.err
	}

	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		r.conn.Close()
		return nil, ErrListenerClosed
	}
	l.active++
	l.lock.Unlock()

	return newConn(r.conn, l.blocking, l.release), nil
}

// release is called once for every closed accepted connection.
func (l *listener) release() {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.active--

	if l.closed && l.active == 0 {
		l.ln.Close()
	}
}

func (l *listener) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	close(l.done)

	if l.active == 0 {
		l.ln.Close()
	}

	return nil
}

func (l *listener) Addr() net.Addr {
	return l.ln.Addr()
}

type packet struct {
	data []byte
	err  error
}

// conn wraps a gosrt connection. In non-blocking mode a goroutine reads from
// the connection and Read returns ErrWouldBlock if nothing has been read yet.
type conn struct {
	conn     gosrt.Conn
	blocking bool
	release  func()

	stats     gosrt.Statistics
	statsLock sync.Mutex

	lock     sync.Mutex
	reading  bool
	packets  chan packet
	pending  []byte
	readErr  error
	closed   chan struct{}
	closeErr error

	closeOnce sync.Once
}

func newConn(c gosrt.Conn, blocking bool, release func()) *conn {
	return &conn{
		conn:     c,
		blocking: blocking,
		release:  release,
		closed:   make(chan struct{}),
	}
}

func (c *conn) SocketId() uint32 {
	return c.conn.SocketId()
}

func (c *conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *conn) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

func (c *conn) Read(p []byte) (int, error) {
	if c.blocking {
		return c.conn.Read(p)
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.packets == nil {
		if c.reading {
			return 0, fmt.Errorf("connection is watched for disconnects")
		}

		c.reading = true
		c.packets = make(chan packet, 64)
		go c.readLoop()
	}

	if len(c.pending) == 0 {
		if c.readErr != nil {
			return 0, c.readErr
		}

		select {
		case pkt := <-c.packets:
			if pkt.err != nil {
				c.readErr = pkt.err
				return 0, pkt.err
			}
			c.pending = pkt.data
		default:
			return 0, ErrWouldBlock
		}
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]

	return n, nil
}

func (c *conn) readLoop() {
	for {
		buf := make([]byte, MaxChunkSize)

		n, err := c.conn.Read(buf)
		if err != nil {
			select {
			case c.packets <- packet{err: err}:
			case <-c.closed:
			}
			return
		}

		select {
		case c.packets <- packet{data: buf[:n]}:
		case <-c.closed:
			return
		}
	}
}

func (c *conn) OnDisconnect(fn DisconnectFunc) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.reading {
		return fmt.Errorf("connection is already being read")
	}

	c.reading = true

	addr := c.conn.RemoteAddr()

	go func() {
		buf := make([]byte, MaxChunkSize)

		var err error
		for err == nil {
			_, err = c.conn.Read(buf)
		}

		select {
		case <-c.closed:
			err = nil
		default:
		}

		fn(addr, err)
	}()

	return nil
}

func (c *conn) Stats() Statistics {
	c.statsLock.Lock()
	defer c.statsLock.Unlock()

	c.conn.Stats(&c.stats)

	return Statistics{
		Time:                  time.Now(),
		Interval:              time.Duration(c.stats.Interval.MsInterval) * time.Millisecond,
		MbpsBandwidth:         c.stats.Instantaneous.MbpsLinkCapacity,
		MbpsRecvRate:          c.stats.Interval.MbpsRecvRate,
		MbpsSendRate:          c.stats.Interval.MbpsSendRate,
		MsRTT:                 c.stats.Instantaneous.MsRTT,
		PktRecvUnique:         c.stats.Accumulated.PktRecvUnique,
		PktRecvLoss:           c.stats.Accumulated.PktRecvLoss,
		PktRecvDrop:           c.stats.Accumulated.PktRecvDrop,
		PktSendLoss:           c.stats.Accumulated.PktSendLoss,
		PktRetrans:            c.stats.Accumulated.PktRetrans,
		IntervalPktRecvUnique: c.stats.Interval.PktRecvUnique,
		IntervalPktRecvLoss:   c.stats.Interval.PktRecvLoss,
		ByteRecv:              c.stats.Accumulated.ByteRecv,
		ByteSent:              c.stats.Accumulated.ByteSent,
	}
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.conn.Close()

		if c.release != nil {
			c.release()
		}
	})

	return c.closeErr
}
