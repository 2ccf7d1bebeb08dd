package srt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/datarhei/srtrelay/log"
	timesrc "github.com/datarhei/srtrelay/time"

	"go.uber.org/atomic"
)

const (
	// MaxChunkSize is the default receive buffer size. It holds 7 TS packets
	// plus an RTP header with some headroom.
	MaxChunkSize = 1328

	// DefaultRetryInterval is the pause after a transient receive condition.
	DefaultRetryInterval = 10 * time.Millisecond

	// DefaultStatsInterval is the default interval between two statistics snapshots.
	DefaultStatsInterval = 5 * time.Second
)

// State is the state of a relay loop.
type State int32

const (
	StateConnecting State = iota
	StateRelaying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRelaying:
		return "relaying"
	case StateClosed:
		return "closed"
	}

	return "unknown"
}

// Connector establishes the single connection of a relay loop.
type Connector func(ctx context.Context) (Conn, error)

// DialConnector connects to a remote listener.
func DialConnector(t Transport, address string) Connector {
	return func(ctx context.Context) (Conn, error) {
		conn, err := t.Dial(address)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", address, err)
		}

		return conn, nil
	}
}

// ListenConnector listens on address and waits for exactly one peer. The
// listener is closed as soon as the peer has been accepted.
func ListenConnector(t Transport, address string, clock timesrc.Source, pollInterval time.Duration) Connector {
	if clock == nil {
		clock = &timesrc.StdSource{}
	}

	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return func(ctx context.Context) (Conn, error) {
		ln, err := t.Listen(address)
		if err != nil {
			return nil, fmt.Errorf("listen %s: %w", address, err)
		}

		stop := context.AfterFunc(ctx, func() {
			ln.Close()
		})

		defer func() {
			stop()
			ln.Close()
		}()

		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, ErrWouldBlock) {
					clock.Sleep(ctx, pollInterval)
					continue
				}

				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}

				return nil, fmt.Errorf("accept: %w", err)
			}

			return conn, nil
		}
	}
}

// DatagramWriter is the UDP side of an ingest loop.
type DatagramWriter interface {
	WriteDatagram(p []byte) (int, error)
}

// DatagramReader is the UDP side of an egress loop. ReadDatagram may return
// a timeout error in order to let the loop check for cancellation.
type DatagramReader interface {
	ReadDatagram(p []byte) (int, error)
}

type relay struct {
	connect       Connector
	chunkSize     int
	retryInterval time.Duration
	statsInterval time.Duration
	onStats       func(Statistics)
	clock         timesrc.Source
	logger        log.Logger

	state   atomic.Int32
	packets atomic.Uint64
	bytes   atomic.Uint64
	rate    *RateMeter

	last     Statistics
	hasLast  bool
	lastLock sync.Mutex
}

func (r *relay) init(connect Connector, chunkSize int, retry, stats time.Duration, onStats func(Statistics), clock timesrc.Source, logger log.Logger) {
	r.connect = connect
	r.chunkSize = chunkSize
	r.retryInterval = retry
	r.statsInterval = stats
	r.onStats = onStats
	r.clock = clock
	r.logger = logger
	r.rate = NewRateMeter()

	if r.chunkSize <= 0 {
		r.chunkSize = MaxChunkSize
	}

	if r.retryInterval <= 0 {
		r.retryInterval = DefaultRetryInterval
	}

	if r.statsInterval <= 0 {
		r.statsInterval = DefaultStatsInterval
	}

	if r.clock == nil {
		r.clock = &timesrc.StdSource{}
	}

	if r.logger == nil {
		r.logger = log.New("")
	}
}

// State returns the current state of the loop.
func (r *relay) State() State {
	return State(r.state.Load())
}

func (r *relay) setState(s State) {
	r.state.Store(int32(s))
}

// RelayStats are the counters of a relay loop.
type RelayStats struct {
	State   string  `json:"state"`
	Packets uint64  `json:"packets"`
	Bytes   uint64  `json:"bytes"`
	Bitrate float64 `json:"bitrate_bps"`
}

func (r *relay) Stats() RelayStats {
	return RelayStats{
		State:   r.State().String(),
		Packets: r.packets.Load(),
		Bytes:   r.bytes.Load(),
		Bitrate: r.rate.Bitrate(),
	}
}

// open establishes the connection and arranges for it to be closed when
// ctx is cancelled. The returned func must be called when the loop ends.
func (r *relay) open(ctx context.Context) (Conn, func(), error) {
	r.setState(StateConnecting)

	conn, err := r.connect(ctx)
	if err != nil {
		r.setState(StateClosed)
		return nil, nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	r.logger.Info().WithFields(log.Fields{
		"peer":      conn.RemoteAddr(),
		"socket_id": conn.SocketId(),
	}).Log("Connected")

	r.setState(StateRelaying)

	return conn, func() {
		stop()
		conn.Close()
		r.setState(StateClosed)
	}, nil
}

// LastStatistics returns the most recent statistics snapshot of the
// connection. It returns false if no snapshot has been taken yet.
func (r *relay) LastStatistics() (Statistics, bool) {
	r.lastLock.Lock()
	defer r.lastLock.Unlock()

	return r.last, r.hasLast
}

func (r *relay) emit(s Statistics) {
	r.lastLock.Lock()
	r.last = s
	r.hasLast = true
	r.lastLock.Unlock()

	if r.onStats != nil {
		r.onStats(s)
	}
}

func (r *relay) account(n int) {
	r.packets.Inc()
	r.bytes.Add(uint64(n))
	r.rate.Add(n)
}

type IngestConfig struct {
	// Connect establishes the connection to read from.
	Connect Connector

	// Sink receives every chunk read from the connection.
	Sink DatagramWriter

	ChunkSize     int
	RetryInterval time.Duration
	StatsInterval time.Duration

	// OnStats is called with every statistics snapshot. Optional.
	OnStats func(Statistics)

	Clock  timesrc.Source
	Logger log.Logger
}

// Ingest relays from a reliable connection to a datagram sink.
type Ingest struct {
	relay
	sink DatagramWriter
}

func NewIngest(config IngestConfig) *Ingest {
	i := &Ingest{
		sink: config.Sink,
	}

	i.init(config.Connect, config.ChunkSize, config.RetryInterval, config.StatsInterval, config.OnStats, config.Clock, config.Logger)

	return i
}

// Run connects once and relays until ctx is cancelled or an error occurs.
// A cancelled ctx is not an error.
func (i *Ingest) Run(ctx context.Context) error {
	conn, done, err := i.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	sampler := NewSampler(i.clock, i.statsInterval, i.emit)
	buf := make([]byte, i.chunkSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := conn.Read(buf)
		if err != nil {
			if IsTransient(err) {
				i.clock.Sleep(ctx, i.retryInterval)
				continue
			}

			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("receive: %w", err)
		}

		if n == 0 {
			continue
		}

		if _, err := i.sink.WriteDatagram(buf[:n]); err != nil {
			return fmt.Errorf("forward: %w", err)
		}

		i.account(n)
		sampler.Tick(conn)
	}
}

// Close stops the rate meter. It must not be called while Run is active.
func (i *Ingest) Close() {
	i.rate.Stop()
}

type EgressConfig struct {
	// Connect establishes the connection to write to.
	Connect Connector

	// Source provides the datagrams.
	Source DatagramReader

	ChunkSize     int
	RetryInterval time.Duration
	StatsInterval time.Duration

	OnStats func(Statistics)

	Clock  timesrc.Source
	Logger log.Logger
}

// Egress relays datagrams to a reliable connection. Each datagram is
// written with exactly one call to Write.
type Egress struct {
	relay
	source DatagramReader
}

func NewEgress(config EgressConfig) *Egress {
	e := &Egress{
		source: config.Source,
	}

	e.init(config.Connect, config.ChunkSize, config.RetryInterval, config.StatsInterval, config.OnStats, config.Clock, config.Logger)

	return e
}

// Run connects once and relays until ctx is cancelled or an error occurs.
// A cancelled ctx is not an error.
func (e *Egress) Run(ctx context.Context) error {
	conn, done, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	sampler := NewSampler(e.clock, e.statsInterval, e.emit)
	buf := make([]byte, e.chunkSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := e.source.ReadDatagram(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}

			if IsTransient(err) {
				e.clock.Sleep(ctx, e.retryInterval)
				continue
			}

			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("read datagram: %w", err)
		}

		if n == 0 {
			continue
		}

		if _, err := conn.Write(buf[:n]); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("send: %w", err)
		}

		e.account(n)
		sampler.Tick(conn)
	}
}

// Close stops the rate meter. It must not be called while Run is active.
func (e *Egress) Close() {
	e.rate.Stop()
}
