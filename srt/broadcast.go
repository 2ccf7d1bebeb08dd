package srt

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/datarhei/srtrelay/log"
	relaynet "github.com/datarhei/srtrelay/net"
	timesrc "github.com/datarhei/srtrelay/time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// DefaultClientsPerThread is used if BroadcasterConfig.ClientsPerThread is not set.
const DefaultClientsPerThread = 10

type BroadcasterConfig struct {
	// ClientsPerThread is the number of clients up to which a payload is
	// sent sequentially. With more clients the payload is sent by several
	// goroutines in parallel.
	ClientsPerThread int

	// PollInterval is the pause between polls of a non-blocking listener.
	PollInterval time.Duration

	Limiter relaynet.IPLimiter
	Clock   timesrc.Source
	Logger  log.Logger
}

// BroadcastStats are the counters of a Broadcaster.
type BroadcastStats struct {
	Clients    int     `json:"clients"`
	Payloads   uint64  `json:"payloads"`
	Sends      uint64  `json:"sends"`
	Bytes      uint64  `json:"bytes"`
	SendErrors uint64  `json:"send_errors"`
	Bitrate    float64 `json:"bitrate_bps"`
}

// Broadcaster sends payloads to all clients connected to a listener.
type Broadcaster struct {
	clientsPerThread int
	listener         Listener
	registry         *Registry
	logger           log.Logger

	cancel context.CancelFunc
	done   chan struct{}
	err    error

	payloads   atomic.Uint64
	sends      atomic.Uint64
	bytes      atomic.Uint64
	sendErrors atomic.Uint64
	rate       *RateMeter

	closeOnce sync.Once
}

// NewBroadcaster starts accepting clients on the listener. The listener is
// owned by the Broadcaster from now on.
func NewBroadcaster(ln Listener, config BroadcasterConfig) *Broadcaster {
	b := &Broadcaster{
		clientsPerThread: config.ClientsPerThread,
		listener:         ln,
		registry:         NewRegistry(),
		logger:           config.Logger,
		done:             make(chan struct{}),
		rate:             NewRateMeter(),
	}

	if b.clientsPerThread <= 0 {
		b.clientsPerThread = DefaultClientsPerThread
	}

	if b.logger == nil {
		b.logger = log.New("")
	}

	accept := NewAcceptLoop(AcceptConfig{
		Listener:     ln,
		Registry:     b.registry,
		PollInterval: config.PollInterval,
		Limiter:      config.Limiter,
		Clock:        config.Clock,
		Logger:       b.logger,
	})

	var ctx context.Context
	ctx, b.cancel = context.WithCancel(context.Background())

	go func() {
		defer close(b.done)

		if err := accept.Run(ctx); err != nil {
			b.err = err
			b.logger.Error().WithError(err).Log("Accepting clients failed")
		}
	}()

	return b
}

// ChunkSize returns the number of clients per goroutine for n clients. It's
// at least 1 and never more than 2*perThread-1.
func ChunkSize(n, perThread int) int {
	if perThread <= 0 {
		perThread = DefaultClientsPerThread
	}

	size := n / (n/perThread + 1)
	if size < 1 {
		size = 1
	}

	return size
}

// Partition splits clients into consecutive chunks of ChunkSize clients.
func Partition(clients []Client, perThread int) [][]Client {
	if len(clients) == 0 {
		return nil
	}

	size := ChunkSize(len(clients), perThread)
	chunks := make([][]Client, 0, (len(clients)+size-1)/size)

	for i := 0; i < len(clients); i += size {
		end := min(i+size, len(clients))
		chunks = append(chunks, clients[i:end])
	}

	return chunks
}

// Broadcast sends p to every connected client and returns when all sends
// are done. Calls must be serialized by the caller.
func (b *Broadcaster) Broadcast(p []byte) {
	clients := b.registry.Snapshot()
	if len(clients) == 0 {
		return
	}

	b.payloads.Inc()

	if len(clients) < b.clientsPerThread {
		b.send(clients, p)
		return
	}

	var g errgroup.Group

	for _, chunk := range Partition(clients, b.clientsPerThread) {
		chunk := chunk
		g.Go(func() error {
			b.send(chunk, p)
			return nil
		})
	}

	g.Wait()
}

// send writes p to each of the clients. A failed write is logged and
// counted, the client stays registered until its connection reports the
// disconnect.
func (b *Broadcaster) send(clients []Client, p []byte) {
	for _, c := range clients {
		n, err := c.conn.Write(p)
		if err != nil {
			b.sendErrors.Inc()

			addr := c.Addr
			if rc, ok := b.registry.Lookup(c.SocketId); ok {
				addr = rc.Addr
			}

			b.logger.Warn().WithFields(log.Fields{
				"client":    addr,
				"socket_id": c.SocketId,
			}).WithError(err).Log("Sending to client failed")

			continue
		}

		b.sends.Inc()
		b.bytes.Add(uint64(n))
		b.rate.Add(n)
	}
}

// Serve reads datagrams from src and broadcasts each of them until ctx is
// cancelled, reading fails or the broadcaster stopped accepting clients.
// Read timeouts of src are not errors. A cancelled ctx is not an error.
func (b *Broadcaster) Serve(ctx context.Context, src DatagramReader, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = MaxChunkSize
	}

	buf := make([]byte, chunkSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		select {
		case <-b.done:
			return b.err
		default:
		}

		n, err := src.ReadDatagram(buf)
		if err != nil {
			if isTimeout(err) {
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

		b.Broadcast(buf[:n])
	}
}

// Clients returns the currently connected clients.
func (b *Broadcaster) Clients() []Client {
	return b.registry.Snapshot()
}

// Addr returns the address the listener is bound to.
func (b *Broadcaster) Addr() net.Addr {
	return b.listener.Addr()
}

func (b *Broadcaster) Stats() BroadcastStats {
	return BroadcastStats{
		Clients:    b.registry.Len(),
		Payloads:   b.payloads.Load(),
		Sends:      b.sends.Load(),
		Bytes:      b.bytes.Load(),
		SendErrors: b.sendErrors.Load(),
		Bitrate:    b.rate.Bitrate(),
	}
}

// Done is closed when the Broadcaster doesn't accept clients anymore,
// either because it has been closed or because the listener failed.
func (b *Broadcaster) Done() <-chan struct{} {
	return b.done
}

// Err returns the error that stopped accepting clients, if any. It must
// only be called after Done is closed.
func (b *Broadcaster) Err() error {
	return b.err
}

// Close stops accepting clients and closes all client connections.
func (b *Broadcaster) Close() error {
	b.closeOnce.Do(func() {
		b.cancel()
		<-b.done

		for _, c := range b.registry.Clear() {
			c.conn.Close()
		}

		b.rate.Stop()
	})

	return nil
}
