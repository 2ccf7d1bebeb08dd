package srt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/datarhei/srtrelay/log"
	relaynet "github.com/datarhei/srtrelay/net"
	timesrc "github.com/datarhei/srtrelay/time"
)

// DefaultPollInterval is the pause between two accepts of a non-blocking
// listener without a pending connection.
const DefaultPollInterval = 500 * time.Millisecond

type AcceptConfig struct {
	Listener Listener
	Registry *Registry

	// PollInterval is the pause after the listener reported ErrWouldBlock.
	PollInterval time.Duration

	// Limiter decides which remote addresses may connect. Optional.
	Limiter relaynet.IPLimiter

	// Clock is used for pausing. Optional.
	Clock timesrc.Source

	Logger log.Logger

	// OnConnect is called after a client has been registered. Optional.
	OnConnect func(c Client)

	// OnDisconnect is called after a client has been unregistered. Optional.
	OnDisconnect func(c Client, err error)
}

// AcceptLoop accepts connections on a listener and keeps a Registry of them.
type AcceptLoop struct {
	listener     Listener
	registry     *Registry
	pollInterval time.Duration
	limiter      relaynet.IPLimiter
	clock        timesrc.Source
	logger       log.Logger
	onConnect    func(c Client)
	onDisconnect func(c Client, err error)
}

func NewAcceptLoop(config AcceptConfig) *AcceptLoop {
	a := &AcceptLoop{
		listener:     config.Listener,
		registry:     config.Registry,
		pollInterval: config.PollInterval,
		limiter:      config.Limiter,
		clock:        config.Clock,
		logger:       config.Logger,
		onConnect:    config.OnConnect,
		onDisconnect: config.OnDisconnect,
	}

	if a.registry == nil {
		a.registry = NewRegistry()
	}

	if a.pollInterval <= 0 {
		a.pollInterval = DefaultPollInterval
	}

	if a.limiter == nil {
		a.limiter = relaynet.NewNullIPLimiter()
	}

	if a.clock == nil {
		a.clock = &timesrc.StdSource{}
	}

	if a.logger == nil {
		a.logger = log.New("")
	}

	return a
}

// Run accepts connections until ctx is cancelled or the listener fails. The
// listener is closed when Run returns. A cancelled ctx is not an error.
func (a *AcceptLoop) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		a.listener.Close()
	})

	defer func() {
		stop()
		a.listener.Close()
	}()

	a.logger.Info().WithField("address", a.listener.Addr()).Log("Accepting clients")

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := a.listener.Accept()
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				a.clock.Sleep(ctx, a.pollInterval)
				continue
			}

			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("accept: %w", err)
		}

		a.admit(conn)
	}
}

func (a *AcceptLoop) admit(conn Conn) {
	addr := conn.RemoteAddr()
	id := conn.SocketId()

	logger := a.logger.WithFields(log.Fields{
		"client":    addr,
		"socket_id": id,
	})

	if !a.limiter.IsAllowedAddr(addr) {
		logger.Warn().Log("Client not allowed")
		conn.Close()
		return
	}

	// The disconnect notification must be armed before the connection is
	// published in the registry. It waits for armed because it may fire
	// before Add has been called.
	armed := make(chan struct{})

	err := conn.OnDisconnect(func(addr net.Addr, err error) {
		<-armed
		a.disconnected(id, conn, err)
	})
	if err != nil {
		close(armed)
		logger.Warn().WithError(err).Log("Can't watch client connection")
		conn.Close()
		return
	}

	added := a.registry.Add(conn, addr)
	close(armed)

	if !added {
		logger.Warn().Log("Client is already registered")
		conn.Close()
		return
	}

	logger.Info().Log("Client connected")

	if a.onConnect != nil {
		if c, ok := a.registry.Lookup(id); ok {
			a.onConnect(c)
		}
	}
}

// disconnected unregisters the connection. An entry for the same socket id
// that belongs to another connection is left alone.
func (a *AcceptLoop) disconnected(id uint32, conn Conn, err error) {
	c, ok := a.registry.RemoveConn(id, conn)
	if !ok {
		return
	}

	c.conn.Close()

	a.logger.Info().WithFields(log.Fields{
		"client":    c.Addr,
		"socket_id": id,
	}).WithError(err).Log("Client disconnected")

	if a.onDisconnect != nil {
		a.onDisconnect(c, err)
	}
}
