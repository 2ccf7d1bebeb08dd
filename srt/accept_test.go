package srt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	relaynet "github.com/datarhei/srtrelay/net"
	timesrc "github.com/datarhei/srtrelay/time"

	"github.com/stretchr/testify/require"
)

func TestAcceptPollMode(t *testing.T) {
	fatal := errors.New("socket broken")

	ln := newStubListener(
		acceptStep{err: ErrWouldBlock},
		acceptStep{err: ErrWouldBlock},
		acceptStep{err: fatal},
	)

	clock := &timesrc.TestSource{}

	a := NewAcceptLoop(AcceptConfig{
		Listener:     ln,
		PollInterval: 200 * time.Millisecond,
		Clock:        clock,
	})

	err := a.Run(context.Background())
	require.ErrorIs(t, err, fatal)

	require.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}, clock.Sleeps())
	require.True(t, ln.IsClosed())
}

func TestAcceptRegistersAndDisconnects(t *testing.T) {
	c1 := newStubConn(1, "127.0.0.1")
	c2 := newStubConn(2, "127.0.0.2")

	ln := newStubListener(acceptStep{conn: c1}, acceptStep{conn: c2})
	registry := NewRegistry()

	lock := sync.Mutex{}
	disconnects := []uint32{}

	a := NewAcceptLoop(AcceptConfig{
		Listener: ln,
		Registry: registry,
		OnDisconnect: func(c Client, err error) {
			lock.Lock()
			defer lock.Unlock()

			disconnects = append(disconnects, c.SocketId)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- a.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return registry.Len() == 2
	}, time.Second, 10*time.Millisecond)

	c1.fireDisconnect(errors.New("peer gone"))
	c1.fireDisconnect(errors.New("peer gone"))

	require.Equal(t, 1, registry.Len())
	_, ok := registry.Lookup(2)
	require.True(t, ok)
	require.True(t, c1.IsClosed())

	lock.Lock()
	require.Equal(t, []uint32{1}, disconnects)
	lock.Unlock()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "accept loop didn't stop")
	}

	require.True(t, ln.IsClosed())
}

func TestAcceptArmingFailure(t *testing.T) {
	c := newStubConn(1, "127.0.0.1")
	c.armErr = errors.New("can't watch")

	fatal := errors.New("stop")
	ln := newStubListener(acceptStep{conn: c}, acceptStep{err: fatal})
	registry := NewRegistry()

	a := NewAcceptLoop(AcceptConfig{
		Listener: ln,
		Registry: registry,
	})

	err := a.Run(context.Background())
	require.ErrorIs(t, err, fatal)

	require.Equal(t, 0, registry.Len())
	require.True(t, c.IsClosed())
}

func TestAcceptDuplicateSocketId(t *testing.T) {
	first := newStubConn(1, "127.0.0.1")
	second := newStubConn(1, "127.0.0.2")

	fatal := errors.New("stop")
	ln := newStubListener(acceptStep{conn: first}, acceptStep{conn: second}, acceptStep{err: fatal})
	registry := NewRegistry()

	disconnects := 0

	a := NewAcceptLoop(AcceptConfig{
		Listener: ln,
		Registry: registry,
		OnDisconnect: func(c Client, err error) {
			disconnects++
		},
	})

	err := a.Run(context.Background())
	require.ErrorIs(t, err, fatal)

	require.True(t, second.IsClosed())
	require.False(t, first.IsClosed())

	// The rejected connection going away must not unregister the first one.
	second.fireDisconnect(errors.New("peer gone"))

	client, ok := registry.Lookup(1)
	require.True(t, ok)
	require.Same(t, first, client.Conn())
	require.Equal(t, 0, disconnects)

	first.fireDisconnect(errors.New("peer gone"))

	require.Equal(t, 0, registry.Len())
	require.True(t, first.IsClosed())
	require.Equal(t, 1, disconnects)
}

func TestAcceptLimiter(t *testing.T) {
	limiter, err := relaynet.NewIPLimiter([]string{"10.0.0.0/8"}, nil)
	require.NoError(t, err)

	blocked := newStubConn(1, "10.1.2.3")
	allowed := newStubConn(2, "192.168.1.1")

	fatal := errors.New("stop")
	ln := newStubListener(acceptStep{conn: blocked}, acceptStep{conn: allowed}, acceptStep{err: fatal})
	registry := NewRegistry()

	connected := []uint32{}

	a := NewAcceptLoop(AcceptConfig{
		Listener: ln,
		Registry: registry,
		Limiter:  limiter,
		OnConnect: func(c Client) {
			connected = append(connected, c.SocketId)
		},
	})

	err = a.Run(context.Background())
	require.ErrorIs(t, err, fatal)

	require.True(t, blocked.IsClosed())
	require.False(t, allowed.IsClosed())
	require.Equal(t, []uint32{2}, connected)

	_, ok := registry.Lookup(1)
	require.False(t, ok)
	_, ok = registry.Lookup(2)
	require.True(t, ok)
}

func TestAcceptCancelledWhileBlocked(t *testing.T) {
	ln := newStubListener()

	a := NewAcceptLoop(AcceptConfig{
		Listener: ln,
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- a.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "accept loop didn't stop")
	}
}
