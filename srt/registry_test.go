package srt

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry()

	c := newStubConn(1, "127.0.0.1")

	require.True(t, r.Add(c, c.RemoteAddr()))
	require.False(t, r.Add(c, c.RemoteAddr()))
	require.Equal(t, 1, r.Len())

	client, ok := r.Lookup(1)
	require.True(t, ok)
	require.Equal(t, uint32(1), client.SocketId)
	require.Equal(t, c.RemoteAddr(), client.Addr)
	require.NotEmpty(t, client.ID)
	require.Same(t, c, client.Conn())

	_, ok = r.Remove(1)
	require.True(t, ok)

	_, ok = r.Remove(1)
	require.False(t, ok)

	require.Equal(t, 0, r.Len())
	require.Empty(t, r.Snapshot())
}

func TestRegistrySnapshotIsCopy(t *testing.T) {
	r := NewRegistry()

	for i := uint32(1); i <= 3; i++ {
		c := newStubConn(i, "127.0.0.1")
		r.Add(c, c.RemoteAddr())
	}

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 3)

	r.Remove(2)

	require.Len(t, snapshot, 3)
	require.Len(t, r.Snapshot(), 2)

	cleared := r.Clear()
	require.Len(t, cleared, 2)
	require.Equal(t, 0, r.Len())
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()

	wg := sync.WaitGroup{}

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func(base int) {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				id := uint32(base*100 + j)
				c := newStubConn(id, fmt.Sprintf("10.0.%d.%d", base, j))

				r.Add(c, c.RemoteAddr())
				r.Snapshot()

				if j%2 == 0 {
					r.Remove(id)
				}
			}
		}(i)
	}

	wg.Wait()

	require.Equal(t, 500, r.Len())

	for _, c := range r.Snapshot() {
		require.Equal(t, uint32(1), c.SocketId%2)
	}
}

func TestRegistryRemoveConn(t *testing.T) {
	r := NewRegistry()

	c := newStubConn(1, "127.0.0.1")
	other := newStubConn(1, "127.0.0.2")

	require.True(t, r.Add(c, c.RemoteAddr()))

	_, ok := r.RemoveConn(1, other)
	require.False(t, ok)
	require.Equal(t, 1, r.Len())

	client, ok := r.RemoveConn(1, c)
	require.True(t, ok)
	require.Same(t, c, client.Conn())
	require.Equal(t, 0, r.Len())
}
