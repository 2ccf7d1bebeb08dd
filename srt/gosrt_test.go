package srt

import (
	"fmt"
	"testing"
	"time"

	gosrt "github.com/datarhei/gosrt"
	"github.com/stretchr/testify/require"
)

func dialClient(t *testing.T, address, streamId string) (gosrt.Conn, error) {
	t.Helper()

	config := gosrt.DefaultConfig()
	config.StreamId = streamId

	return gosrt.Dial("srt", address, config)
}

// readPayload reads one payload from the connection or fails after timeout.
func readPayload(t *testing.T, c gosrt.Conn, timeout time.Duration) []byte {
	t.Helper()

	type result struct {
		data []byte
		err  error
	}

	ch := make(chan result, 1)

	go func() {
		buf := make([]byte, MaxChunkSize)
		n, err := c.Read(buf)
		ch <- result{data: buf[:n], err: err}
	}()

	select {
	case r := <-ch:
		require.NoError(t, r.err)
		return r.data
	case <-time.After(timeout):
		require.FailNow(t, "no payload received")
	}

	return nil
}

func TestGoSRTBroadcast(t *testing.T) {
	for _, blocking := range []bool{false, true} {
		t.Run(fmt.Sprintf("blocking=%v", blocking), func(t *testing.T) {
			transport := NewTransport(TransportConfig{
				Blocking: blocking,
			})
			defer transport.Close()

			ln, err := transport.Listen("127.0.0.1:0")
			require.NoError(t, err)

			b := NewBroadcaster(ln, BroadcasterConfig{
				ClientsPerThread: 10,
				PollInterval:     10 * time.Millisecond,
			})
			defer b.Close()

			clients := []gosrt.Conn{}
			for i := 0; i < 3; i++ {
				c, err := dialClient(t, b.Addr().String(), "")
				require.NoError(t, err)
				defer c.Close()

				clients = append(clients, c)
			}

			require.Eventually(t, func() bool {
				return len(b.Clients()) == 3
			}, 5*time.Second, 10*time.Millisecond)

			for i := 0; i < 5; i++ {
				b.Broadcast([]byte(fmt.Sprintf("payload %d", i)))
			}

			for _, c := range clients {
				for i := 0; i < 5; i++ {
					data := readPayload(t, c, 5*time.Second)
					require.Equal(t, fmt.Sprintf("payload %d", i), string(data))
				}
			}

			require.Equal(t, uint64(5), b.Stats().Payloads)
			require.Equal(t, uint64(15), b.Stats().Sends)

			// The peer socket id of a caller is the socket id on the listener side.
			gone := clients[0].PeerSocketId()
			clients[0].Close()

			require.Eventually(t, func() bool {
				return len(b.Clients()) == 2
			}, 5*time.Second, 10*time.Millisecond)

			for _, c := range b.Clients() {
				require.NotEqual(t, gone, c.SocketId)
			}

			b.Broadcast([]byte("after disconnect"))

			for _, c := range clients[1:] {
				data := readPayload(t, c, 5*time.Second)
				require.Equal(t, "after disconnect", string(data))
			}
		})
	}
}

func TestGoSRTRejectsStreamId(t *testing.T) {
	transport := NewTransport(TransportConfig{
		Token:    "secret",
		StreamID: "live",
	})
	defer transport.Close()

	ln, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)

	b := NewBroadcaster(ln, BroadcasterConfig{
		PollInterval: 10 * time.Millisecond,
	})
	defer b.Close()

	address := b.Addr().String()

	_, err = dialClient(t, address, "other,token:secret")
	require.Error(t, err, "unknown resource")

	_, err = dialClient(t, address, "live,token:wrong")
	require.Error(t, err, "invalid token")

	_, err = dialClient(t, address, "live")
	require.Error(t, err, "missing token")

	require.Empty(t, b.Clients())

	c, err := dialClient(t, address, "#!:r=live,token=secret")
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool {
		return len(b.Clients()) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGoSRTDial(t *testing.T) {
	config := gosrt.DefaultConfig()

	server, err := gosrt.Listen("srt", "127.0.0.1:0", config)
	require.NoError(t, err)
	defer server.Close()

	accepted := make(chan gosrt.Conn, 1)

	go func() {
		c, _, err := server.Accept(func(req gosrt.ConnRequest) gosrt.ConnType {
			return gosrt.SUBSCRIBE
		})
		if err != nil {
			close(accepted)
			return
		}

		accepted <- c
	}()

	transport := NewTransport(TransportConfig{
		Blocking: true,
	})
	defer transport.Close()

	conn, err := transport.Dial(server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	var peer gosrt.Conn
	select {
	case peer = <-accepted:
		require.NotNil(t, peer)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "connection wasn't accepted")
	}
	defer peer.Close()

	_, err = peer.Write([]byte("from the listener"))
	require.NoError(t, err)

	buf := make([]byte, MaxChunkSize)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "from the listener", string(buf[:n]))
}
