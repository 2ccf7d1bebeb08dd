package srt

import (
	"net"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// Client is a registered connection.
type Client struct {
	ID          string    `json:"id"`
	SocketId    uint32    `json:"socket_id"`
	Addr        net.Addr  `json:"-"`
	ConnectedAt time.Time `json:"connected_at"`

	conn Conn
}

func (c Client) Conn() Conn {
	return c.conn
}

// Registry is the set of currently connected clients, keyed by socket id.
// It's safe for concurrent use.
type Registry struct {
	clients map[uint32]Client
	lock    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[uint32]Client),
	}
}

// Add registers the connection. It returns false and leaves the registry
// unchanged if a connection with the same socket id is already registered.
func (r *Registry) Add(conn Conn, addr net.Addr) bool {
	id := conn.SocketId()

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.clients[id]; ok {
		return false
	}

	r.clients[id] = Client{
		ID:          shortuuid.New(),
		SocketId:    id,
		Addr:        addr,
		ConnectedAt: time.Now(),
		conn:        conn,
	}

	return true
}

// Remove unregisters the connection with the socket id and returns its entry.
func (r *Registry) Remove(id uint32) (Client, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	c, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}

	return c, ok
}

// RemoveConn unregisters the socket id only if it is registered with conn.
func (r *Registry) RemoveConn(id uint32, conn Conn) (Client, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	c, ok := r.clients[id]
	if !ok || c.conn != conn {
		return Client{}, false
	}

	delete(r.clients, id)

	return c, true
}

func (r *Registry) Lookup(id uint32) (Client, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	c, ok := r.clients[id]

	return c, ok
}

// Snapshot returns a copy of all registered clients in no particular order.
func (r *Registry) Snapshot() []Client {
	r.lock.RLock()
	defer r.lock.RUnlock()

	clients := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}

	return clients
}

func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.clients)
}

// Clear removes all clients and returns them.
func (r *Registry) Clear() []Client {
	r.lock.Lock()
	defer r.lock.Unlock()

	clients := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}

	r.clients = make(map[uint32]Client)

	return clients
}
