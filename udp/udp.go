// Package udp provides the datagram side of the relay: unicast or multicast
// UDP sockets bound to a chosen network adapter.
package udp

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/datarhei/srtrelay/log"

	"golang.org/x/net/ipv4"
)

type ListenConfig struct {
	// Address is the group:port of a multicast group to join, or the
	// host:port to listen on.
	Address string

	// Adapter is the name or the IPv4 address of the network interface to
	// join the group on. Empty selects the system default.
	Adapter string

	// ReadBuffer is the size of the socket receive buffer in bytes. Zero
	// keeps the system default.
	ReadBuffer int

	// ReadTimeout bounds every ReadDatagram. Zero blocks until a datagram
	// arrives or the socket is closed.
	ReadTimeout time.Duration

	Logger log.Logger
}

type DialConfig struct {
	// Address is the group:port or host:port datagrams are sent to.
	Address string

	// Adapter is the name or the IPv4 address of the network interface
	// datagrams are sent from. Empty selects the system default.
	Adapter string

	// TTL of multicast datagrams. Zero keeps the system default.
	TTL int

	// Loopback enables receiving own multicast datagrams on this host.
	Loopback bool

	Logger log.Logger
}

// Conn is a UDP socket that reads and writes whole datagrams.
type Conn struct {
	conn   *net.UDPConn
	pc     *ipv4.PacketConn
	remote *net.UDPAddr

	group *net.UDPAddr
	ifi   *net.Interface

	readTimeout time.Duration
	logger      log.Logger
}

// Listen opens a socket for receiving datagrams. For a multicast address the
// group is joined on the adapter.
func Listen(config ListenConfig) (*Conn, error) {
	addr, err := net.ResolveUDPAddr("udp4", config.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid address '%s': %w", config.Address, err)
	}

	ifi, _, err := resolveAdapter(config.Adapter)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		readTimeout: config.ReadTimeout,
		logger:      config.Logger,
	}

	if c.logger == nil {
		c.logger = log.New("")
	}

	if addr.IP.IsMulticast() {
		c.conn, err = net.ListenUDP("udp4", &net.UDPAddr{IP: addr.IP, Port: addr.Port})
		if err != nil {
			return nil, err
		}

		c.pc = ipv4.NewPacketConn(c.conn)
		c.group = &net.UDPAddr{IP: addr.IP}
		c.ifi = ifi

		if err := c.pc.JoinGroup(ifi, c.group); err != nil {
			c.conn.Close()
			return nil, fmt.Errorf("joining group %s: %w", addr.IP, err)
		}
	} else {
		c.conn, err = net.ListenUDP("udp4", addr)
		if err != nil {
			return nil, err
		}
	}

	if config.ReadBuffer > 0 {
		if err := c.conn.SetReadBuffer(config.ReadBuffer); err != nil {
			c.logger.Warn().WithError(err).WithField("bytes", config.ReadBuffer).Log("Can't set receive buffer size")
		}
	}

	c.logger.Info().WithFields(log.Fields{
		"address": config.Address,
		"adapter": adapterName(ifi),
	}).Log("Listening")

	return c, nil
}

// Dial opens a socket for sending datagrams to the address. For a multicast
// address the adapter, the TTL and the loopback are set.
func Dial(config DialConfig) (*Conn, error) {
	addr, err := net.ResolveUDPAddr("udp4", config.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid address '%s': %w", config.Address, err)
	}

	ifi, ip, err := resolveAdapter(config.Adapter)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		remote: addr,
		logger: config.Logger,
	}

	if c.logger == nil {
		c.logger = log.New("")
	}

	c.conn, err = net.ListenUDP("udp4", &net.UDPAddr{IP: ip})
	if err != nil {
		return nil, err
	}

	if addr.IP.IsMulticast() {
		c.pc = ipv4.NewPacketConn(c.conn)

		if ifi != nil {
			if err := c.pc.SetMulticastInterface(ifi); err != nil {
				c.conn.Close()
				return nil, fmt.Errorf("setting multicast interface %s: %w", ifi.Name, err)
			}
		}

		if config.TTL > 0 {
			if err := c.pc.SetMulticastTTL(config.TTL); err != nil {
				c.conn.Close()
				return nil, fmt.Errorf("setting multicast TTL: %w", err)
			}
		}

		if err := c.pc.SetMulticastLoopback(config.Loopback); err != nil {
			c.logger.Warn().WithError(err).Log("Can't set multicast loopback")
		}
	}

	c.logger.Info().WithFields(log.Fields{
		"address": config.Address,
		"adapter": adapterName(ifi),
	}).Log("Sending")

	return c, nil
}

// ReadDatagram reads one datagram into p. With a read timeout an error for
// which os.ErrDeadlineExceeded matches is returned if nothing arrived in time.
func (c *Conn) ReadDatagram(p []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}

	n, _, err := c.conn.ReadFromUDP(p)

	return n, err
}

// WriteDatagram sends p as one datagram to the dialed address.
func (c *Conn) WriteDatagram(p []byte) (int, error) {
	if c.remote == nil {
		return 0, errors.New("socket is not dialed")
	}

	return c.conn.WriteToUDP(p, c.remote)
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) Close() error {
	if c.pc != nil && c.group != nil {
		c.pc.LeaveGroup(c.ifi, c.group)
	}

	return c.conn.Close()
}

// resolveAdapter finds the interface for a name or an IPv4 address and its
// first IPv4 address. An empty adapter returns nil for both.
func resolveAdapter(adapter string) (*net.Interface, net.IP, error) {
	if len(adapter) == 0 {
		return nil, nil, nil
	}

	if ip := net.ParseIP(adapter); ip != nil {
		ifis, err := net.Interfaces()
		if err != nil {
			return nil, nil, err
		}

		for i := range ifis {
			addrs, err := ifis[i].Addrs()
			if err != nil {
				continue
			}

			for _, a := range addrs {
				if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.Equal(ip) {
					return &ifis[i], ip, nil
				}
			}
		}

		return nil, nil, fmt.Errorf("no adapter with address %s found", adapter)
	}

	ifi, err := net.InterfaceByName(adapter)
	if err != nil {
		return nil, nil, fmt.Errorf("adapter %s: %w", adapter, err)
	}

	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, nil, fmt.Errorf("adapter %s: %w", adapter, err)
	}

	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return ifi, ipnet.IP.To4(), nil
		}
	}

	return nil, nil, fmt.Errorf("adapter %s has no IPv4 address", adapter)
}

func adapterName(ifi *net.Interface) string {
	if ifi == nil {
		return "default"
	}

	return ifi.Name
}
