// Package udp provides the sockets used to receive and forward TS datagrams.
package udp

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

const readBufferSize = 4 * 1024 * 1024

var (
	ErrNoIPv4    = errors.New("interface has no IPv4 address")
	ErrTruncated = errors.New("datagram larger than receive buffer")
)

// Receiver reads datagrams from a UDP socket. Multicast addresses are joined
// on the given interface, other addresses are just bound.
type Receiver struct {
	conn *net.UDPConn
}

// Listen opens a receiver on addr (host:port). ifname is an interface name
// or one of its IPv4 addresses, empty for the system default.
func Listen(addr, ifname string) (*Receiver, error) {
	gaddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving input address %w", err)
	}
	ifi, err := LookupInterface(ifname)
	if err != nil {
		return nil, err
	}

	var conn *net.UDPConn
	if gaddr.IP.IsMulticast() {
		conn, err = net.ListenMulticastUDP("udp4", ifi, gaddr)
	} else {
		conn, err = net.ListenUDP("udp4", gaddr)
	}
	if err != nil {
		return nil, fmt.Errorf("listening on %s %w", addr, err)
	}
	// Best effort, the kernel may cap it.
	_ = conn.SetReadBuffer(readBufferSize)
	return &Receiver{conn: conn}, nil
}

// Read blocks until a datagram arrives and copies its payload into b.
// A datagram that does not fit in b gives ErrTruncated.
func (r *Receiver) Read(b []byte) (int, error) {
	n, _, flags, _, err := r.conn.ReadMsgUDP(b, nil)
	if err != nil {
		return n, err
	}
	if flags&msgTrunc != 0 {
		return n, fmt.Errorf("%w: kept %d bytes", ErrTruncated, n)
	}
	return n, nil
}

func (r *Receiver) Close() error {
	return r.conn.Close()
}

func (r *Receiver) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

type SenderOptions struct {
	Interface string
	TTL       int
	Loopback  bool
}

// Sender writes datagrams to a fixed destination.
type Sender struct {
	conn *net.UDPConn
}

// Dial opens a sender towards addr (host:port).
func Dial(addr string, o SenderOptions) (*Sender, error) {
	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving output address %w", err)
	}
	ifi, err := LookupInterface(o.Interface)
	if err != nil {
		return nil, err
	}

	var laddr *net.UDPAddr
	if ifi != nil {
		ip, err := InterfaceIPv4(ifi)
		if err != nil {
			return nil, err
		}
		laddr = &net.UDPAddr{IP: ip}
	}

	conn, err := net.DialUDP("udp4", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s %w", addr, err)
	}

	if raddr.IP.IsMulticast() {
		pc := ipv4.NewPacketConn(conn)
		if ifi != nil {
			if err := pc.SetMulticastInterface(ifi); err != nil {
				conn.Close()
				return nil, fmt.Errorf("setting multicast interface %w", err)
			}
		}
		if o.TTL > 0 {
			if err := pc.SetMulticastTTL(o.TTL); err != nil {
				conn.Close()
				return nil, fmt.Errorf("setting multicast ttl %w", err)
			}
		}
		if err := pc.SetMulticastLoopback(o.Loopback); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting multicast loopback %w", err)
		}
	}
	return &Sender{conn: conn}, nil
}

// Write sends b as one datagram. A short write is an error.
func (s *Sender) Write(b []byte) (int, error) {
	n, err := s.conn.Write(b)
	if err == nil && n != len(b) {
		err = fmt.Errorf("short write %d of %d bytes", n, len(b))
	}
	return n, err
}

func (s *Sender) Close() error {
	return s.conn.Close()
}

func (s *Sender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// LookupInterface finds an interface by name or by one of its IP addresses.
// An empty string gives a nil interface.
func LookupInterface(s string) (*net.Interface, error) {
	if s == "" {
		return nil, nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		ifi, err := net.InterfaceByName(s)
		if err != nil {
			return nil, fmt.Errorf("looking up interface %s %w", s, err)
		}
		return ifi, nil
	}

	ifis, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces %w", err)
	}
	for i := range ifis {
		addrs, err := ifis[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && ipn.IP.Equal(ip) {
				return &ifis[i], nil
			}
		}
	}
	return nil, fmt.Errorf("no interface with address %s", s)
}

// InterfaceIPv4 returns the first IPv4 address of ifi.
func InterfaceIPv4(ifi *net.Interface) (net.IP, error) {
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, fmt.Errorf("reading addresses of %s %w", ifi.Name, err)
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok {
			if ip4 := ipn.IP.To4(); ip4 != nil {
				return ip4, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoIPv4, ifi.Name)
}
