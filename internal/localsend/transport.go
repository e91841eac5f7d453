package localsend

import (
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// PacketTransport carries discovery datagrams. *net.UDPConn satisfies it.
type PacketTransport interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// ListenMulticast joins group on every multicast capable interface.
// Multicast loopback is turned back on so that several devices on one host
// can see each other; our own announcements are filtered by fingerprint.
func ListenMulticast(group *net.UDPAddr) (*net.UDPConn, error) {
	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return nil, err
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastLoopback(true); err != nil {
		conn.Close()
		return nil, err
	}
	if err := pc.SetMulticastTTL(1); err != nil {
		conn.Close()
		return nil, err
	}

	conn.SetReadBuffer(64 << 10)
	return conn, nil
}
