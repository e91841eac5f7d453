package utils

import (
	"net"
	"sync"
	"time"
)

// DefaultStallTimeout is how long a connection may go without moving a
// single byte in either direction before it is dropped.
const DefaultStallTimeout = 2 * time.Minute

// StallListener wraps ln so that every Read and Write on an accepted
// connection must make progress within timeout. Unlike a whole-request
// deadline, a slow transfer survives as long as bytes keep flowing.
// Deadlines set explicitly by the server still apply when they are earlier.
func StallListener(ln net.Listener, timeout time.Duration) net.Listener {
	if timeout <= 0 {
		return ln
	}
	return &stallListener{Listener: ln, timeout: timeout}
}

type stallListener struct {
	net.Listener
	timeout time.Duration
}

func (l *stallListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &stallConn{Conn: c, timeout: l.timeout}, nil
}

type stallConn struct {
	net.Conn
	timeout time.Duration

	mu            sync.Mutex
	readDeadline  time.Time
	writeDeadline time.Time
}

func earliest(d, fixed time.Time) time.Time {
	if !fixed.IsZero() && fixed.Before(d) {
		return fixed
	}
	return d
}

func (c *stallConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	d := earliest(time.Now().Add(c.timeout), c.readDeadline)
	c.mu.Unlock()

	if err := c.Conn.SetReadDeadline(d); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *stallConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	d := earliest(time.Now().Add(c.timeout), c.writeDeadline)
	c.mu.Unlock()

	if err := c.Conn.SetWriteDeadline(d); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

func (c *stallConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline, c.writeDeadline = t, t
	c.mu.Unlock()

	return c.Conn.SetDeadline(t)
}

func (c *stallConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline = t
	c.mu.Unlock()

	return c.Conn.SetReadDeadline(t)
}

func (c *stallConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.writeDeadline = t
	c.mu.Unlock()

	return c.Conn.SetWriteDeadline(t)
}
