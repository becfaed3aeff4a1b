// File: transport/tcp/dialer.go
// Author: momentics <momentics@gmail.com>
//
// Dialer implements api.Allocator[*Conn], handing the pool freshly dialed,
// socket-tuned TCP connections and reclaiming them on dispose.

package tcp

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/sorenvik/respool/api"
)

// Dialer dials addr on every Create call. DialTimeout bounds each dial;
// KeepAlive is passed to net.Dialer as the keepalive period. TCP_NODELAY
// is then set on the socket via SetsockoptInt.
type Dialer struct {
	Addr        string
	DialTimeout time.Duration
	KeepAlive   time.Duration
}

// NewDialer returns a Dialer targeting addr with sane defaults.
func NewDialer(addr string) *Dialer {
	return &Dialer{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
		KeepAlive:   30 * time.Second,
	}
}

// Create dials a new connection and binds release to it, so a caller
// holding the returned *Conn returns it to the pool via Conn.Release
// rather than needing to thread the callback through separately.
func (d *Dialer) Create(release api.ReleaseFunc) (*Conn, error) {
	nd := net.Dialer{Timeout: d.DialTimeout, KeepAlive: d.KeepAlive}
	raw, err := nd.Dial("tcp", d.Addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: dial %s: %w", d.Addr, err)
	}
	tcpConn, ok := raw.(*net.TCPConn)
	if ok {
		if err := tuneSocket(tcpConn); err != nil {
			log.Printf("tcp: socket tuning failed for %s: %v", d.Addr, err)
		}
	}
	return newConn(raw, release), nil
}

// OnAcquire resets the read/write deadlines on every handout so a stale
// deadline from a previous borrower never leaks into the next one.
func (d *Dialer) OnAcquire(c *Conn) {
	_ = c.SetDeadline(time.Time{})
}

// OnDispose closes the underlying socket. Errors are logged rather than
// returned, matching api.Allocator[T]'s contract that OnDispose cannot
// fail the pool's dispose path.
func (d *Dialer) OnDispose(c *Conn) {
	if err := c.Close(); err != nil {
		log.Printf("tcp: close on dispose: %v", err)
	}
}
