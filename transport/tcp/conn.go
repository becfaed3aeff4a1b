// File: transport/tcp/conn.go
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"net"
	"time"

	"github.com/fishy/wrapreader"

	"github.com/sorenvik/respool/api"
)

// Conn is the pooled value handed out by Dialer. It embeds net.Conn but
// routes Close through wrapreader so a partially-read body and the
// underlying socket both get a chance to close, with any errors from
// either aggregated rather than one silently shadowing the other.
//
// Close tears the socket down for good; Release returns the connection
// to the pool for reuse. Callers that are done with a Conn call Release,
// not Close — Close is reserved for the pool's own dispose path and for
// callers who know the connection is no longer fit for reuse.
type Conn struct {
	net.Conn
	closer    *trackingCloser
	createdAt time.Time
	release   api.ReleaseFunc
}

// trackingCloser records whether Close has already run, which IsAlive
// reports.
type trackingCloser struct {
	net.Conn
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return c.Conn.Close()
}

func newConn(raw net.Conn, release api.ReleaseFunc) *Conn {
	tc := &trackingCloser{Conn: raw}
	wrapped := wrapreader.Wrap(raw, tc)
	return &Conn{
		Conn:      &closeOverride{Conn: raw, close: wrapped.Close},
		closer:    tc,
		createdAt: time.Now(),
		release:   release,
	}
}

// Release returns the connection to the pool it was acquired from.
// Calling it more than once for the same acquire is a programmer error.
// The pool logs and ignores a second call that arrives while the slot is
// still AVAILABLE; once another caller has claimed the slot again, the
// second call releases it on that caller's behalf.
func (c *Conn) Release() {
	c.release()
}

// closeOverride routes net.Conn's Close through a wrapreader.ReadCloser
// while leaving every other net.Conn method untouched.
type closeOverride struct {
	net.Conn
	close func() error
}

func (c *closeOverride) Close() error { return c.close() }

// CreatedAt satisfies validation.Aged, letting validation.MaxLifetime
// bound a dialed connection's total age rather than only its idle time.
func (c *Conn) CreatedAt() time.Time { return c.createdAt }

// IsAlive satisfies validation.LivenessChecker: it reports false once
// Close has been called on the connection. The socket itself is not
// probed, so a peer reset goes unnoticed until something calls Close.
func (c *Conn) IsAlive() bool { return !c.closer.closed }
