// File: driver/driver.go
// Author: momentics <momentics@gmail.com>
//
// Package driver is the facade: it wires pool.Pool, transport/tcp.Dialer,
// validation, and internal/clock into a single Open call, and exposes the
// pool's counters through control.MetricsRegistry/DebugProbes so a caller
// embedding this module gets introspection for free.

package driver

import (
	"time"

	"github.com/sorenvik/respool/api"
	"github.com/sorenvik/respool/control"
	"github.com/sorenvik/respool/internal/clock"
	"github.com/sorenvik/respool/internal/session"
	"github.com/sorenvik/respool/pool"
	"github.com/sorenvik/respool/transport/tcp"
	"github.com/sorenvik/respool/validation"
)

// Ensure compile-time interface compliance.
var _ api.GracefulShutdown = (*Pool)(nil)

// Options configures Open. Capacity must be set; MaxIdle, DialTimeout
// and KeepAlive fall back to defaults when left at zero.
type Options struct {
	// Capacity bounds how many concurrent connections the pool will ever
	// dial. Required; Open panics if it is not positive.
	Capacity int
	// MaxIdle evicts a connection that has sat unused longer than this.
	// Defaults to 5 minutes.
	MaxIdle time.Duration
	// DialTimeout bounds each outbound dial. Defaults to 5 seconds.
	DialTimeout time.Duration
	// KeepAlive is forwarded to the dialed socket's keepalive interval.
	// Defaults to 30 seconds.
	KeepAlive time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxIdle <= 0 {
		o.MaxIdle = 5 * time.Minute
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 30 * time.Second
	}
	return o
}

// Pool is the driver's handle: a resource pool of TCP connections plus
// the introspection surface wired around it.
type Pool struct {
	pool     *pool.Pool[*tcp.Conn]
	sessions *session.Manager[*tcp.Conn]
	metrics  *control.MetricsRegistry
	debug    *control.DebugProbes
	config   *control.ConfigStore
	control  *control.Controller
}

// Open dials addr lazily, up to opts.Capacity concurrently held
// connections, validated by idle time and liveness on every reuse.
func Open(addr string, opts Options) *Pool {
	opts = opts.withDefaults()

	dialer := &tcp.Dialer{
		Addr:        addr,
		DialTimeout: opts.DialTimeout,
		KeepAlive:   opts.KeepAlive,
	}
	validator := validation.All[*tcp.Conn](
		validation.MaxIdle[*tcp.Conn](opts.MaxIdle),
		validation.Liveness[*tcp.Conn](),
	)

	p := &Pool{
		pool:     pool.New[*tcp.Conn](opts.Capacity, dialer, validator, clock.Monotonic{}),
		sessions: session.NewManager[*tcp.Conn](),
		metrics:  control.NewMetricsRegistry(),
		debug:    control.NewDebugProbes(),
		config:   control.NewConfigStore(),
	}

	p.debug.RegisterProbe("pool.stats", func() any { return p.pool.Stats() })
	p.debug.RegisterProbe("pool.tracked", func() any { return p.sessions.Len() })
	control.RegisterPlatformProbes(p.debug)
	p.control = control.NewController(p.config, p.metrics, p.debug)

	return p
}

// Acquire claims a connection, tracking it under id for debug
// introspection until Release is called on the returned Session.
func (p *Pool) Acquire(handle *pool.WorkerHandle[*tcp.Conn], id string, timeout time.Duration) (*session.Session[*tcp.Conn], error) {
	conn, err := p.pool.Acquire(handle, timeout)
	if err != nil {
		return nil, err
	}
	p.refreshMetrics()
	return p.sessions.Track(id, conn, func() {
		conn.Release()
		p.refreshMetrics()
	}), nil
}

// Close shuts the underlying pool down, disposing every outstanding
// connection it can reach.
func (p *Pool) Close() error {
	return p.pool.Close()
}

// Metrics exposes the driver's metrics registry for external scraping.
func (p *Pool) Metrics() *control.MetricsRegistry { return p.metrics }

// Debug exposes the driver's probe registry for external inspection.
func (p *Pool) Debug() *control.DebugProbes { return p.debug }

// Config exposes the driver's dynamic configuration store.
func (p *Pool) Config() *control.ConfigStore { return p.config }

// Control exposes the unified config/metrics/debug facade as api.Control,
// for callers that want one handle instead of three.
func (p *Pool) Control() api.Control { return p.control }

// Shutdown satisfies api.GracefulShutdown; it is an alias for Close.
func (p *Pool) Shutdown() error { return p.Close() }

func (p *Pool) refreshMetrics() {
	s := p.pool.Stats()
	p.metrics.Set("pool.acquires", s.Acquires)
	p.metrics.Set("pool.releases", s.Releases)
	p.metrics.Set("pool.creates", s.Creates)
	p.metrics.Set("pool.disposes", s.Disposes)
	p.metrics.Set("pool.active", s.Active)
}
