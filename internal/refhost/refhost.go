// Package refhost is a reference implementation of dm.Callbacks over
// real TCP sockets: Connect dials out, an accept loop takes inbound
// connections, and every connection is driven by its own read/write
// goroutine pair. Grounded on prxssh/rabbit's peer.Peer
// (readMessagesLoop/writeMessagesLoop over an errgroup) and
// peer.Swarm's accept/dial lifecycle, stripped of protocol awareness:
// a refhost connection moves raw bytes and never parses a message
// itself, since framing is internal/dm's job through
// DispatchFromBuffer.
package refhost

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/prxssh/rabbitdm/internal/config"
	"github.com/prxssh/rabbitdm/internal/dm"
	"github.com/prxssh/rabbitdm/internal/dmstats"
	"github.com/prxssh/rabbitdm/internal/peermgr"
)

const readBufferSize = 16 * 1024

// conn is one TCP connection's I/O state. handle is a uuid string,
// used as the dm.peermgr.NetHandle for this connection.
type conn struct {
	handle    string
	raw       net.Conn
	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.raw.Close()
	})
}

// Host drives one DownloadManager over real sockets: dialing outbound
// connections on demand, accepting inbound ones on cfg.MyAddr, and
// ticking Periodic on a fixed interval. Grounded on prxssh/rabbit's
// peer.Peer and swarm.Swarm, adapted to push raw bytes through
// dm.DM.DispatchFromBuffer instead of parsing messages itself - the
// parsing now lives entirely on the DM side of the boundary.
type Host struct {
	log *slog.Logger
	cfg config.Config
	dm  *dm.DM

	// OnSnapshot, if set before Run, is called with the result of
	// every Periodic tick - a dashboard's hook into DM's state
	// without reaching into its internals.
	OnSnapshot func(dmstats.Snapshot)

	listener net.Listener

	mu    sync.Mutex
	conns map[string]*conn

	cancel context.CancelFunc
}

// New returns a Host bound to d, ready to accept connections once Run
// is called and to dial once d.AddPeer triggers Connect. cfg supplies
// the listen address and the dial/read/write timeouts.
func New(d *dm.DM, cfg config.Config, log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	return &Host{
		log:   log.With("component", "refhost"),
		cfg:   cfg,
		dm:    d,
		conns: make(map[string]*conn),
	}
}

// Callbacks returns the dm.Callbacks table bound to this host, for
// d.SetCallbacks.
func (h *Host) Callbacks() dm.Callbacks {
	return dm.Callbacks{
		Connect:         h.connect,
		Send:            h.send,
		CallExclusively: callExclusively,
		Log:             h.logLine,
	}
}

func callExclusively(lockSlot *sync.Mutex, fn func()) {
	lockSlot.Lock()
	defer lockSlot.Unlock()
	fn()
}

func (h *Host) logLine(src, line string) {
	h.log.Info(line, "src", src)
}

// Run listens on cfg.MyAddr, accepts inbound connections, and ticks
// d.Periodic every RechokeInterval until ctx is cancelled or Close is
// called. It blocks until its accept and periodic loops have exited;
// per-connection read/write goroutines are stopped by closing their
// connections but are not waited for.
func (h *Host) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.cfg.MyAddr.String())
	if err != nil {
		return fmt.Errorf("refhost: listen: %w", err)
	}
	h.listener = ln

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.acceptLoop(gctx) })
	g.Go(func() error { return h.periodicLoop(gctx) })

	<-gctx.Done()
	_ = ln.Close()
	h.closeAllConns()

	return g.Wait()
}

// Close stops Run and tears down every connection this host owns.
func (h *Host) Close() {
	if h.cancel != nil {
		h.cancel()
	}
}

func (h *Host) acceptLoop(ctx context.Context) error {
	l := h.log.With("component", "accept loop")
	l.Debug("started")

	for {
		raw, err := h.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			l.Warn("accept failed, exiting", "error", err)
			return err
		}

		addr, err := netip.ParseAddrPort(raw.RemoteAddr().String())
		if err != nil {
			l.Warn("unparseable remote addr", "addr", raw.RemoteAddr().String(), "error", err)
			_ = raw.Close()
			continue
		}

		c := h.registerConn(raw)

		var added bool
		h.dm.Exclusive(func() {
			_, aerr := h.dm.AddPeer(addr, c.handle)
			added = aerr == nil
		})
		if !added {
			h.teardown(c, nil)
		}
	}
}

// connect dials addr and reports the outcome through onConnect/onFail,
// both of which internal/dm already wraps in its own exclusive
// section, so connect itself must not take dm's lock.
func (h *Host) connect(addr netip.AddrPort, onConnect func(peermgr.NetHandle), onFail func(reason string)) {
	go func() {
		raw, err := net.DialTimeout("tcp", addr.String(), h.cfg.DialTimeout)
		if err != nil {
			onFail(err.Error())
			return
		}
		c := h.registerConn(raw)
		onConnect(c.handle)
	}()
}

func (h *Host) registerConn(raw net.Conn) *conn {
	c := &conn{
		handle: uuid.NewString(),
		raw:    raw,
		outbox: make(chan []byte, 64),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.conns[c.handle] = c
	h.mu.Unlock()

	go h.readLoop(c)
	go h.writeLoop(c)

	return c
}

func (h *Host) readLoop(c *conn) {
	l := h.log.With("component", "read loop", "peer", c.handle)
	buf := make([]byte, readBufferSize)

	for {
		if h.cfg.ReadTimeout > 0 {
			_ = c.raw.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		}

		n, err := c.raw.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			ok := false
			h.dm.Exclusive(func() {
				ok = h.dm.DispatchFromBuffer(c.handle, chunk) == 1
			})
			if !ok {
				h.teardown(c, nil)
				return
			}
		}
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			l.Debug("read failed, closing", "error", err)
			h.teardown(c, err)
			return
		}
	}
}

func (h *Host) writeLoop(c *conn) {
	l := h.log.With("component", "write loop", "peer", c.handle)

	for {
		select {
		case <-c.done:
			return

		case b, ok := <-c.outbox:
			if !ok {
				return
			}
			if h.cfg.WriteTimeout > 0 {
				_ = c.raw.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			}
			if _, err := c.raw.Write(b); err != nil {
				l.Debug("write failed, closing", "error", err)
				h.teardown(c, err)
				return
			}
		}
	}
}

// send hands b to handle's write loop without blocking, matching
// peer_send's 0|1 contract: a full outbox (a wedged or malicious peer)
// drops the frame and reports failure rather than stalling the
// caller, which is running inside DM's own exclusive section.
func (h *Host) send(handle peermgr.NetHandle, b []byte) bool {
	id, ok := handle.(string)
	if !ok {
		return false
	}

	h.mu.Lock()
	c, ok := h.conns[id]
	h.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case c.outbox <- b:
		return true
	default:
		h.log.Warn("outbox full, dropping frame", "peer", id)
		return false
	}
}

func (h *Host) teardown(c *conn, err error) {
	c.close()

	h.mu.Lock()
	delete(h.conns, c.handle)
	h.mu.Unlock()

	h.log.Debug("connection closed", "peer", c.handle, "error", err)
}

func (h *Host) closeAllConns() {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*conn)
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

func (h *Host) periodicLoop(ctx context.Context) error {
	interval := h.cfg.RechokeInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case now := <-ticker.C:
			var snap dmstats.Snapshot
			h.dm.Exclusive(func() {
				snap = h.dm.Periodic(now)
			})
			if h.OnSnapshot != nil {
				h.OnSnapshot(snap)
			}
		}
	}
}
