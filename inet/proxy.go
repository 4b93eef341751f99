package inet

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/time/rate"

	"provideragent/inet/netstack"
	"provideragent/observability"
)

// DefaultBindRate and DefaultBindBurst size the token bucket Bind is
// gated behind when NewProxy is called with a nil limiter, clamped the
// same way the teacher's middleware clamps an unset rate/burst pair
// (gateway/middleware/ratelimit.go).
const (
	DefaultBindRate  = 200
	DefaultBindBurst = 400
)

// Dialer abstracts host-socket establishment so tests can substitute an
// in-memory pair instead of touching the real network.
type Dialer func(network, address string) (net.Conn, error)

type flow struct {
	conn net.Conn
	key  TransportKey
}

// Proxy binds virtual flows to real host sockets and pumps bytes
// between them and the internal stack. The table is guarded by a
// single RWMutex; no mutation crosses an I/O suspension point.
type Proxy struct {
	mu      sync.RWMutex
	table   map[TransportKey]*flow
	stack   *netstack.Stack
	logger  *slog.Logger
	dial    Dialer
	limiter *rate.Limiter
}

// NewProxy constructs a Proxy over stack. dial defaults to net.Dial
// when nil. limiter gates Bind against bind storms (a sandboxed
// runtime opening sockets faster than the host can keep up); a nil
// limiter falls back to DefaultBindRate/DefaultBindBurst.
func NewProxy(stack *netstack.Stack, logger *slog.Logger, dial Dialer, limiter *rate.Limiter) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	if dial == nil {
		dial = net.Dial
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(DefaultBindRate), DefaultBindBurst)
	}
	return &Proxy{
		table:   make(map[TransportKey]*flow),
		stack:   stack,
		logger:  logger,
		dial:    dial,
		limiter: limiter,
	}
}

// Bind ensures a host socket exists for desc.Key, idempotently. The
// existence check happens under the write lock before any socket is
// opened, so a Bind of an already-bound key is a pure no-op. Two
// concurrent Binds of the same new key can both dial; the one that
// loses the race closes its socket and returns nil. A fresh bind first consumes a token from the
// rate limiter; once desc.Key is already in the table the call is
// idempotent and skips the limiter entirely.
func (p *Proxy) Bind(desc SocketDesc) error {
	p.mu.Lock()
	if _, exists := p.table[desc.Key]; exists {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if !p.limiter.Allow() {
		observability.Inet().RecordRateLimited(desc.Key.Proto.String())
		return ErrBindRateLimited
	}

	network, err := networkName(desc.Key.Proto)
	if err != nil {
		return err
	}

	conn, err := p.dial(network, desc.Key.Remote.String())
	if err != nil {
		return fmt.Errorf("inet: dial %s %s: %w", network, desc.Key.Remote, err)
	}

	p.mu.Lock()
	if _, exists := p.table[desc.Key]; exists {
		p.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	p.table[desc.Key] = &flow{conn: conn, key: desc.Key}
	tableSize := len(p.table)
	p.mu.Unlock()

	observability.Inet().RecordBind(desc.Key.Proto.String())
	observability.Inet().SetActiveFlows(tableSize)

	go p.pumpHost(desc.Key, conn)
	return nil
}

// Unbind tears down the flow for key, closing its host socket. Calling
// Unbind on a key that isn't bound is a no-op.
func (p *Proxy) Unbind(key TransportKey) {
	p.mu.Lock()
	f, exists := p.table[key]
	if exists {
		delete(p.table, key)
	}
	tableSize := len(p.table)
	p.mu.Unlock()
	if exists {
		_ = f.conn.Close()
		p.stack.Forget(key.Mirror())
		observability.Inet().RecordUnbind(key.Proto.String())
		observability.Inet().SetActiveFlows(tableSize)
	}
}

// WriteToHost forwards payload to the host socket bound to key. It
// returns an error if the flow is not bound.
func (p *Proxy) WriteToHost(key TransportKey, payload []byte) error {
	p.mu.RLock()
	f, exists := p.table[key]
	p.mu.RUnlock()
	if !exists {
		return fmt.Errorf("inet: write to unbound flow %v", key)
	}
	_, err := f.conn.Write(payload)
	return err
}

// Restart tears down every bound flow and resets the underlying stack,
// so the next Bind starts from a fresh virtual interface.
func (p *Proxy) Restart() {
	p.mu.Lock()
	flows := make([]*flow, 0, len(p.table))
	for _, f := range p.table {
		flows = append(flows, f)
	}
	p.table = make(map[TransportKey]*flow)
	p.mu.Unlock()

	for _, f := range flows {
		_ = f.conn.Close()
	}
	p.stack.Reset()
}

// pumpHost reads host replies and hands each chunk to the stack as a
// Packet event addressed by the runtime-side key (the mirror of the
// host-side key this flow was dialed under).
func (p *Proxy) pumpHost(key TransportKey, conn net.Conn) {
	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, buf[:n])
			// Events are keyed in the stack's own coordinate space
			// (mirrored relative to the proxy table, since the stack
			// models itself as the far end of the dialed connection);
			// ingress-from-stack mirrors back to find the table entry.
			p.stack.HandleFrame(key.Mirror(), payload)
		}
		if err != nil {
			if err != io.EOF {
				p.logger.Debug("inet: host read error, unbinding flow", "key", key, "error", err)
			}
			p.Unbind(key)
			return
		}
	}
}

func networkName(proto Protocol) (string, error) {
	switch proto {
	case ProtocolTCP:
		return "tcp", nil
	case ProtocolUDP:
		return "udp", nil
	default:
		return "", ErrUnsupportedTransport
	}
}
