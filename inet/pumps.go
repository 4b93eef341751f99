package inet

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"

	"provideragent/inet/netstack"
)

// Link is the side channel to the sandboxed runtime: length-prefixed
// Ethernet II frames in both directions (SPEC_FULL.md §6.5).
type Link interface {
	io.Reader
	io.Writer
}

// Relay owns the two long-running pumps bridging a Link to a Proxy
// (egress-from-runtime and ingress-from-stack; the runtime-facing frame
// write happens inside ingress-from-stack rather than in a pump of its
// own), after the teacher's bridge shape (network/relay.go's
// enqueue/dequeue tasks around a side channel).
type Relay struct {
	proxy  *Proxy
	stack  *netstack.Stack
	logger *slog.Logger

	wg   sync.WaitGroup
	done chan struct{}
}

// NewRelay constructs a Relay over proxy/stack.
func NewRelay(proxy *Proxy, stack *netstack.Stack, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{proxy: proxy, stack: stack, logger: logger, done: make(chan struct{})}
}

// Start launches the two pumps against link and returns at once.
// egress-from-runtime runs until a read from link fails;
// ingress-from-stack runs until the stack's event channel is closed or
// a write to link fails.
func (r *Relay) Start(link Link) {
	r.wg.Add(2)
	go r.egressFromRuntime(link)
	go r.ingressFromStack(link)
}

// Shutdown waits for both pumps to exit. It does not interrupt them:
// they end only as described on Start, so the caller closes the link
// and the stack first.
func (r *Relay) Shutdown() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	r.wg.Wait()
}

// egressFromRuntime reads frames from the runtime, binds the
// corresponding host socket, and writes the payload straight to it —
// this is the direct outbound path; the stack itself is only involved
// on the return leg (below).
func (r *Relay) egressFromRuntime(link Link) {
	defer r.wg.Done()
	for {
		frame, err := readFrame(link)
		if err != nil {
			r.logger.Debug("inet: side channel closed", "error", err)
			r.proxy.Restart()
			return
		}

		desc, payload, ok, err := ParseFrame(frame)
		if err != nil {
			if errors.Is(err, ErrUnsupportedTransport) {
				r.logger.Debug("inet: dropping frame with unsupported transport", "error", err)
				continue
			}
			r.logger.Debug("inet: dropping malformed frame", "error", err)
			continue
		}
		if !ok {
			continue
		}

		if err := r.proxy.Bind(desc); err != nil {
			r.logger.Debug("inet: bind failed", "key", desc.Key, "error", err)
			continue
		}
		if len(payload) > 0 {
			if err := r.proxy.WriteToHost(desc.Key, payload); err != nil {
				r.logger.Debug("inet: forwarding to host failed", "key", desc.Key, "error", err)
			}
		}
	}
}

// ingressFromStack drains events the stack emits for data arriving from
// bound host sockets and writes the corresponding runtime-facing frame.
func (r *Relay) ingressFromStack(link Link) {
	defer r.wg.Done()
	for event := range r.stack.Events() {
		key, ok := event.Key.(TransportKey)
		if !ok {
			continue
		}
		switch event.Kind {
		case netstack.Packet:
			runtimeKey := key.Mirror()
			frame := BuildFrame(runtimeKey, event.Payload)
			if err := writeFrame(link, frame); err != nil {
				r.logger.Debug("inet: egress-to-runtime write failed", "error", err)
				return
			}
		case netstack.Disconnected:
			r.proxy.Unbind(key.Mirror())
		case netstack.InboundConnection:
			// Bookkeeping only; the flow was already bound by
			// egress-from-runtime before any host data could arrive.
		}
	}
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func writeFrame(w io.Writer, frame []byte) error {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(frame)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}
