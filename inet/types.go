// Package inet is the user-space network proxy bridging a sandboxed
// runtime's virtual TCP/UDP traffic to real host sockets. The wire
// parsing here is hand-rolled on encoding/binary the way the teacher
// hand-rolls its own framed wire protocol (p2p/protocol.go,
// p2p/messages.go) — see DESIGN.md.
package inet

import (
	"errors"
	"net/netip"
)

// VirtualAddr is the provider-side address of the virtual interface the
// sandboxed runtime sees.
var VirtualAddr = netip.MustParseAddr("9.0.13.1")

// VirtualPrefixLen is the prefix length of the virtual subnet.
const VirtualPrefixLen = 24

// DefaultHostAddr is the default address assigned to the host side of
// the virtual link.
var DefaultHostAddr = netip.MustParseAddr("9.0.13.2")

// Protocol is the IANA transport-protocol number of a bound flow.
type Protocol uint8

const (
	ProtocolTCP Protocol = 6
	ProtocolUDP Protocol = 17
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	default:
		return "unknown"
	}
}

// ErrUnsupportedTransport is surfaced when a frame carries a
// recognized but unhandled transport protocol (e.g. SCTP). Unrecognized
// ethertypes and ICMP are silently dropped at parse time instead —
// they never reach this error.
var ErrUnsupportedTransport = errors.New("inet: unsupported transport protocol")

// ErrFrameTooShort is returned by the frame parser for a truncated or
// malformed frame.
var ErrFrameTooShort = errors.New("inet: frame too short to parse")

// ErrBindRateLimited is returned by Proxy.Bind when the bind-storm
// limiter has no tokens left for this tick.
var ErrBindRateLimited = errors.New("inet: bind rate limited")

// TransportKey identifies one bound flow by its 4-tuple plus protocol.
// It is the unit of bookkeeping in the proxy table.
type TransportKey struct {
	Proto  Protocol
	Local  netip.AddrPort
	Remote netip.AddrPort
}

// Mirror swaps Local and Remote, converting a runtime-side key into the
// equivalent host-side key (or vice versa). Mirror(Mirror(k)) == k.
func (k TransportKey) Mirror() TransportKey {
	return TransportKey{Proto: k.Proto, Local: k.Remote, Remote: k.Local}
}

// SocketDesc is everything Proxy.Bind needs to establish a flow,
// derived from parsing one frame from the runtime.
type SocketDesc struct {
	Key TransportKey
}
