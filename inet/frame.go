package inet

import (
	"encoding/binary"
	"net/netip"
)

const (
	ethHeaderLen  = 14
	ethTypeIPv4   = 0x0800
	ethTypeIPv6   = 0x86DD
	minIPv4Header = 20
	udpHeaderLen  = 8
)

var (
	hostMAC    = [6]byte{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
	runtimeMAC = [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
)

// ParseFrame decodes one Ethernet II frame from the runtime side. ok is
// false with a nil error for ethertypes and transports this proxy
// silently ignores (unknown ethertype, ICMP): the caller should drop
// the frame, not treat it as an error. err is non-nil for a truncated
// frame or a recognized-but-unsupported transport.
func ParseFrame(frame []byte) (desc SocketDesc, payload []byte, ok bool, err error) {
	if len(frame) < ethHeaderLen+minIPv4Header {
		return SocketDesc{}, nil, false, ErrFrameTooShort
	}
	ethertype := binary.BigEndian.Uint16(frame[12:14])

	var ipPayload []byte
	var srcIP, dstIP [4]byte
	switch ethertype {
	case ethTypeIPv4:
		ipPayload = frame[ethHeaderLen:]
		copy(srcIP[:], ipPayload[12:16])
		copy(dstIP[:], ipPayload[16:20])
	case ethTypeIPv6:
		if len(frame) < ethHeaderLen+40 {
			return SocketDesc{}, nil, false, ErrFrameTooShort
		}
		v6 := frame[ethHeaderLen:]
		// Only IPv4-mapped traffic is meaningful on this virtual link;
		// the mapped address is the last 4 bytes of the 16-byte field.
		copy(srcIP[:], v6[8:24][12:16])
		copy(dstIP[:], v6[24:40][12:16])
		nextHeader := Protocol(v6[6])
		ipPayload = v6[40:]
		return parseTransport(nextHeader, srcIP, dstIP, ipPayload)
	default:
		return SocketDesc{}, nil, false, nil
	}

	ihl := int(ipPayload[0]&0x0F) * 4
	if ihl < minIPv4Header || len(ipPayload) < ihl {
		return SocketDesc{}, nil, false, ErrFrameTooShort
	}
	proto := Protocol(ipPayload[9])
	transport := ipPayload[ihl:]
	return parseTransport(proto, srcIP, dstIP, transport)
}

func parseTransport(proto Protocol, srcIP, dstIP [4]byte, transport []byte) (SocketDesc, []byte, bool, error) {
	switch proto {
	case ProtocolTCP:
		if len(transport) < 20 {
			return SocketDesc{}, nil, false, ErrFrameTooShort
		}
		srcPort := binary.BigEndian.Uint16(transport[0:2])
		dstPort := binary.BigEndian.Uint16(transport[2:4])
		dataOffset := int(transport[12]>>4) * 4
		if dataOffset < 20 || len(transport) < dataOffset {
			return SocketDesc{}, nil, false, ErrFrameTooShort
		}
		key := TransportKey{
			Proto:  ProtocolTCP,
			Local:  netip.AddrPortFrom(netip.AddrFrom4(srcIP), srcPort),
			Remote: netip.AddrPortFrom(netip.AddrFrom4(dstIP), dstPort),
		}
		return SocketDesc{Key: key}, transport[dataOffset:], true, nil
	case ProtocolUDP:
		if len(transport) < udpHeaderLen {
			return SocketDesc{}, nil, false, ErrFrameTooShort
		}
		srcPort := binary.BigEndian.Uint16(transport[0:2])
		dstPort := binary.BigEndian.Uint16(transport[2:4])
		key := TransportKey{
			Proto:  ProtocolUDP,
			Local:  netip.AddrPortFrom(netip.AddrFrom4(srcIP), srcPort),
			Remote: netip.AddrPortFrom(netip.AddrFrom4(dstIP), dstPort),
		}
		return SocketDesc{Key: key}, transport[udpHeaderLen:], true, nil
	case 1: // ICMP
		return SocketDesc{}, nil, false, nil
	default:
		return SocketDesc{}, nil, false, ErrUnsupportedTransport
	}
}

// BuildFrame constructs the Ethernet/IPv4 frame delivered to the
// runtime for a reply on flow key: IP source is key.Remote (the peer
// that sent the reply), destination is key.Local (the runtime).
func BuildFrame(key TransportKey, payload []byte) []byte {
	srcIP := key.Remote.Addr().As4()
	dstIP := key.Local.Addr().As4()

	var transport []byte
	switch key.Proto {
	case ProtocolTCP:
		transport = buildTCPSegment(key.Remote.Port(), key.Local.Port(), payload, srcIP, dstIP)
	default:
		transport = buildUDPSegment(key.Remote.Port(), key.Local.Port(), payload, srcIP, dstIP)
	}

	ipHeader := buildIPv4Header(srcIP, dstIP, key.Proto, len(transport))

	frame := make([]byte, 0, ethHeaderLen+len(ipHeader)+len(transport))
	frame = append(frame, runtimeMAC[:]...)
	frame = append(frame, hostMAC[:]...)
	frame = append(frame, 0x08, 0x00)
	frame = append(frame, ipHeader...)
	frame = append(frame, transport...)
	return frame
}

func buildIPv4Header(src, dst [4]byte, proto Protocol, payloadLen int) []byte {
	h := make([]byte, minIPv4Header)
	h[0] = 0x45 // version 4, IHL 5
	h[1] = 0
	binary.BigEndian.PutUint16(h[2:4], uint16(minIPv4Header+payloadLen))
	binary.BigEndian.PutUint16(h[4:6], 0) // identification
	h[6], h[7] = 0, 0                     // flags/fragment offset
	h[8] = 64                             // TTL
	h[9] = byte(proto)
	binary.BigEndian.PutUint16(h[10:12], 0) // checksum placeholder
	copy(h[12:16], src[:])
	copy(h[16:20], dst[:])
	binary.BigEndian.PutUint16(h[10:12], checksum16(h))
	return h
}

func buildUDPSegment(srcPort, dstPort uint16, payload []byte, src, dst [4]byte) []byte {
	seg := make([]byte, udpHeaderLen+len(payload))
	binary.BigEndian.PutUint16(seg[0:2], srcPort)
	binary.BigEndian.PutUint16(seg[2:4], dstPort)
	binary.BigEndian.PutUint16(seg[4:6], uint16(len(seg)))
	copy(seg[udpHeaderLen:], payload)
	pseudo := pseudoHeaderSum(src, dst, ProtocolUDP, uint16(len(seg)))
	binary.BigEndian.PutUint16(seg[6:8], checksum16WithPseudo(pseudo, seg))
	return seg
}

func buildTCPSegment(srcPort, dstPort uint16, payload []byte, src, dst [4]byte) []byte {
	const tcpHeaderLen = 20
	seg := make([]byte, tcpHeaderLen+len(payload))
	binary.BigEndian.PutUint16(seg[0:2], srcPort)
	binary.BigEndian.PutUint16(seg[2:4], dstPort)
	// Sequence/ack numbers are left zeroed: this proxy forwards payload
	// bytes over an already-established host socket and relies on the
	// runtime's own TCP stack for sequencing, not on values mirrored here.
	seg[12] = byte(tcpHeaderLen/4) << 4 // data offset, no flags set
	seg[13] = 0x18                     // PSH+ACK
	binary.BigEndian.PutUint16(seg[14:16], 65535)
	copy(seg[tcpHeaderLen:], payload)
	pseudo := pseudoHeaderSum(src, dst, ProtocolTCP, uint16(len(seg)))
	binary.BigEndian.PutUint16(seg[16:18], checksum16WithPseudo(pseudo, seg))
	return seg
}
