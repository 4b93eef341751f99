package inet

import (
	"net/netip"
	"testing"
)

func TestKeyMirrorIsInvolution(t *testing.T) {
	key := TransportKey{
		Proto:  ProtocolTCP,
		Local:  netip.MustParseAddrPort("9.0.13.1:1234"),
		Remote: netip.MustParseAddrPort("93.184.216.34:443"),
	}
	if key.Mirror().Mirror() != key {
		t.Fatalf("expected Mirror to be its own inverse")
	}
	if key.Mirror() == key {
		t.Fatalf("expected Mirror to actually swap local/remote for a non-trivial key")
	}
}

func TestParseFrameUDPRoundTrip(t *testing.T) {
	key := TransportKey{
		Proto:  ProtocolUDP,
		Local:  netip.MustParseAddrPort("9.0.13.1:5000"),
		Remote: netip.MustParseAddrPort("8.8.8.8:53"),
	}
	payload := []byte("query")
	frame := buildRuntimeOutboundFrame(t, key, payload)

	desc, got, ok, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true for a well-formed UDP frame")
	}
	if desc.Key != key {
		t.Fatalf("expected parsed key %v, got %v", key, desc.Key)
	}
	if string(got) != string(payload) {
		t.Fatalf("expected payload %q, got %q", payload, got)
	}
}

func TestParseFrameUnknownEthertypeIsDroppedNotErrored(t *testing.T) {
	frame := make([]byte, 34)
	frame[12], frame[13] = 0x88, 0x08 // arbitrary unknown ethertype
	_, _, ok, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("expected no error for unknown ethertype, got %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for unknown ethertype")
	}
}

func TestParseFrameTruncatedIsError(t *testing.T) {
	_, _, ok, err := ParseFrame([]byte{0, 1, 2})
	if err != ErrFrameTooShort {
		t.Fatalf("expected ErrFrameTooShort, got %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false on error")
	}
}

func TestBuildFrameThenParseRoundTripsTCP(t *testing.T) {
	key := TransportKey{
		Proto:  ProtocolTCP,
		Local:  netip.MustParseAddrPort("9.0.13.1:40000"),
		Remote: netip.MustParseAddrPort("93.184.216.34:443"),
	}
	payload := []byte("reply-bytes")
	// BuildFrame renders the reply addressed to the runtime: src=Remote, dst=Local.
	frame := BuildFrame(key, payload)

	desc, got, ok, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	// Parsing sees src=Remote as the frame's "Local" key component and
	// dst=Local as its "Remote" component, i.e. the mirrored key.
	if desc.Key != key.Mirror() {
		t.Fatalf("expected parsed key %v (mirror of %v), got %v", key.Mirror(), key, desc.Key)
	}
	if string(got) != string(payload) {
		t.Fatalf("expected payload %q, got %q", payload, got)
	}
}

// buildRuntimeOutboundFrame constructs a frame as if sent by the
// runtime for key (src=Local, dst=Remote), the mirror image of
// BuildFrame's reply-to-runtime framing.
func buildRuntimeOutboundFrame(t *testing.T, key TransportKey, payload []byte) []byte {
	t.Helper()
	return BuildFrame(key.Mirror(), payload)
}
