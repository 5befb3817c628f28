package blaze

import "testing"

func TestFramerRestartability(t *testing.T) {
	body := Encode(Object{Fields: []Field{{Tag: PackTag("PING"), Value: VarInt(1)}}})
	frame := EncodePacket(Header{
		ComponentID: ComponentUtil,
		CommandID:   CmdUtilPing,
		Type:        MessageTypeRequest,
		MessageID:   7,
	}, body)

	// Feed the same frame split at every possible boundary and confirm the
	// reassembled packet is identical each time.
	for split := 0; split <= len(frame); split++ {
		r := &Reader{}

		packets, err := r.Feed(frame[:split])
		if err != nil {
			t.Fatalf("split=%d: unexpected error on first chunk: %v", split, err)
		}
		if split < len(frame) && len(packets) != 0 {
			t.Fatalf("split=%d: expected no packets yet, got %d", split, len(packets))
		}

		packets, err = r.Feed(frame[split:])
		if err != nil {
			t.Fatalf("split=%d: unexpected error on second chunk: %v", split, err)
		}
		if len(packets) != 1 {
			t.Fatalf("split=%d: expected exactly 1 packet, got %d", split, len(packets))
		}

		pkt := packets[0]
		if pkt.Header.ComponentID != ComponentUtil || pkt.Header.CommandID != CmdUtilPing || pkt.Header.MessageID != 7 {
			t.Fatalf("split=%d: header mismatch: %+v", split, pkt.Header)
		}

		decoded, err := Decode(pkt.Body)
		if err != nil {
			t.Fatalf("split=%d: Decode() error: %v", split, err)
		}
		v, ok := decoded.Get(PackTag("PING"))
		if !ok || v != VarInt(1) {
			t.Fatalf("split=%d: expected PING=1, got %v (present=%v)", split, v, ok)
		}
	}
}

func TestFramerMultiplePacketsInOneFeed(t *testing.T) {
	body := Encode(Object{})
	frame1 := EncodePacket(Header{ComponentID: 1, CommandID: 1, Type: MessageTypeNotify}, body)
	frame2 := EncodePacket(Header{ComponentID: 2, CommandID: 2, Type: MessageTypeNotify}, body)

	r := &Reader{}
	packets, err := r.Feed(append(append([]byte{}, frame1...), frame2...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(packets))
	}
	if packets[0].Header.ComponentID != 1 || packets[1].Header.ComponentID != 2 {
		t.Fatalf("packets decoded out of order: %+v", packets)
	}
}

func TestFramerOversizedPacketRejected(t *testing.T) {
	r := &Reader{}
	// A short-mode frame declaring the maximum 16-bit length is well within
	// bounds; exercise the extended-mode path with a length over the limit
	// instead.
	frame := make([]byte, 5)
	frame[0] = flagExtendedLength
	big := uint32(MaxPacketSize + 1)
	frame[1] = byte(big >> 24)
	frame[2] = byte(big >> 16)
	frame[3] = byte(big >> 8)
	frame[4] = byte(big)

	_, err := r.Feed(frame)
	if err == nil {
		t.Fatal("expected OversizedPacket error")
	}
	if _, ok := err.(*OversizedPacket); !ok {
		t.Fatalf("expected *OversizedPacket, got %T: %v", err, err)
	}
}
