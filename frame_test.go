package modbus

import (
	"bytes"
	"testing"
)

func TestBuildFrameAndParseFrameRoundTrip(t *testing.T) {
	p := pdu{function: fnReadHolding, data: []byte{0x00, 0x6B, 0x00, 0x03}}
	frame := buildFrame(0x11, p)

	gotAddr, gotPDU, err := parseFrame(frame)
	if err != nil {
		t.Fatalf("parseFrame() error: %v", err)
	}
	if gotAddr != 0x11 {
		t.Fatalf("parseFrame() address = 0x%02x, want 0x11", gotAddr)
	}
	if gotPDU.function != p.function || !bytes.Equal(gotPDU.data, p.data) {
		t.Fatalf("parseFrame() pdu = %+v, want %+v", gotPDU, p)
	}
}

func TestParseFrameRejectsBadCRC(t *testing.T) {
	p := pdu{function: fnReadHolding, data: []byte{0x00, 0x6B, 0x00, 0x03}}
	frame := buildFrame(0x11, p)
	frame[len(frame)-1] ^= 0x01

	if _, _, err := parseFrame(frame); err == nil {
		t.Fatalf("parseFrame() accepted a frame with a corrupted CRC")
	}
}

func TestParseFrameRejectsUndersizedFrame(t *testing.T) {
	if _, _, err := parseFrame([]byte{0x11, 0x03}); err == nil {
		t.Fatalf("parseFrame() accepted a frame shorter than the minimum")
	}
}
