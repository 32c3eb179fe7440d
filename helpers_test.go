package modbus

import "testing"

func TestComputeCRC16KnownVector(t *testing.T) {
	// crc16([0x01,0x03,0x00,0x00,0x00,0x01]) = [0x84, 0x0A] on the wire (low byte
	// first), i.e. register value 0x0A84.
	req := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}
	got := computeCRC16(req)
	want := uint16(0x0A84)
	if got != want {
		t.Fatalf("computeCRC16() = 0x%04x, want 0x%04x", got, want)
	}
}

func TestAppendCRCAndVerifyCRCRoundTrip(t *testing.T) {
	req := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}
	framed := appendCRC(req)
	if len(framed) != len(req)+2 {
		t.Fatalf("appendCRC() produced %v bytes, want %v", len(framed), len(req)+2)
	}
	if !verifyCRC(framed) {
		t.Fatalf("verifyCRC() rejected a frame it just built")
	}
	framed[len(framed)-1] ^= 0xFF
	if verifyCRC(framed) {
		t.Fatalf("verifyCRC() accepted a corrupted frame")
	}
}

func TestVerifyCRCRejectsShortFrames(t *testing.T) {
	if verifyCRC([]byte{0x01, 0x02, 0x03}) {
		t.Fatalf("verifyCRC() accepted a frame shorter than the minimum")
	}
}
