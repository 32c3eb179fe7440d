package modbus

// Modbus-RTU frame assembly: address | function | payload | CRC16 (LSB-first).

import "fmt"

// pdu is the function code and payload of a single Modbus request or reply.
type pdu struct {
	function byte
	data     []byte
}

// buildFrame assembles a full RTU frame (address, function, data, CRC) ready for the wire.
func buildFrame(address byte, p pdu) []byte {
	raw := make([]byte, 2+len(p.data))
	raw[0] = address
	raw[1] = p.function
	copy(raw[2:], p.data)
	return appendCRC(raw)
}

// minFrameBytes is the smallest a complete frame can be: address, function, CRC16.
const minFrameBytes = 4

// maxFrameBytes is the largest a complete RTU frame is allowed to be.
const maxFrameBytes = 256

// parseFrame validates CRC and framing of a candidate complete frame and splits it
// into address/pdu. It does not interpret the function code.
func parseFrame(raw []byte) (address byte, p pdu, err error) {
	if len(raw) < minFrameBytes {
		return 0, pdu{}, fmt.Errorf("frame too small: %v bytes", len(raw))
	}
	if len(raw) > maxFrameBytes {
		return 0, pdu{}, fmt.Errorf("frame too large: %v bytes", len(raw))
	}
	if !verifyCRC(raw) {
		return 0, pdu{}, fmt.Errorf("CRC mismatch")
	}
	address = raw[0]
	p = pdu{function: raw[1], data: raw[2 : len(raw)-2]}
	return address, p, nil
}
