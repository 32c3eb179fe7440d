package command

// The command envelope sub-protocol: registers 10001-10126 carry a
// structured command channel used for firmware upload and rapid sampling.
// A 246-byte scratch buffer is built, its CRC32 computed, then sent as two
// transactions - write-multiple-registers for the CRC/payload, followed by
// write-single-register for the command register itself, always last.

import (
	"fmt"

	modbus "github.com/andreww5au/pasd-station"
)

// Register numbers of the envelope.
const (
	RegCRC        = 10001 // 2 words, little-endian halves of the CRC32
	RegAddrLow    = 10003
	RegAddrHigh   = 10004 // low byte = address high byte, high byte = count
	RegSegmentLo  = 10005
	RegSegmentHi  = 10124
	RegCommand    = 10125
	RegResult     = 10126
	RegSampleData = 10127

	segmentWords = 120
	bufferBytes  = 246
)

// Command identifies one operation of the envelope protocol.
type Command byte

const (
	CmdErase        Command = 1
	CmdWriteSegment Command = 2
	CmdVerify       Command = 3
	CmdUpdate       Command = 4
	CmdReset        Command = 5
	CmdPeekROM      Command = 6
	CmdStartSample  Command = 7
	CmdStopSample   Command = 8
	CmdSampleState  Command = 9
	CmdSampleSize   Command = 10
	CmdSampleRead   Command = 11
	CmdSampleCount  Command = 12
)

// Result is the value read back from RegResult after a command completes.
type Result int

const (
	ResultOK Result = iota
	ResultError
	ResultCRCError
	ResultUnknownCommand
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultError:
		return "ERROR"
	case ResultCRCError:
		return "CRC_ERROR"
	case ResultUnknownCommand:
		return "UNKNOWN_COMMAND"
	default:
		return fmt.Sprintf("RESULT(%d)", int(r))
	}
}

// Frame is the 246-byte scratch buffer backing one envelope transaction. It
// computes its own CRC32.
type Frame struct {
	buf [bufferBytes]byte
}

// New returns an empty Frame (all-zero buffer).
func New() *Frame {
	return &Frame{}
}

// SetAddressCount packs a 24-bit address and an 8-bit count into the
// envelope's leading words (registers 10003/10004 when transmitted).
func (f *Frame) SetAddressCount(address uint32, count uint8) {
	f.buf[0] = byte(address)
	f.buf[1] = byte(address >> 8)
	f.buf[2] = byte(address >> 16)
	f.buf[3] = count
}

// SetUint32 writes a little-endian 32-bit value at the given byte offset
// into the segment region (used by start_sample's millisecond interval).
func (f *Frame) SetUint32(offset int, value uint32) {
	f.buf[offset] = byte(value)
	f.buf[offset+1] = byte(value >> 8)
	f.buf[offset+2] = byte(value >> 16)
	f.buf[offset+3] = byte(value >> 24)
}

// SetUint16 writes a little-endian 16-bit value at the given byte offset.
func (f *Frame) SetUint16(offset int, value uint16) {
	f.buf[offset] = byte(value)
	f.buf[offset+1] = byte(value >> 8)
}

// SetWord writes register word index (0-based, counting from register
// 10003) as a little-endian pair within the buffer.
func (f *Frame) SetWord(index int, value uint16) {
	f.SetUint16(index*2, value)
}

// setCommand stamps the command byte at buffer offset 244 (register 10125
// when transmitted), included in the CRC even though it is sent separately.
func (f *Frame) setCommand(cmd Command) {
	f.buf[244] = byte(cmd)
	f.buf[245] = 0
}

// crc32 computes the envelope's CRC32 over the full 246-byte buffer.
func (f *Frame) crc32() uint32 {
	return checksum(f.buf[:])
}

// registerWords reconstructs the 123 register values (10003..10125) that
// the buffer represents, in register order.
func (f *Frame) registerWords() []int {
	words := make([]int, bufferBytes/2)
	for i := range words {
		words[i] = int(f.buf[2*i]) | int(f.buf[2*i+1])<<8
	}
	return words
}

// send writes the CRC plus the leading numPayloadWords of the envelope
// (registers 10001.. up to but excluding the command register), then writes
// the command register separately, then reads back the result register.
func (f *Frame) send(link *modbus.Link, address byte, cmd Command, numPayloadWords int) (Result, error) {
	f.setCommand(cmd)
	crc := f.crc32()
	values := []int{int(crc & 0xffff), int(crc >> 16)}
	if numPayloadWords > 0 {
		values = append(values, f.registerWords()[:numPayloadWords]...)
	}
	if err := link.WriteMultipleRegisters(address, RegCRC, values); err != nil {
		return 0, fmt.Errorf("writing command envelope payload: %w", err)
	}
	if err := link.WriteRegister(address, RegCommand, int(cmd)); err != nil {
		return 0, fmt.Errorf("writing command register: %w", err)
	}
	reply, err := link.ReadRegisters(address, RegResult, 1)
	if err != nil {
		return 0, fmt.Errorf("reading command result: %w", err)
	}
	return Result(reply[0]), nil
}

// Simple issues a command that carries no payload beyond the command byte
// itself (RESET, STOP_SAMPLE, SAMPLE_STATE, SAMPLE_SIZE, SAMPLE_COUNT).
func Simple(link *modbus.Link, address byte, cmd Command) (Result, error) {
	return New().send(link, address, cmd, 0)
}
