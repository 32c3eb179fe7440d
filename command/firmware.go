package command

// Firmware upload over the command envelope: ERASE, then repeated
// WRITE_SEGMENT chunks of packed PIC24 instructions, then VERIFY, UPDATE,
// RESET.

import (
	"fmt"

	modbus "github.com/andreww5au/pasd-station"
)

// MaxInstructionsPerChunk bounds one WRITE_SEGMENT chunk's instruction count
// (320 source bytes of PIC24 assembly packed to 240 bytes on the wire).
const MaxInstructionsPerChunk = 80

// PackInstructions packs 24-bit PIC24 instructions three at a time into
// 16-bit registers. Each instruction's three bytes (L, M, U) are written
// into a flat byte buffer in instruction order, then read back two bytes
// (one register) at a time, little-endian - exactly what send_hex's
// registerBytes[j], registerBytes[j+1], registerBytes[j+2] writes followed
// by registerBytes[i*2] + (registerBytes[i*2+1]<<8) reads do:
// R0 = L0|M0<<8, R1 = U0|L1<<8, R2 = M1|U1<<8, R3 = L2|M2<<8, R4 = U2.
// A final partial group of fewer than three instructions is zero-padded.
func PackInstructions(instrs []uint32) []uint16 {
	padded := make([]uint32, len(instrs))
	copy(padded, instrs)
	for len(padded)%3 != 0 {
		padded = append(padded, 0)
	}
	out := make([]uint16, 0, len(padded)/3*5)
	for i := 0; i < len(padded); i += 3 {
		l0, m0, u0 := byte(padded[i]), byte(padded[i]>>8), byte(padded[i]>>16)
		l1, m1, u1 := byte(padded[i+1]), byte(padded[i+1]>>8), byte(padded[i+1]>>16)
		l2, m2, u2 := byte(padded[i+2]), byte(padded[i+2]>>8), byte(padded[i+2]>>16)
		bytes := [6]byte{l0, m0, u0, l1, m1, u1}
		out = append(out,
			uint16(bytes[0])|uint16(bytes[1])<<8,
			uint16(bytes[2])|uint16(bytes[3])<<8,
			uint16(bytes[4])|uint16(bytes[5])<<8,
			uint16(l2)|uint16(m2)<<8,
			uint16(u2),
		)
	}
	return out
}

// StepError identifies which step of a firmware upload failed.
type StepError struct {
	Step   string
	Result Result
}

func (e *StepError) Error() string {
	return fmt.Sprintf("firmware upload step %s: %s", e.Step, e.Result)
}

// Erase issues the ERASE command.
func Erase(link *modbus.Link, address byte) error {
	res, err := Simple(link, address, CmdErase)
	if err != nil {
		return err
	}
	if res != ResultOK {
		return &StepError{Step: "ERASE", Result: res}
	}
	return nil
}

// WriteSegment writes one chunk of PIC24 instructions (at most
// MaxInstructionsPerChunk) at the given 24-bit byte address.
func WriteSegment(link *modbus.Link, address byte, targetAddr uint32, instrs []uint32) error {
	if len(instrs) > MaxInstructionsPerChunk {
		return fmt.Errorf("WriteSegment: %d instructions exceeds max chunk size %d", len(instrs), MaxInstructionsPerChunk)
	}
	packed := PackInstructions(instrs)
	if len(packed) > segmentWords {
		return fmt.Errorf("WriteSegment: packed chunk of %d words exceeds segment capacity %d", len(packed), segmentWords)
	}
	f := New()
	f.SetAddressCount(targetAddr, uint8(len(instrs)))
	for i, w := range packed {
		f.SetWord(2+i, w) // words 0,1 are address/count; segment data starts at word 2
	}
	res, err := f.send(link, address, CmdWriteSegment, 2+len(packed))
	if err != nil {
		return err
	}
	if res != ResultOK {
		return &StepError{Step: "WRITE_SEGMENT", Result: res}
	}
	return nil
}

// Verify issues VERIFY, passing the total number of chunks written in the
// first two payload words.
func Verify(link *modbus.Link, address byte, chunkCount uint32) error {
	f := New()
	f.SetWord(0, uint16(chunkCount&0xffff))
	f.SetWord(1, uint16(chunkCount>>16))
	res, err := f.send(link, address, CmdVerify, 2)
	if err != nil {
		return err
	}
	if res != ResultOK {
		return &StepError{Step: "VERIFY", Result: res}
	}
	return nil
}

// Update issues the UPDATE command, swapping in the newly written firmware image.
func Update(link *modbus.Link, address byte) error {
	res, err := Simple(link, address, CmdUpdate)
	if err != nil {
		return err
	}
	if res != ResultOK {
		return &StepError{Step: "UPDATE", Result: res}
	}
	return nil
}

// Reset issues the RESET command, rebooting the microcontroller.
func Reset(link *modbus.Link, address byte) error {
	res, err := Simple(link, address, CmdReset)
	if err != nil {
		return err
	}
	if res != ResultOK {
		return &StepError{Step: "RESET", Result: res}
	}
	return nil
}

// Upload runs the full ERASE -> WRITE_SEGMENT* -> VERIFY -> UPDATE -> RESET
// procedure over chunks of instructions, each addressed at its own target
// byte offset. Any non-zero result aborts the upload with the failing step named.
func Upload(link *modbus.Link, address byte, chunks []FirmwareChunk) error {
	if err := Erase(link, address); err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := WriteSegment(link, address, chunk.TargetAddr, chunk.Instructions); err != nil {
			return err
		}
	}
	if err := Verify(link, address, uint32(len(chunks))); err != nil {
		return err
	}
	if err := Update(link, address); err != nil {
		return err
	}
	return Reset(link, address)
}

// FirmwareChunk is one WRITE_SEGMENT unit of a firmware image: the PIC24
// instructions destined for targetAddr, assumed pre-split by the caller's
// firmware-image decoder (spec's Non-goals exclude that decoder from this core).
type FirmwareChunk struct {
	TargetAddr   uint32
	Instructions []uint32
}
