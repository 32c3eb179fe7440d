package command

// Rapid sampling over the command envelope: start/stop a device-side
// sampling buffer, poll its progress, and read it back in 100-word chunks
// with a CRC32 cross-check on each chunk.

import (
	"fmt"

	modbus "github.com/andreww5au/pasd-station"
)

const (
	sampleReadChunk  = 100
	regSampleReqBase = RegCommand - 2 // 10123: startAddr, count, command - one burst write
)

// StartSample begins sampling reglist every intervalMs milliseconds into the
// device's internal buffer.
func StartSample(link *modbus.Link, address byte, intervalMs uint32, reglist []int) error {
	if len(reglist) > segmentWords-3 {
		return fmt.Errorf("StartSample: %d registers exceeds capacity %d", len(reglist), segmentWords-3)
	}
	f := New()
	f.SetUint32(0, intervalMs)
	f.SetUint16(4, uint16(len(reglist)))
	for i, reg := range reglist {
		f.SetUint16(6+i*2, uint16(reg))
	}
	res, err := f.send(link, address, CmdStartSample, 3+len(reglist))
	if err != nil {
		return err
	}
	if res != ResultOK {
		return &StepError{Step: "START_SAMPLE", Result: res}
	}
	return nil
}

// StopSample halts an in-progress sampling run immediately.
func StopSample(link *modbus.Link, address byte) error {
	res, err := Simple(link, address, CmdStopSample)
	if err != nil {
		return err
	}
	if res != ResultOK {
		return &StepError{Step: "STOP_SAMPLE", Result: res}
	}
	return nil
}

// SampleState reports 0 (stopped) or 1 (sampling).
func SampleState(link *modbus.Link, address byte) (int, error) {
	return simpleThenRead(link, address, CmdSampleState, "SAMPLE_STATE")
}

// SampleSize reports the total number of words available in the sample buffer.
func SampleSize(link *modbus.Link, address byte) (int, error) {
	return simpleThenRead(link, address, CmdSampleSize, "SAMPLE_SIZE")
}

// SampleCount reports the number of sample sets currently recorded.
func SampleCount(link *modbus.Link, address byte) (int, error) {
	return simpleThenRead(link, address, CmdSampleCount, "SAMPLE_COUNT")
}

func simpleThenRead(link *modbus.Link, address byte, cmd Command, step string) (int, error) {
	res, err := Simple(link, address, cmd)
	if err != nil {
		return 0, err
	}
	if res != ResultOK {
		return 0, &StepError{Step: step, Result: res}
	}
	values, err := link.ReadRegisters(address, RegSampleData, 1)
	if err != nil {
		return 0, fmt.Errorf("%s: reading sample data register: %w", step, err)
	}
	return values[0], nil
}

// ReadSamples reads back a full sampling run over reglist (interleave factor
// len(reglist)) in 100-word chunks, cross-checking each chunk's CRC32.
func ReadSamples(link *modbus.Link, address byte, reglist []int) (map[int][]int, error) {
	count, err := SampleCount(link, address)
	if err != nil {
		return nil, err
	}
	numWords := count * len(reglist)
	result := make([]int, numWords)

	for start := 0; start < numWords; start += sampleReadChunk {
		n := sampleReadChunk
		if start+n > numWords {
			n = numWords - start
		}
		chunk, err := readSampleChunk(link, address, start, n)
		if err != nil {
			return nil, err
		}
		copy(result[start:start+n], chunk)
	}

	out := make(map[int][]int, len(reglist))
	for i, reg := range reglist {
		series := make([]int, 0, count)
		for j := i; j < numWords; j += len(reglist) {
			series = append(series, result[j])
		}
		out[reg] = series
	}
	return out, nil
}

// readSampleChunk issues one SAMPLE_READ of n words starting at startAddr and
// verifies the reply's CRC32 before returning the data.
func readSampleChunk(link *modbus.Link, address byte, startAddr, n int) ([]int, error) {
	if err := link.WriteMultipleRegisters(address, regSampleReqBase, []int{startAddr, n, int(CmdSampleRead)}); err != nil {
		return nil, fmt.Errorf("SAMPLE_READ request: %w", err)
	}
	res, err := link.ReadRegisters(address, RegResult, 1)
	if err != nil {
		return nil, fmt.Errorf("SAMPLE_READ result: %w", err)
	}
	if Result(res[0]) != ResultOK {
		return nil, &StepError{Step: "SAMPLE_READ", Result: Result(res[0])}
	}

	data, err := link.ReadRegisters(address, RegCRC, 4+n)
	if err != nil {
		return nil, fmt.Errorf("SAMPLE_READ data: %w", err)
	}
	crcLow, crcHigh := data[0], data[1]
	readAddr, readCount := data[2], data[3]
	if readAddr != startAddr || readCount != n {
		return nil, fmt.Errorf("SAMPLE_READ: echo mismatch, requested addr=%d count=%d, got addr=%d count=%d", startAddr, n, readAddr, readCount)
	}

	echoRegion := make([]byte, (2+n)*2)
	for i, w := range data[2:] {
		echoRegion[i*2] = byte(w & 0xff)
		echoRegion[i*2+1] = byte(w >> 8)
	}
	got := checksum(echoRegion)
	want := uint32(crcLow) | uint32(crcHigh)<<16
	if got != want {
		return nil, fmt.Errorf("SAMPLE_READ: CRC mismatch on chunk at %d (got 0x%08x, want 0x%08x)", startAddr, got, want)
	}
	return data[4:], nil
}
