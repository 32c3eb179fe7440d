package station

// Slave-mode register view: the set of registers a hand-held technician
// device can read and write against a running Station. Registers 1..256
// are the physical antenna map (value = smartbox_address*256 +
// port_number, 0 = unbound), 1001/1002-1009/1010/1011+ are the
// ANTNUM/CHIPID/LOGNUM/MESSAGE log-query block, and 1201..1228 are a
// read-only PDoC-to-SMARTbox-address map. Station implements
// modbus.RegisterView directly so Link.ListenForPacket can serve requests
// straight off live station state.

import (
	"fmt"
	"time"

	modbus "github.com/andreww5au/pasd-station"
)

const (
	regAntennaMapLow  = 1
	regAntennaMapHigh = 256

	regANTNUM  = 1001
	regCHIPID  = 1002 // 8 registers, 1002..1009
	regLOGNUM  = 1010
	regMESSAGE = 1011 // 125 registers, 1011..1135; last 2 words are a unix timestamp

	messageTextWords = 123
	messageLen       = messageTextWords + 2

	regPDoCMapLow  = 1201
	regPDoCMapHigh = 1228
)

// Read implements modbus.RegisterView.
func (s *Station) Read(reg int) (value int, ok bool) {
	switch {
	case reg >= regAntennaMapLow && reg <= regAntennaMapHigh:
		b, ok := s.AntennaMap[reg]
		if !ok {
			return 0, true
		}
		return b.SmartboxAddr*256 + b.PortNumber, true
	case reg == regANTNUM:
		return s.DesiredAntenna, true
	case reg >= regCHIPID && reg < regCHIPID+8:
		return s.ChipID[reg-regCHIPID], true
	case reg == regLOGNUM:
		return s.LogNum, true
	case reg >= regMESSAGE && reg < regMESSAGE+messageLen:
		idx := reg - regMESSAGE
		if idx < len(s.Message) {
			return s.Message[idx], true
		}
		return 0, true
	case reg >= regPDoCMapLow && reg <= regPDoCMapHigh:
		pdoc := reg - regPDoCMapLow + 1
		addr, ok := s.PDoCToAddress[pdoc]
		if !ok {
			return 0, true
		}
		return addr, true
	default:
		return 0, false
	}
}

// Write implements modbus.RegisterView. Antenna-map writes (1..256) are
// staged into s.pending rather than applied immediately - serveWriteMultiple
// calls Write for every register in a request before the Validator runs, so
// the real AntennaMap is only mutated once AntennaMapValidator confirms the
// whole batch is collision-free.
func (s *Station) Write(reg int, value int) (ok bool) {
	switch {
	case reg >= regAntennaMapLow && reg <= regAntennaMapHigh:
		s.pending[reg] = value
		return true
	case reg == regANTNUM:
		if value != s.DesiredAntenna {
			s.LogNum = 0
		}
		s.DesiredAntenna = value
		return true
	case reg >= regCHIPID && reg < regCHIPID+8:
		idx := reg - regCHIPID
		if s.ChipID[idx] != value {
			s.LogNum = 0
		}
		s.ChipID[idx] = value
		return true
	case reg == regLOGNUM:
		s.LogNum = value
		return true
	case reg >= regMESSAGE && reg < regMESSAGE+messageLen:
		idx := reg - regMESSAGE
		for len(s.Message) <= idx {
			s.Message = append(s.Message, 0)
		}
		s.Message[idx] = value
		s.messageWritten = true
		return true
	default:
		return false
	}
}

// AntennaMapValidator is the Validator passed to ListenForPacket. It rejects
// the write if any non-zero value appears twice among the just-written
// antenna-map registers (1..256), discarding the staged batch; otherwise it
// commits every staged register into AntennaMap.
func (s *Station) AntennaMapValidator(written map[int]int) bool {
	seen := map[int]bool{}
	for reg, val := range written {
		if reg < regAntennaMapLow || reg > regAntennaMapHigh || val == 0 {
			continue
		}
		if seen[val] {
			s.pending = make(map[int]int)
			return false
		}
		seen[val] = true
	}
	for reg, val := range s.pending {
		if reg < regAntennaMapLow || reg > regAntennaMapHigh {
			continue
		}
		if val == 0 {
			delete(s.AntennaMap, reg)
			continue
		}
		s.AntennaMap[reg] = AntennaBinding{SmartboxAddr: val / 256, PortNumber: val % 256}
	}
	s.pending = make(map[int]int)
	return true
}

// Listen serves one slave-mode request (if any arrives within maxTime)
// against the station's own register view, then applies log-query
// bookkeeping: advancing LogNum on a MESSAGE read, and saving a new log
// entry on a MESSAGE write.
func (s *Station) Listen(maxTime time.Duration) error {
	s.messageWritten = false
	readRegs, writtenRegs, err := s.Link.ListenForPacket(s.ListenAddress, s, maxTime, s.AntennaMapValidator)
	if err != nil {
		return err
	}
	if readRegs == nil && writtenRegs == nil {
		return nil
	}

	messageRead := false
	for _, r := range readRegs {
		if r >= regMESSAGE && r < regMESSAGE+messageLen {
			messageRead = true
			break
		}
	}
	if messageRead {
		s.LogNum++
		s.fillLogEntry()
	}
	if s.messageWritten && s.LogSave != nil {
		text := decodeMessageText(s.Message)
		s.LogSave(s.LogNum, s.DesiredAntenna, chipIDString(s.ChipID), text)
	}
	return nil
}

func (s *Station) fillLogEntry() {
	if s.LogLookup == nil {
		return
	}
	text, unixTime := s.LogLookup(s.LogNum, s.DesiredAntenna, chipIDString(s.ChipID))
	s.Message = encodeMessageText(text, unixTime)
}

func chipIDString(chipID [8]int) string {
	out := ""
	for _, w := range chipID {
		out += fmt.Sprintf("%04X", uint16(w))
	}
	return out
}

// encodeMessageText packs text (one byte per register, null-padded/
// truncated to messageTextWords) followed by a 2-word unix timestamp,
// matching station.py's get_log_entry reply layout.
func encodeMessageText(text string, unixTime int) []int {
	words := make([]int, messageLen)
	for i := 0; i < messageTextWords && i < len(text); i++ {
		words[i] = int(text[i])
	}
	words[messageTextWords] = int(uint32(unixTime) >> 16)
	words[messageTextWords+1] = int(uint32(unixTime) & 0xFFFF)
	return words
}

func decodeMessageText(words []int) string {
	b := make([]byte, 0, messageTextWords)
	for i := 0; i < messageTextWords && i < len(words); i++ {
		if words[i] == 0 {
			break
		}
		b = append(b, byte(words[i]))
	}
	return string(b)
}

var _ modbus.RegisterView = (*Station)(nil)
