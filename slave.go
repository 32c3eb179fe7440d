package modbus

// Slave-mode packet handling: the station exposes a read-only (plus a
// narrow, validated write path) register view to hand-held technician
// devices, serving exactly one request per call against a RegisterView.

import "time"

// RegisterView is the register map a ListenForPacket call serves requests against.
// Read registers that don't exist answer with a Modbus illegal-address exception;
// Write is consulted for function codes 0x06 and 0x10, and a write that Write refuses
// (returns ok=false) answers with an illegal-data-value exception without being applied.
type RegisterView interface {
	Read(reg int) (value int, ok bool)
	Write(reg int, value int) (ok bool)
}

// Validator is consulted after a write-multiple-registers request is written to
// the view but before the reply is sent; returning false rejects the whole
// write (the view is expected to roll back internally) with an illegal-data
// exception.
type Validator func(writtenRegs map[int]int) bool

// ListenForPacket waits up to maxTime for one complete frame addressed to
// listenAddress (or broadcast address 0), serves it against view, and
// returns the registers touched. It returns (nil, nil, nil) on a read timeout
// with no frame received - that is the normal idle case for a slave loop.
func (l *Link) ListenForPacket(listenAddress byte, view RegisterView, maxTime time.Duration, validator Validator) (readRegs []int, writtenRegs map[int]int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, rerr := l.readFrame(maxTime)
	if rerr != nil {
		return nil, nil, nil
	}
	address, req, perr := parseFrame(raw)
	if perr != nil {
		return nil, nil, nil
	}
	if address != listenAddress && address != 0 {
		return nil, nil, nil
	}

	switch req.function {
	case fnReadHolding:
		readRegs, err = l.serveReadHolding(address, req, view)
	case fnWriteSingle:
		writtenRegs, err = l.serveWriteSingle(address, req, view)
	case fnWriteMultiple:
		writtenRegs, err = l.serveWriteMultiple(address, req, view, validator)
	default:
		err = l.replyException(address, req.function, 0x01)
	}
	return readRegs, writtenRegs, err
}

func (l *Link) serveReadHolding(address byte, req pdu, view RegisterView) ([]int, error) {
	r := getReader(req.data)
	regnum, err := r.word()
	if err != nil {
		return nil, l.replyException(address, req.function, 0x03)
	}
	count, err := r.word()
	if err != nil || count < 1 || count > maxReadRegisters {
		return nil, l.replyException(address, req.function, 0x03)
	}

	values := make([]int, count)
	regs := make([]int, count)
	for i := 0; i < count; i++ {
		v, ok := view.Read(regnum + i)
		if !ok {
			return nil, l.replyException(address, req.function, 0x02)
		}
		values[i] = v
		regs[i] = regnum + i
	}
	b := &dataBuilder{}
	b.byte(count * 2)
	b.words(values...)
	return regs, l.reply(address, pdu{function: req.function, data: b.payload()})
}

func (l *Link) serveWriteSingle(address byte, req pdu, view RegisterView) (map[int]int, error) {
	r := getReader(req.data)
	regnum, err := r.word()
	if err != nil {
		return nil, l.replyException(address, req.function, 0x03)
	}
	value, err := r.word()
	if err != nil {
		return nil, l.replyException(address, req.function, 0x03)
	}
	if !view.Write(regnum, value) {
		return nil, l.replyException(address, req.function, 0x03)
	}
	return map[int]int{regnum: value}, l.reply(address, req)
}

func (l *Link) serveWriteMultiple(address byte, req pdu, view RegisterView, validator Validator) (map[int]int, error) {
	r := getReader(req.data)
	regnum, err := r.word()
	if err != nil {
		return nil, l.replyException(address, req.function, 0x03)
	}
	count, err := r.word()
	if err != nil || count < 1 || count > maxWriteRegisters {
		return nil, l.replyException(address, req.function, 0x03)
	}
	byteCount, err := r.byte()
	if err != nil || byteCount != count*2 {
		return nil, l.replyException(address, req.function, 0x03)
	}
	values, err := r.words(count)
	if err != nil {
		return nil, l.replyException(address, req.function, 0x03)
	}

	written := make(map[int]int, count)
	for i, v := range values {
		reg := regnum + i
		if !view.Write(reg, v) {
			return nil, l.replyException(address, req.function, 0x03)
		}
		written[reg] = v
	}
	if validator != nil && !validator(written) {
		return nil, l.replyException(address, req.function, 0x03)
	}

	b := &dataBuilder{}
	b.words(regnum, count)
	return written, l.reply(address, pdu{function: req.function, data: b.payload()})
}

func (l *Link) replyException(address byte, function byte, code byte) error {
	e := &Error{Kind: KindException, Code: code}
	return l.reply(address, e.asPDU(function))
}

func (l *Link) reply(address byte, p pdu) error {
	frame := buildFrame(address, p)
	return l.sendFrame(frame)
}
