package modbus

// Master-side operations: the three function codes the station supervisor
// ever issues as a bus master - read holding registers, write a single
// register, write multiple registers.

import "fmt"

const (
	fnReadHolding     = 0x03
	fnWriteSingle     = 0x06
	fnWriteMultiple   = 0x10
	maxReadRegisters  = 125
	maxWriteRegisters = 123
)

// ReadRegisters reads count holding registers starting at regnum from the unit at address.
func (l *Link) ReadRegisters(address byte, regnum, count int) ([]int, error) {
	if count < 1 || count > maxReadRegisters {
		return nil, IllegalValueErrorF("ReadRegisters: count %v out of range 1..%v", count, maxReadRegisters)
	}
	b := &dataBuilder{}
	b.words(regnum, count)

	l.mu.Lock()
	reply, err := l.transact(address, pdu{function: fnReadHolding, data: b.payload()})
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if reply.function != fnReadHolding {
		return nil, asException(reply)
	}
	r := getReader(reply.data)
	byteCount, err := r.byte()
	if err != nil {
		return nil, MalformedErrorF("ReadRegisters: %v", err)
	}
	if byteCount != count*2 {
		return nil, MalformedErrorF("ReadRegisters: reply byte count %v does not match requested %v registers", byteCount, count)
	}
	values, err := r.words(count)
	if err != nil {
		return nil, MalformedErrorF("ReadRegisters: %v", err)
	}
	return values, nil
}

// WriteRegister writes a single holding register and verifies the device echoed it back.
func (l *Link) WriteRegister(address byte, regnum, value int) error {
	b := &dataBuilder{}
	b.words(regnum, value)

	l.mu.Lock()
	reply, err := l.transact(address, pdu{function: fnWriteSingle, data: b.payload()})
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if reply.function != fnWriteSingle {
		return asException(reply)
	}
	r := getReader(reply.data)
	gotReg, err := r.word()
	if err != nil {
		return MalformedErrorF("WriteRegister: %v", err)
	}
	gotVal, err := r.word()
	if err != nil {
		return MalformedErrorF("WriteRegister: %v", err)
	}
	if gotReg != regnum || gotVal != value {
		return MalformedErrorF("WriteRegister: echo mismatch, sent reg=%v val=%v, got reg=%v val=%v", regnum, value, gotReg, gotVal)
	}
	return nil
}

// WriteMultipleRegisters writes a contiguous block of holding registers starting at regnum.
func (l *Link) WriteMultipleRegisters(address byte, regnum int, values []int) error {
	if len(values) < 1 || len(values) > maxWriteRegisters {
		return IllegalValueErrorF("WriteMultipleRegisters: %v registers out of range 1..%v", len(values), maxWriteRegisters)
	}
	b := &dataBuilder{}
	b.words(regnum, len(values))
	b.byte(len(values) * 2)
	b.words(values...)

	l.mu.Lock()
	reply, err := l.transact(address, pdu{function: fnWriteMultiple, data: b.payload()})
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if reply.function != fnWriteMultiple {
		return asException(reply)
	}
	r := getReader(reply.data)
	gotReg, err := r.word()
	if err != nil {
		return MalformedErrorF("WriteMultipleRegisters: %v", err)
	}
	gotCount, err := r.word()
	if err != nil {
		return MalformedErrorF("WriteMultipleRegisters: %v", err)
	}
	if gotReg != regnum || gotCount != len(values) {
		return MalformedErrorF("WriteMultipleRegisters: echo mismatch, sent reg=%v count=%v, got reg=%v count=%v", regnum, len(values), gotReg, gotCount)
	}
	return nil
}

// asException interprets a function|0x80 reply as an Error carrying the exception code.
func asException(reply pdu) error {
	requested := reply.function &^ 0x80
	if reply.function&0x80 == 0 {
		return MalformedErrorF("unexpected function code 0x%02x in reply", reply.function)
	}
	if len(reply.data) < 1 {
		return MalformedErrorF("exception reply to function 0x%02x carried no exception code", requested)
	}
	code := reply.data[0]
	switch code {
	case 0x01:
		return IllegalFunctionErrorF("function 0x%02x not supported by remote device", requested)
	case 0x02:
		return IllegalAddressErrorF("illegal register address for function 0x%02x", requested)
	case 0x03:
		return IllegalValueErrorF("illegal data value for function 0x%02x", requested)
	case 0x04:
		return ServerFailureErrorF("remote device failure processing function 0x%02x", requested)
	default:
		return &Error{Kind: KindException, Code: code, message: fmt.Sprintf("exception 0x%02x from function 0x%02x", code, requested)}
	}
}
