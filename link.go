package modbus

// Link owns the single physical connection (TCP tunnel or native serial
// device) used to reach a station's field devices, and the single mutex
// that serializes every transaction on it so no two requests interleave
// on the wire.

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// Serial parity settings, named the way rolfl-modbus/rtu.go names them.
const (
	ParityNone = byte(serial.ParityNone)
	ParityOdd  = byte(serial.ParityOdd)
	ParityEven = byte(serial.ParityEven)
)

const (
	// silenceWindow approximates the Modbus 28-bit inter-frame silence requirement.
	silenceWindow = 10 * time.Millisecond
	// replyTimeout is how long a master transaction waits for a complete, valid reply.
	replyTimeout = time.Second
)

// wireConn is the minimal surface Link needs from its underlying transport,
// whether that's a TCP socket or a native serial port.
type wireConn interface {
	io.Writer
	io.Closer
	// readChunk performs one read attempt, waiting at most budget for data.
	// A timeout with no data is reported as (0, nil); only a fatal I/O error is non-nil.
	readChunk(budget time.Duration, buf []byte) (int, error)
}

type tcpWire struct {
	conn *net.TCPConn
}

func (w *tcpWire) Write(p []byte) (int, error) { return w.conn.Write(p) }
func (w *tcpWire) Close() error                { return w.conn.Close() }

func (w *tcpWire) readChunk(budget time.Duration, buf []byte) (int, error) {
	if err := w.conn.SetReadDeadline(time.Now().Add(budget)); err != nil {
		return 0, err
	}
	n, err := w.conn.Read(buf)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

type serialWire struct {
	port *serial.Port
}

func (w *serialWire) Write(p []byte) (int, error) { return w.port.Write(p) }
func (w *serialWire) Close() error                { return w.port.Close() }

func (w *serialWire) readChunk(budget time.Duration, buf []byte) (int, error) {
	// tarm/serial.Port has its own fixed ReadTimeout configured at Open time;
	// a timeout with nothing to read comes back as (0, nil).
	return w.port.Read(buf)
}

// Link is one physical connection to a station's Modbus-RTU bus.
type Link struct {
	mu      sync.Mutex
	name    string
	dial    func() (wireConn, error)
	conn    wireConn
	silence time.Duration
	timeout time.Duration
}

// NewTCP opens a Modbus-RTU-over-TCP link to an Ethernet-to-serial bridge at addr (host:port).
func NewTCP(addr string) (*Link, error) {
	dial := func() (wireConn, error) {
		raddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			return nil, err
		}
		conn, err := net.DialTCP("tcp", nil, raddr)
		if err != nil {
			return nil, err
		}
		_ = conn.SetKeepAlive(true)
		_ = conn.SetNoDelay(true)
		return &tcpWire{conn: conn}, nil
	}
	l := &Link{name: addr, dial: dial, silence: silenceWindow, timeout: replyTimeout}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

// NewRTU opens a Modbus-RTU link over a native serial device.
func NewRTU(device string, baud int, parity byte, stopBits int) (*Link, error) {
	sb := serial.Stop1
	if stopBits == 2 {
		sb = serial.Stop2
	}
	dial := func() (wireConn, error) {
		cfg := &serial.Config{
			Name:        device,
			Baud:        baud,
			Size:        8,
			Parity:      serial.Parity(parity),
			StopBits:    sb,
			ReadTimeout: 50 * time.Millisecond,
		}
		port, err := serial.OpenPort(cfg)
		if err != nil {
			return nil, err
		}
		return &serialWire{port: port}, nil
	}
	l := &Link{name: device, dial: dial, silence: silenceWindow, timeout: replyTimeout}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Link) open() error {
	conn, err := l.dial()
	if err != nil {
		return fmt.Errorf("opening link to %s: %w", l.name, err)
	}
	l.conn = conn
	return nil
}

// reopen closes the current connection (ignoring errors - it may already be dead) and dials a new one.
func (l *Link) reopen() error {
	if l.conn != nil {
		_ = l.conn.Close()
	}
	return l.open()
}

// Close shuts down the underlying connection.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

// flush discards any bytes sitting unread on the wire before starting a new transaction.
func (l *Link) flush() {
	buf := make([]byte, 256)
	for {
		n, err := l.conn.readChunk(time.Millisecond, buf)
		if err != nil || n == 0 {
			return
		}
	}
}

// sendFrame writes a complete frame to the wire, bracketed by the silence window on both sides.
func (l *Link) sendFrame(frame []byte) error {
	time.Sleep(l.silence)
	remaining := frame
	for len(remaining) > 0 {
		n, err := l.conn.Write(remaining)
		if err != nil {
			return err
		}
		remaining = remaining[n:]
	}
	time.Sleep(l.silence)
	return nil
}

// readFrame waits up to timeout for a complete, CRC-valid frame. Fragmentary
// data that never completes within the timeout is discarded.
func (l *Link) readFrame(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	data := make([]byte, 0, 260)
	buf := make([]byte, 256)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("timed out waiting for reply")
		}
		budget := remaining
		if budget > 100*time.Millisecond {
			budget = 100 * time.Millisecond
		}
		n, err := l.conn.readChunk(budget, buf)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			data = append(data, buf[:n]...)
			if len(data) >= minFrameBytes && verifyCRC(data) {
				return data, nil
			}
			if len(data) > maxFrameBytes {
				return nil, fmt.Errorf("frame exceeds %d bytes", maxFrameBytes)
			}
		}
	}
}

// transact performs one master transaction: flush, send, wait for reply. It
// is called with l.mu held by the caller (master.go/slave.go own the locking
// so the silence windows and the read are atomic with respect to other
// transactions on the same bus).
func (l *Link) transact(address byte, req pdu) (pdu, error) {
	l.flush()
	frame := buildFrame(address, req)
	if err := l.sendFrame(frame); err != nil {
		_ = l.reopen()
		return pdu{}, NoReplyErrorF("write error on %s: %v", l.name, err)
	}
	raw, err := l.readFrame(l.timeout)
	if err != nil {
		_ = l.reopen()
		return pdu{}, NoReplyErrorF("no reply from %s: %v", l.name, err)
	}
	gotAddr, reply, err := parseFrame(raw)
	if err != nil {
		return pdu{}, MalformedErrorF("%v", err)
	}
	if gotAddr != address {
		return pdu{}, AddressMismatchErrorF("sent to unit %d, got reply from unit %d", address, gotAddr)
	}
	return reply, nil
}
