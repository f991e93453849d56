package nvm

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Bridge protocol. A request payload is [cmd][seq][args...]; the response is
// [cmd|bridgeResponse][seq][status][data...].
const (
	bridgeCmdInfo  byte = 0x01 // -> size u32, max payload u8
	bridgeCmdRead  byte = 0x02 // addr u16, len u8 -> data
	bridgeCmdWrite byte = 0x03 // addr u16, data -> -

	bridgeResponse byte = 0x80

	bridgeStatusOK    byte = 0x00
	bridgeStatusRange byte = 0x01
	bridgeStatusHW    byte = 0x02

	bridgeDefaultChunk = 32
	bridgeMaxRetries   = 3
	// bridgeMaxAddr is the highest address the 16-bit protocol can reach.
	bridgeMaxAddr = 0xFFFF
)

func bridgeStatusName(status byte) string {
	switch status {
	case bridgeStatusOK:
		return "ok"
	case bridgeStatusRange:
		return "out of range"
	case bridgeStatusHW:
		return "hardware error"
	default:
		return fmt.Sprintf("status 0x%02X", status)
	}
}

// Serial is a medium reached through an EEPROM bridge microcontroller on a
// serial line. Calls are synchronous: each request waits for its response.
type Serial struct {
	mu     sync.Mutex
	rw     io.ReadWriteCloser
	reader *bufio.Reader
	logger *slog.Logger

	seq   uint8
	size  int
	chunk int
}

// OpenSerial opens portName and connects to the bridge. timeout bounds each
// read from the port.
func OpenSerial(portName string, baudRate int, timeout time.Duration, logger *slog.Logger) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("serial medium: open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial medium: set timeout: %w", err)
	}

	// USB CDC ACM bridges expect DTR/RTS asserted.
	_ = port.SetDTR(true)
	_ = port.SetRTS(true)

	s, err := NewSerial(timeoutPort{port}, logger)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

var errReadTimeout = errors.New("read timeout")

// timeoutPort turns the (0, nil) a serial.Port returns on read timeout into
// an error, so a silent bridge fails the request instead of stalling it.
type timeoutPort struct {
	serial.Port
}

func (p timeoutPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == nil {
		return 0, errReadTimeout
	}
	return n, err
}

// NewSerial connects to a bridge over an already open stream and queries
// its geometry.
func NewSerial(rw io.ReadWriteCloser, logger *slog.Logger) (*Serial, error) {
	s := &Serial{
		rw:     rw,
		reader: bufio.NewReader(rw),
		logger: logger.With("component", "serial-nvm"),
		chunk:  bridgeDefaultChunk,
	}
	data, err := s.request(bridgeCmdInfo, nil)
	if err != nil {
		return nil, fmt.Errorf("serial medium: info: %w", err)
	}
	if len(data) < 5 {
		return nil, fmt.Errorf("serial medium: info response too short: %d bytes", len(data))
	}
	s.size = int(binary.LittleEndian.Uint32(data[0:4]))
	if s.size > bridgeMaxAddr+1 {
		s.size = bridgeMaxAddr + 1
	}
	if c := int(data[4]); c > 0 && c < s.chunk {
		s.chunk = c
	}
	s.logger.Info("EEPROM bridge connected", "size", s.size, "chunk", s.chunk)
	return s, nil
}

func (s *Serial) ReadBlock(addr, n int) ([]byte, error) {
	if err := checkRange(s.size, addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, 0, n)
	for off := 0; off < n; off += s.chunk {
		l := min(s.chunk, n-off)
		args := make([]byte, 3)
		binary.LittleEndian.PutUint16(args[0:2], uint16(addr+off))
		args[2] = byte(l)
		data, err := s.request(bridgeCmdRead, args)
		if err != nil {
			return nil, fmt.Errorf("serial: read %d@%d: %w", l, addr+off, err)
		}
		if len(data) != l {
			return nil, faultf("serial: read %d@%d returned %d bytes", l, addr+off, len(data))
		}
		out = append(out, data...)
	}
	return out, nil
}

func (s *Serial) WriteBlock(addr int, data []byte) error {
	if err := checkRange(s.size, addr, len(data)); err != nil {
		return err
	}
	for off := 0; off < len(data); off += s.chunk {
		end := min(off+s.chunk, len(data))
		args := make([]byte, 2+end-off)
		binary.LittleEndian.PutUint16(args[0:2], uint16(addr+off))
		copy(args[2:], data[off:end])
		if _, err := s.request(bridgeCmdWrite, args); err != nil {
			return fmt.Errorf("serial: write %d@%d: %w", end-off, addr+off, err)
		}
	}
	return nil
}

func (s *Serial) Size() int {
	return s.size
}

func (s *Serial) Close() error {
	return s.rw.Close()
}

// request sends one command and waits for the matching response. Garbled or
// stale responses are retried; a non-OK status from the bridge is not.
func (s *Serial) request(cmd byte, args []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < bridgeMaxRetries; attempt++ {
		s.seq++
		seq := s.seq
		payload := make([]byte, 2+len(args))
		payload[0] = cmd
		payload[1] = seq
		copy(payload[2:], args)

		if _, err := s.rw.Write(hdlcEncode(payload)); err != nil {
			return nil, faultf("bridge write: %v", err)
		}

		resp, err := s.readResponse(cmd, seq)
		if err != nil {
			lastErr = err
			s.logger.Warn("bridge request failed, retrying", "cmd", cmd, "attempt", attempt+1, "err", err)
			continue
		}
		if status := resp[2]; status != bridgeStatusOK {
			return nil, faultf("bridge: %s", bridgeStatusName(status))
		}
		return resp[3:], nil
	}
	return nil, faultf("bridge: no valid response after %d attempts: %v", bridgeMaxRetries, lastErr)
}

func (s *Serial) readResponse(cmd, seq byte) ([]byte, error) {
	for {
		inner, err := readHDLCFrame(s.reader)
		if err != nil {
			return nil, err
		}
		resp, err := hdlcDecode(inner)
		if err != nil {
			return nil, err
		}
		if len(resp) < 3 {
			return nil, fmt.Errorf("response too short: %d bytes", len(resp))
		}
		if resp[0] != cmd|bridgeResponse || resp[1] != seq {
			s.logger.Debug("dropping stale bridge response", "cmd", resp[0], "seq", resp[1], "want_seq", seq)
			continue
		}
		return resp, nil
	}
}
