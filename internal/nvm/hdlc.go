package nvm

import (
	"bufio"
	"encoding/binary"
	"fmt"

	"lamp-prefs/internal/fcs"
)

// --- HDLC-like framing: 0x7E flag, 0x7D escape (xor 0x20), CRC-16/X.25 FCS ---

const (
	hdlcFlag    byte = 0x7E
	hdlcEscape  byte = 0x7D
	hdlcXor     byte = 0x20
	hdlcFCSSize      = 2

	// hdlcMaxFrame bounds an unescaped frame so a noisy line cannot grow
	// the buffer without limit.
	hdlcMaxFrame = 512
)

// hdlcEncode appends the FCS to payload, escapes it and wraps it in flags.
func hdlcEncode(payload []byte) []byte {
	raw := make([]byte, len(payload)+hdlcFCSSize)
	copy(raw, payload)
	binary.LittleEndian.PutUint16(raw[len(payload):], fcs.Checksum(payload))

	out := make([]byte, 0, len(raw)*2+2)
	out = append(out, hdlcFlag)
	for _, b := range raw {
		if b == hdlcFlag || b == hdlcEscape {
			out = append(out, hdlcEscape, b^hdlcXor)
			continue
		}
		out = append(out, b)
	}
	return append(out, hdlcFlag)
}

// hdlcDecode unescapes the bytes between two flags and verifies the FCS.
func hdlcDecode(inner []byte) ([]byte, error) {
	raw := make([]byte, 0, len(inner))
	for i := 0; i < len(inner); i++ {
		b := inner[i]
		if b == hdlcEscape {
			i++
			if i >= len(inner) {
				return nil, fmt.Errorf("hdlc: dangling escape")
			}
			b = inner[i] ^ hdlcXor
		}
		raw = append(raw, b)
	}
	if len(raw) < hdlcFCSSize {
		return nil, fmt.Errorf("hdlc: frame too short: %d bytes", len(raw))
	}
	payload := raw[:len(raw)-hdlcFCSSize]
	want := binary.LittleEndian.Uint16(raw[len(payload):])
	if got := fcs.Checksum(payload); got != want {
		return nil, fmt.Errorf("hdlc: FCS mismatch: got 0x%04X, want 0x%04X", got, want)
	}
	return payload, nil
}

// readHDLCFrame returns the escaped bytes of the next non-empty frame,
// without the surrounding flags. Bytes before the first flag are discarded.
func readHDLCFrame(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == hdlcFlag {
			break
		}
	}
	var frame []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != hdlcFlag {
			if len(frame) >= hdlcMaxFrame*2 {
				return nil, fmt.Errorf("hdlc: frame exceeds %d bytes", hdlcMaxFrame)
			}
			frame = append(frame, b)
			continue
		}
		if len(frame) == 0 {
			// Back-to-back flags: treat the second as the opening flag.
			continue
		}
		return frame, nil
	}
}
