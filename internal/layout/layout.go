// Package layout defines the fixed on-medium format of one preference slot.
//
// Slot layout (little-endian, SlotSize bytes):
//
//	off len field
//	 0   1  magic       0x5A
//	 1   1  version     layout version
//	 2   4  sequence    write-sequence counter (wraps)
//	 6   1  saved       0/1
//	 7   1  brightness
//	 8   1  colorMode
//	 9   1  rainbowTime
//	10   1  hue
//	11   1  saturation
//	12  27  ledPreset   9 x (R,G,B)
//	39   2  checksum    CRC-16/X.25 over [0,39)
//	41   1  commit      CommitSet once the slot is authoritative
//
// The commit byte is written on its own, after the rest of the slot has been
// written and verified.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"

	"lamp-prefs/internal/fcs"
	"lamp-prefs/internal/prefs"
)

const (
	Magic   byte = 0x5A
	Version byte = 1

	CommitSet   byte = 0xA5
	CommitClear byte = 0x00

	offMagic    = 0
	offVersion  = 1
	offSequence = 2
	offBody     = 6
	bodySize    = 6 + prefs.PresetCount*3
	offChecksum = offBody + bodySize
	offCommit   = offChecksum + 2

	// SlotSize is the encoded size of one slot including the commit byte.
	SlotSize = offCommit + 1
	// CommitOffset is the position of the commit byte within a slot.
	CommitOffset = offCommit
)

var (
	ErrShort          = errors.New("slot: short buffer")
	ErrBlank          = errors.New("slot: erased")
	ErrBadMagic       = errors.New("slot: bad magic")
	ErrUnknownVersion = errors.New("slot: unknown layout version")
	ErrChecksum       = errors.New("slot: checksum mismatch")
	ErrUncommitted    = errors.New("slot: not committed")
)

// Slot is a decoded, committed slot.
type Slot struct {
	Version  byte
	Sequence uint32
	Pref     prefs.UserPreference
}

// Encode serializes p with the given sequence number. The commit byte is left
// as CommitClear.
func Encode(seq uint32, p prefs.UserPreference) [SlotSize]byte {
	var buf [SlotSize]byte
	buf[offMagic] = Magic
	buf[offVersion] = Version
	binary.LittleEndian.PutUint32(buf[offSequence:], seq)
	encodeBody(buf[offBody:offChecksum], p)
	binary.LittleEndian.PutUint16(buf[offChecksum:], fcs.Checksum(buf[:offChecksum]))
	buf[offCommit] = CommitClear
	return buf
}

func encodeBody(b []byte, p prefs.UserPreference) {
	if p.Saved {
		b[0] = 1
	}
	b[1] = p.Brightness
	b[2] = byte(p.ColorMode)
	b[3] = p.RainbowTime
	b[4] = p.Hue
	b[5] = p.Saturation
	for i, c := range p.LEDPreset {
		b[6+i*3] = c.R
		b[6+i*3+1] = c.G
		b[6+i*3+2] = c.B
	}
}

// bodyDecoders maps a layout version to its body decoder. Records with a
// version not listed here are discarded.
var bodyDecoders = map[byte]func([]byte) (prefs.UserPreference, error){
	1: decodeBodyV1,
}

func decodeBodyV1(b []byte) (prefs.UserPreference, error) {
	if len(b) < bodySize {
		return prefs.UserPreference{}, ErrShort
	}
	p := prefs.UserPreference{
		Saved:       b[0] != 0,
		Brightness:  b[1],
		ColorMode:   prefs.ColorMode(b[2]),
		RainbowTime: b[3],
		Hue:         b[4],
		Saturation:  b[5],
	}
	for i := range p.LEDPreset {
		p.LEDPreset[i] = prefs.RGB{R: b[6+i*3], G: b[6+i*3+1], B: b[6+i*3+2]}
	}
	return p, nil
}

// Decode parses one slot. Only slots with a valid header, a matching
// checksum and a set commit byte decode without error.
func Decode(buf []byte) (Slot, error) {
	if len(buf) < SlotSize {
		return Slot{}, fmt.Errorf("%w: %d bytes", ErrShort, len(buf))
	}
	if isBlank(buf[:SlotSize]) {
		return Slot{}, ErrBlank
	}
	if buf[offMagic] != Magic {
		return Slot{}, fmt.Errorf("%w: 0x%02X", ErrBadMagic, buf[offMagic])
	}
	want := binary.LittleEndian.Uint16(buf[offChecksum:])
	if got := fcs.Checksum(buf[:offChecksum]); got != want {
		return Slot{}, fmt.Errorf("%w: got 0x%04X, want 0x%04X", ErrChecksum, got, want)
	}
	decode, ok := bodyDecoders[buf[offVersion]]
	if !ok {
		return Slot{}, fmt.Errorf("%w: %d", ErrUnknownVersion, buf[offVersion])
	}
	if buf[offCommit] != CommitSet {
		return Slot{}, ErrUncommitted
	}
	p, err := decode(buf[offBody:offChecksum])
	if err != nil {
		return Slot{}, err
	}
	return Slot{
		Version:  buf[offVersion],
		Sequence: binary.LittleEndian.Uint32(buf[offSequence:]),
		Pref:     p,
	}, nil
}

// isBlank reports whether the slot holds only erased (0xFF) or zeroed bytes.
func isBlank(b []byte) bool {
	first := b[0]
	if first != 0xFF && first != 0x00 {
		return false
	}
	for _, v := range b {
		if v != first {
			return false
		}
	}
	return true
}

// Newer reports whether sequence a was written after b, using serial-number
// arithmetic so the counter may wrap.
func Newer(a, b uint32) bool {
	return int32(a-b) > 0
}
