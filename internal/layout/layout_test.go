package layout

import (
	"errors"
	"math"
	"testing"

	"lamp-prefs/internal/fcs"
	"lamp-prefs/internal/prefs"
)

func TestSlotSize(t *testing.T) {
	// magic + version + seq + 6 scalar fields + 27 preset bytes + crc + commit
	if SlotSize != 1+1+4+6+27+2+1 {
		t.Errorf("SlotSize = %d, want 42", SlotSize)
	}
}

func samplePref() prefs.UserPreference {
	p := prefs.Default()
	p.Saved = true
	p.Brightness = 200
	p.ColorMode = prefs.ModeHueSat
	p.RainbowTime = 10
	p.Hue = 77
	p.Saturation = 128
	for i := range p.LEDPreset {
		p.LEDPreset[i] = prefs.RGB{R: uint8(i), G: uint8(i * 10), B: uint8(255 - i)}
	}
	return p
}

func committed(seq uint32, p prefs.UserPreference) []byte {
	buf := Encode(seq, p)
	buf[CommitOffset] = CommitSet
	return buf[:]
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := samplePref()
	slot, err := Decode(committed(1234, p))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if slot.Sequence != 1234 {
		t.Errorf("sequence = %d, want 1234", slot.Sequence)
	}
	if slot.Version != Version {
		t.Errorf("version = %d, want %d", slot.Version, Version)
	}
	if slot.Pref != p {
		t.Errorf("pref = %s\nwant %s", slot.Pref, p)
	}
}

func TestEncodeFixedLayout(t *testing.T) {
	p := samplePref()
	buf := Encode(0x01020304, p)

	if buf[0] != Magic || buf[1] != Version {
		t.Fatalf("header = %X, want 5A01", buf[:2])
	}
	if buf[2] != 0x04 || buf[5] != 0x01 {
		t.Errorf("sequence not little-endian: %X", buf[2:6])
	}
	if buf[6] != 1 || buf[7] != 200 || buf[8] != byte(prefs.ModeHueSat) {
		t.Errorf("scalar fields = %X", buf[6:12])
	}
	// preset 8 occupies bytes 36..38
	if buf[36] != 8 || buf[37] != 80 || buf[38] != 247 {
		t.Errorf("preset[8] = %X", buf[36:39])
	}
	if buf[CommitOffset] != CommitClear {
		t.Errorf("commit = 0x%02X, want clear", buf[CommitOffset])
	}
}

func TestDecodeRejects(t *testing.T) {
	good := committed(7, samplePref())

	erased := make([]byte, SlotSize)
	for i := range erased {
		erased[i] = 0xFF
	}

	tests := []struct {
		name string
		buf  func() []byte
		want error
	}{
		{"short", func() []byte { return good[:SlotSize-1] }, ErrShort},
		{"erased", func() []byte { return erased }, ErrBlank},
		{"zeroed", func() []byte { return make([]byte, SlotSize) }, ErrBlank},
		{"bad magic", func() []byte {
			b := append([]byte(nil), good...)
			b[0] = 0x00
			return b
		}, ErrBadMagic},
		{"flipped body bit", func() []byte {
			b := append([]byte(nil), good...)
			b[20] ^= 0x01
			return b
		}, ErrChecksum},
		{"flipped checksum", func() []byte {
			b := append([]byte(nil), good...)
			b[CommitOffset-1] ^= 0xFF
			return b
		}, ErrChecksum},
		{"uncommitted", func() []byte {
			b := append([]byte(nil), good...)
			b[CommitOffset] = CommitClear
			return b
		}, ErrUncommitted},
		{"erased commit byte", func() []byte {
			b := append([]byte(nil), good...)
			b[CommitOffset] = 0xFF
			return b
		}, ErrUncommitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.buf())
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeUnknownVersionDiscarded(t *testing.T) {
	b := committed(1, samplePref())
	b[1] = 9
	// Re-seal so only the version differs from a valid record.
	crc := fcs.Checksum(b[:CommitOffset-2])
	b[CommitOffset-2] = byte(crc)
	b[CommitOffset-1] = byte(crc >> 8)

	if _, err := Decode(b); !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("err = %v, want ErrUnknownVersion", err)
	}
}

func TestNewer(t *testing.T) {
	tests := []struct {
		a, b uint32
		want bool
	}{
		{2, 1, true},
		{1, 2, false},
		{5, 5, false},
		{0, math.MaxUint32, true},
		{math.MaxUint32, 0, false},
		{3, math.MaxUint32 - 2, true},
		{math.MaxUint32 - 2, 3, false},
	}
	for _, tt := range tests {
		if got := Newer(tt.a, tt.b); got != tt.want {
			t.Errorf("Newer(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
