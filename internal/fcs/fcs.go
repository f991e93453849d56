// Package fcs implements the CRC-16/X.25 frame check sequence shared by the
// slot layout and the HDLC bridge transport.
package fcs

// --- CRC-16/X.25 (reflected poly=0x8408, init=0xFFFF, xorout=0xFFFF) ---

var table [256]uint16

func init() {
	const poly = 0x8408 // reflected form of 0x1021
	for i := 0; i < 256; i++ {
		crc := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}
}

// Checksum returns the CRC-16/X.25 of data.
func Checksum(data []byte) uint16 {
	return Update(0xFFFF, data) ^ 0xFFFF
}

// Update feeds data into a running (un-inverted) CRC register.
func Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = (crc >> 8) ^ table[(crc^uint16(b))&0xFF]
	}
	return crc
}
