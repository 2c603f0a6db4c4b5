package crypto

import "encoding/binary"

// Crc16 computes CRC-16/CCITT-FALSE (init 0xFFFF, poly 0x1021) over data.
func Crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Crc16Uint32 checksums the little-endian byte representation of v.
func Crc16Uint32(v uint32) uint16 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return Crc16(buf[:])
}
