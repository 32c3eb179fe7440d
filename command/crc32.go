package command

// CRC-32 (IEEE 802.3, reflected) over the 246-byte command envelope buffer.

import "hash/crc32"

// checksum computes the IEEE 802.3 CRC-32 over buf, matching zlib.crc32.
func checksum(buf []byte) uint32 {
	return crc32.ChecksumIEEE(buf)
}
