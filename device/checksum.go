package device

import (
	"encoding/binary"
	"hash/crc32"
)

// table is the reflected CRC-32 (IEEE 802.3) substitution table.
var table = crc32.IEEETable

// Checksum is the rolling 32-bit value appended to DFU/WTF uploads. It is
// CRC-32 without the final inversion, fed one byte at a time. The zero value
// is not ready for use; call Reset or use NewChecksum.
type Checksum struct {
	v uint32
}

func NewChecksum() *Checksum {
	c := &Checksum{}
	c.Reset()
	return c
}

func (c *Checksum) Reset() {
	c.v = 0xFFFFFFFF
}

func (c *Checksum) Update(b byte) {
	c.v = table[byte(c.v)^b] ^ (c.v >> 8)
}

// Write feeds p through Update. It never fails.
func (c *Checksum) Write(p []byte) (int, error) {
	for _, b := range p {
		c.Update(b)
	}
	return len(p), nil
}

func (c *Checksum) Sum32() uint32 {
	return c.v
}

// AppendDigest appends the current value to b in little-endian order.
func (c *Checksum) AppendDigest(b []byte) []byte {
	return binary.LittleEndian.AppendUint32(b, c.v)
}
