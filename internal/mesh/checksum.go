package mesh

import (
	"hash/crc32"
	"io"
	"os"
)

// Checksum16 computes a 16-bit checksum of path's contents: CRC-32
// truncated to its low 16 bits. The cache only needs a cheap,
// source-sensitive value to detect a changed source file; collisions
// merely cost a reparse.
func Checksum16(path string) (uint16, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return uint16(h.Sum32()), nil
}
