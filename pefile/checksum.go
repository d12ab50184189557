package pefile

import (
	"encoding/binary"
)

// checksum computes the image checksum over data: 16-bit one's-complement
// style folding sum with the 4-byte checksum field itself excluded, plus the
// file length. This is the algorithm the loader applies to drivers and
// signed images.
func checksum(data []byte, checksumOffset int64) uint32 {
	var sum uint32
	n := len(data) &^ 1
	for i := 0; i < n; i += 2 {
		if int64(i) == checksumOffset || int64(i) == checksumOffset+2 {
			continue
		}
		sum += uint32(binary.LittleEndian.Uint16(data[i:]))
		sum = (sum >> 16) + (sum & 0xffff)
	}
	if len(data)%2 != 0 {
		sum += uint32(data[len(data)-1])
		sum = (sum >> 16) + (sum & 0xffff)
	}
	sum = (sum >> 16) + (sum & 0xffff)
	return sum + uint32(len(data))
}

// Checksum recomputes the header checksum over the whole buffer.
func (f *File) Checksum() (uint32, error) {
	off, err := f.checksumFieldOffset()
	if err != nil {
		return 0, err
	}
	data, err := f.data.Bytes(0, f.data.Len())
	if err != nil {
		return 0, err
	}
	return checksum(data, off), nil
}

// ChecksumValid recomputes the checksum and compares it with the stored
// header field. A stored value of zero means the linker did not checksum the
// image; that is reported as invalid rather than trivially valid.
func (f *File) ChecksumValid() (bool, error) {
	got, err := f.Checksum()
	if err != nil {
		return false, err
	}
	return f.OptionalHeader.CheckSum != 0 && got == f.OptionalHeader.CheckSum, nil
}

func (f *File) checksumFieldOffset() (int64, error) {
	if f.OptionalHeader == nil || f.OptionalHeader.Format == FormatTE {
		return 0, formatErr(0, ErrUnsupportedFormat, "image has no checksum field")
	}
	// CheckSum sits 64 bytes into the optional header in both the 32- and
	// 64-bit layouts.
	return f.peOffset + 4 + coffHeaderSize + 64, nil
}
