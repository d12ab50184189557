package pefile

import (
	"encoding/binary"
	"unicode/utf16"
)

// View is a bounds-checked read cursor over an immutable byte buffer. Every
// read validates the requested range against the buffer length before touching
// it; a violation is an ordinary error, never a panic, since the input is
// untrusted. A View never mutates or copies the underlying buffer.
type View struct {
	data []byte
}

func NewView(data []byte) View {
	return View{data: data}
}

func (v View) Len() int64 { return int64(len(v.data)) }

func (v View) check(offset, width int64) error {
	if offset < 0 || width < 0 || offset > v.Len() || width > v.Len()-offset {
		return formatErr(offset, ErrOutOfBounds, "%d bytes requested, buffer is %d", width, v.Len())
	}
	return nil
}

func (v View) U8(offset int64) (uint8, error) {
	if err := v.check(offset, 1); err != nil {
		return 0, err
	}
	return v.data[offset], nil
}

func (v View) U16(offset int64) (uint16, error) {
	if err := v.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v.data[offset:]), nil
}

func (v View) U32(offset int64) (uint32, error) {
	if err := v.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v.data[offset:]), nil
}

func (v View) U64(offset int64) (uint64, error) {
	if err := v.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v.data[offset:]), nil
}

// Bytes returns length bytes starting at offset. The returned slice aliases
// the underlying buffer; callers must not modify it.
func (v View) Bytes(offset, length int64) ([]byte, error) {
	if err := v.check(offset, length); err != nil {
		return nil, err
	}
	return v.data[offset : offset+length], nil
}

// CString reads a NUL-terminated string at offset, scanning at most maxLen
// bytes. A string running past maxLen or the buffer end is an error, not a
// silent truncation.
func (v View) CString(offset, maxLen int64) (string, error) {
	if err := v.check(offset, 0); err != nil {
		return "", err
	}
	limit := offset + maxLen
	if limit > v.Len() || limit < offset {
		limit = v.Len()
	}
	for i := offset; i < limit; i++ {
		if v.data[i] == 0 {
			return string(v.data[offset:i]), nil
		}
	}
	if limit == v.Len() {
		return "", formatErr(offset, ErrOutOfBounds, "unterminated string")
	}
	return "", formatErr(offset, ErrMalformedHeader, "string exceeds %d bytes", maxLen)
}

// UTF16String reads a length-prefixed UTF-16LE string: a uint16 count of
// code units followed by the units themselves. Resource directory names are
// stored this way.
func (v View) UTF16String(offset int64) (string, error) {
	n, err := v.U16(offset)
	if err != nil {
		return "", err
	}
	raw, err := v.Bytes(offset+2, int64(n)*2)
	if err != nil {
		return "", err
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(units)), nil
}
