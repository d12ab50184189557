package pefile

import (
	"encoding/binary"
	"fmt"
)

const debugEntrySize = 28

// DebugType is the format of one debug directory entry's payload.
type DebugType uint32

const (
	DebugTypeCOFF       DebugType = 1
	DebugTypeCodeView   DebugType = 2
	DebugTypeFPO        DebugType = 3
	DebugTypeMisc       DebugType = 4
	DebugTypeRepro      DebugType = 16
	DebugTypeExDLLFlags DebugType = 20
)

func (t DebugType) String() string {
	switch t {
	case DebugTypeCOFF:
		return "COFF"
	case DebugTypeCodeView:
		return "CodeView"
	case DebugTypeFPO:
		return "FPO"
	case DebugTypeMisc:
		return "Misc"
	case DebugTypeRepro:
		return "Repro"
	case DebugTypeExDLLFlags:
		return "ExtendedDLLCharacteristics"
	default:
		return fmt.Sprintf("DebugType(%d)", uint32(t))
	}
}

// CodeView is the RSDS payload of a CodeView debug entry: the PDB reference
// emitted by the linker.
type CodeView struct {
	GUID string
	Age  uint32
	Path string
}

// DebugEntry is one record of the debug directory. PDB is non-nil when the
// entry is CodeView with a well-formed RSDS payload.
type DebugEntry struct {
	Characteristics  uint32
	TimeDateStamp    uint32
	MajorVersion     uint16
	MinorVersion     uint16
	Type             DebugType
	SizeOfData       uint32
	AddressOfRawData uint32
	PointerToRawData uint32
	PDB              *CodeView
}

func decodeDebug(f *File, dd DataDirectory) ([]DebugEntry, error) {
	off, err := f.RVAToOffset(dd.VirtualAddress)
	if err != nil {
		return nil, err
	}
	if dd.Size%debugEntrySize != 0 {
		return nil, formatErr(off, ErrMalformedHeader, "debug directory size %d not a multiple of %d", dd.Size, debugEntrySize)
	}

	count := int(dd.Size / debugEntrySize)
	entries := make([]DebugEntry, 0, count)
	for i := 0; i < count; i++ {
		pos := off + int64(i)*debugEntrySize
		var e DebugEntry
		if e.Characteristics, err = f.data.U32(pos); err != nil {
			return nil, err
		}
		if e.TimeDateStamp, err = f.data.U32(pos + 4); err != nil {
			return nil, err
		}
		if e.MajorVersion, err = f.data.U16(pos + 8); err != nil {
			return nil, err
		}
		if e.MinorVersion, err = f.data.U16(pos + 10); err != nil {
			return nil, err
		}
		typ, err := f.data.U32(pos + 12)
		if err != nil {
			return nil, err
		}
		e.Type = DebugType(typ)
		if e.SizeOfData, err = f.data.U32(pos + 16); err != nil {
			return nil, err
		}
		if e.AddressOfRawData, err = f.data.U32(pos + 20); err != nil {
			return nil, err
		}
		if e.PointerToRawData, err = f.data.U32(pos + 24); err != nil {
			return nil, err
		}

		if e.Type == DebugTypeCodeView && e.SizeOfData >= 24 && e.PointerToRawData != 0 {
			if e.PDB, err = decodeCodeView(f, int64(e.PointerToRawData), int64(e.SizeOfData)); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// decodeCodeView parses an RSDS record: signature, 16-byte GUID, age, and
// the NUL-terminated PDB path.
func decodeCodeView(f *File, off, size int64) (*CodeView, error) {
	sig, err := f.data.U32(off)
	if err != nil {
		return nil, err
	}
	if sig != 0x53445352 { // "RSDS"
		return nil, formatErr(off, ErrUnsupportedFormat, "debug payload signature 0x%08x is not RSDS", sig)
	}
	guid, err := f.data.Bytes(off+4, 16)
	if err != nil {
		return nil, err
	}
	cv := &CodeView{
		// The first three GUID fields are stored little-endian.
		GUID: fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
			binary.LittleEndian.Uint32(guid[0:4]),
			binary.LittleEndian.Uint16(guid[4:6]),
			binary.LittleEndian.Uint16(guid[6:8]),
			binary.BigEndian.Uint16(guid[8:10]),
			guid[10:16]),
	}
	if cv.Age, err = f.data.U32(off + 20); err != nil {
		return nil, err
	}
	if cv.Path, err = f.data.CString(off+24, size-24); err != nil {
		return nil, err
	}
	return cv, nil
}
