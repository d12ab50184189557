package pefile

import (
	"strings"
)

// SectionHeader is one entry of the section table. Order is significant:
// RVA resolution scans sections in table order.
type SectionHeader struct {
	Name                 string
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      SectionFlags
}

// contains reports whether rva falls inside the section's virtual range.
// The range extends to max(VirtualSize, SizeOfRawData): either field may be
// zero in sections that carry only file data or only runtime data.
func (s *SectionHeader) contains(rva uint32) bool {
	size := s.VirtualSize
	if s.SizeOfRawData > size {
		size = s.SizeOfRawData
	}
	return rva >= s.VirtualAddress && uint64(rva) < uint64(s.VirtualAddress)+uint64(size)
}

func (s *SectionHeader) IsExecutable() bool { return s.Characteristics&SectionMemExecute != 0 }
func (s *SectionHeader) IsReadable() bool   { return s.Characteristics&SectionMemRead != 0 }
func (s *SectionHeader) IsWritable() bool   { return s.Characteristics&SectionMemWrite != 0 }

func decodeSections(v View, off int64, count int) ([]SectionHeader, error) {
	sections := make([]SectionHeader, 0, count)
	for i := 0; i < count; i++ {
		base := off + int64(i)*sectionHeaderSize
		raw, err := v.Bytes(base, 8)
		if err != nil {
			return nil, err
		}
		s := SectionHeader{Name: strings.TrimRight(string(raw), "\x00")}

		fields := []*uint32{
			&s.VirtualSize, &s.VirtualAddress, &s.SizeOfRawData,
			&s.PointerToRawData, &s.PointerToRelocations, &s.PointerToLineNumbers,
		}
		pos := base + 8
		for _, f := range fields {
			if *f, err = v.U32(pos); err != nil {
				return nil, err
			}
			pos += 4
		}
		if s.NumberOfRelocations, err = v.U16(pos); err != nil {
			return nil, err
		}
		if s.NumberOfLineNumbers, err = v.U16(pos + 2); err != nil {
			return nil, err
		}
		flags, err := v.U32(pos + 4)
		if err != nil {
			return nil, err
		}
		s.Characteristics = SectionFlags(flags)
		sections = append(sections, s)
	}
	return sections, nil
}

// RVAToOffset translates a relative virtual address to a file offset. When
// virtual ranges overlap (malformed but seen in the wild) the first matching
// section in table order wins; this is a deliberate policy, matching the scan
// order a sequential decoder observes. An RVA covered by no section fails
// with ErrUnmappedAddress, which can be a legitimate outcome for addresses
// inside the header region.
func (f *File) RVAToOffset(rva uint32) (int64, error) {
	for i := range f.Sections {
		s := &f.Sections[i]
		if s.contains(rva) {
			return int64(s.PointerToRawData) + int64(rva-s.VirtualAddress) - f.teAdjust, nil
		}
	}
	return 0, formatErr(int64(rva), ErrUnmappedAddress, "rva 0x%x", rva)
}

// Section returns the first section with the given name, case-sensitively.
// Section names need not be unique; later duplicates are unreachable by name
// and must be addressed by index.
func (f *File) Section(name string) (*SectionHeader, error) {
	for i := range f.Sections {
		if f.Sections[i].Name == name {
			return &f.Sections[i], nil
		}
	}
	return nil, formatErr(0, ErrUnmappedAddress, "no section named %q", name)
}

// SectionData returns the raw file bytes of the named section.
func (f *File) SectionData(name string) ([]byte, error) {
	s, err := f.Section(name)
	if err != nil {
		return nil, err
	}
	return f.sectionBytes(s)
}

// SectionDataByIndex returns the raw file bytes of the i-th section.
func (f *File) SectionDataByIndex(i int) ([]byte, error) {
	if i < 0 || i >= len(f.Sections) {
		return nil, formatErr(0, ErrOutOfBounds, "section index %d of %d", i, len(f.Sections))
	}
	return f.sectionBytes(&f.Sections[i])
}

func (f *File) sectionBytes(s *SectionHeader) ([]byte, error) {
	if s.SizeOfRawData == 0 {
		return []byte{}, nil
	}
	return f.data.Bytes(int64(s.PointerToRawData)-f.teAdjust, int64(s.SizeOfRawData))
}
