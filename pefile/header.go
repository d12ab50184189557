package pefile

import (
	"time"
)

const (
	dosMagic    = 0x5a4d // "MZ"
	teMagic     = 0x5a56 // "VZ", terse EFI image
	peSignature = 0x00004550

	magicPE32     = 0x10b
	magicPE32Plus = 0x20b

	dosHeaderSize     = 64
	coffHeaderSize    = 20
	teHeaderSize      = 40
	sectionHeaderSize = 40
)

// DOSHeader is the legacy MS-DOS header at offset 0. Only Lfanew matters for
// locating the PE header; the rest is decoded for completeness.
type DOSHeader struct {
	Cblp     uint16
	Cp       uint16
	Crlc     uint16
	Cparhdr  uint16
	MinAlloc uint16
	MaxAlloc uint16
	SS       uint16
	SP       uint16
	Csum     uint16
	IP       uint16
	CS       uint16
	Lfarlc   uint16
	Ovno     uint16
	Res      [4]uint16
	OemID    uint16
	OemInfo  uint16
	Res2     [10]uint16
	Lfanew   uint32
}

// FileHeader is the COFF file header following the PE signature.
type FileHeader struct {
	Machine              Machine
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      Characteristics
}

// Timestamp decodes the link-time stamp. The zero value means "not set".
func (h *FileHeader) Timestamp() time.Time {
	if h.TimeDateStamp == 0 {
		return time.Time{}
	}
	return time.Unix(int64(h.TimeDateStamp), 0).UTC()
}

// DataDirectory locates one well-known table inside the image.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// OptionalHeader is the decoded optional header, one struct for all three
// layouts with Format as the discriminator. PE32-only fields are zero under
// PE32+ and vice versa; TE images populate the small field set the terse
// header actually carries.
type OptionalHeader struct {
	Format Format
	Magic  uint16

	MajorLinkerVersion uint8
	MinorLinkerVersion uint8

	SizeOfCode              uint32
	SizeOfInitializedData   uint32
	SizeOfUninitializedData uint32
	AddressOfEntryPoint     uint32
	BaseOfCode              uint32
	BaseOfData              uint32 // PE32 only
	ImageBase               uint64

	SectionAlignment uint32
	FileAlignment    uint32

	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16

	SizeOfImage   uint32
	SizeOfHeaders uint32
	CheckSum      uint32

	Subsystem          Subsystem
	DLLCharacteristics DLLCharacteristics

	SizeOfStackReserve uint64
	SizeOfStackCommit  uint64
	SizeOfHeapReserve  uint64
	SizeOfHeapCommit   uint64

	NumberOfRvaAndSizes uint32
	DataDirectory       [NumDirectories]DataDirectory

	// StrippedSize is TE only: the number of header bytes removed when the
	// image was converted to the terse layout.
	StrippedSize uint16
}

// Is64Bit reports whether RVAs and pointer-width fields are 64 bits wide.
func (h *OptionalHeader) Is64Bit() bool {
	return h.Format == FormatPE32Plus
}

func decodeDOSHeader(v View) (*DOSHeader, error) {
	magic, err := v.U16(0)
	if err != nil {
		return nil, err
	}
	if magic != dosMagic {
		return nil, formatErr(0, ErrUnsupportedFormat, "bad DOS magic 0x%04x", magic)
	}

	h := &DOSHeader{}
	fields := []*uint16{
		&h.Cblp, &h.Cp, &h.Crlc, &h.Cparhdr, &h.MinAlloc, &h.MaxAlloc,
		&h.SS, &h.SP, &h.Csum, &h.IP, &h.CS, &h.Lfarlc, &h.Ovno,
	}
	off := int64(2)
	for _, f := range fields {
		if *f, err = v.U16(off); err != nil {
			return nil, err
		}
		off += 2
	}
	for i := range h.Res {
		if h.Res[i], err = v.U16(off); err != nil {
			return nil, err
		}
		off += 2
	}
	if h.OemID, err = v.U16(off); err != nil {
		return nil, err
	}
	if h.OemInfo, err = v.U16(off + 2); err != nil {
		return nil, err
	}
	off += 4
	for i := range h.Res2 {
		if h.Res2[i], err = v.U16(off); err != nil {
			return nil, err
		}
		off += 2
	}
	if h.Lfanew, err = v.U32(off); err != nil {
		return nil, err
	}
	if h.Lfanew < dosHeaderSize {
		return nil, formatErr(off, ErrMalformedHeader, "PE header overlaps DOS header (e_lfanew=0x%x)", h.Lfanew)
	}
	return h, nil
}

func decodeFileHeader(v View, off int64) (*FileHeader, error) {
	sig, err := v.U32(off)
	if err != nil {
		return nil, err
	}
	if sig != peSignature {
		return nil, formatErr(off, ErrUnsupportedFormat, "bad PE signature 0x%08x", sig)
	}

	h := &FileHeader{}
	off += 4
	m, err := v.U16(off)
	if err != nil {
		return nil, err
	}
	h.Machine = Machine(m)
	if h.NumberOfSections, err = v.U16(off + 2); err != nil {
		return nil, err
	}
	if h.TimeDateStamp, err = v.U32(off + 4); err != nil {
		return nil, err
	}
	if h.PointerToSymbolTable, err = v.U32(off + 8); err != nil {
		return nil, err
	}
	if h.NumberOfSymbols, err = v.U32(off + 12); err != nil {
		return nil, err
	}
	if h.SizeOfOptionalHeader, err = v.U16(off + 16); err != nil {
		return nil, err
	}
	c, err := v.U16(off + 18)
	if err != nil {
		return nil, err
	}
	h.Characteristics = Characteristics(c)
	return h, nil
}

// decodeOptionalHeader decodes the 32/64-bit optional header at off. The
// declared size must be internally consistent with the variant's fixed layout
// and the data-directory count, and every read is bounds-checked, so a buffer
// shorter than the declared size fails with ErrOutOfBounds rather than a
// truncated read.
func decodeOptionalHeader(v View, off int64, size uint16) (*OptionalHeader, error) {
	if size == 0 {
		return nil, nil
	}
	if size < 24 {
		return nil, formatErr(off, ErrMalformedHeader, "optional header size %d below minimum", size)
	}

	magic, err := v.U16(off)
	if err != nil {
		return nil, err
	}

	h := &OptionalHeader{Magic: magic}
	switch magic {
	case magicPE32:
		h.Format = FormatPE32
	case magicPE32Plus:
		h.Format = FormatPE32Plus
	default:
		return nil, formatErr(off, ErrUnsupportedFormat, "bad optional header magic 0x%04x", magic)
	}

	// Standard fields, common to both layouts.
	if h.MajorLinkerVersion, err = v.U8(off + 2); err != nil {
		return nil, err
	}
	if h.MinorLinkerVersion, err = v.U8(off + 3); err != nil {
		return nil, err
	}
	std := []*uint32{
		&h.SizeOfCode, &h.SizeOfInitializedData, &h.SizeOfUninitializedData,
		&h.AddressOfEntryPoint, &h.BaseOfCode,
	}
	pos := off + 4
	for _, f := range std {
		if *f, err = v.U32(pos); err != nil {
			return nil, err
		}
		pos += 4
	}

	fixedSize := int64(112)
	if h.Format == FormatPE32 {
		fixedSize = 96
		if size < 28 {
			return nil, formatErr(off, ErrMalformedHeader, "PE32 optional header size %d below minimum", size)
		}
		if h.BaseOfData, err = v.U32(pos); err != nil {
			return nil, err
		}
		pos += 4
	}

	// A header that stops after the standard fields is legal for objects;
	// for images it simply means no windows-specific fields and no data
	// directories.
	if int64(size) == pos-off {
		return h, nil
	}

	dirBytes := int64(size) - fixedSize
	if dirBytes < 0 {
		return nil, formatErr(off, ErrMalformedHeader, "optional header size %d too short for windows fields", size)
	}

	if h.ImageBase, err = readUintN(v, pos, h.Is64Bit()); err != nil {
		return nil, err
	}
	pos += ptrWidth(h.Is64Bit())

	if h.SectionAlignment, err = v.U32(pos); err != nil {
		return nil, err
	}
	if h.FileAlignment, err = v.U32(pos + 4); err != nil {
		return nil, err
	}
	pos += 8

	versions := []*uint16{
		&h.MajorOperatingSystemVersion, &h.MinorOperatingSystemVersion,
		&h.MajorImageVersion, &h.MinorImageVersion,
		&h.MajorSubsystemVersion, &h.MinorSubsystemVersion,
	}
	for _, f := range versions {
		if *f, err = v.U16(pos); err != nil {
			return nil, err
		}
		pos += 2
	}

	win32Version, err := v.U32(pos)
	if err != nil {
		return nil, err
	}
	if win32Version != 0 {
		return nil, formatErr(pos, ErrMalformedHeader, "Win32VersionValue must be zero")
	}
	pos += 4

	if h.SizeOfImage, err = v.U32(pos); err != nil {
		return nil, err
	}
	if h.SizeOfHeaders, err = v.U32(pos + 4); err != nil {
		return nil, err
	}
	if h.CheckSum, err = v.U32(pos + 8); err != nil {
		return nil, err
	}
	pos += 12

	sub, err := v.U16(pos)
	if err != nil {
		return nil, err
	}
	h.Subsystem = Subsystem(sub)
	dllc, err := v.U16(pos + 2)
	if err != nil {
		return nil, err
	}
	h.DLLCharacteristics = DLLCharacteristics(dllc)
	pos += 4

	stacks := []*uint64{
		&h.SizeOfStackReserve, &h.SizeOfStackCommit,
		&h.SizeOfHeapReserve, &h.SizeOfHeapCommit,
	}
	for _, f := range stacks {
		if *f, err = readUintN(v, pos, h.Is64Bit()); err != nil {
			return nil, err
		}
		pos += ptrWidth(h.Is64Bit())
	}

	loaderFlags, err := v.U32(pos)
	if err != nil {
		return nil, err
	}
	if loaderFlags != 0 {
		return nil, formatErr(pos, ErrMalformedHeader, "LoaderFlags must be zero")
	}
	pos += 4

	if h.NumberOfRvaAndSizes, err = v.U32(pos); err != nil {
		return nil, err
	}
	pos += 4

	if dirBytes != int64(h.NumberOfRvaAndSizes)*8 {
		return nil, formatErr(pos, ErrMalformedHeader,
			"optional header size leaves %d directory bytes for %d declared entries", dirBytes, h.NumberOfRvaAndSizes)
	}

	// Decode up to the array's fixed capacity; entries past 16 are dead
	// space that no loader consults.
	count := h.NumberOfRvaAndSizes
	if count > NumDirectories {
		count = NumDirectories
	}
	for i := uint32(0); i < count; i++ {
		if h.DataDirectory[i].VirtualAddress, err = v.U32(pos); err != nil {
			return nil, err
		}
		if h.DataDirectory[i].Size, err = v.U32(pos + 4); err != nil {
			return nil, err
		}
		pos += 8
	}
	return h, nil
}

// decodeTEHeader decodes the terse EFI image header at offset 0. The terse
// layout drops the DOS stub, PE signature and COFF header entirely and keeps
// a 40-byte fixed record with two data directories (relocations and debug).
func decodeTEHeader(v View) (*FileHeader, *OptionalHeader, error) {
	m, err := v.U16(2)
	if err != nil {
		return nil, nil, err
	}
	fh := &FileHeader{Machine: Machine(m)}

	sections, err := v.U8(4)
	if err != nil {
		return nil, nil, err
	}
	fh.NumberOfSections = uint16(sections)

	sub, err := v.U8(5)
	if err != nil {
		return nil, nil, err
	}

	oh := &OptionalHeader{Format: FormatTE, Subsystem: Subsystem(sub)}
	if oh.StrippedSize, err = v.U16(6); err != nil {
		return nil, nil, err
	}
	if oh.StrippedSize < teHeaderSize {
		return nil, nil, formatErr(6, ErrMalformedHeader, "stripped size %d below TE header size", oh.StrippedSize)
	}
	if oh.AddressOfEntryPoint, err = v.U32(8); err != nil {
		return nil, nil, err
	}
	if oh.BaseOfCode, err = v.U32(12); err != nil {
		return nil, nil, err
	}
	if oh.ImageBase, err = v.U64(16); err != nil {
		return nil, nil, err
	}

	// The terse header stores two directories, but they land in their usual
	// slots so lookups by index keep working. The remaining slots stay zero.
	oh.NumberOfRvaAndSizes = NumDirectories
	slots := [2]DirectoryIndex{DirBaseReloc, DirDebug}
	pos := int64(24)
	for _, slot := range slots {
		if oh.DataDirectory[slot].VirtualAddress, err = v.U32(pos); err != nil {
			return nil, nil, err
		}
		if oh.DataDirectory[slot].Size, err = v.U32(pos + 4); err != nil {
			return nil, nil, err
		}
		pos += 8
	}
	return fh, oh, nil
}

func ptrWidth(is64 bool) int64 {
	if is64 {
		return 8
	}
	return 4
}

func readUintN(v View, off int64, is64 bool) (uint64, error) {
	if is64 {
		return v.U64(off)
	}
	u, err := v.U32(off)
	return uint64(u), err
}
