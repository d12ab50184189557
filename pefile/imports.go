package pefile

const (
	importDescriptorSize = 20
	maxImportDescriptors = 1 << 14
	maxImportSymbols     = 1 << 17
	maxNameLength        = 1 << 12
)

// ImportSymbol is one imported symbol, referenced by name or by ordinal.
// The two forms are mutually exclusive, discriminated by ByOrdinal.
type ImportSymbol struct {
	Name      string
	Hint      uint16
	Ordinal   uint16
	ByOrdinal bool
}

// ImportEntry is one imported module with its symbols in lookup-table order.
type ImportEntry struct {
	Module                string
	TimeDateStamp         uint32
	ForwarderChain        uint32
	ImportAddressTableRVA uint32
	Symbols               []ImportSymbol
}

// decodeImports walks the import descriptor table until its zero-filled
// terminator record, then walks each descriptor's lookup table. The
// terminator itself never yields an entry.
func decodeImports(f *File, dd DataDirectory) ([]ImportEntry, error) {
	entries := []ImportEntry{}
	for i := 0; ; i++ {
		if i >= maxImportDescriptors {
			return nil, formatErr(int64(dd.VirtualAddress), ErrMalformedHeader, "import table has no terminator")
		}
		off, err := f.RVAToOffset(dd.VirtualAddress + uint32(i)*importDescriptorSize)
		if err != nil {
			return nil, err
		}
		raw, err := f.data.Bytes(off, importDescriptorSize)
		if err != nil {
			return nil, err
		}
		if allZero(raw) {
			return entries, nil
		}

		lookupRVA, err := f.data.U32(off)
		if err != nil {
			return nil, err
		}
		entry := ImportEntry{}
		if entry.TimeDateStamp, err = f.data.U32(off + 4); err != nil {
			return nil, err
		}
		if entry.ForwarderChain, err = f.data.U32(off + 8); err != nil {
			return nil, err
		}
		nameRVA, err := f.data.U32(off + 12)
		if err != nil {
			return nil, err
		}
		if entry.ImportAddressTableRVA, err = f.data.U32(off + 16); err != nil {
			return nil, err
		}

		nameOff, err := f.RVAToOffset(nameRVA)
		if err != nil {
			return nil, err
		}
		if entry.Module, err = f.data.CString(nameOff, maxNameLength); err != nil {
			return nil, err
		}

		// Bound imports leave the original lookup table zeroed; the
		// import address table then holds the pre-bind entries.
		if lookupRVA == 0 {
			lookupRVA = entry.ImportAddressTableRVA
		}
		if entry.Symbols, err = f.decodeLookupTable(lookupRVA); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
}

// decodeLookupTable walks the zero-terminated array of lookup entries at rva.
// Entries are 32 or 64 bits wide depending on the image format; the high bit
// selects an ordinal import, encoded in the low 16 bits, otherwise the value
// is an RVA to a hint/name pair.
func (f *File) decodeLookupTable(rva uint32) ([]ImportSymbol, error) {
	is64 := f.OptionalHeader.Is64Bit()
	width := ptrWidth(is64)

	var symbols []ImportSymbol
	for i := 0; ; i++ {
		if i >= maxImportSymbols {
			return nil, formatErr(int64(rva), ErrMalformedHeader, "import lookup table has no terminator")
		}
		off, err := f.RVAToOffset(rva + uint32(int64(i)*width))
		if err != nil {
			return nil, err
		}
		value, err := readUintN(f.data, off, is64)
		if err != nil {
			return nil, err
		}
		if value == 0 {
			return symbols, nil
		}

		ordinalBit := uint64(1) << 31
		if is64 {
			ordinalBit = 1 << 63
		}
		if value&ordinalBit != 0 {
			symbols = append(symbols, ImportSymbol{
				Ordinal:   uint16(value & 0xffff),
				ByOrdinal: true,
			})
			continue
		}

		hintNameOff, err := f.RVAToOffset(uint32(value))
		if err != nil {
			return nil, err
		}
		var sym ImportSymbol
		if sym.Hint, err = f.data.U16(hintNameOff); err != nil {
			return nil, err
		}
		if sym.Name, err = f.data.CString(hintNameOff+2, maxNameLength); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
