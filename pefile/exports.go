package pefile

const (
	exportHeaderSize = 40
	maxExportEntries = 1 << 17
)

// ExportSymbol is one entry of the export address table. Ordinal is the
// biased ordinal (table index plus the directory's ordinal base). Name is
// empty for ordinal-only exports. Forwarder is non-empty when the entry
// forwards to another module instead of carrying code.
type ExportSymbol struct {
	Name      string
	Ordinal   uint32
	RVA       uint32
	Forwarder string
}

// ExportDirectory is the decoded export table: the module's own name plus its
// symbols in address-table order.
type ExportDirectory struct {
	ModuleName    string
	Base          uint32
	TimeDateStamp uint32
	MajorVersion  uint16
	MinorVersion  uint16
	Symbols       []ExportSymbol
}

// decodeExports reads the fixed export header and cross-indexes its three
// parallel arrays: names resolve through the ordinal table into the address
// table. Unused (zero-RVA) address slots are skipped.
func decodeExports(f *File, dd DataDirectory) (*ExportDirectory, error) {
	off, err := f.RVAToOffset(dd.VirtualAddress)
	if err != nil {
		return nil, err
	}
	if _, err := f.data.Bytes(off, exportHeaderSize); err != nil {
		return nil, err
	}

	dir := &ExportDirectory{}
	if dir.TimeDateStamp, err = f.data.U32(off + 4); err != nil {
		return nil, err
	}
	if dir.MajorVersion, err = f.data.U16(off + 8); err != nil {
		return nil, err
	}
	if dir.MinorVersion, err = f.data.U16(off + 10); err != nil {
		return nil, err
	}
	nameRVA, err := f.data.U32(off + 12)
	if err != nil {
		return nil, err
	}
	if dir.Base, err = f.data.U32(off + 16); err != nil {
		return nil, err
	}
	numFuncs, err := f.data.U32(off + 20)
	if err != nil {
		return nil, err
	}
	numNames, err := f.data.U32(off + 24)
	if err != nil {
		return nil, err
	}
	funcsRVA, err := f.data.U32(off + 28)
	if err != nil {
		return nil, err
	}
	namesRVA, err := f.data.U32(off + 32)
	if err != nil {
		return nil, err
	}
	ordinalsRVA, err := f.data.U32(off + 36)
	if err != nil {
		return nil, err
	}

	if numFuncs > maxExportEntries || numNames > maxExportEntries {
		return nil, formatErr(off, ErrMalformedHeader, "export counts %d/%d exceed sanity limit", numFuncs, numNames)
	}
	if numNames > 0 && numFuncs == 0 {
		return nil, formatErr(off, ErrMalformedHeader, "%d named exports but empty address table", numNames)
	}

	if nameRVA != 0 {
		nameOff, err := f.RVAToOffset(nameRVA)
		if err != nil {
			return nil, err
		}
		if dir.ModuleName, err = f.data.CString(nameOff, maxNameLength); err != nil {
			return nil, err
		}
	}

	addrs, err := f.readU32Array(funcsRVA, numFuncs)
	if err != nil {
		return nil, err
	}

	// names[ordinal table index] -> address table index
	nameByIndex := make(map[uint32]string, numNames)
	if numNames > 0 {
		namePtrs, err := f.readU32Array(namesRVA, numNames)
		if err != nil {
			return nil, err
		}
		ordOff, err := f.RVAToOffset(ordinalsRVA)
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < numNames; i++ {
			ord, err := f.data.U16(ordOff + int64(i)*2)
			if err != nil {
				return nil, err
			}
			if uint32(ord) >= numFuncs {
				return nil, formatErr(ordOff+int64(i)*2, ErrMalformedHeader,
					"name ordinal %d outside address table of %d", ord, numFuncs)
			}
			strOff, err := f.RVAToOffset(namePtrs[i])
			if err != nil {
				return nil, err
			}
			name, err := f.data.CString(strOff, maxNameLength)
			if err != nil {
				return nil, err
			}
			nameByIndex[uint32(ord)] = name
		}
	}

	dirEnd := uint64(dd.VirtualAddress) + uint64(dd.Size)
	for i, rva := range addrs {
		if rva == 0 {
			continue
		}
		sym := ExportSymbol{
			Name:    nameByIndex[uint32(i)],
			Ordinal: dir.Base + uint32(i),
			RVA:     rva,
		}
		// An address inside the export directory itself is a forwarder
		// string, not code.
		if uint64(rva) >= uint64(dd.VirtualAddress) && uint64(rva) < dirEnd {
			fwdOff, err := f.RVAToOffset(rva)
			if err != nil {
				return nil, err
			}
			if sym.Forwarder, err = f.data.CString(fwdOff, maxNameLength); err != nil {
				return nil, err
			}
		}
		dir.Symbols = append(dir.Symbols, sym)
	}
	return dir, nil
}

func (f *File) readU32Array(rva, count uint32) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}
	off, err := f.RVAToOffset(rva)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		if out[i], err = f.data.U32(off + int64(i)*4); err != nil {
			return nil, err
		}
	}
	return out, nil
}
