package pefile

const maxTLSCallbacks = 1 << 10

// TLSDirectory is the thread-local storage directory. Address fields are
// virtual addresses (image base relative), not RVAs, as the loader patches
// them in place.
type TLSDirectory struct {
	StartAddressOfRawData uint64
	EndAddressOfRawData   uint64
	AddressOfIndex        uint64
	AddressOfCallBacks    uint64
	SizeOfZeroFill        uint32
	Characteristics       uint32

	// Callbacks are the virtual addresses read from the zero-terminated
	// callback array, when the array is mapped.
	Callbacks []uint64
}

func decodeTLS(f *File, dd DataDirectory) (*TLSDirectory, error) {
	off, err := f.RVAToOffset(dd.VirtualAddress)
	if err != nil {
		return nil, err
	}

	is64 := f.OptionalHeader.Is64Bit()
	width := ptrWidth(is64)

	dir := &TLSDirectory{}
	pos := off
	addrs := []*uint64{
		&dir.StartAddressOfRawData, &dir.EndAddressOfRawData,
		&dir.AddressOfIndex, &dir.AddressOfCallBacks,
	}
	for _, a := range addrs {
		if *a, err = readUintN(f.data, pos, is64); err != nil {
			return nil, err
		}
		pos += width
	}
	if dir.SizeOfZeroFill, err = f.data.U32(pos); err != nil {
		return nil, err
	}
	if dir.Characteristics, err = f.data.U32(pos + 4); err != nil {
		return nil, err
	}

	if dir.AddressOfCallBacks != 0 {
		if dir.Callbacks, err = f.decodeTLSCallbacks(dir.AddressOfCallBacks, is64); err != nil {
			return nil, err
		}
	}
	return dir, nil
}

func (f *File) decodeTLSCallbacks(va uint64, is64 bool) ([]uint64, error) {
	base := f.OptionalHeader.ImageBase
	if va < base {
		return nil, formatErr(int64(va), ErrMalformedHeader, "TLS callback array VA 0x%x below image base 0x%x", va, base)
	}
	off, err := f.RVAToOffset(uint32(va - base))
	if err != nil {
		return nil, err
	}

	width := ptrWidth(is64)
	var callbacks []uint64
	for i := 0; ; i++ {
		if i >= maxTLSCallbacks {
			return nil, formatErr(off, ErrMalformedHeader, "TLS callback array has no terminator")
		}
		cb, err := readUintN(f.data, off+int64(i)*width, is64)
		if err != nil {
			return nil, err
		}
		if cb == 0 {
			return callbacks, nil
		}
		callbacks = append(callbacks, cb)
	}
}
