package pefile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neko-neko-nyan/libpe/pefile"
)

func TestParseHeaders(t *testing.T) {
	f := parseTestImage(t)

	require.NotNil(t, f.DOS)
	assert.Equal(t, uint32(0x80), f.DOS.Lfanew)

	assert.Equal(t, pefile.MachineAMD64, f.FileHeader.Machine)
	assert.Equal(t, uint16(4), f.FileHeader.NumberOfSections)
	assert.True(t, f.IsExecutable())
	assert.True(t, f.IsDLL())
	assert.Equal(t, 2021, f.FileHeader.Timestamp().Year())

	oh := f.OptionalHeader
	require.NotNil(t, oh)
	assert.Equal(t, pefile.FormatPE32Plus, oh.Format)
	assert.True(t, oh.Is64Bit())
	assert.Equal(t, uint64(imgBase), oh.ImageBase)
	assert.Equal(t, uint32(entryRVA), oh.AddressOfEntryPoint)
	assert.Equal(t, pefile.SubsystemWindowsGUI, oh.Subsystem)
	assert.Equal(t, pefile.DLLNXCompat, oh.DLLCharacteristics&pefile.DLLNXCompat)
	assert.Equal(t, uint32(16), oh.NumberOfRvaAndSizes)
	assert.Equal(t, uint32(0x5000), oh.SizeOfImage)

	names := make([]string, len(f.Sections))
	for i, s := range f.Sections {
		names[i] = s.Name
	}
	assert.Equal(t, []string{".text", ".rdata", ".rsrc", ".reloc"}, names)
}

func TestDOSStub(t *testing.T) {
	f := parseTestImage(t)
	stub := f.DOSStubData()
	require.Len(t, stub, 0x40)
	assert.Equal(t, "dos stub payload", string(stub[:16]))
}

func TestEntryPoint(t *testing.T) {
	f := parseTestImage(t)
	off, err := f.EntryPoint()
	require.NoError(t, err)
	assert.Equal(t, int64(0x210), off)

	// The entry point lands inside .text's raw data.
	text, err := f.SectionData(".text")
	require.NoError(t, err)
	assert.Equal(t, byte(0xcc), text[off-0x200])
}

func TestOverlay(t *testing.T) {
	f := parseTestImage(t)
	assert.Nil(t, f.Overlay)

	data := append(buildTestImage(t), make([]byte, 0x100)...)
	f, err := pefile.Parse(data)
	require.NoError(t, err)
	require.NotNil(t, f.Overlay)
	assert.Equal(t, int64(imgSize), f.Overlay.Offset)
	assert.Equal(t, int64(0x100), f.Overlay.Size)
}

func TestWithCopy(t *testing.T) {
	data := buildTestImage(t)
	f, err := pefile.Parse(data, pefile.WithCopy())
	require.NoError(t, err)

	for i := range data {
		data[i] = 0
	}
	text, err := f.SectionData(".text")
	require.NoError(t, err)
	assert.Equal(t, byte(0xcc), text[0x10])
}

func TestParseErrors(t *testing.T) {
	base := buildTestImage(t)
	mutated := func(mod func([]byte)) []byte {
		data := buildTestImage(t, mod)
		return data
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, pefile.ErrOutOfBounds},
		{"one byte", []byte{'M'}, pefile.ErrOutOfBounds},
		{"bad dos magic", []byte("XYZA"), pefile.ErrUnsupportedFormat},
		{"lfanew inside dos header", mutated(func(b []byte) { put32(b, 0x3c, 0x20) }), pefile.ErrMalformedHeader},
		{"bad pe signature", mutated(func(b []byte) { copy(b[0x80:], "PF\x00\x00") }), pefile.ErrUnsupportedFormat},
		{"bad optional magic", mutated(func(b []byte) { put16(b, optBase, 0x999) }), pefile.ErrUnsupportedFormat},
		{"dir count mismatch", mutated(func(b []byte) { put32(b, optBase+108, 8) }), pefile.ErrMalformedHeader},
		{"win32 version set", mutated(func(b []byte) { put32(b, optBase+52, 1) }), pefile.ErrMalformedHeader},
		{"loader flags set", mutated(func(b []byte) { put32(b, optBase+104, 1) }), pefile.ErrMalformedHeader},
		{"truncated optional header", base[:0x100], pefile.ErrOutOfBounds},
		{"truncated section table", base[:0x190], pefile.ErrOutOfBounds},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pefile.Parse(tc.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var fe *pefile.FormatError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

// A corrupt directory must not take down the rest of the model.
func TestDirectoryIsolation(t *testing.T) {
	t.Run("overrunning resource counts", func(t *testing.T) {
		f := parseTestImage(t, func(b []byte) { put16(b, 0x80e, 0xffff) })
		assert.Equal(t, pefile.DirInvalid, f.Resources.Status)
		assert.ErrorIs(t, f.Resources.Err, pefile.ErrOutOfBounds)
		assert.Equal(t, pefile.DirOK, f.Imports.Status)
		assert.Equal(t, pefile.DirOK, f.Exports.Status)
		assert.Equal(t, pefile.DirOK, f.BaseRelocs.Status)
	})

	t.Run("unmapped resource rva", func(t *testing.T) {
		f := parseTestImage(t, func(b []byte) { setDirectory(b, pefile.DirResource, 0x9000, 0x100) })
		assert.Equal(t, pefile.DirInvalid, f.Resources.Status)
		assert.ErrorIs(t, f.Resources.Err, pefile.ErrUnmappedAddress)
		assert.Equal(t, pefile.DirOK, f.Imports.Status)
	})
}

func TestNoExports(t *testing.T) {
	f := parseTestImage(t, func(b []byte) { setDirectory(b, pefile.DirExport, 0, 0) })
	assert.Equal(t, pefile.DirAbsent, f.Exports.Status)

	syms, err := f.ExportedSymbols()
	require.NoError(t, err)
	assert.NotNil(t, syms)
	assert.Empty(t, syms)

	mods, err := f.ImportedModules()
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "KERNEL32.dll", mods[0].Module)
}

func TestDirectoryData(t *testing.T) {
	f := parseTestImage(t)

	raw, err := f.DirectoryData(pefile.DirImport)
	require.NoError(t, err)
	require.Len(t, raw, 40)
	assert.Equal(t, byte(0x40), raw[0]) // lookup table RVA low byte

	_, err = f.DirectoryData(pefile.DirCOMDescriptor)
	assert.ErrorIs(t, err, pefile.ErrUnmappedAddress)
}

func buildPE32(t *testing.T) []byte {
	t.Helper()
	b := make([]byte, 0x400)
	b[0], b[1] = 'M', 'Z'
	put32(b, 0x3c, 0x40)
	copy(b[0x40:], "PE\x00\x00")
	put16(b, 0x44, 0x14c) // i386
	put16(b, 0x46, 1)
	put16(b, 0x54, 224)    // optional header size
	put16(b, 0x56, 0x0102) // EXECUTABLE | 32BIT_MACHINE

	opt := 0x58
	put16(b, opt, 0x10b)
	put32(b, opt+16, 0x1010)   // entry point
	put32(b, opt+20, 0x1000)   // base of code
	put32(b, opt+24, 0x2000)   // base of data
	put32(b, opt+28, 0x400000) // image base
	put32(b, opt+32, 0x1000)
	put32(b, opt+36, 0x200)
	put32(b, opt+56, 0x2000) // size of image
	put32(b, opt+60, 0x200)  // size of headers
	put16(b, opt+68, 3)      // Windows console
	put32(b, opt+92, 16)     // NumberOfRvaAndSizes

	sect := opt + 224
	copy(b[sect:], ".text")
	put32(b, sect+8, 0x100)
	put32(b, sect+12, 0x1000)
	put32(b, sect+16, 0x200)
	put32(b, sect+20, 0x200)
	put32(b, sect+36, 0x60000020)
	return b
}

func TestParsePE32(t *testing.T) {
	f, err := pefile.Parse(buildPE32(t))
	require.NoError(t, err)

	oh := f.OptionalHeader
	assert.Equal(t, pefile.FormatPE32, oh.Format)
	assert.False(t, oh.Is64Bit())
	assert.Equal(t, pefile.MachineI386, f.FileHeader.Machine)
	assert.Equal(t, uint32(0x2000), oh.BaseOfData)
	assert.Equal(t, uint64(0x400000), oh.ImageBase)
	assert.Equal(t, pefile.SubsystemWindowsCUI, oh.Subsystem)
	require.Len(t, f.Sections, 1)

	off, err := f.EntryPoint()
	require.NoError(t, err)
	assert.Equal(t, int64(0x210), off)
}

// buildTE assembles a terse EFI image: 40-byte header, one section whose
// stored raw pointer still includes the stripped header bytes.
func buildTE(t *testing.T) []byte {
	t.Helper()
	b := make([]byte, 0xc0)
	b[0], b[1] = 'V', 'Z'
	put16(b, 2, 0xebc) // EFI byte code
	b[4] = 1           // sections
	b[5] = 10          // EFI application
	put16(b, 6, 0x60)  // stripped size, adjustment is 0x60-40 = 0x20
	put32(b, 8, 0x1010)
	put32(b, 12, 0x1000)
	put64(b, 16, 0x10000)

	copy(b[40:], ".text")
	put32(b, 48, 0x40)  // virtual size
	put32(b, 52, 0x1000)
	put32(b, 56, 0x40) // raw size
	put32(b, 60, 0xa0) // raw pointer, pre-strip
	put32(b, 76, 0x60000020)

	copy(b[0x90:], "\xcc\xcc")
	return b
}

func TestParseTE(t *testing.T) {
	f, err := pefile.Parse(buildTE(t))
	require.NoError(t, err)

	assert.Nil(t, f.DOS)
	assert.Empty(t, f.DOSStubData())
	assert.Equal(t, pefile.MachineEBC, f.FileHeader.Machine)

	oh := f.OptionalHeader
	assert.Equal(t, pefile.FormatTE, oh.Format)
	assert.Equal(t, pefile.SubsystemEFIApplication, oh.Subsystem)
	assert.Equal(t, uint16(0x60), oh.StrippedSize)
	assert.Equal(t, uint64(0x10000), oh.ImageBase)

	// The stripped-size adjustment shifts every file offset.
	off, err := f.EntryPoint()
	require.NoError(t, err)
	assert.Equal(t, int64(0x90), off)

	data, err := f.SectionData(".text")
	require.NoError(t, err)
	require.Len(t, data, 0x40)
	assert.Equal(t, byte(0xcc), data[0x10])

	assert.Equal(t, pefile.DirAbsent, f.BaseRelocs.Status)
	assert.Equal(t, pefile.DirAbsent, f.Debug.Status)
	assert.Nil(t, f.Overlay)
}

func TestParseTEStrippedSizeTooSmall(t *testing.T) {
	b := buildTE(t)
	put16(b, 6, 20)
	_, err := pefile.Parse(b)
	assert.ErrorIs(t, err, pefile.ErrMalformedHeader)
}
