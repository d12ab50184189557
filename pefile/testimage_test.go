package pefile_test

import (
	"encoding/binary"
	"testing"

	"github.com/neko-neko-nyan/libpe/pefile"
)

// Layout constants for the synthetic PE32+ test image. The image is a small
// DLL with four sections and every decodable directory populated:
//
//	.text  RVA 0x1000 file 0x200  (entry point)
//	.rdata RVA 0x2000 file 0x400  (imports, exports, debug, load config, TLS)
//	.rsrc  RVA 0x3000 file 0x800  (one RCDATA leaf)
//	.reloc RVA 0x4000 file 0xa00  (two relocation blocks)
const (
	imgSize    = 0xc00
	imgBase    = 0x180000000
	optBase    = 0x98
	dirsBase   = optBase + 112
	sectBase   = 0x188
	entryRVA   = 0x1010
	checksumAt = optBase + 64

	importDirRVA   = 0x2000
	exportDirRVA   = 0x2100
	debugDirRVA    = 0x2200
	ldcfgDirRVA    = 0x2280
	tlsDirRVA      = 0x2340
	resourceDirRVA = 0x3000
	relocDirRVA    = 0x4000
)

func put16(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:], v) }
func put32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
func put64(b []byte, off int, v uint64) { binary.LittleEndian.PutUint64(b[off:], v) }

func setDirectory(b []byte, idx pefile.DirectoryIndex, rva, size uint32) {
	put32(b, dirsBase+int(idx)*8, rva)
	put32(b, dirsBase+int(idx)*8+4, size)
}

func putSection(b []byte, i int, name string, va, vsize, rawPtr, rawSize, flags uint32) {
	off := sectBase + i*40
	copy(b[off:off+8], name)
	put32(b, off+8, vsize)
	put32(b, off+12, va)
	put32(b, off+16, rawSize)
	put32(b, off+20, rawPtr)
	put32(b, off+36, flags)
}

// refChecksum is an independent rendition of the image checksum used to seed
// the header field: plain 64-bit accumulation folded once at the end instead
// of the decoder's per-word folding.
func refChecksum(data []byte, fieldOff int) uint32 {
	var sum uint64
	for i := 0; i+1 < len(data); i += 2 {
		if i == fieldOff || i == fieldOff+2 {
			continue
		}
		sum += uint64(binary.LittleEndian.Uint16(data[i:]))
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return uint32(sum) + uint32(len(data))
}

// buildTestImage assembles the synthetic DLL. Mutators run before the
// checksum is sealed into the header, so corrupted variants still carry a
// checksum consistent with their bytes.
func buildTestImage(t *testing.T, mutators ...func([]byte)) []byte {
	t.Helper()
	b := make([]byte, imgSize)

	// DOS header and stub.
	b[0], b[1] = 'M', 'Z'
	put32(b, 0x3c, 0x80)
	copy(b[0x40:], "dos stub payload")

	// PE signature and COFF header.
	copy(b[0x80:], "PE\x00\x00")
	put16(b, 0x84, 0x8664) // amd64
	put16(b, 0x86, 4)      // sections
	put32(b, 0x88, 0x60000000)
	put16(b, 0x94, 240)    // optional header size
	put16(b, 0x96, 0x2022) // EXECUTABLE | LARGE_ADDRESS_AWARE | DLL

	// Optional header, PE32+.
	put16(b, optBase, 0x20b)
	b[optBase+2] = 14 // linker major
	put32(b, optBase+4, 0x200)     // size of code
	put32(b, optBase+16, entryRVA) // entry point
	put32(b, optBase+20, 0x1000)   // base of code
	put64(b, optBase+24, imgBase)
	put32(b, optBase+32, 0x1000) // section alignment
	put32(b, optBase+36, 0x200)  // file alignment
	put16(b, optBase+40, 6)      // OS major
	put16(b, optBase+48, 6)      // subsystem major
	put32(b, optBase+56, 0x5000) // size of image
	put32(b, optBase+60, 0x200)  // size of headers
	put16(b, optBase+68, 2)      // Windows GUI
	put16(b, optBase+70, 0x160)  // HIGH_ENTROPY_VA | DYNAMIC_BASE | NX_COMPAT
	put64(b, optBase+72, 0x100000)
	put64(b, optBase+80, 0x1000)
	put64(b, optBase+88, 0x100000)
	put64(b, optBase+96, 0x1000)
	put32(b, optBase+108, 16) // NumberOfRvaAndSizes

	setDirectory(b, pefile.DirExport, exportDirRVA, 0x80)
	setDirectory(b, pefile.DirImport, importDirRVA, 40)
	setDirectory(b, pefile.DirResource, resourceDirRVA, 0x100)
	setDirectory(b, pefile.DirBaseReloc, relocDirRVA, 22)
	setDirectory(b, pefile.DirDebug, debugDirRVA, 28)
	setDirectory(b, pefile.DirTLS, tlsDirRVA, 40)
	setDirectory(b, pefile.DirLoadConfig, ldcfgDirRVA, 148)

	putSection(b, 0, ".text", 0x1000, 0x100, 0x200, 0x200, 0x60000020)
	putSection(b, 1, ".rdata", 0x2000, 0x400, 0x400, 0x400, 0x40000040)
	putSection(b, 2, ".rsrc", 0x3000, 0x200, 0x800, 0x200, 0x40000040)
	putSection(b, 3, ".reloc", 0x4000, 0x100, 0xa00, 0x200, 0x42000040)

	// .text: recognizable bytes at the entry point.
	copy(b[0x210:], "\xcc\xcc\xcc\xcc")

	// Import table: one descriptor for KERNEL32.dll importing ExitProcess
	// by name, followed by the zero terminator.
	put32(b, 0x400, 0x2040) // lookup table RVA
	put32(b, 0x40c, 0x2060) // module name RVA
	put32(b, 0x410, 0x2080) // IAT RVA
	put64(b, 0x440, 0x2070) // lookup entry: hint/name at RVA 0x2070
	copy(b[0x460:], "KERNEL32.dll\x00")
	put16(b, 0x470, 0x12) // hint
	copy(b[0x472:], "ExitProcess\x00")
	put64(b, 0x480, 0x2070) // IAT mirrors the lookup table

	// Export table: 3 address slots (one unused), 2 names, ordinal base 5.
	put32(b, 0x50c, 0x2130) // module name RVA
	put32(b, 0x510, 5)      // ordinal base
	put32(b, 0x514, 3)      // NumberOfFunctions
	put32(b, 0x518, 2)      // NumberOfNames
	put32(b, 0x51c, 0x2140) // AddressOfFunctions
	put32(b, 0x520, 0x2150) // AddressOfNames
	put32(b, 0x524, 0x2158) // AddressOfNameOrdinals
	copy(b[0x530:], "TESTDLL.dll\x00")
	put32(b, 0x540, 0x1010) // function 0
	put32(b, 0x548, 0x1020) // function 2 (slot 1 unused)
	put32(b, 0x550, 0x2160) // name 0 -> "Alpha"
	put32(b, 0x554, 0x2168) // name 1 -> "Beta"
	put16(b, 0x558, 2)      // "Alpha" -> address index 2
	put16(b, 0x55a, 0)      // "Beta"  -> address index 0
	copy(b[0x560:], "Alpha\x00")
	copy(b[0x568:], "Beta\x00")

	// Debug directory: one CodeView entry with an RSDS payload.
	put32(b, 0x60c, 2)      // type CodeView
	put32(b, 0x610, 0x30)   // size of data
	put32(b, 0x614, 0x2220) // address of raw data
	put32(b, 0x618, 0x620)  // pointer to raw data
	copy(b[0x620:], "RSDS")
	copy(b[0x624:], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	put32(b, 0x634, 2) // age
	copy(b[0x638:], "out\\test.pdb\x00")

	// Load config, 64-bit layout.
	put32(b, 0x680, 148) // size
	put32(b, 0x684, 0x11223344)
	put16(b, 0x688, 1)                 // major version
	put64(b, 0x680+64, 0xf)            // process affinity mask
	put32(b, 0x680+72, 2)              // process heap flags
	put64(b, 0x680+88, imgBase+0x2500) // security cookie
	put32(b, 0x680+144, 0x100)         // guard flags

	// TLS directory with one callback.
	put64(b, 0x740, imgBase+0x2000)
	put64(b, 0x748, imgBase+0x2010)
	put64(b, 0x750, imgBase+0x2420)
	put64(b, 0x758, imgBase+0x2370) // callback array
	put64(b, 0x770, imgBase+entryRVA)

	// Resource tree: RCDATA (10) -> id 1 -> language 0x409 -> 8 bytes.
	put16(b, 0x80e, 1)          // root: one id entry
	put32(b, 0x810, 10)         // type RCDATA
	put32(b, 0x814, 0x80000018) // child directory at 0x18
	put16(b, 0x818+14, 1)
	put32(b, 0x828, 1) // name level: id 1
	put32(b, 0x82c, 0x80000030)
	put16(b, 0x830+14, 1)
	put32(b, 0x840, 0x409) // language level
	put32(b, 0x844, 0x48)  // leaf entry at 0x48
	put32(b, 0x848, 0x3060)
	put32(b, 0x84c, 8)
	put32(b, 0x850, 1252)
	copy(b[0x860:], "RSRCDATA")

	// Relocations: a 12-byte block for the .text page, then a 10-byte one.
	put32(b, 0xa00, 0x1000)
	put32(b, 0xa04, 12)
	put16(b, 0xa08, 0x3010) // HIGHLOW at 0x10
	put16(b, 0xa0a, 0xa020) // DIR64 at 0x20
	put32(b, 0xa0c, 0x2000)
	put32(b, 0xa10, 10)
	put16(b, 0xa14, 0x3008)

	for _, m := range mutators {
		m(b)
	}
	put32(b, checksumAt, refChecksum(b, checksumAt))
	return b
}

func parseTestImage(t *testing.T, mutators ...func([]byte)) *pefile.File {
	t.Helper()
	f, err := pefile.Parse(buildTestImage(t, mutators...))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return f
}
