package pefile

// RelocType is the 4-bit fixup kind of a base relocation.
type RelocType uint8

const (
	RelocAbsolute RelocType = 0 // padding entry, no fixup
	RelocHigh     RelocType = 1
	RelocLow      RelocType = 2
	RelocHighLow  RelocType = 3
	RelocHighAdj  RelocType = 4
	RelocDir64    RelocType = 10
)

// Reloc is one fixup: a kind and an offset within the block's page.
type Reloc struct {
	Type   RelocType
	Offset uint16 // 12-bit page-relative offset
}

// RelocBlock is one base relocation block covering a single 4K page.
type RelocBlock struct {
	PageRVA uint32
	Relocs  []Reloc
}

// decodeBaseRelocs walks consecutive block headers until the cumulative block
// sizes reach the directory's declared total. Blocks terminate at the size
// boundary, not at a sentinel; a block overrunning the boundary is malformed.
func decodeBaseRelocs(f *File, dd DataDirectory) ([]RelocBlock, error) {
	base, err := f.RVAToOffset(dd.VirtualAddress)
	if err != nil {
		return nil, err
	}

	var blocks []RelocBlock
	total := int64(dd.Size)
	for pos := int64(0); pos < total; {
		if total-pos < 8 {
			return nil, formatErr(base+pos, ErrMalformedHeader, "%d trailing bytes in relocation directory", total-pos)
		}
		pageRVA, err := f.data.U32(base + pos)
		if err != nil {
			return nil, err
		}
		blockSize, err := f.data.U32(base + pos + 4)
		if err != nil {
			return nil, err
		}
		if blockSize < 8 || blockSize%2 != 0 {
			return nil, formatErr(base+pos+4, ErrMalformedHeader, "relocation block size %d", blockSize)
		}
		if int64(blockSize) > total-pos {
			return nil, formatErr(base+pos+4, ErrMalformedHeader,
				"relocation block size %d overruns directory size %d", blockSize, dd.Size)
		}

		block := RelocBlock{PageRVA: pageRVA}
		count := (int64(blockSize) - 8) / 2
		for i := int64(0); i < count; i++ {
			entry, err := f.data.U16(base + pos + 8 + i*2)
			if err != nil {
				return nil, err
			}
			block.Relocs = append(block.Relocs, Reloc{
				Type:   RelocType(entry >> 12),
				Offset: entry & 0x0fff,
			})
		}
		blocks = append(blocks, block)
		pos += int64(blockSize)
	}
	return blocks, nil
}
