package pefile

// LoadConfig is the load configuration directory. The structure is
// size-prefixed and has grown across toolchain versions, so decoding stops
// cleanly at the declared size; fields beyond it stay zero.
type LoadConfig struct {
	Size                           uint32
	TimeDateStamp                  uint32
	MajorVersion                   uint16
	MinorVersion                   uint16
	GlobalFlagsClear               uint32
	GlobalFlagsSet                 uint32
	CriticalSectionDefaultTimeout  uint32
	DeCommitFreeBlockThreshold     uint64
	DeCommitTotalFreeThreshold     uint64
	LockPrefixTable                uint64
	MaximumAllocationSize          uint64
	VirtualMemoryThreshold         uint64
	ProcessAffinityMask            uint64
	ProcessHeapFlags               uint32
	CSDVersion                     uint16
	DependentLoadFlags             uint16
	EditList                       uint64
	SecurityCookie                 uint64
	SEHandlerTable                 uint64
	SEHandlerCount                 uint64
	GuardCFCheckFunctionPointer    uint64
	GuardCFDispatchFunctionPointer uint64
	GuardCFFunctionTable           uint64
	GuardCFFunctionCount           uint64
	GuardFlags                     uint32
}

// loadConfigCursor reads fields sequentially, going inert once the declared
// structure size is exhausted. This mirrors how the loader consumes the
// structure: older images simply end earlier.
type loadConfigCursor struct {
	v    View
	pos  int64
	end  int64
	err  error
	done bool
}

func (c *loadConfigCursor) u16(dst *uint16) {
	if c.done || c.err != nil || c.pos+2 > c.end {
		c.done = true
		return
	}
	*dst, c.err = c.v.U16(c.pos)
	c.pos += 2
}

func (c *loadConfigCursor) u32(dst *uint32) {
	if c.done || c.err != nil || c.pos+4 > c.end {
		c.done = true
		return
	}
	*dst, c.err = c.v.U32(c.pos)
	c.pos += 4
}

func (c *loadConfigCursor) ptr(dst *uint64, is64 bool) {
	w := ptrWidth(is64)
	if c.done || c.err != nil || c.pos+w > c.end {
		c.done = true
		return
	}
	*dst, c.err = readUintN(c.v, c.pos, is64)
	c.pos += w
}

func decodeLoadConfig(f *File, dd DataDirectory) (*LoadConfig, error) {
	off, err := f.RVAToOffset(dd.VirtualAddress)
	if err != nil {
		return nil, err
	}

	lc := &LoadConfig{}
	if lc.Size, err = f.data.U32(off); err != nil {
		return nil, err
	}
	size := int64(lc.Size)
	if size < 4 {
		return nil, formatErr(off, ErrMalformedHeader, "load config size %d below minimum", lc.Size)
	}
	if size > int64(dd.Size) && dd.Size >= 4 {
		// Some linkers declare the directory smaller than the structure;
		// trust the smaller of the two.
		size = int64(dd.Size)
	}

	is64 := f.OptionalHeader.Is64Bit()
	c := &loadConfigCursor{v: f.data, pos: off + 4, end: off + size}
	c.u32(&lc.TimeDateStamp)
	c.u16(&lc.MajorVersion)
	c.u16(&lc.MinorVersion)
	c.u32(&lc.GlobalFlagsClear)
	c.u32(&lc.GlobalFlagsSet)
	c.u32(&lc.CriticalSectionDefaultTimeout)
	c.ptr(&lc.DeCommitFreeBlockThreshold, is64)
	c.ptr(&lc.DeCommitTotalFreeThreshold, is64)
	c.ptr(&lc.LockPrefixTable, is64)
	c.ptr(&lc.MaximumAllocationSize, is64)
	c.ptr(&lc.VirtualMemoryThreshold, is64)
	// The affinity mask and heap flags swap order between the 32- and
	// 64-bit layouts.
	if is64 {
		c.ptr(&lc.ProcessAffinityMask, true)
		c.u32(&lc.ProcessHeapFlags)
	} else {
		c.u32(&lc.ProcessHeapFlags)
		c.ptr(&lc.ProcessAffinityMask, false)
	}
	c.u16(&lc.CSDVersion)
	c.u16(&lc.DependentLoadFlags)
	c.ptr(&lc.EditList, is64)
	c.ptr(&lc.SecurityCookie, is64)
	c.ptr(&lc.SEHandlerTable, is64)
	c.ptr(&lc.SEHandlerCount, is64)
	c.ptr(&lc.GuardCFCheckFunctionPointer, is64)
	c.ptr(&lc.GuardCFDispatchFunctionPointer, is64)
	c.ptr(&lc.GuardCFFunctionTable, is64)
	c.ptr(&lc.GuardCFFunctionCount, is64)
	c.u32(&lc.GuardFlags)
	if c.err != nil {
		return nil, c.err
	}
	return lc, nil
}
