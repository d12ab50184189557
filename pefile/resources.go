package pefile

const maxResourceDepth = 32

// ResourceData is a leaf of the resource tree: a blob located by image RVA.
type ResourceData struct {
	DataRVA  uint32
	Size     uint32
	CodePage uint32
}

// ResourceEntry is one child of a resource directory, either a subdirectory
// or a leaf. Named entries carry Name; id entries carry ID.
type ResourceEntry struct {
	Name string
	ID   uint32
	Dir  *ResourceDirectory // non-nil for subdirectory entries
	Data *ResourceData      // non-nil for leaf entries
}

// ResourceDirectory is an interior node of the resource tree. The tree is
// typically three levels deep (type, name, language) but arbitrary depth is
// decoded, bounded only by the cycle guard.
type ResourceDirectory struct {
	TimeDateStamp uint32
	MajorVersion  uint16
	MinorVersion  uint16
	Entries       []ResourceEntry // named entries first, then id entries, as on disk
}

// Entry returns the child matching the selector, or nil.
func (d *ResourceDirectory) Entry(sel ResourceSelector) *ResourceEntry {
	for i := range d.Entries {
		e := &d.Entries[i]
		if sel.Name != "" {
			if e.Name == sel.Name {
				return e
			}
		} else if e.Name == "" && e.ID == sel.ID {
			return e
		}
	}
	return nil
}

type resourceDecoder struct {
	f       *File
	base    int64 // file offset of the resource directory root
	visited map[uint32]bool
}

// decodeResources runs a recursive descent from the root directory node.
// All offsets inside the tree are relative to the directory's base, except
// leaf data which is located by image RVA.
func decodeResources(f *File, dd DataDirectory) (*ResourceDirectory, error) {
	base, err := f.RVAToOffset(dd.VirtualAddress)
	if err != nil {
		return nil, err
	}
	d := &resourceDecoder{f: f, base: base, visited: map[uint32]bool{}}
	return d.directory(0, 0)
}

func (d *resourceDecoder) directory(offset uint32, depth int) (*ResourceDirectory, error) {
	if depth > maxResourceDepth {
		return nil, formatErr(d.base+int64(offset), ErrMalformedHeader, "resource tree deeper than %d", maxResourceDepth)
	}
	if d.visited[offset] {
		return nil, formatErr(d.base+int64(offset), ErrMalformedHeader, "resource tree cycle")
	}
	d.visited[offset] = true

	pos := d.base + int64(offset)
	characteristics, err := d.f.data.U32(pos)
	if err != nil {
		return nil, err
	}
	if characteristics != 0 {
		return nil, formatErr(pos, ErrMalformedHeader, "resource directory characteristics must be zero")
	}

	dir := &ResourceDirectory{}
	if dir.TimeDateStamp, err = d.f.data.U32(pos + 4); err != nil {
		return nil, err
	}
	if dir.MajorVersion, err = d.f.data.U16(pos + 8); err != nil {
		return nil, err
	}
	if dir.MinorVersion, err = d.f.data.U16(pos + 10); err != nil {
		return nil, err
	}
	numNamed, err := d.f.data.U16(pos + 12)
	if err != nil {
		return nil, err
	}
	numID, err := d.f.data.U16(pos + 14)
	if err != nil {
		return nil, err
	}

	total := int(numNamed) + int(numID)
	dir.Entries = make([]ResourceEntry, 0, total)
	for i := 0; i < total; i++ {
		entry, err := d.entry(pos+16+int64(i)*8, i < int(numNamed), depth)
		if err != nil {
			return nil, err
		}
		dir.Entries = append(dir.Entries, entry)
	}
	return dir, nil
}

func (d *resourceDecoder) entry(pos int64, named bool, depth int) (ResourceEntry, error) {
	nameField, err := d.f.data.U32(pos)
	if err != nil {
		return ResourceEntry{}, err
	}
	if named != (nameField>>31 != 0) {
		return ResourceEntry{}, formatErr(pos, ErrMalformedHeader, "named/id entry mismatch")
	}

	var e ResourceEntry
	if named {
		if e.Name, err = d.f.data.UTF16String(d.base + int64(nameField&0x7fffffff)); err != nil {
			return ResourceEntry{}, err
		}
	} else {
		e.ID = nameField
	}

	offsetField, err := d.f.data.U32(pos + 4)
	if err != nil {
		return ResourceEntry{}, err
	}
	if offsetField>>31 != 0 {
		// High bit set: child directory node.
		if e.Dir, err = d.directory(offsetField&0x7fffffff, depth+1); err != nil {
			return ResourceEntry{}, err
		}
		return e, nil
	}

	dataPos := d.base + int64(offsetField)
	data := &ResourceData{}
	if data.DataRVA, err = d.f.data.U32(dataPos); err != nil {
		return ResourceEntry{}, err
	}
	if data.Size, err = d.f.data.U32(dataPos + 4); err != nil {
		return ResourceEntry{}, err
	}
	if data.CodePage, err = d.f.data.U32(dataPos + 8); err != nil {
		return ResourceEntry{}, err
	}
	reserved, err := d.f.data.U32(dataPos + 12)
	if err != nil {
		return ResourceEntry{}, err
	}
	if reserved != 0 {
		return ResourceEntry{}, formatErr(dataPos+12, ErrMalformedHeader, "resource data entry reserved field must be zero")
	}
	e.Data = data
	return e, nil
}
