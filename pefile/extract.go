package pefile

import (
	"fmt"
	"strconv"
)

// ResourceSelector addresses one level of the resource tree, by name when
// Name is non-empty, otherwise by numeric id.
type ResourceSelector struct {
	Name string
	ID   uint32
}

// ByID selects a resource tree child by numeric id.
func ByID(id uint32) ResourceSelector { return ResourceSelector{ID: id} }

// ByName selects a resource tree child by name.
func ByName(name string) ResourceSelector { return ResourceSelector{Name: name} }

func (s ResourceSelector) String() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("#%d", s.ID)
}

// EntryPoint resolves the optional header's entry RVA to a file offset.
func (f *File) EntryPoint() (int64, error) {
	if f.OptionalHeader == nil {
		return 0, formatErr(0, ErrMalformedHeader, "image has no optional header")
	}
	return f.RVAToOffset(f.OptionalHeader.AddressOfEntryPoint)
}

// ImportedModules returns the decoded import table. An absent directory
// yields an empty slice; an invalid one yields its decode error.
func (f *File) ImportedModules() ([]ImportEntry, error) {
	switch f.Imports.Status {
	case DirAbsent:
		return []ImportEntry{}, nil
	case DirInvalid:
		return nil, f.Imports.Err
	}
	return f.Imports.Data, nil
}

// ExportedSymbols returns the decoded export symbols. An absent directory
// yields an empty slice; an invalid one yields its decode error.
func (f *File) ExportedSymbols() ([]ExportSymbol, error) {
	switch f.Exports.Status {
	case DirAbsent:
		return []ExportSymbol{}, nil
	case DirInvalid:
		return nil, f.Exports.Err
	}
	return f.Exports.Data.Symbols, nil
}

// Resource walks the resource tree along path (typically type, name,
// language) and returns the leaf's bytes.
func (f *File) Resource(path ...ResourceSelector) ([]byte, error) {
	if len(path) == 0 {
		return nil, formatErr(0, ErrMalformedHeader, "empty resource path")
	}
	switch f.Resources.Status {
	case DirAbsent:
		return nil, formatErr(0, ErrUnmappedAddress, "image has no resources")
	case DirInvalid:
		return nil, f.Resources.Err
	}

	dir := f.Resources.Data
	for i, sel := range path {
		entry := dir.Entry(sel)
		if entry == nil {
			return nil, formatErr(0, ErrUnmappedAddress, "no resource %v at level %d", sel, i)
		}
		if i == len(path)-1 {
			if entry.Data == nil {
				return nil, formatErr(0, ErrMalformedHeader, "resource path %v ends at a directory", path)
			}
			return f.resourceBytes(entry.Data)
		}
		if entry.Dir == nil {
			return nil, formatErr(0, ErrMalformedHeader, "resource path %v hits a leaf early", path)
		}
		dir = entry.Dir
	}
	panic("unreachable")
}

func (f *File) resourceBytes(data *ResourceData) ([]byte, error) {
	off, err := f.RVAToOffset(data.DataRVA)
	if err != nil {
		return nil, err
	}
	return f.data.Bytes(off, int64(data.Size))
}

// Resource is one flattened leaf of the resource tree, addressed by the
// conventional type/name/language levels.
type Resource struct {
	Type     ResourceType
	Name     string
	Language uint32
	Size     uint32
	CodePage uint32
	Offset   int64 // file offset of the data
}

// ResourceList flattens the resource tree into (type, name, language)
// triples with resolved file offsets, skipping leaves whose data RVA is
// unmapped. The first level supplies the type, the second the name (numeric
// ids are rendered in decimal), and the nearest enclosing id entry below
// that supplies the language.
func (f *File) ResourceList() []Resource {
	if !f.Resources.Present() {
		return nil
	}
	var out []Resource

	var collect func(e ResourceEntry, typ ResourceType, name string, lang uint32)
	collect = func(e ResourceEntry, typ ResourceType, name string, lang uint32) {
		if e.Data != nil {
			off, err := f.RVAToOffset(e.Data.DataRVA)
			if err != nil {
				return
			}
			out = append(out, Resource{
				Type:     typ,
				Name:     name,
				Language: lang,
				Size:     e.Data.Size,
				CodePage: e.Data.CodePage,
				Offset:   off,
			})
			return
		}
		if e.Dir == nil {
			return
		}
		for _, child := range e.Dir.Entries {
			childLang := lang
			if child.Name == "" {
				childLang = child.ID
			}
			collect(child, typ, name, childLang)
		}
	}

	for _, typeEntry := range f.Resources.Data.Entries {
		typ := ResourceType(typeEntry.ID)
		if typeEntry.Dir == nil {
			collect(typeEntry, typ, typeEntry.Name, 0)
			continue
		}
		for _, nameEntry := range typeEntry.Dir.Entries {
			name := nameEntry.Name
			if name == "" {
				name = strconv.FormatUint(uint64(nameEntry.ID), 10)
			}
			collect(nameEntry, typ, name, 0)
		}
	}
	return out
}

// DOSStubData returns the DOS stub program between the DOS header and the PE
// header. Empty for terse EFI images.
func (f *File) DOSStubData() []byte {
	return f.DOSStub
}

// DirectoryData returns the raw bytes a data directory points at, resolved
// through the section table.
func (f *File) DirectoryData(idx DirectoryIndex) ([]byte, error) {
	dd, ok := f.dataDir(idx)
	if !ok {
		return nil, formatErr(0, ErrUnmappedAddress, "%s directory absent", idx)
	}
	off, err := f.RVAToOffset(dd.VirtualAddress)
	if err != nil {
		return nil, err
	}
	return f.data.Bytes(off, int64(dd.Size))
}

// IsDLL reports whether the image is a dynamic-link library.
func (f *File) IsDLL() bool {
	return f.FileHeader.Characteristics&FileDLL != 0
}

// IsExecutable reports whether the image is marked runnable.
func (f *File) IsExecutable() bool {
	return f.FileHeader.Characteristics&FileExecutableImage != 0
}
