package pefile

import (
	"bytes"
	"fmt"
)

type options struct {
	copyBuffer bool
}

// Option configures Parse.
type Option func(*options)

// WithCopy makes the model own a private copy of the input buffer, so the
// caller's buffer may be released or reused while the model is alive. The
// default is zero-copy: the model borrows the buffer and the caller must not
// mutate it for the model's lifetime.
func WithCopy() Option {
	return func(o *options) { o.copyBuffer = true }
}

// DirStatus distinguishes "this image has no such directory" from "this
// image's directory is corrupt".
type DirStatus int

const (
	// DirAbsent means the directory slot has a zero RVA or size. Not an
	// error; many valid images lack exports or resources.
	DirAbsent DirStatus = iota
	// DirOK means the directory decoded fully.
	DirOK
	// DirInvalid means the directory's RVA was unmapped or its internal
	// counts overran the resolved range. The error is kept alongside.
	DirInvalid
)

// Directory holds one decoded data directory together with its decode
// outcome. Failures here are isolated: a truncated resource tree never
// prevents a well-formed import table in the same image from decoding.
type Directory[T any] struct {
	Status DirStatus
	Err    error
	Data   T
}

// Present reports whether the directory decoded successfully.
func (d Directory[T]) Present() bool { return d.Status == DirOK }

// Overlay describes trailing file data claimed by no header or section.
type Overlay struct {
	Offset int64
	Size   int64
}

// File is the decoded image: headers, section table and data directories.
// It is constructed once by Parse and immutable thereafter, so independent
// Files may be used concurrently without coordination.
type File struct {
	data     View
	peOffset int64 // offset of the "PE\0\0" signature, -1 for TE images
	teAdjust int64 // TE file-offset correction (StrippedSize - header size)

	DOS            *DOSHeader // nil for TE images
	DOSStub        []byte     // bytes between the DOS header and the PE header
	FileHeader     *FileHeader
	OptionalHeader *OptionalHeader // nil when SizeOfOptionalHeader is zero

	Sections []SectionHeader

	Imports    Directory[[]ImportEntry]
	Exports    Directory[*ExportDirectory]
	BaseRelocs Directory[[]RelocBlock]
	Resources  Directory[*ResourceDirectory]
	Debug      Directory[[]DebugEntry]
	TLS        Directory[*TLSDirectory]
	LoadConfig Directory[*LoadConfig]

	// Overlay is non-nil when the file extends past all declared regions.
	Overlay *Overlay
}

// Parse decodes a PE or terse EFI image from data. Required-header failures
// (unknown magic, inconsistent counts, truncated headers) abort with an
// error; per-directory failures are recorded on the directory and leave the
// rest of the model intact.
func Parse(data []byte, opts ...Option) (*File, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.copyBuffer {
		data = bytes.Clone(data)
	}

	v := NewView(data)
	f := &File{data: v, peOffset: -1}

	magic, err := v.U16(0)
	if err != nil {
		return nil, err
	}

	var sectionOffset int64
	switch magic {
	case teMagic:
		if f.FileHeader, f.OptionalHeader, err = decodeTEHeader(v); err != nil {
			return nil, err
		}
		f.teAdjust = int64(f.OptionalHeader.StrippedSize) - teHeaderSize
		sectionOffset = teHeaderSize

	case dosMagic:
		if f.DOS, err = decodeDOSHeader(v); err != nil {
			return nil, err
		}
		f.peOffset = int64(f.DOS.Lfanew)
		if f.DOSStub, err = v.Bytes(dosHeaderSize, f.peOffset-dosHeaderSize); err != nil {
			return nil, err
		}
		if f.FileHeader, err = decodeFileHeader(v, f.peOffset); err != nil {
			return nil, err
		}
		optOffset := f.peOffset + 4 + coffHeaderSize
		if f.OptionalHeader, err = decodeOptionalHeader(v, optOffset, f.FileHeader.SizeOfOptionalHeader); err != nil {
			return nil, err
		}
		sectionOffset = optOffset + int64(f.FileHeader.SizeOfOptionalHeader)

	default:
		return nil, formatErr(0, ErrUnsupportedFormat, "bad DOS magic 0x%04x", magic)
	}

	if f.Sections, err = decodeSections(v, sectionOffset, int(f.FileHeader.NumberOfSections)); err != nil {
		return nil, err
	}

	f.Imports = decodeDirectory(f, DirImport, decodeImports)
	f.Exports = decodeDirectory(f, DirExport, decodeExports)
	f.BaseRelocs = decodeDirectory(f, DirBaseReloc, decodeBaseRelocs)
	f.Resources = decodeDirectory(f, DirResource, decodeResources)
	f.Debug = decodeDirectory(f, DirDebug, decodeDebug)
	f.TLS = decodeDirectory(f, DirTLS, decodeTLS)
	f.LoadConfig = decodeDirectory(f, DirLoadConfig, decodeLoadConfig)

	f.findOverlay()
	return f, nil
}

// dataDir returns the directory entry for idx, or false when the slot is
// beyond the declared count or zeroed (the directory is absent).
func (f *File) dataDir(idx DirectoryIndex) (DataDirectory, bool) {
	oh := f.OptionalHeader
	if oh == nil || uint32(idx) >= oh.NumberOfRvaAndSizes || int(idx) >= NumDirectories {
		return DataDirectory{}, false
	}
	dd := oh.DataDirectory[idx]
	if dd.VirtualAddress == 0 || dd.Size == 0 {
		return DataDirectory{}, false
	}
	return dd, true
}

func decodeDirectory[T any](f *File, idx DirectoryIndex, decode func(*File, DataDirectory) (T, error)) Directory[T] {
	dd, ok := f.dataDir(idx)
	if !ok {
		return Directory[T]{Status: DirAbsent}
	}
	data, err := decode(f, dd)
	if err != nil {
		return Directory[T]{Status: DirInvalid, Err: fmt.Errorf("%s directory: %w", idx, err)}
	}
	return Directory[T]{Status: DirOK, Data: data}
}

func (f *File) findOverlay() {
	var end int64
	if f.OptionalHeader != nil {
		end = int64(f.OptionalHeader.SizeOfHeaders)
	}
	for i := range f.Sections {
		s := &f.Sections[i]
		if s.SizeOfRawData == 0 {
			continue
		}
		if e := int64(s.PointerToRawData) + int64(s.SizeOfRawData) - f.teAdjust; e > end {
			end = e
		}
	}
	if end > 0 && f.data.Len() > end {
		f.Overlay = &Overlay{Offset: end, Size: f.data.Len() - end}
	}
}
