package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/neko-neko-nyan/libpe/pefile"
)

// printer writes an indented begin/end structured dump.
type printer struct {
	w     io.Writer
	depth int
}

func (p *printer) begin(format string, args ...any) {
	p.line(format, args...)
	p.depth++
}

func (p *printer) end() { p.depth-- }

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("    ", p.depth), fmt.Sprintf(format, args...))
}

func dumpText(w io.Writer, filename string, f *pefile.File, size int64) {
	p := &printer{w: w}
	oh := f.OptionalHeader
	if oh == nil {
		p.line("%s: object without optional header", filename)
		return
	}

	p.begin("%s (%s, %s, %s)", filename, oh.Format, f.FileHeader.Machine, humanize.IBytes(uint64(size)))
	defer p.end()

	if f.DOS != nil {
		p.begin("dos header")
		p.line("e_lfanew: 0x%x", f.DOS.Lfanew)
		p.line("stub: %s", humanize.IBytes(uint64(len(f.DOSStub))))
		p.end()
	}

	p.begin("file header")
	p.line("machine: %s", f.FileHeader.Machine)
	p.line("sections: %d", f.FileHeader.NumberOfSections)
	if ts := f.FileHeader.Timestamp(); !ts.IsZero() {
		p.line("linked: %s", ts.Format("2006-01-02 15:04:05"))
	}
	p.line("characteristics: %s", f.FileHeader.Characteristics)
	p.end()

	p.begin("optional header")
	p.line("entry point: 0x%x", oh.AddressOfEntryPoint)
	p.line("image base: 0x%x", oh.ImageBase)
	p.line("subsystem: %s", oh.Subsystem)
	if oh.Format != pefile.FormatTE {
		p.line("size of image: %s", humanize.IBytes(uint64(oh.SizeOfImage)))
		p.line("dll characteristics: %s", oh.DLLCharacteristics)
		if ok, err := f.ChecksumValid(); err == nil {
			p.line("checksum: 0x%08x (valid: %v)", oh.CheckSum, ok)
		}
	} else {
		p.line("stripped size: %d", oh.StrippedSize)
	}
	p.end()

	p.begin("sections")
	for _, info := range f.SectionInfos() {
		s := f.Sections[info.Index]
		p.begin("%s", s.Name)
		p.line("rva: 0x%x  vsize: %s  raw: %s @ 0x%x",
			s.VirtualAddress, humanize.IBytes(uint64(s.VirtualSize)),
			humanize.IBytes(uint64(s.SizeOfRawData)), s.PointerToRawData)
		p.line("flags: %s", s.Characteristics)
		if info.SHA256 != "" {
			p.line("entropy: %.2f  sha256: %s", info.Entropy, info.SHA256)
		}
		p.end()
	}
	p.end()

	dumpDirectoriesText(p, f)

	if f.Overlay != nil {
		p.begin("overlay")
		p.line("offset: 0x%x  size: %s", f.Overlay.Offset, humanize.IBytes(uint64(f.Overlay.Size)))
		p.end()
	}
}

func dumpDirectoriesText(p *printer, f *pefile.File) {
	if mods, err := f.ImportedModules(); err != nil {
		p.line("imports: %v", err)
	} else if len(mods) > 0 {
		p.begin("imports")
		for _, m := range mods {
			p.begin("%s", m.Module)
			for _, s := range m.Symbols {
				if s.ByOrdinal {
					p.line("#%d", s.Ordinal)
				} else {
					p.line("%s (hint %d)", s.Name, s.Hint)
				}
			}
			p.end()
		}
		p.end()
	}

	if syms, err := f.ExportedSymbols(); err != nil {
		p.line("exports: %v", err)
	} else if len(syms) > 0 {
		p.begin("exports")
		if f.Exports.Present() {
			p.line("module: %s", f.Exports.Data.ModuleName)
		}
		for _, s := range syms {
			switch {
			case s.Forwarder != "":
				p.line("#%d %s -> %s", s.Ordinal, s.Name, s.Forwarder)
			case s.Name != "":
				p.line("#%d %s @ 0x%x", s.Ordinal, s.Name, s.RVA)
			default:
				p.line("#%d @ 0x%x", s.Ordinal, s.RVA)
			}
		}
		p.end()
	}

	if res := f.ResourceList(); len(res) > 0 {
		p.begin("resources")
		for _, r := range res {
			p.line("%s/%s lang %d: %s @ 0x%x", r.Type, r.Name, r.Language,
				humanize.IBytes(uint64(r.Size)), r.Offset)
		}
		p.end()
	} else if f.Resources.Status == pefile.DirInvalid {
		p.line("resources: %v", f.Resources.Err)
	}

	if f.BaseRelocs.Present() {
		total := 0
		for _, b := range f.BaseRelocs.Data {
			total += len(b.Relocs)
		}
		p.line("relocations: %d entries in %d blocks", total, len(f.BaseRelocs.Data))
	}

	if f.Debug.Present() {
		p.begin("debug")
		for _, e := range f.Debug.Data {
			if e.PDB != nil {
				p.line("%s: %s age %d %s", e.Type, e.PDB.GUID, e.PDB.Age, e.PDB.Path)
			} else {
				p.line("%s: %s @ 0x%x", e.Type, humanize.IBytes(uint64(e.SizeOfData)), e.AddressOfRawData)
			}
		}
		p.end()
	}

	if f.TLS.Present() {
		p.line("tls: %d callbacks", len(f.TLS.Data.Callbacks))
	}
	if f.LoadConfig.Present() {
		lc := f.LoadConfig.Data
		p.line("load config: v%d.%d cookie 0x%x guard 0x%x",
			lc.MajorVersion, lc.MinorVersion, lc.SecurityCookie, lc.GuardFlags)
	}
}

func dumpJSON(w io.Writer, filename string, f *pefile.File, size int64) error {
	oh := f.OptionalHeader
	if oh == nil {
		oh = &pefile.OptionalHeader{}
	}

	sections := make([]map[string]any, 0, len(f.Sections))
	infos := f.SectionInfos()
	for i, s := range f.Sections {
		sections = append(sections, map[string]any{
			"name":       s.Name,
			"rva":        s.VirtualAddress,
			"vsize":      s.VirtualSize,
			"raw_size":   s.SizeOfRawData,
			"raw_offset": s.PointerToRawData,
			"flags":      s.Characteristics.String(),
			"entropy":    infos[i].Entropy,
			"sha256":     infos[i].SHA256,
		})
	}

	doc := map[string]any{
		"file":    filename,
		"size":    size,
		"format":  oh.Format.String(),
		"machine": f.FileHeader.Machine.String(),
		"file_header": map[string]any{
			"sections":        f.FileHeader.NumberOfSections,
			"timestamp":       f.FileHeader.TimeDateStamp,
			"characteristics": f.FileHeader.Characteristics.String(),
		},
		"optional_header": map[string]any{
			"entry_point": oh.AddressOfEntryPoint,
			"image_base":  oh.ImageBase,
			"subsystem":   oh.Subsystem.String(),
			"checksum":    oh.CheckSum,
		},
		"sections": sections,
	}

	if mods, err := f.ImportedModules(); err == nil && len(mods) > 0 {
		imports := make(map[string][]string, len(mods))
		for _, m := range mods {
			names := make([]string, 0, len(m.Symbols))
			for _, s := range m.Symbols {
				if s.ByOrdinal {
					names = append(names, fmt.Sprintf("#%d", s.Ordinal))
				} else {
					names = append(names, s.Name)
				}
			}
			imports[m.Module] = names
		}
		doc["imports"] = imports
	}

	if syms, err := f.ExportedSymbols(); err == nil && len(syms) > 0 {
		exports := make([]map[string]any, 0, len(syms))
		for _, s := range syms {
			e := map[string]any{"ordinal": s.Ordinal, "rva": s.RVA}
			if s.Name != "" {
				e["name"] = s.Name
			}
			if s.Forwarder != "" {
				e["forwarder"] = s.Forwarder
			}
			exports = append(exports, e)
		}
		doc["exports"] = exports
	}

	if res := f.ResourceList(); len(res) > 0 {
		resources := make([]map[string]any, 0, len(res))
		for _, r := range res {
			resources = append(resources, map[string]any{
				"type":     r.Type.String(),
				"name":     r.Name,
				"language": r.Language,
				"size":     r.Size,
				"offset":   r.Offset,
			})
		}
		doc["resources"] = resources
	}

	if f.Debug.Present() {
		for _, e := range f.Debug.Data {
			if e.PDB != nil {
				doc["pdb"] = map[string]any{"guid": e.PDB.GUID, "age": e.PDB.Age, "path": e.PDB.Path}
				break
			}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
