package pefile

import (
	"fmt"
	"strings"
)

// Format selects the optional-header layout, driven by the magic field (or
// the terse EFI signature at the start of the file).
type Format int

const (
	FormatPE32 Format = iota
	FormatPE32Plus
	FormatTE
)

func (f Format) String() string {
	switch f {
	case FormatPE32:
		return "PE32"
	case FormatPE32Plus:
		return "PE32+"
	case FormatTE:
		return "TE"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Machine identifies the target CPU of the image.
type Machine uint16

const (
	MachineUnknown Machine = 0x0
	MachineI386    Machine = 0x14c
	MachineR4000   Machine = 0x166
	MachineSH4     Machine = 0x1a6
	MachineARM     Machine = 0x1c0
	MachineThumb   Machine = 0x1c2
	MachineARMNT   Machine = 0x1c4
	MachinePowerPC Machine = 0x1f0
	MachineIA64    Machine = 0x200
	MachineEBC     Machine = 0xebc // EFI byte code
	MachineRISCV32 Machine = 0x5032
	MachineRISCV64 Machine = 0x5064
	MachineAMD64   Machine = 0x8664
	MachineARM64   Machine = 0xaa64
)

func (m Machine) String() string {
	switch m {
	case MachineUnknown:
		return "unknown"
	case MachineI386:
		return "i386"
	case MachineR4000:
		return "mips"
	case MachineSH4:
		return "sh4"
	case MachineARM:
		return "arm"
	case MachineThumb:
		return "thumb"
	case MachineARMNT:
		return "armnt"
	case MachinePowerPC:
		return "powerpc"
	case MachineIA64:
		return "ia64"
	case MachineEBC:
		return "efi-bytecode"
	case MachineRISCV32:
		return "riscv32"
	case MachineRISCV64:
		return "riscv64"
	case MachineAMD64:
		return "amd64"
	case MachineARM64:
		return "arm64"
	default:
		return fmt.Sprintf("other(0x%x)", uint16(m))
	}
}

// Characteristics is the COFF file header flag word.
type Characteristics uint16

const (
	FileRelocsStripped    Characteristics = 0x0001
	FileExecutableImage   Characteristics = 0x0002
	FileLineNumsStripped  Characteristics = 0x0004
	FileLocalSymsStripped Characteristics = 0x0008
	FileLargeAddressAware Characteristics = 0x0020
	FileMachine32Bit      Characteristics = 0x0100
	FileDebugStripped     Characteristics = 0x0200
	FileSystem            Characteristics = 0x1000
	FileDLL               Characteristics = 0x2000
	FileUPSystemOnly      Characteristics = 0x4000
)

func (c Characteristics) String() string {
	names := []struct {
		flag Characteristics
		name string
	}{
		{FileRelocsStripped, "RELOCS_STRIPPED"},
		{FileExecutableImage, "EXECUTABLE_IMAGE"},
		{FileLineNumsStripped, "LINE_NUMS_STRIPPED"},
		{FileLocalSymsStripped, "LOCAL_SYMS_STRIPPED"},
		{FileLargeAddressAware, "LARGE_ADDRESS_AWARE"},
		{FileMachine32Bit, "32BIT_MACHINE"},
		{FileDebugStripped, "DEBUG_STRIPPED"},
		{FileSystem, "SYSTEM"},
		{FileDLL, "DLL"},
		{FileUPSystemOnly, "UP_SYSTEM_ONLY"},
	}
	var out []string
	for _, n := range names {
		if c&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	if len(out) == 0 {
		return "None"
	}
	return strings.Join(out, ", ")
}

// Subsystem is the environment the image expects to run under.
type Subsystem uint16

const (
	SubsystemUnknown                Subsystem = 0
	SubsystemNative                 Subsystem = 1
	SubsystemWindowsGUI             Subsystem = 2
	SubsystemWindowsCUI             Subsystem = 3
	SubsystemOS2CUI                 Subsystem = 5
	SubsystemPosixCUI               Subsystem = 7
	SubsystemWindowsCEGUI           Subsystem = 9
	SubsystemEFIApplication         Subsystem = 10
	SubsystemEFIBootServiceDriver   Subsystem = 11
	SubsystemEFIRuntimeDriver       Subsystem = 12
	SubsystemEFIROM                 Subsystem = 13
	SubsystemXbox                   Subsystem = 14
	SubsystemWindowsBootApplication Subsystem = 16
)

func (s Subsystem) String() string {
	switch s {
	case SubsystemNative:
		return "Native"
	case SubsystemWindowsGUI:
		return "Windows GUI"
	case SubsystemWindowsCUI:
		return "Windows Console"
	case SubsystemOS2CUI:
		return "OS/2 Console"
	case SubsystemPosixCUI:
		return "POSIX Console"
	case SubsystemWindowsCEGUI:
		return "Windows CE GUI"
	case SubsystemEFIApplication:
		return "EFI Application"
	case SubsystemEFIBootServiceDriver:
		return "EFI Boot Service Driver"
	case SubsystemEFIRuntimeDriver:
		return "EFI Runtime Driver"
	case SubsystemEFIROM:
		return "EFI ROM"
	case SubsystemXbox:
		return "Xbox"
	case SubsystemWindowsBootApplication:
		return "Windows Boot Application"
	default:
		return "Unknown"
	}
}

// DLLCharacteristics is the optional header flag word.
type DLLCharacteristics uint16

const (
	DLLHighEntropyVA       DLLCharacteristics = 0x0020
	DLLDynamicBase         DLLCharacteristics = 0x0040
	DLLForceIntegrity      DLLCharacteristics = 0x0080
	DLLNXCompat            DLLCharacteristics = 0x0100
	DLLNoIsolation         DLLCharacteristics = 0x0200
	DLLNoSEH               DLLCharacteristics = 0x0400
	DLLNoBind              DLLCharacteristics = 0x0800
	DLLAppContainer        DLLCharacteristics = 0x1000
	DLLWDMDriver           DLLCharacteristics = 0x2000
	DLLGuardCF             DLLCharacteristics = 0x4000
	DLLTerminalServerAware DLLCharacteristics = 0x8000
)

func (c DLLCharacteristics) String() string {
	names := []struct {
		flag DLLCharacteristics
		name string
	}{
		{DLLHighEntropyVA, "HIGH_ENTROPY_VA"},
		{DLLDynamicBase, "DYNAMIC_BASE"},
		{DLLForceIntegrity, "FORCE_INTEGRITY"},
		{DLLNXCompat, "NX_COMPAT"},
		{DLLNoIsolation, "NO_ISOLATION"},
		{DLLNoSEH, "NO_SEH"},
		{DLLNoBind, "NO_BIND"},
		{DLLAppContainer, "APPCONTAINER"},
		{DLLWDMDriver, "WDM_DRIVER"},
		{DLLGuardCF, "GUARD_CF"},
		{DLLTerminalServerAware, "TERMINAL_SERVER_AWARE"},
	}
	var out []string
	for _, n := range names {
		if c&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	if len(out) == 0 {
		return "None"
	}
	return strings.Join(out, ", ")
}

// SectionFlags is the section header characteristics word.
type SectionFlags uint32

const (
	SectionCntCode              SectionFlags = 0x00000020
	SectionCntInitializedData   SectionFlags = 0x00000040
	SectionCntUninitializedData SectionFlags = 0x00000080
	SectionMemDiscardable       SectionFlags = 0x02000000
	SectionMemNotCached         SectionFlags = 0x04000000
	SectionMemNotPaged          SectionFlags = 0x08000000
	SectionMemShared            SectionFlags = 0x10000000
	SectionMemExecute           SectionFlags = 0x20000000
	SectionMemRead              SectionFlags = 0x40000000
	SectionMemWrite             SectionFlags = 0x80000000
)

func (f SectionFlags) String() string {
	names := []struct {
		flag SectionFlags
		name string
	}{
		{SectionCntCode, "CODE"},
		{SectionCntInitializedData, "INITIALIZED_DATA"},
		{SectionCntUninitializedData, "UNINITIALIZED_DATA"},
		{SectionMemDiscardable, "DISCARDABLE"},
		{SectionMemShared, "SHARED"},
		{SectionMemExecute, "EXECUTABLE"},
		{SectionMemRead, "READABLE"},
		{SectionMemWrite, "WRITABLE"},
	}
	var out []string
	for _, n := range names {
		if f&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	if len(out) == 0 {
		return "None"
	}
	return strings.Join(out, ", ")
}

// DirectoryIndex names a slot in the optional header data-directory array.
type DirectoryIndex int

const (
	DirExport DirectoryIndex = iota
	DirImport
	DirResource
	DirException
	DirSecurity
	DirBaseReloc
	DirDebug
	DirArchitecture
	DirGlobalPtr
	DirTLS
	DirLoadConfig
	DirBoundImport
	DirIAT
	DirDelayImport
	DirCOMDescriptor
	DirReserved

	// NumDirectories is the fixed capacity of the data-directory array.
	NumDirectories = 16
)

var directoryNames = [NumDirectories]string{
	".edata",
	".idata",
	".rsrc",
	".pdata",
	"Certificate",
	".reloc",
	".debug",
	"Architecture",
	"Global Ptr",
	".tls",
	"Load Config",
	"Bound Import",
	"IAT",
	"Delay Import Descriptor",
	".cormeta",
	"Zero",
}

func (d DirectoryIndex) String() string {
	if d >= 0 && int(d) < NumDirectories {
		return directoryNames[d]
	}
	return fmt.Sprintf("DirectoryIndex(%d)", int(d))
}

// ResourceType is the well-known first-level id of a resource tree path.
type ResourceType uint32

const (
	ResCursor       ResourceType = 1
	ResBitmap       ResourceType = 2
	ResIcon         ResourceType = 3
	ResMenu         ResourceType = 4
	ResDialog       ResourceType = 5
	ResString       ResourceType = 6
	ResFontDir      ResourceType = 7
	ResFont         ResourceType = 8
	ResAccelerator  ResourceType = 9
	ResRCData       ResourceType = 10
	ResMessageTable ResourceType = 11
	ResGroupCursor  ResourceType = 12
	ResGroupIcon    ResourceType = 14
	ResVersion      ResourceType = 16
	ResDlgInclude   ResourceType = 17
	ResPlugPlay     ResourceType = 19
	ResVXD          ResourceType = 20
	ResAniCursor    ResourceType = 21
	ResAniIcon      ResourceType = 22
	ResHTML         ResourceType = 23
	ResManifest     ResourceType = 24
)

func (t ResourceType) String() string {
	switch t {
	case ResCursor:
		return "CURSOR"
	case ResBitmap:
		return "BITMAP"
	case ResIcon:
		return "ICON"
	case ResMenu:
		return "MENU"
	case ResDialog:
		return "DIALOG"
	case ResString:
		return "STRING"
	case ResFontDir:
		return "FONTDIR"
	case ResFont:
		return "FONT"
	case ResAccelerator:
		return "ACCELERATOR"
	case ResRCData:
		return "RCDATA"
	case ResMessageTable:
		return "MESSAGETABLE"
	case ResGroupCursor:
		return "GROUP_CURSOR"
	case ResGroupIcon:
		return "GROUP_ICON"
	case ResVersion:
		return "VERSION"
	case ResDlgInclude:
		return "DLGINCLUDE"
	case ResPlugPlay:
		return "PLUGPLAY"
	case ResVXD:
		return "VXD"
	case ResAniCursor:
		return "ANICURSOR"
	case ResAniIcon:
		return "ANIICON"
	case ResHTML:
		return "HTML"
	case ResManifest:
		return "MANIFEST"
	default:
		return fmt.Sprintf("TYPE_%d", uint32(t))
	}
}
