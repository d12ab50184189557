package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	flag "github.com/spf13/pflag"

	"github.com/neko-neko-nyan/libpe/pefile"
)

const versionString = "pedump, version 1.0"

type Config struct {
	Dump            bool
	JSON            bool
	UnpackDOSCode   bool
	UnpackDirectory int
	UnpackSection   string
	UnpackResources bool
	OutputDir       string
	Verbose         bool
	Parallel        bool
	MaxWorkers      int
	ShowVersion     bool
}

var config = &Config{}

var (
	doDump          = flag.BoolP("dump", "d", false, "Print the decoded image structure")
	doJSON          = flag.BoolP("json", "J", false, "Print the decoded image structure as JSON")
	unpackDOSCode   = flag.Bool("unpack-dos-code", false, "Extract the DOS stub program")
	unpackDirectory = flag.IntP("unpack-data-directory", "F", -1, "Extract the data directory with the given index")
	unpackSection   = flag.StringP("unpack-section", "S", "", "Extract the raw data of the named section")
	unpackResources = flag.BoolP("unpack-resources", "R", false, "Extract every resource leaf")
	outputDir       = flag.StringP("output", "O", ".", "Directory extracted files are written to")
	verbose         = flag.BoolP("verbose", "v", false, "Enable verbose output")
	parallel        = flag.BoolP("parallel", "j", false, "Process files in parallel")
	maxWorkers      = flag.Int("workers", 4, "Maximum number of parallel workers")
	showVersion     = flag.Bool("version", false, "Display version information and exit")
)

// ProcessResult is the outcome of decoding one input file. Output is rendered
// up front so parallel workers never interleave their prints.
type ProcessResult struct {
	Filename  string
	Output    string
	Extracted []string
	Error     error
}

func parseFlags() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] FILE...\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Decode PE and EFI images: dump headers and directories, extract parts.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Options:")
		flag.PrintDefaults()
	}
	flag.Parse()

	config.Dump = *doDump
	config.JSON = *doJSON
	config.UnpackDOSCode = *unpackDOSCode
	config.UnpackDirectory = *unpackDirectory
	config.UnpackSection = *unpackSection
	config.UnpackResources = *unpackResources
	config.OutputDir = *outputDir
	config.Verbose = *verbose
	config.Parallel = *parallel
	config.MaxWorkers = *maxWorkers
	config.ShowVersion = *showVersion

	if config.MaxWorkers < 1 {
		config.MaxWorkers = 1
	}
	if config.MaxWorkers > 16 {
		config.MaxWorkers = 16
	}
	// Dumping is the default action.
	if !config.JSON && !config.UnpackDOSCode && config.UnpackDirectory < 0 &&
		config.UnpackSection == "" && !config.UnpackResources {
		config.Dump = true
	}
}

func processFile(filename string) *ProcessResult {
	result := &ProcessResult{Filename: filename}

	data, err := os.ReadFile(filename)
	if err != nil {
		result.Error = err
		return result
	}

	f, err := pefile.Parse(data)
	if err != nil {
		result.Error = fmt.Errorf("decode: %w", err)
		return result
	}

	var out strings.Builder
	if config.Dump {
		dumpText(&out, filename, f, int64(len(data)))
	}
	if config.JSON {
		if err := dumpJSON(&out, filename, f, int64(len(data))); err != nil {
			result.Error = err
			return result
		}
	}
	result.Output = out.String()

	if err := extract(result, f, data); err != nil {
		result.Error = err
	}
	return result
}

func extract(result *ProcessResult, f *pefile.File, data []byte) error {
	base := strings.TrimSuffix(filepath.Base(result.Filename), filepath.Ext(result.Filename))

	if config.UnpackDOSCode {
		stub := f.DOSStubData()
		if len(stub) == 0 {
			return fmt.Errorf("image has no DOS stub")
		}
		if err := writeBlob(result, base+".dos_code.bin", stub); err != nil {
			return err
		}
	}

	if idx := config.UnpackDirectory; idx >= 0 {
		if idx >= pefile.NumDirectories {
			return fmt.Errorf("data directory index %d out of range", idx)
		}
		blob, err := f.DirectoryData(pefile.DirectoryIndex(idx))
		if err != nil {
			return err
		}
		name := fmt.Sprintf("%s.dir%d.bin", base, idx)
		if err := writeBlob(result, name, blob); err != nil {
			return err
		}
	}

	if config.UnpackSection != "" {
		blob, err := f.SectionData(config.UnpackSection)
		if err != nil {
			return err
		}
		name := base + "." + sanitize(config.UnpackSection) + ".bin"
		if err := writeBlob(result, name, blob); err != nil {
			return err
		}
	}

	if config.UnpackResources {
		for _, res := range f.ResourceList() {
			end := res.Offset + int64(res.Size)
			if end > int64(len(data)) {
				continue
			}
			name := fmt.Sprintf("%s.rsrc.%s.%s.%d.bin",
				base, sanitize(res.Type.String()), sanitize(res.Name), res.Language)
			if err := writeBlob(result, name, data[res.Offset:end]); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeBlob(result *ProcessResult, name string, blob []byte) error {
	path := filepath.Join(config.OutputDir, name)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return err
	}
	result.Extracted = append(result.Extracted, path)
	return nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.', ' ':
			return '_'
		}
		return r
	}, strings.TrimPrefix(name, "."))
}

func processSequential(filenames []string) []ProcessResult {
	results := make([]ProcessResult, 0, len(filenames))
	for _, filename := range filenames {
		results = append(results, *processFile(filename))
	}
	return results
}

func processParallel(filenames []string) []ProcessResult {
	jobs := make(chan string, len(filenames))
	out := make(chan ProcessResult, len(filenames))

	var wg sync.WaitGroup
	for i := 0; i < config.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for filename := range jobs {
				out <- *processFile(filename)
			}
		}()
	}

	go func() {
		for _, filename := range filenames {
			jobs <- filename
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	var results []ProcessResult
	for r := range out {
		results = append(results, r)
	}
	return results
}

func main() {
	parseFlags()

	if config.ShowVersion {
		fmt.Println(versionString)
		os.Exit(0)
	}

	filenames := flag.Args()
	if len(filenames) == 0 {
		flag.Usage()
		os.Exit(0)
	}

	var results []ProcessResult
	if config.Parallel && len(filenames) > 1 {
		if config.Verbose {
			fmt.Fprintf(os.Stderr, "processing %d files with %d workers\n", len(filenames), config.MaxWorkers)
		}
		results = processParallel(filenames)
	} else {
		results = processSequential(filenames)
	}

	failed := 0
	for _, r := range results {
		if r.Output != "" {
			fmt.Print(r.Output)
		}
		if config.Verbose {
			for _, path := range r.Extracted {
				fmt.Fprintf(os.Stderr, "wrote %s\n", path)
			}
		}
		if r.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %s: %v\n", os.Args[0], r.Filename, r.Error)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}
