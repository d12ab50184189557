package pefile

import (
	"errors"
	"fmt"
)

// Decoding error taxonomy. Required-header failures abort Parse entirely;
// directory-level failures are recorded on the affected directory and the
// model still completes.
var (
	// ErrOutOfBounds means a read would exceed the buffer extent.
	ErrOutOfBounds = errors.New("read out of bounds")

	// ErrUnsupportedFormat means an unrecognized magic or machine type.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrMalformedHeader means internally inconsistent counts or sizes in
	// required header fields.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrUnmappedAddress means an RVA has no covering section. Depending on
	// context this can be benign: some RVAs reference header-region data.
	ErrUnmappedAddress = errors.New("address not mapped by any section")
)

// FormatError carries the file offset at which decoding failed, in the manner
// of the on-disk format: everything is located by offsets, so the offset is
// the most useful piece of context an error can hold.
type FormatError struct {
	Offset int64
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("offset 0x%x: %s: %v", e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("offset 0x%x: %v", e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErr(offset int64, err error, format string, args ...any) *FormatError {
	return &FormatError{Offset: offset, Msg: fmt.Sprintf(format, args...), Err: err}
}
