// Package ddcerr defines the error taxonomy shared by every layer of the
// DDC/CI exchange core: transport, codec, single-exchange engine, retry
// driver and multi-part assembler/segmenter all return errors built from
// Kind rather than ad-hoc sentinel values, so the retry driver can classify
// an outcome without type-switching on every package's private error type.
package ddcerr

import "fmt"

// Kind identifies one entry of the protocol's error taxonomy. Two errors
// built from the same Kind compare equal via errors.Is.
type Kind int

const (
	// Unknown is never returned; it is the zero value so an unset Kind is
	// obviously wrong rather than silently matching BusError.
	Unknown Kind = iota

	// Transport errors.
	BusError  // underlying errno from open/ioctl/write/read, or a promoted timeout
	ShortRead // read() returned fewer bytes than requested

	// Framing errors.
	ChecksumError // XOR checksum did not match the trailing byte
	BadByteCount  // length byte's high bit unset, or byte count didn't match declared length
	InvalidData   // malformed-but-not-checksum-wrong frame, or fragment offset overflow

	// Protocol responses (terminal, see spec.md §4.5 TerminalSet).
	NullResponse         // monitor returned a zero-length frame
	AllZeroResponse      // monitor returned an all-zero data frame
	ReportedUnsupported  // monitor's result_code said the feature is unsupported

	// Multi-part.
	MultiPartFragmentMismatch // fragment's reported offset != expected cur_offset

	// Exhaustion.
	RetriesExceeded // retry budget spent without a terminal or Ok outcome

	// Unsupported operations.
	OperationUnsupported // e.g. save-settings issued against a transport that can't do it
)

func (k Kind) String() string {
	switch k {
	case BusError:
		return "BusError"
	case ShortRead:
		return "ShortRead"
	case ChecksumError:
		return "ChecksumError"
	case BadByteCount:
		return "BadByteCount"
	case InvalidData:
		return "InvalidData"
	case NullResponse:
		return "NullResponse"
	case AllZeroResponse:
		return "AllZeroResponse"
	case ReportedUnsupported:
		return "ReportedUnsupported"
	case MultiPartFragmentMismatch:
		return "MultiPartFragmentMismatch"
	case RetriesExceeded:
		return "RetriesExceeded"
	case OperationUnsupported:
		return "OperationUnsupported"
	default:
		return "Unknown"
	}
}

// Terminal reports whether an outcome of this Kind should stop the retry
// driver rather than spend another attempt. Mirrors spec.md §4.5 TerminalSet.
func (k Kind) Terminal() bool {
	switch k {
	case NullResponse, AllZeroResponse, ReportedUnsupported:
		return true
	default:
		return false
	}
}

// Error is the single tagged variant used across the core. Offset fields
// are only meaningful for MultiPartFragmentMismatch; Errno only for
// BusError; Attempts only for RetriesExceeded.
type Error struct {
	Kind Kind

	// Errno is the underlying syscall error for BusError, or nil.
	Errno error

	// Got/Expected carry ShortRead byte counts or MultiPartFragmentMismatch
	// offsets, depending on Kind.
	Got      int
	Expected int

	// Timeout is set when a BusError was promoted from a read deadline
	// rather than a raw errno (spec.md §5).
	Timeout bool

	// Attempts records one Kind per retry-driver attempt, set only on the
	// Error returned for RetriesExceeded (spec.md §7).
	Attempts []Kind

	// msg, when non-empty, overrides the default rendering (used for
	// InvalidData's several distinct causes).
	msg string
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg
	}
	switch e.Kind {
	case BusError:
		if e.Timeout {
			return "ddc: bus error: read timed out"
		}
		if e.Errno != nil {
			return fmt.Sprintf("ddc: bus error: %v", e.Errno)
		}
		return "ddc: bus error"
	case ShortRead:
		return fmt.Sprintf("ddc: short read: got %d bytes, wanted %d", e.Got, e.Expected)
	case MultiPartFragmentMismatch:
		return fmt.Sprintf("ddc: multi-part fragment mismatch: expected offset %d, got %d", e.Expected, e.Got)
	case RetriesExceeded:
		return fmt.Sprintf("ddc: retries exceeded after %d attempts: %v", len(e.Attempts), e.Attempts)
	default:
		return "ddc: " + e.Kind.String()
	}
}

// Is makes errors.Is(err, New(K)) work by comparing Kind alone, ignoring
// the other fields — callers generally want to know "was this a checksum
// error", not "was this the exact same checksum error".
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New builds a plain Error of the given Kind with no extra context.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Busf builds a BusError wrapping errno.
func Busf(errno error) *Error {
	return &Error{Kind: BusError, Errno: errno}
}

// BusTimeout builds a BusError promoted from a read deadline (spec.md §5).
func BusTimeout() *Error {
	return &Error{Kind: BusError, Timeout: true}
}

// ShortReadf builds a ShortRead carrying the observed and wanted byte counts.
func ShortReadf(got, expected int) *Error {
	return &Error{Kind: ShortRead, Got: got, Expected: expected}
}

// Invalid builds an InvalidData error with a specific reason string.
func Invalid(reason string) *Error {
	return &Error{Kind: InvalidData, msg: "ddc: invalid data: " + reason}
}

// FragmentMismatch builds a MultiPartFragmentMismatch.
func FragmentMismatch(expectedOffset, gotOffset int) *Error {
	return &Error{Kind: MultiPartFragmentMismatch, Expected: expectedOffset, Got: gotOffset}
}

// Exhausted builds a RetriesExceeded carrying the per-attempt Kind list.
func Exhausted(attempts []Kind) *Error {
	cp := make([]Kind, len(attempts))
	copy(cp, attempts)
	return &Error{Kind: RetriesExceeded, Attempts: cp}
}
