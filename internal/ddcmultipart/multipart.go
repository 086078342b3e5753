// Package ddcmultipart implements the multi-part read assembler and write
// segmenter of spec.md §4.6–§4.7: Capabilities/Table-feature reads arrive
// as a sequence of offset-tagged fragments terminated by a zero-length
// fragment, and Table writes are split the same way in reverse.
package ddcmultipart

import (
	"bytes"

	"github.com/kgreenek/ddcutil-go/internal/ddcdelay"
	"github.com/kgreenek/ddcutil-go/internal/ddcerr"
	"github.com/kgreenek/ddcutil-go/internal/ddcretry"
	"github.com/kgreenek/ddcutil-go/internal/ddcstats"
	"github.com/kgreenek/ddcutil-go/internal/ddcwire"
)

// maxFragmentOffset is the overflow boundary of spec.md §3
// ("offset + length ≤ 65535").
const maxFragmentOffset = 65535

// readFrameLen is 6 (addr+len+reply+vcp+off_hi+off_lo... ) rounded up per
// spec.md §4.6: "read_len = 6 + 32 + 1 = 39", i.e. header overhead plus the
// largest possible fragment plus the checksum byte.
const readFrameLen = 6 + 32 + 1

// initialAccumulatorSize is the starting capacity of the Capabilities
// accumulator (spec.md §4.6 "starts at 2048 bytes and grows as needed").
const initialAccumulatorSize = 2048

// fragmentExchange performs one write-read attempt for a multi-part read
// fragment at the given offset; it is what the retry driver retries.
type fragmentExchange func(offset int) (ddcwire.Fragment, error)

// ReadAssembler drives the state machine of spec.md §4.6 above the retry
// driver: exchange performs a single write-read attempt, and ReadAssembler
// wraps each call to it in ddcretry.Do, so each fragment gets its own retry
// budget (spec.md: "Each fragment is an independent retried exchange").
func ReadAssembler(stats ddcretry.Recorder, delay ddcdelay.Policy, class ddcstats.Class, maxTries int, allowAllZeroFirstFragment bool, exchange func(offset int, allowAllZero bool) (ddcwire.Fragment, error)) ([]byte, error) {
	acc := bytes.NewBuffer(make([]byte, 0, initialAccumulatorSize))
	curOffset := 0
	allowAllZero := allowAllZeroFirstFragment

	for {
		offset := curOffset
		firstAllowAllZero := allowAllZero

		frag, err := ddcretry.Do(stats, delay, class, maxTries, func() (ddcwire.Fragment, error) {
			return exchange(offset, firstAllowAllZero)
		})
		if err != nil {
			return nil, err
		}

		if frag.Offset != curOffset {
			// Propagate without restarting: spec.md §9 Open Question
			// resolution — the enclosing caller (not this assembler) may
			// choose to re-issue the whole read.
			return nil, ddcerr.FragmentMismatch(curOffset, frag.Offset)
		}

		if len(frag.Bytes) == 0 {
			return acc.Bytes(), nil
		}

		if curOffset+len(frag.Bytes) > maxFragmentOffset {
			return nil, ddcerr.Invalid("fragment offset overflow")
		}

		acc.Write(frag.Bytes)
		curOffset += len(frag.Bytes)
		allowAllZero = false
	}
}

// writeFragment is one ≤28-byte slice of a Table write's value, tagged
// with its byte offset.
type writeFragment struct {
	offset int
	data   []byte
}

// maxWriteFragment is 32 minus the 4 bytes of opcode/offset overhead
// (spec.md §4.7).
const maxWriteFragment = 28

// splitWriteFragments splits value into maxWriteFragment-byte chunks with
// byte-counted (not fragment-counted) offsets, plus a trailing zero-length
// fragment to signal completion.
func splitWriteFragments(value []byte) []writeFragment {
	var frags []writeFragment
	offset := 0
	for offset < len(value) {
		end := offset + maxWriteFragment
		if end > len(value) {
			end = len(value)
		}
		frags = append(frags, writeFragment{offset: offset, data: value[offset:end]})
		offset = end
	}
	frags = append(frags, writeFragment{offset: offset, data: nil})
	return frags
}

// WriteSegmenter drives the writer side of spec.md §4.7: splits value into
// ≤28-byte offset-tagged fragments, invoking exchange (one retried
// write_only per fragment) for each, then a final zero-length write to
// signal completion. Aborts and propagates on the first fatal sub-write
// failure; partial writes remain visible to the monitor, a protocol
// limitation rather than something this layer can recover from.
func WriteSegmenter(stats ddcretry.Recorder, delay ddcdelay.Policy, class ddcstats.Class, maxTries int, value []byte, exchange func(offset int, data []byte) error) error {
	for _, frag := range splitWriteFragments(value) {
		frag := frag
		_, err := ddcretry.Do(stats, delay, class, maxTries, func() (struct{}, error) {
			return struct{}{}, exchange(frag.offset, frag.data)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
