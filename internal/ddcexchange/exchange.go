// Package ddcexchange implements the single-exchange engine of spec.md
// §4.4: one write, or one write-then-read, against a transport. It
// classifies the outcome but never loops — looping is the retry driver's
// job (internal/ddcretry), layered the same way kissserial.go keeps one
// exchange's framing separate from the caller's retry/reconnect policy.
package ddcexchange

import (
	"github.com/kgreenek/ddcutil-go/internal/ddcdelay"
	"github.com/kgreenek/ddcutil-go/internal/ddcerr"
	"github.com/kgreenek/ddcutil-go/internal/ddctransport"
	"github.com/kgreenek/ddcutil-go/internal/ddcwire"
)

// Transport is the subset of ddctransport.I2C the engine depends on,
// narrowed so tests can supply an in-memory fake (the same role
// ptt_test.go's mockGPIODLine plays for PTT).
type Transport interface {
	Write(data []byte) error
	Read(length int) ([]byte, error)
}

// Request describes one frame to send.
type Request struct {
	Kind    ddcwire.Kind
	Opcode  byte
	Payload []byte
}

// WriteOnly encodes and sends req, sleeping around the write per spec.md
// §4.4. It never reads a response.
func WriteOnly(t Transport, delay ddcdelay.Policy, req Request) error {
	frame, err := ddcwire.Encode(req.Kind, req.Opcode, req.Payload)
	if err != nil {
		return err
	}

	delay.Sleep(ddcdelay.PreWrite)
	writeErr := t.Write(frame)
	delay.Sleep(ddcdelay.PostWrite)

	if writeErr != nil {
		delay.Sleep(ddcdelay.PostFailure)
		return writeErr
	}
	return nil
}

// ReadResult is the outcome of a successful WriteRead: exactly one of
// Fragment or NonTable is set.
type ReadResult struct {
	Fragment *ddcwire.Fragment
	NonTable *ddcwire.NonTableVCP
}

// WriteRead encodes and sends req, then reads and decodes exactly one
// response frame of readLen bytes, expecting expectedKind/expectedSubtype.
// allowAllZero controls whether an all-zero response is classified as
// AllZeroResponse here (spec.md §4.4 step 4); when it is true the bytes are
// passed on to ddcwire.Decode, which still rejects them. This layer
// performs exactly one attempt; it does not retry.
func WriteRead(t Transport, delay ddcdelay.Policy, req Request, expectedKind ddcwire.Kind, expectedSubtype byte, readLen int, allowAllZero bool) (ReadResult, error) {
	frame, err := ddcwire.Encode(req.Kind, req.Opcode, req.Payload)
	if err != nil {
		return ReadResult{}, err
	}

	delay.Sleep(ddcdelay.PreWrite)
	writeErr := t.Write(frame)
	if writeErr != nil {
		delay.Sleep(ddcdelay.PostFailure)
		return ReadResult{}, writeErr
	}
	delay.Sleep(ddcdelay.PostWrite)

	resp, readErr := t.Read(readLen)
	delay.Sleep(ddcdelay.PostRead)
	if readErr != nil {
		delay.Sleep(ddcdelay.PostFailure)
		return ReadResult{}, readErr
	}

	if len(resp) == 0 {
		delay.Sleep(ddcdelay.PostFailure)
		return ReadResult{}, ddcerr.New(ddcerr.NullResponse)
	}

	allZero := true
	for _, b := range resp {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero && !allowAllZero {
		delay.Sleep(ddcdelay.PostFailure)
		return ReadResult{}, ddcerr.New(ddcerr.AllZeroResponse)
	}

	frag, nonTable, decodeErr := ddcwire.Decode(expectedKind, expectedSubtype, resp)
	if decodeErr != nil {
		delay.Sleep(ddcdelay.PostFailure)
		return ReadResult{}, decodeErr
	}

	if nonTable != nil && nonTable.Unsupported {
		delay.Sleep(ddcdelay.PostFailure)
		return ReadResult{}, ddcerr.New(ddcerr.ReportedUnsupported)
	}

	return ReadResult{Fragment: frag, NonTable: nonTable}, nil
}
