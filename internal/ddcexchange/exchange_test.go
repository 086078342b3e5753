package ddcexchange_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgreenek/ddcutil-go/internal/ddcdelay"
	"github.com/kgreenek/ddcutil-go/internal/ddcerr"
	"github.com/kgreenek/ddcutil-go/internal/ddcexchange"
	"github.com/kgreenek/ddcutil-go/internal/ddcretry"
	"github.com/kgreenek/ddcutil-go/internal/ddcstats"
	"github.com/kgreenek/ddcutil-go/internal/ddcwire"
)

// fakeTransport is an in-memory double standing in for the real I2C
// device, the same role a mock serial port plays in the teacher's own
// exchange-layer tests.
type fakeTransport struct {
	writes    [][]byte
	writeErr  error
	readResp  []byte
	readErr   error
}

func (f *fakeTransport) Write(data []byte) error {
	f.writes = append(f.writes, append([]byte(nil), data...))
	return f.writeErr
}

func (f *fakeTransport) Read(length int) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.readResp, nil
}

func respFrame(t *testing.T, data []byte) []byte {
	t.Helper()
	frame := append([]byte{0x6E, 0x80 | byte(len(data))}, data...)
	checksum := ddcwire.Checksum(append([]byte{0x50, frame[0], frame[1]}, data...))
	return append(frame, checksum)
}

func TestWriteOnly_PropagatesWriteError(t *testing.T) {
	ft := &fakeTransport{writeErr: ddcerr.Busf(assertErr{})}
	err := ddcexchange.WriteOnly(ft, ddcdelay.Zero{}, ddcexchange.Request{Kind: ddcwire.SaveSettingsRequest})
	require.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestWriteOnly_Success(t *testing.T) {
	ft := &fakeTransport{}
	err := ddcexchange.WriteOnly(ft, ddcdelay.Zero{}, ddcexchange.Request{Kind: ddcwire.SaveSettingsRequest})
	require.NoError(t, err)
	require.Len(t, ft.writes, 1)
}

func TestWriteRead_GetVCPHappyPath(t *testing.T) {
	data := []byte{0x02, 0x10, 0x00, 0x00, 0x00, 0x64, 0x00, 0x32}
	ft := &fakeTransport{readResp: respFrame(t, data)}

	result, err := ddcexchange.WriteRead(ft, ddcdelay.Zero{}, ddcexchange.Request{
		Kind:   ddcwire.GetVCPRequest,
		Opcode: 0x10,
	}, ddcwire.GetVCPResponse, 0x10, 11, false)

	require.NoError(t, err)
	require.NotNil(t, result.NonTable)
	assert.EqualValues(t, 100, result.NonTable.MaxValue)
	assert.EqualValues(t, 50, result.NonTable.CurrentValue)
}

func TestWriteRead_NullResponseFromZeroByteRead(t *testing.T) {
	ft := &fakeTransport{readResp: nil}

	_, err := ddcexchange.WriteRead(ft, ddcdelay.Zero{}, ddcexchange.Request{
		Kind: ddcwire.GetVCPRequest, Opcode: 0x10,
	}, ddcwire.GetVCPResponse, 0x10, 11, false)

	require.Error(t, err)
	assert.ErrorIs(t, err, ddcerr.New(ddcerr.NullResponse))
}

func TestWriteRead_UnsupportedFeatureIsTerminal(t *testing.T) {
	data := []byte{0x02, 0xDF, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}
	ft := &fakeTransport{readResp: respFrame(t, data)}

	_, err := ddcexchange.WriteRead(ft, ddcdelay.Zero{}, ddcexchange.Request{
		Kind: ddcwire.GetVCPRequest, Opcode: 0xDF,
	}, ddcwire.GetVCPResponse, 0xDF, 11, false)

	require.Error(t, err)
	assert.ErrorIs(t, err, ddcerr.New(ddcerr.ReportedUnsupported))
}

func TestWriteRead_PropagatesTransportReadError(t *testing.T) {
	ft := &fakeTransport{readErr: ddcerr.Busf(assertErr{})}

	_, err := ddcexchange.WriteRead(ft, ddcdelay.Zero{}, ddcexchange.Request{
		Kind: ddcwire.GetVCPRequest, Opcode: 0x10,
	}, ddcwire.GetVCPResponse, 0x10, 11, false)

	require.Error(t, err)
	var de *ddcerr.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ddcerr.BusError, de.Kind)
}

// sequencedTransport returns a different canned response on each Read
// call, used to simulate a monitor that glitches once before replying
// correctly.
type sequencedTransport struct {
	reads [][]byte
	call  int
}

func (s *sequencedTransport) Write(data []byte) error { return nil }

func (s *sequencedTransport) Read(length int) ([]byte, error) {
	resp := s.reads[s.call]
	if s.call < len(s.reads)-1 {
		s.call++
	}
	return resp, nil
}

// TestGetVCPWithOneRetry implements spec.md §8's "Get-VCP with one
// retry": the first exchange's response fails checksum validation, the
// retry driver retries, and the second attempt succeeds.
func TestGetVCPWithOneRetry(t *testing.T) {
	data := []byte{0x02, 0x10, 0x00, 0x00, 0x00, 0x64, 0x00, 0x32}
	good := respFrame(t, data)
	bad := append([]byte(nil), good...)
	bad[len(bad)-1] ^= 0xFF

	ft := &sequencedTransport{reads: [][]byte{bad, good}}
	var stats spyRecorder

	result, err := ddcretry.Do(&stats, ddcdelay.Zero{}, ddcstats.WriteRead, 4, func() (ddcexchange.ReadResult, error) {
		return ddcexchange.WriteRead(ft, ddcdelay.Zero{}, ddcexchange.Request{
			Kind: ddcwire.GetVCPRequest, Opcode: 0x10,
		}, ddcwire.GetVCPResponse, 0x10, 11, false)
	})

	require.NoError(t, err)
	require.NotNil(t, result.NonTable)
	assert.EqualValues(t, 50, result.NonTable.CurrentValue)
	assert.Equal(t, 2, ft.call+1)
	assert.Equal(t, ddcstats.Success, stats.outcome)
	assert.Equal(t, 2, stats.tries)
}

// TestRetriesExceeded implements spec.md §8's "Retries exceeded": every
// attempt fails with a non-terminal error, so the driver reports
// RetriesExceeded after exhausting max_tries.
func TestRetriesExceeded(t *testing.T) {
	bad := respFrame(t, []byte{0x02, 0x10, 0x00, 0x00, 0x00, 0x64, 0x00, 0x32})
	bad[len(bad)-1] ^= 0xFF

	ft := &sequencedTransport{reads: [][]byte{bad}}
	var stats spyRecorder

	_, err := ddcretry.Do(&stats, ddcdelay.Zero{}, ddcstats.WriteRead, 3, func() (ddcexchange.ReadResult, error) {
		return ddcexchange.WriteRead(ft, ddcdelay.Zero{}, ddcexchange.Request{
			Kind: ddcwire.GetVCPRequest, Opcode: 0x10,
		}, ddcwire.GetVCPResponse, 0x10, 11, false)
	})

	require.Error(t, err)
	assert.Equal(t, ddcstats.RetriesExceeded, stats.outcome)
	var de *ddcerr.Error
	require.ErrorAs(t, err, &de)
	assert.Len(t, de.Attempts, 3)
}

type spyRecorder struct {
	outcome ddcstats.Outcome
	tries   int
}

func (s *spyRecorder) Record(class ddcstats.Class, outcome ddcstats.Outcome, tries int) {
	s.outcome = outcome
	s.tries = tries
}
