package ddcretry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgreenek/ddcutil-go/internal/ddcdelay"
	"github.com/kgreenek/ddcutil-go/internal/ddcerr"
	"github.com/kgreenek/ddcutil-go/internal/ddcretry"
	"github.com/kgreenek/ddcutil-go/internal/ddcstats"
)

type spyRecorder struct {
	class   ddcstats.Class
	outcome ddcstats.Outcome
	tries   int
	calls   int
}

func (s *spyRecorder) Record(class ddcstats.Class, outcome ddcstats.Outcome, tries int) {
	s.class = class
	s.outcome = outcome
	s.tries = tries
	s.calls++
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	spy := &spyRecorder{}
	attempts := 0

	result, err := ddcretry.Do(spy, ddcdelay.Zero{}, ddcstats.WriteRead, 4, func() (int, error) {
		attempts++
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, spy.calls)
	assert.Equal(t, ddcstats.Success, spy.outcome)
	assert.Equal(t, 1, spy.tries)
}

func TestDo_SucceedsAfterRetryableFailures(t *testing.T) {
	spy := &spyRecorder{}
	attempts := 0

	result, err := ddcretry.Do(spy, ddcdelay.Zero{}, ddcstats.WriteRead, 4, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, ddcerr.New(ddcerr.ChecksumError)
		}
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, result)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, ddcstats.Success, spy.outcome)
	assert.Equal(t, 3, spy.tries)
}

func TestDo_StopsImmediatelyOnTerminalError(t *testing.T) {
	spy := &spyRecorder{}
	attempts := 0

	_, err := ddcretry.Do(spy, ddcdelay.Zero{}, ddcstats.WriteRead, 4, func() (int, error) {
		attempts++
		return 0, ddcerr.New(ddcerr.ReportedUnsupported)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ddcerr.New(ddcerr.ReportedUnsupported))
	assert.Equal(t, 1, attempts, "a terminal error must not be retried")
	assert.Equal(t, ddcstats.Fatal, spy.outcome)
}

func TestDo_ExhaustsRetriesForNonTerminalErrors(t *testing.T) {
	spy := &spyRecorder{}
	attempts := 0

	_, err := ddcretry.Do(spy, ddcdelay.Zero{}, ddcstats.WriteRead, 4, func() (int, error) {
		attempts++
		return 0, ddcerr.New(ddcerr.ChecksumError)
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, ddcstats.RetriesExceeded, spy.outcome)

	var de *ddcerr.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ddcerr.RetriesExceeded, de.Kind)
	assert.Len(t, de.Attempts, 4)
	for _, k := range de.Attempts {
		assert.Equal(t, ddcerr.ChecksumError, k)
	}
}

func TestDo_ClampsMaxTriesToBounds(t *testing.T) {
	spy := &spyRecorder{}
	attempts := 0

	_, err := ddcretry.Do(spy, ddcdelay.Zero{}, ddcstats.WriteRead, 0, func() (int, error) {
		attempts++
		return 0, ddcerr.New(ddcerr.ChecksumError)
	})
	require.Error(t, err)
	assert.Equal(t, ddcretry.MinTries, attempts)

	attempts = 0
	_, err = ddcretry.Do(spy, ddcdelay.Zero{}, ddcstats.WriteRead, 9000, func() (int, error) {
		attempts++
		return 0, ddcerr.New(ddcerr.ChecksumError)
	})
	require.Error(t, err)
	assert.Equal(t, ddcretry.MaxTries, attempts)
}

func TestDo_NonDdcerrTreatedAsNonTerminalBusError(t *testing.T) {
	spy := &spyRecorder{}
	attempts := 0

	_, err := ddcretry.Do(spy, ddcdelay.Zero{}, ddcstats.WriteOnly, 2, func() (int, error) {
		attempts++
		return 0, assert.AnError
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, ddcstats.RetriesExceeded, spy.outcome)
}
