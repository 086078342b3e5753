// Package ddcretry implements the bounded retry loop of spec.md §4.5: it
// calls a single-exchange operation up to max_tries times, classifying
// each outcome to decide whether another attempt is worthwhile, and
// records the final result into a stats registry.
package ddcretry

import (
	"errors"

	"github.com/kgreenek/ddcutil-go/internal/ddcdelay"
	"github.com/kgreenek/ddcutil-go/internal/ddcerr"
	"github.com/kgreenek/ddcutil-go/internal/ddcstats"
)

// MinTries and MaxTries bound a configured max_tries value (spec.md §4.5).
const (
	MinTries = 1
	MaxTries = 15
)

// Recorder is the subset of *ddcstats.Registry the driver needs, narrowed
// so tests can substitute a spy.
type Recorder interface {
	Record(class ddcstats.Class, outcome ddcstats.Outcome, tries int)
}

// Do runs exchange up to maxTries times, stopping early on a terminal
// classification (spec.md §4.5 TerminalSet) or on success, sleeping
// delay.Sleep(PreRetry) between attempts that will be retried. It records
// exactly one outcome to stats for the whole logical operation.
//
// exchange must return a *ddcerr.Error (or an error wrapping one) on
// failure so Do can classify it; any other error type is treated as
// non-terminal, BusError-equivalent.
func Do[T any](stats Recorder, delay ddcdelay.Policy, class ddcstats.Class, maxTries int, exchange func() (T, error)) (T, error) {
	if maxTries < MinTries {
		maxTries = MinTries
	}
	if maxTries > MaxTries {
		maxTries = MaxTries
	}

	var tryStatus []ddcerr.Kind

	for tryCtr := 0; tryCtr < maxTries; tryCtr++ {
		result, err := exchange()
		if err == nil {
			stats.Record(class, ddcstats.Success, tryCtr+1)
			return result, nil
		}

		kind := classify(err)
		tryStatus = append(tryStatus, kind)

		if kind.Terminal() {
			stats.Record(class, ddcstats.Fatal, tryCtr+1)
			return result, err
		}

		if tryCtr+1 < maxTries {
			delay.Sleep(ddcdelay.PreRetry)
		}
	}

	stats.Record(class, ddcstats.RetriesExceeded, maxTries)
	var zero T
	return zero, ddcerr.Exhausted(tryStatus)
}

func classify(err error) ddcerr.Kind {
	var de *ddcerr.Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ddcerr.BusError
}
