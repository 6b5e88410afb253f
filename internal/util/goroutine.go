package util

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

// Go runs fn on its own goroutine. A panic inside fn is recovered and logged
// so one worker can never take the process down. The returned channel is
// closed once fn has returned.
func Go(logger zerolog.Logger, name string, fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		var pc panics.Catcher
		pc.Try(fn)
		if r := pc.Recovered(); r != nil {
			logger.Error().Err(r.AsError()).Str("worker", name).Msg("Worker panicked")
		}
	}()
	return done
}

// Join waits at most timeout for done to close and reports whether it did.
func Join(done <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
