package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/auto-dns/docker-log-sentry/internal/shutdown"
)

// Snapshotter is one database backend.
type Snapshotter interface {
	Name() string
	Snapshot(ctx context.Context, trigger string) (string, error)
	Cleanup(ctx context.Context) ([]string, error)
}

// Runner takes a snapshot with every backend and then prunes every backend.
type Runner struct {
	snapshotters []Snapshotter
	logger       zerolog.Logger
}

func NewRunner(logger zerolog.Logger, snapshotters ...Snapshotter) *Runner {
	return &Runner{snapshotters: snapshotters, logger: logger}
}

// RunAll returns nil when at least one snapshot was taken. Cleanup failures
// are logged and do not affect the result.
func (r *Runner) RunAll(ctx context.Context, trigger string) error {
	r.logger.Info().Msgf("=== Snapshot run starting (trigger=%s) ===", trigger)

	status := make(map[string]string, len(r.snapshotters))
	var errs error
	succeeded := false
	for _, s := range r.snapshotters {
		_, err := s.Snapshot(ctx, trigger)
		switch {
		case err == nil:
			status[s.Name()] = "OK"
			succeeded = true
		case errors.Is(err, ErrSkipped):
			status[s.Name()] = "SKIP"
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		default:
			status[s.Name()] = "FAIL"
			r.logger.Error().Err(err).Msgf("Failed to create %s snapshot", s.Name())
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}

	for _, s := range r.snapshotters {
		deleted, err := s.Cleanup(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msgf("%s cleanup failed", s.Name())
		}
		if len(deleted) > 0 {
			r.logger.Info().Strs("deleted", deleted).Msgf("%s cleanup removed %d snapshot(s)", s.Name(), len(deleted))
		}
	}

	r.logger.Info().Interface("status", status).Msg("=== Snapshot run complete ===")
	if succeeded {
		return nil
	}
	return multierr.Append(ErrNoSnapshot, errs)
}

// RunSchedule runs RunAll("scheduled") at every occurrence of the cron
// expression until coord is triggered.
func (r *Runner) RunSchedule(coord *shutdown.Coordinator, schedule string) error {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", schedule, err)
	}
	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return fmt.Errorf("schedule %q has no future occurrence", schedule)
		}
		r.logger.Info().Time("next", next).Msg("Waiting for next scheduled snapshot")
		if coord.Wait(time.Until(next)) {
			return nil
		}
		if err := r.RunAll(coord.Context(), "scheduled"); err != nil {
			r.logger.Warn().Err(err).Msg("Scheduled snapshot run took no snapshot")
		}
	}
}
