package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-log-sentry/internal/capture"
	"github.com/auto-dns/docker-log-sentry/internal/classify"
	"github.com/auto-dns/docker-log-sentry/internal/config"
	"github.com/auto-dns/docker-log-sentry/internal/domain"
	"github.com/auto-dns/docker-log-sentry/internal/registry"
	"github.com/auto-dns/docker-log-sentry/internal/shutdown"
	"github.com/auto-dns/docker-log-sentry/internal/state"
	"github.com/auto-dns/docker-log-sentry/internal/util"
)

const registryCloseTimeout = 5 * time.Second

// Engine runs the capture-and-classify pipeline: capture workers feed raw log
// files, the directory watcher picks them up, and classifier workers write the
// important lines.
type Engine struct {
	logger   zerolog.Logger
	cfg      *config.Config
	source   capture.LogSource
	registry registry.Registry
	hostname string

	captureState *state.MemoryState
	filterState  *state.MemoryState
}

// NewEngine wires an engine. reg may be nil, in which case heartbeats are
// only logged.
func NewEngine(logger zerolog.Logger, cfg *config.Config, source capture.LogSource, reg registry.Registry, hostname string) *Engine {
	return &Engine{
		logger:       logger,
		cfg:          cfg,
		source:       source,
		registry:     reg,
		hostname:     hostname,
		captureState: state.NewMemoryState(),
		filterState:  state.NewMemoryState(),
	}
}

// CaptureState exposes the per-container worker states.
func (e *Engine) CaptureState() *state.MemoryState { return e.captureState }

// FilterState exposes the per-file classifier worker states.
func (e *Engine) FilterState() *state.MemoryState { return e.filterState }

// Run blocks until ctx is cancelled, then stops every worker within the
// configured join timeouts. A graceful shutdown returns nil.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().Str("log_dir", e.cfg.App.LogDir).Msg("Starting pipeline engine")
	coord := shutdown.New(ctx)
	defer coord.Trigger()

	manager := capture.NewManager(e.cfg.App.LogDir, e.cfg.Backoff(), e.source, coord, e.captureState, e.logger)
	watcher := classify.NewWatcher(
		e.cfg.App.LogDir,
		e.cfg.App.PollDuration(),
		e.cfg.App.TailSlice(),
		e.cfg.App.FilterJoinDuration(),
		coord,
		e.filterState,
		e.logger,
	)

	started := manager.Start(e.cfg.App.TargetNames())
	e.logger.Info().Strs("containers", util.Map(started, targetName)).Msg("Capture workers started")

	watcherDone := util.Go(e.logger, "watcher", watcher.Run)

	e.heartbeatLoop(coord, manager)

	e.logger.Info().Msg("Pipeline engine shutting down")
	manager.Shutdown(e.cfg.App.CaptureJoinDuration())

	// The watcher joins its own workers; allow one filter join per file plus one for the watcher loop.
	watcherBudget := e.cfg.App.FilterJoinDuration() * time.Duration(len(watcher.Discovered())+1)
	if !util.Join(watcherDone, watcherBudget) {
		e.logger.Warn().Msgf("Directory watcher did not stop within %s", watcherBudget)
	}

	if e.registry != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), registryCloseTimeout)
		defer cancel()
		if err := e.registry.Close(closeCtx); err != nil {
			e.logger.Error().Err(err).Msg("Error closing registry")
		}
	}
	e.logger.Info().Msg("Pipeline engine stopped")
	return nil
}

func (e *Engine) heartbeatLoop(coord *shutdown.Coordinator, manager *capture.Manager) {
	interval := e.cfg.App.HeartbeatDuration()
	if interval <= 0 {
		<-coord.C()
		return
	}
	for !coord.Wait(interval) {
		e.heartbeat(coord.Context(), manager.Alive())
	}
}

func (e *Engine) heartbeat(ctx context.Context, alive []string) {
	e.logger.Info().Msgf("Heartbeat: active capture workers: %v", alive)
	if e.registry == nil {
		return
	}
	hb := registry.Heartbeat{
		Alive:   alive,
		Workers: e.captureState.Snapshot(),
		Updated: time.Now().UTC(),
	}
	if err := e.registry.Publish(ctx, hb); err != nil {
		e.logger.Error().Err(err).Msg("Error publishing heartbeat")
	}
}

func targetName(t domain.ContainerTarget) string {
	return t.Name
}
