package capture

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-log-sentry/internal/domain"
	"github.com/auto-dns/docker-log-sentry/internal/shutdown"
	"github.com/auto-dns/docker-log-sentry/internal/util"
)

type runningWorker struct {
	target domain.ContainerTarget
	done   <-chan struct{}
}

// Manager starts one capture Worker per configured container and supervises
// their shutdown.
type Manager struct {
	logDir  string
	backoff time.Duration
	source  LogSource
	coord   *shutdown.Coordinator
	tracker stateTracker
	logger  zerolog.Logger

	mu      sync.Mutex
	workers []runningWorker
}

func NewManager(logDir string, backoff time.Duration, source LogSource, coord *shutdown.Coordinator, tracker stateTracker, logger zerolog.Logger) *Manager {
	return &Manager{
		logDir:  logDir,
		backoff: backoff,
		source:  source,
		coord:   coord,
		tracker: tracker,
		logger:  logger,
	}
}

// Start launches a worker for every non-empty name. Names that map to a raw
// log file already owned by another worker are skipped.
func (m *Manager) Start(names []string) []domain.ContainerTarget {
	if err := os.MkdirAll(m.logDir, 0o755); err != nil {
		m.logger.Error().Err(err).Str("dir", m.logDir).Msg("Creating log directory; workers will retry")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	owned := make(map[string]string, len(m.workers))
	for _, rw := range m.workers {
		owned[rw.target.RawLogPath] = rw.target.Name
	}

	var started []domain.ContainerTarget
	for _, name := range util.Map(names, strings.TrimSpace) {
		if name == "" {
			continue
		}
		target := domain.NewContainerTarget(m.logDir, name)
		if owner, ok := owned[target.RawLogPath]; ok {
			m.logger.Warn().Str("container", name).Str("owner", owner).Msg("Raw log file already captured by another target, skipping")
			continue
		}
		owned[target.RawLogPath] = name

		w := NewWorker(target, m.source, m.coord, m.tracker, m.backoff, m.logger)
		if m.tracker != nil {
			m.tracker.Set(name, domain.WorkerStateAttaching)
		}
		done := util.Go(m.logger, "capture-"+name, w.Run)
		m.workers = append(m.workers, runningWorker{target: target, done: done})
		started = append(started, target)
	}
	return started
}

// Alive returns the names of workers that have not terminated.
func (m *Manager) Alive() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var alive []string
	for _, rw := range m.workers {
		select {
		case <-rw.done:
		default:
			alive = append(alive, rw.target.Name)
		}
	}
	return alive
}

// Shutdown sets the shutdown signal and waits up to timeout for each worker.
// Workers that overrun are abandoned.
func (m *Manager) Shutdown(timeout time.Duration) {
	m.coord.Trigger()

	m.mu.Lock()
	workers := append([]runningWorker(nil), m.workers...)
	m.mu.Unlock()

	for _, rw := range workers {
		if !util.Join(rw.done, timeout) {
			m.logger.Warn().Str("container", rw.target.Name).Msgf("Capture worker did not stop within %s", timeout)
		}
	}
}
