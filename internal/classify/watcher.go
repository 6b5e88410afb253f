package classify

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-log-sentry/internal/domain"
	"github.com/auto-dns/docker-log-sentry/internal/shutdown"
	"github.com/auto-dns/docker-log-sentry/internal/util"
)

const rawLogSuffix = ".log"

type runningWorker struct {
	name string
	done <-chan struct{}
}

// Watcher polls the capture root for raw log files and starts exactly one
// classifier Worker per file.
type Watcher struct {
	root         string
	pollInterval time.Duration
	slice        time.Duration
	joinTimeout  time.Duration
	coord        *shutdown.Coordinator
	tracker      stateTracker
	logger       zerolog.Logger

	mu      sync.Mutex
	known   map[string]struct{}
	workers []runningWorker
}

func NewWatcher(root string, pollInterval, slice, joinTimeout time.Duration, coord *shutdown.Coordinator, tracker stateTracker, logger zerolog.Logger) *Watcher {
	return &Watcher{
		root:         root,
		pollInterval: pollInterval,
		slice:        slice,
		joinTimeout:  joinTimeout,
		coord:        coord,
		tracker:      tracker,
		logger:       logger,
		known:        make(map[string]struct{}),
	}
}

// Run scans until shutdown and then joins every started worker.
func (w *Watcher) Run() {
	importantDir := filepath.Join(w.root, domain.ImportantDirName)
	if err := os.MkdirAll(importantDir, 0o755); err != nil {
		w.logger.Error().Err(err).Str("dir", importantDir).Msg("Creating important log directory")
	}
	w.logger.Info().Str("dir", w.root).Msgf("Watching for *%s files", rawLogSuffix)

	for !w.coord.Done() {
		w.Scan()
		if w.coord.Wait(w.pollInterval) {
			break
		}
	}
	w.join()
	w.logger.Info().Msg("Directory watcher stopped")
}

// Scan starts workers for raw log files not seen before and returns their names.
func (w *Watcher) Scan() []string {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		w.logger.Debug().Err(err).Msg("Listing capture root")
		return nil
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), rawLogSuffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	w.mu.Lock()
	defer w.mu.Unlock()
	var started []string
	for _, name := range names {
		if _, ok := w.known[name]; ok {
			continue
		}
		worker := NewWorker(w.root, name, w.coord, w.tracker, w.pollInterval, w.slice, w.logger)
		done := util.Go(w.logger, "filter-"+name, worker.Run)
		w.workers = append(w.workers, runningWorker{name: name, done: done})
		w.known[name] = struct{}{}
		started = append(started, name)
	}
	return started
}

// Discovered returns the sorted names of every file a worker was started for.
func (w *Watcher) Discovered() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.known))
	for name := range w.known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Alive returns the names of classifier workers that have not terminated.
func (w *Watcher) Alive() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var alive []string
	for _, rw := range w.workers {
		select {
		case <-rw.done:
		default:
			alive = append(alive, rw.name)
		}
	}
	return alive
}

func (w *Watcher) join() {
	w.mu.Lock()
	workers := append([]runningWorker(nil), w.workers...)
	w.mu.Unlock()

	for _, rw := range workers {
		if !util.Join(rw.done, w.joinTimeout) {
			w.logger.Warn().Str("file", rw.name).Msgf("Filter worker did not stop within %s", w.joinTimeout)
		}
	}
}
