package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/auto-dns/docker-log-sentry/internal/domain"
	"github.com/auto-dns/docker-log-sentry/internal/shutdown"
)

// Worker owns the write side of one container's raw log file. It cycles
// through attaching, streaming and retrying until shutdown.
type Worker struct {
	target  domain.ContainerTarget
	source  LogSource
	coord   *shutdown.Coordinator
	tracker stateTracker
	backoff time.Duration
	logger  zerolog.Logger
}

func NewWorker(target domain.ContainerTarget, source LogSource, coord *shutdown.Coordinator, tracker stateTracker, backoff time.Duration, logger zerolog.Logger) *Worker {
	return &Worker{
		target:  target,
		source:  source,
		coord:   coord,
		tracker: tracker,
		backoff: backoff,
		logger:  logger.With().Str("container", target.Name).Logger(),
	}
}

func (w *Worker) Run() {
	w.logger.Info().Str("path", w.target.RawLogPath).Msg("Starting log capture")
	defer func() {
		w.setState(domain.WorkerStateStopped)
		w.logger.Info().Msg("Stopped log capture")
	}()

	for !w.coord.Done() {
		w.setState(domain.WorkerStateAttaching)
		err := w.attachAndStream()
		if w.coord.Done() {
			return
		}
		w.logRetry(err)
		w.setState(domain.WorkerStateRetrying)
		if w.coord.Wait(w.backoff) {
			return
		}
	}
}

func (w *Worker) attachAndStream() error {
	if err := os.MkdirAll(filepath.Dir(w.target.RawLogPath), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	stream, err := w.source.Open(w.coord.Context(), w.target.Name)
	if err != nil {
		return err
	}
	defer stream.Close()

	f, err := os.OpenFile(w.target.RawLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open raw log: %w", err)
	}
	defer f.Close()

	w.setState(domain.WorkerStateStreaming)
	w.logger.Info().Msg("Streaming container logs")
	return w.copyLines(f, stream)
}

// copyLines appends every line of src to dst, newline-terminated. Invalid
// UTF-8 is replaced with U+FFFD. Each line is a single write on an unbuffered
// file so readers see it immediately.
func (w *Worker) copyLines(dst io.Writer, src io.Reader) error {
	r := bufio.NewReader(transform.NewReader(src, unicode.UTF8.NewDecoder()))
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			if _, werr := io.WriteString(dst, line+"\n"); werr != nil {
				return fmt.Errorf("write raw log: %w", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrStreamEnded
			}
			return fmt.Errorf("read log stream: %w", err)
		}
		if w.coord.Done() {
			return nil
		}
	}
}

func (w *Worker) logRetry(err error) {
	switch {
	case err == nil:
		return
	case IsTargetNotFound(err):
		w.logger.Warn().Msgf("Container not found, retrying in %s", w.backoff)
	case errors.Is(err, ErrStreamEnded):
		w.logger.Warn().Msgf("Log stream ended, reattaching in %s", w.backoff)
	default:
		w.logger.Error().Err(err).Msgf("Log capture failed, retrying in %s", w.backoff)
	}
}

func (w *Worker) setState(s domain.WorkerState) {
	if w.tracker != nil {
		w.tracker.Set(w.target.Name, s)
	}
}
