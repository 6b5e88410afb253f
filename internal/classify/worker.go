package classify

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-log-sentry/internal/domain"
	"github.com/auto-dns/docker-log-sentry/internal/rules"
	"github.com/auto-dns/docker-log-sentry/internal/shutdown"
)

// Worker tails one raw log file from its end and appends the lines its
// source's predicate keeps to the matching important file.
type Worker struct {
	name          string
	rawPath       string
	importantPath string
	source        domain.SourceType
	isImportant   rules.Predicate

	coord        *shutdown.Coordinator
	tracker      stateTracker
	pollInterval time.Duration
	slice        time.Duration
	logger       zerolog.Logger
}

func NewWorker(root, filename string, coord *shutdown.Coordinator, tracker stateTracker, pollInterval, slice time.Duration, logger zerolog.Logger) *Worker {
	source := rules.DetectSource(filename)
	return &Worker{
		name:          filename,
		rawPath:       filepath.Join(root, filename),
		importantPath: domain.ImportantLogPath(root, filename),
		source:        source,
		isImportant:   rules.For(source),
		coord:         coord,
		tracker:       tracker,
		pollInterval:  pollInterval,
		slice:         slice,
		logger:        logger.With().Str("file", filename).Str("source", string(source)).Logger(),
	}
}

func (w *Worker) Source() domain.SourceType {
	return w.source
}

func (w *Worker) Run() {
	w.logger.Info().Str("output", w.importantPath).Msg("Filtering raw log")
	defer func() {
		w.setState(domain.WorkerStateStopped)
		w.logger.Info().Msg("Stopped filtering")
	}()

	for !w.coord.Done() {
		err := w.tail()
		if err == nil || w.coord.Done() {
			return
		}
		w.logger.Error().Err(err).Msgf("Filtering failed, retrying in %s", w.pollInterval)
		w.setState(domain.WorkerStateWaiting)
		if w.coord.Wait(w.pollInterval) {
			return
		}
	}
}

// tail returns nil only on shutdown.
func (w *Worker) tail() error {
	w.setState(domain.WorkerStateWaiting)
	for {
		_, err := os.Stat(w.rawPath)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat raw log: %w", err)
		}
		if w.coord.Wait(w.pollInterval) {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(w.importantPath), 0o755); err != nil {
		return fmt.Errorf("create important dir: %w", err)
	}
	out, err := os.OpenFile(w.importantPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open important log: %w", err)
	}
	defer out.Close()

	in, err := os.Open(w.rawPath)
	if err != nil {
		return fmt.Errorf("open raw log: %w", err)
	}
	defer in.Close()

	// Only lines written after attach are considered.
	if _, err := in.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek raw log: %w", err)
	}

	w.setState(domain.WorkerStateTailing)
	return w.follow(in, out)
}

// follow classifies complete lines from in as they appear. A trailing
// partial line is held back until its newline arrives.
func (w *Worker) follow(in io.Reader, out io.Writer) error {
	r := bufio.NewReader(in)
	var pending []byte
	for {
		if w.coord.Done() {
			return nil
		}
		chunk, err := r.ReadBytes('\n')
		pending = append(pending, chunk...)
		if err == nil {
			line := pending
			pending = nil
			if w.isImportant(string(line)) {
				if _, werr := out.Write(line); werr != nil {
					return fmt.Errorf("write important log: %w", werr)
				}
			}
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("read raw log: %w", err)
		}
		if w.coord.Wait(w.slice) {
			return nil
		}
	}
}

func (w *Worker) setState(s domain.WorkerState) {
	if w.tracker != nil {
		w.tracker.Set(w.name, s)
	}
}
