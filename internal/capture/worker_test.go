package capture

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
	"gotest.tools/v3/poll"

	"github.com/auto-dns/docker-log-sentry/internal/domain"
	"github.com/auto-dns/docker-log-sentry/internal/shutdown"
	"github.com/auto-dns/docker-log-sentry/internal/state"
	"github.com/auto-dns/docker-log-sentry/internal/util"
)

func startWorker(t *testing.T, root string, source LogSource, backoff time.Duration) (*shutdown.Coordinator, *state.MemoryState, <-chan struct{}, domain.ContainerTarget) {
	t.Helper()
	coord := shutdown.New(context.Background())
	tracker := state.NewMemoryState()
	target := domain.NewContainerTarget(root, "/web")
	w := NewWorker(target, source, coord, tracker, backoff, zerolog.Nop())
	done := util.Go(zerolog.Nop(), "test", w.Run)
	t.Cleanup(func() {
		coord.Trigger()
		util.Join(done, 5*time.Second)
	})
	return coord, tracker, done, target
}

func TestWorkerWritesEveryLineInOrder(t *testing.T) {
	dir := fs.NewDir(t, "capture")
	defer dir.Remove()

	source := newFakeSource()
	source.add("/web", finiteStream("2025-01-01T00:00:00Z first\n2025-01-01T00:00:01Z second\n\nbad \xff byte\nno newline"))

	_, _, _, target := startWorker(t, dir.Path(), source, 10*time.Millisecond)

	assert.Equal(t, target.RawLogPath, dir.Join("web.log"))
	want := "2025-01-01T00:00:00Z first\n2025-01-01T00:00:01Z second\n\nbad � byte\nno newline\n"
	poll.WaitOn(t, fileContains(target.RawLogPath, want), poll.WithTimeout(5*time.Second), poll.WithDelay(10*time.Millisecond))
}

func TestWorkerRetriesUntilContainerAppears(t *testing.T) {
	dir := fs.NewDir(t, "capture")
	defer dir.Remove()

	source := newFakeSource()
	source.add("/web",
		failing(NewTargetNotFoundError("/web", errors.New("missing"))),
		failing(errors.New("connection refused")),
		followStream("hello\n"),
	)

	_, tracker, _, target := startWorker(t, dir.Path(), source, 10*time.Millisecond)

	poll.WaitOn(t, fileContains(target.RawLogPath, "hello\n"), poll.WithTimeout(5*time.Second), poll.WithDelay(10*time.Millisecond))
	assert.Equal(t, source.openCount("/web"), 3)
	st, _ := tracker.Get("/web")
	assert.Equal(t, st, domain.WorkerStateStreaming)
}

func TestWorkerAppendsAcrossReconnects(t *testing.T) {
	dir := fs.NewDir(t, "capture", fs.WithFile("web.log", "previous run\n"))
	defer dir.Remove()

	source := newFakeSource()
	source.add("/web", finiteStream("one\n"), finiteStream("two\n"))

	_, _, _, target := startWorker(t, dir.Path(), source, 10*time.Millisecond)

	poll.WaitOn(t, fileContains(target.RawLogPath, "previous run\none\ntwo\n"), poll.WithTimeout(5*time.Second), poll.WithDelay(10*time.Millisecond))
}

func TestWorkerStopsDuringBackoff(t *testing.T) {
	dir := fs.NewDir(t, "capture")
	defer dir.Remove()

	coord, tracker, done, _ := startWorker(t, dir.Path(), newFakeSource(), time.Hour)

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if st, _ := tracker.Get("/web"); st != domain.WorkerStateRetrying {
			return poll.Continue("state is %s", st)
		}
		return poll.Success()
	}, poll.WithTimeout(5*time.Second), poll.WithDelay(5*time.Millisecond))

	start := time.Now()
	coord.Trigger()
	assert.Assert(t, util.Join(done, 2*time.Second))
	assert.Assert(t, time.Since(start) < 2*time.Second)
	st, _ := tracker.Get("/web")
	assert.Equal(t, st, domain.WorkerStateStopped)
}

func TestWorkerStopsWhileStreaming(t *testing.T) {
	dir := fs.NewDir(t, "capture")
	defer dir.Remove()

	source := newFakeSource()
	source.add("/web", followStream("up\n"))
	coord, _, done, target := startWorker(t, dir.Path(), source, time.Hour)

	poll.WaitOn(t, fileContains(target.RawLogPath, "up\n"), poll.WithTimeout(5*time.Second), poll.WithDelay(10*time.Millisecond))
	coord.Trigger()
	assert.Assert(t, util.Join(done, 2*time.Second))
}

func TestWorkerRetriesWhenLogDirUnusable(t *testing.T) {
	dir := fs.NewDir(t, "capture", fs.WithFile("blocker", ""))
	defer dir.Remove()

	source := newFakeSource()
	coord := shutdown.New(context.Background())
	tracker := state.NewMemoryState()
	// The parent of the raw log is a regular file, so the directory cannot be created.
	target := domain.NewContainerTarget(dir.Join("blocker"), "web")
	w := NewWorker(target, source, coord, tracker, 10*time.Millisecond, zerolog.Nop())
	done := util.Go(zerolog.Nop(), "test", w.Run)

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if st, _ := tracker.Get("web"); st != domain.WorkerStateRetrying {
			return poll.Continue("state is %s", st)
		}
		return poll.Success()
	}, poll.WithTimeout(5*time.Second), poll.WithDelay(5*time.Millisecond))
	assert.Equal(t, source.openCount("web"), 0)

	coord.Trigger()
	assert.Assert(t, util.Join(done, 2*time.Second))
}

func TestCopyLinesReportsStreamEnd(t *testing.T) {
	w := NewWorker(domain.ContainerTarget{Name: "x"}, nil, shutdown.New(context.Background()), nil, 0, zerolog.Nop())
	var out bytes.Buffer
	err := w.copyLines(&out, strings.NewReader("a\r\nb\n"))
	assert.ErrorIs(t, err, ErrStreamEnded)
	assert.Equal(t, out.String(), "a\r\nb\n")
}

func TestCopyLinesSurfacesWriteFailure(t *testing.T) {
	dir := fs.NewDir(t, "capture", fs.WithFile("ro.log", ""))
	defer dir.Remove()
	f, err := os.Open(dir.Join("ro.log"))
	assert.NilError(t, err)
	defer f.Close()

	w := NewWorker(domain.ContainerTarget{Name: "x"}, nil, shutdown.New(context.Background()), nil, 0, zerolog.Nop())
	err = w.copyLines(f, strings.NewReader("a\n"))
	assert.ErrorContains(t, err, "write raw log")
}
