package classify

import (
	"io"
	"os"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/poll"

	"github.com/auto-dns/docker-log-sentry/internal/domain"
	"github.com/auto-dns/docker-log-sentry/internal/shutdown"
	"github.com/auto-dns/docker-log-sentry/internal/state"
)

func appendTo(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	assert.NilError(t, err)
	defer f.Close()
	_, err = f.WriteString(content)
	assert.NilError(t, err)
}

func readFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

func hasContent(path, want string) func(poll.LogT) poll.Result {
	return func(poll.LogT) poll.Result {
		if got := readFile(path); got != want {
			return poll.Continue("content is %q, want %q", got, want)
		}
		return poll.Success()
	}
}

func inState(tracker *state.MemoryState, name string, want domain.WorkerState) func(poll.LogT) poll.Result {
	return func(poll.LogT) poll.Result {
		if got, _ := tracker.Get(name); got != want {
			return poll.Continue("%s is %s, want %s", name, got, want)
		}
		return poll.Success()
	}
}

// triggerOnEOF ends a follow loop once the underlying reader is drained.
type triggerOnEOF struct {
	r     io.Reader
	coord *shutdown.Coordinator
}

func (t triggerOnEOF) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err == io.EOF {
		t.coord.Trigger()
	}
	return n, err
}
