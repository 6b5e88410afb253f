package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"gotest.tools/v3/poll"
)

// openFunc produces the result of one Open call.
type openFunc func(ctx context.Context) (io.ReadCloser, error)

// fakeSource replays scripted Open results per container and reports not
// found once a script is exhausted.
type fakeSource struct {
	mu      sync.Mutex
	scripts map[string][]openFunc
	opens   map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		scripts: make(map[string][]openFunc),
		opens:   make(map[string]int),
	}
}

func (src *fakeSource) add(name string, fns ...openFunc) {
	src.mu.Lock()
	defer src.mu.Unlock()
	src.scripts[name] = append(src.scripts[name], fns...)
}

func (src *fakeSource) openCount(name string) int {
	src.mu.Lock()
	defer src.mu.Unlock()
	return src.opens[name]
}

func (src *fakeSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	src.mu.Lock()
	src.opens[name]++
	var fn openFunc
	if script := src.scripts[name]; len(script) > 0 {
		fn = script[0]
		src.scripts[name] = script[1:]
	}
	src.mu.Unlock()

	if fn == nil {
		return nil, NewTargetNotFoundError(name, errors.New("no such container"))
	}
	return fn(ctx)
}

func finiteStream(content string) openFunc {
	return func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}
}

// followStream writes content and then holds the stream open until ctx ends.
func followStream(content string) openFunc {
	return func(ctx context.Context) (io.ReadCloser, error) {
		pr, pw := io.Pipe()
		go func() {
			if _, err := io.WriteString(pw, content); err != nil {
				return
			}
			<-ctx.Done()
			pw.CloseWithError(ctx.Err())
		}()
		return pr, nil
	}
}

func failing(err error) openFunc {
	return func(context.Context) (io.ReadCloser, error) {
		return nil, err
	}
}

func fileContains(path, want string) func(poll.LogT) poll.Result {
	return func(poll.LogT) poll.Result {
		b, err := os.ReadFile(path)
		if err != nil {
			return poll.Continue("reading %s: %v", path, err)
		}
		if string(b) != want {
			return poll.Continue("content is %q, want %q", string(b), want)
		}
		return poll.Success()
	}
}
