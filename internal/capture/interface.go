package capture

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/container"

	"github.com/auto-dns/docker-log-sentry/internal/domain"
)

type dockerClient interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	Close() error
}

// LogSource attaches to the live log stream of a container by name.
//
// Open returns a *TargetNotFoundError when the container does not exist. The
// returned reader yields timestamped log lines and reaches EOF when the
// container stops or the connection drops. Cancelling ctx ends the stream.
type LogSource interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

type stateTracker interface {
	Set(name string, state domain.WorkerState)
}
