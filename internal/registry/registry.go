package registry

import (
	"context"
	"time"

	"github.com/auto-dns/docker-log-sentry/internal/domain"
)

// Heartbeat is the liveness report of one host's capture workers.
type Heartbeat struct {
	Hostname string                        `json:"hostname"`
	Alive    []string                      `json:"alive"`
	Workers  map[string]domain.WorkerState `json:"workers"`
	Updated  time.Time                     `json:"updated"`
}

type Registry interface {
	Publish(ctx context.Context, hb Heartbeat) error
	List(ctx context.Context) ([]Heartbeat, error)
	Close(ctx context.Context) error
}
