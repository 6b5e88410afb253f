package classify

import "github.com/auto-dns/docker-log-sentry/internal/domain"

type stateTracker interface {
	Set(name string, state domain.WorkerState)
}
