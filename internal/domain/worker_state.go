package domain

type WorkerState string

const (
	// Capture side
	WorkerStateAttaching WorkerState = "attaching"
	WorkerStateStreaming WorkerState = "streaming"
	WorkerStateRetrying  WorkerState = "retrying"

	// Classifier side
	WorkerStateWaiting WorkerState = "waiting"
	WorkerStateTailing WorkerState = "tailing"

	WorkerStateStopped WorkerState = "stopped"
)

// IsAlive reports whether a worker in this state has not yet terminated.
func (ws WorkerState) IsAlive() bool {
	return ws != WorkerStateStopped && ws != ""
}
