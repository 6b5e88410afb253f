package capture

import (
	"github.com/docker/docker/api/types/container"
)

func logsOptions(tail string) container.LogsOptions {
	if tail == "" {
		tail = "all"
	}
	return container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Timestamps: true,
		Tail:       tail,
	}
}

// containerID prefers the resolved id so a recreated container is not picked up mid-attach.
func containerID(name string, info container.InspectResponse) string {
	if info.ContainerJSONBase != nil && info.ID != "" {
		return info.ID
	}
	return name
}

// isTTY reports whether the container log stream is raw rather than multiplexed.
func isTTY(info container.InspectResponse) bool {
	return info.Config != nil && info.Config.Tty
}
