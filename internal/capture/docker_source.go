package capture

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
)

// DockerSource streams container logs from the Docker Engine API.
type DockerSource struct {
	logger zerolog.Logger
	cli    dockerClient
	tail   string
}

func NewDockerSource(cli dockerClient, tail string, logger zerolog.Logger) *DockerSource {
	return &DockerSource{
		logger: logger,
		cli:    cli,
		tail:   tail,
	}
}

func (ds *DockerSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	info, err := ds.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, NewTargetNotFoundError(name, err)
		}
		return nil, fmt.Errorf("inspect container %s: %w", name, err)
	}

	id := containerID(name, info)
	rc, err := ds.cli.ContainerLogs(ctx, id, logsOptions(ds.tail))
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, NewTargetNotFoundError(name, err)
		}
		return nil, fmt.Errorf("attach logs for %s: %w", name, err)
	}

	if isTTY(info) {
		ds.logger.Debug().Str("container", name).Msg("Attached to raw TTY log stream")
		return rc, nil
	}
	ds.logger.Debug().Str("container", name).Msg("Attached to multiplexed log stream")
	return newDemuxReader(rc), nil
}

func (ds *DockerSource) Close() error {
	return ds.cli.Close()
}

// demuxReader merges the stdout and stderr frames of a multiplexed stream
// into one byte stream.
type demuxReader struct {
	pr  *io.PipeReader
	src io.ReadCloser
}

func newDemuxReader(src io.ReadCloser) *demuxReader {
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, src)
		pw.CloseWithError(err) // nil err closes with io.EOF
	}()
	return &demuxReader{pr: pr, src: src}
}

func (d *demuxReader) Read(p []byte) (int, error) {
	return d.pr.Read(p)
}

func (d *demuxReader) Close() error {
	err := d.src.Close()
	d.pr.Close()
	return err
}
