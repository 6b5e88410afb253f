package app

import (
	"context"
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	dockerCli "github.com/docker/docker/client"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/multierr"

	"github.com/auto-dns/docker-log-sentry/internal/capture"
	"github.com/auto-dns/docker-log-sentry/internal/config"
	"github.com/auto-dns/docker-log-sentry/internal/core"
	"github.com/auto-dns/docker-log-sentry/internal/registry"
	"github.com/auto-dns/docker-log-sentry/internal/snapshot"
)

type App struct {
	dockerClient *dockerCli.Client
	etcdClient   *clientv3.Client
	engine       *core.Engine
	logger       zerolog.Logger
}

// New creates a new App by wiring up all dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	// Docker CLI
	dockerClient, err := dockerCli.NewClientWithOpts(dockerCli.FromEnv, dockerCli.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	source := capture.NewDockerSource(dockerClient, cfg.Capture.Tail, logger)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	// etcd CLI, only when a heartbeat registry is configured
	var etcdClient *clientv3.Client
	var reg registry.Registry
	if len(cfg.Etcd.Endpoints) > 0 {
		etcdClient, err = clientv3.New(clientv3.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: time.Duration(cfg.Etcd.DialTimeout * float64(time.Second)),
		})
		if err != nil {
			dockerClient.Close()
			return nil, fmt.Errorf("failed to connect to etcd: %w", err)
		}
		reg = registry.NewEtcdRegistry(etcdClient, &cfg.Etcd, hostname, logger)
	}

	engine := core.NewEngine(logger, cfg, source, reg, hostname)

	return &App{
		dockerClient: dockerClient,
		etcdClient:   etcdClient,
		engine:       engine,
		logger:       logger,
	}, nil
}

// Run starts the application by running the pipeline engine.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info().Msg("Application starting")
	return a.engine.Run(ctx)
}

func (a *App) Close() error {
	var err error
	if a.dockerClient != nil {
		if cerr := a.dockerClient.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close docker client: %w", cerr))
		}
	}
	if a.etcdClient != nil {
		if cerr := a.etcdClient.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close etcd client: %w", cerr))
		}
	}
	return err
}

// NewSnapshotRunner wires the RDS and SQLite snapshotters. AWS credentials
// are only resolved when an RDS instance is configured.
func NewSnapshotRunner(ctx context.Context, cfg *config.SnapshotConfig, logger zerolog.Logger) (*snapshot.Runner, error) {
	policy := snapshot.Policy{
		Daily:   cfg.RetentionDaily,
		Weekly:  cfg.RetentionWeekly,
		Monthly: cfg.RetentionMonthly,
	}

	var rdsClient *rds.Client
	if cfg.RDSInstanceID != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		rdsClient = rds.NewFromConfig(awsCfg)
	}

	return snapshot.NewRunner(logger,
		snapshot.NewRDSSnapshotter(rdsClient, cfg.RDSInstanceID, policy, logger),
		snapshot.NewSQLiteBackup(afero.NewOsFs(), cfg.SQLitePath, cfg.BackupDir, policy, logger),
	), nil
}
