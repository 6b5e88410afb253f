package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/auto-dns/docker-log-sentry/internal/config"
)

type etcdClient interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
}

// EtcdRegistry keeps one leased key per host so that a host which stops
// reporting disappears once its lease expires.
type EtcdRegistry struct {
	client   etcdClient
	cfg      *config.EtcdConfig
	hostname string
	logger   zerolog.Logger

	mu    sync.Mutex
	lease clientv3.LeaseID
}

func NewEtcdRegistry(client etcdClient, cfg *config.EtcdConfig, hostname string, logger zerolog.Logger) *EtcdRegistry {
	return &EtcdRegistry{
		client:   client,
		cfg:      cfg,
		hostname: hostname,
		logger:   logger,
	}
}

func (er *EtcdRegistry) key() string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(er.cfg.HeartbeatPrefix, "/"), er.hostname)
}

// Publish writes the heartbeat under a fresh lease and revokes the previous one.
func (er *EtcdRegistry) Publish(ctx context.Context, hb Heartbeat) error {
	hb.Hostname = er.hostname
	value, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}

	leaseResp, err := er.client.Grant(ctx, er.cfg.HeartbeatTTL)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}
	if _, err := er.client.Put(ctx, er.key(), string(value), clientv3.WithLease(leaseResp.ID)); err != nil {
		return fmt.Errorf("put heartbeat: %w", err)
	}

	er.mu.Lock()
	previous := er.lease
	er.lease = leaseResp.ID
	er.mu.Unlock()

	if previous != clientv3.NoLease {
		if _, err := er.client.Revoke(ctx, previous); err != nil {
			er.logger.Warn().Err(err).Msgf("[etcd_registry] Failed to revoke previous lease %x", int64(previous))
		}
	}
	return nil
}

// List returns the heartbeats of every host under the configured prefix.
func (er *EtcdRegistry) List(ctx context.Context) ([]Heartbeat, error) {
	prefix := strings.TrimRight(er.cfg.HeartbeatPrefix, "/") + "/"
	resp, err := er.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	var out []Heartbeat
	for _, kv := range resp.Kvs {
		var hb Heartbeat
		if err := json.Unmarshal(kv.Value, &hb); err != nil {
			er.logger.Error().Err(err).Msgf("[etcd_registry] Failed to parse key: %s", string(kv.Key))
			continue
		}
		out = append(out, hb)
	}
	return out, nil
}

// Close revokes the current lease, removing this host's key. The client
// itself is owned by the caller.
func (er *EtcdRegistry) Close(ctx context.Context) error {
	er.mu.Lock()
	lease := er.lease
	er.lease = clientv3.NoLease
	er.mu.Unlock()

	if lease == clientv3.NoLease {
		return nil
	}
	if _, err := er.client.Revoke(ctx, lease); err != nil {
		return fmt.Errorf("revoke heartbeat lease: %w", err)
	}
	return nil
}
