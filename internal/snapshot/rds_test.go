package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

type fakeRDS struct {
	created   []*rds.CreateDBSnapshotInput
	createErr error
	snapshots []types.DBSnapshot
	tags      map[string][]types.Tag
	deleted   []string
}

func (f *fakeRDS) CreateDBSnapshot(_ context.Context, in *rds.CreateDBSnapshotInput, _ ...func(*rds.Options)) (*rds.CreateDBSnapshotOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	return &rds.CreateDBSnapshotOutput{}, nil
}

func (f *fakeRDS) DescribeDBSnapshots(_ context.Context, _ *rds.DescribeDBSnapshotsInput, _ ...func(*rds.Options)) (*rds.DescribeDBSnapshotsOutput, error) {
	return &rds.DescribeDBSnapshotsOutput{DBSnapshots: f.snapshots}, nil
}

func (f *fakeRDS) ListTagsForResource(_ context.Context, in *rds.ListTagsForResourceInput, _ ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error) {
	return &rds.ListTagsForResourceOutput{TagList: f.tags[aws.ToString(in.ResourceName)]}, nil
}

func (f *fakeRDS) DeleteDBSnapshot(_ context.Context, in *rds.DeleteDBSnapshotInput, _ ...func(*rds.Options)) (*rds.DeleteDBSnapshotOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.DBSnapshotIdentifier))
	return &rds.DeleteDBSnapshotOutput{}, nil
}

func (f *fakeRDS) addSnapshot(id string, created time.Time, ours bool) {
	arn := "arn:aws:rds:us-west-2:123:snapshot:" + id
	f.snapshots = append(f.snapshots, types.DBSnapshot{
		DBSnapshotIdentifier: aws.String(id),
		DBSnapshotArn:        aws.String(arn),
		SnapshotCreateTime:   aws.Time(created),
	})
	if ours {
		f.tags[arn] = []types.Tag{{Key: aws.String(createdByTag), Value: aws.String(createdByValue)}}
	}
}

func tagValue(tags []types.Tag, key string) string {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == key {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}

func TestRDSSnapshotCreatesTaggedSnapshot(t *testing.T) {
	client := &fakeRDS{}
	r := NewRDSSnapshotter(client, "flask-db", Policy{}, zerolog.Nop())
	r.now = func() time.Time { return time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC) }

	id, err := r.Snapshot(context.Background(), "manual")
	assert.NilError(t, err)
	assert.Equal(t, id, "flask-db-20250601-030000")

	assert.Assert(t, is.Len(client.created, 1))
	in := client.created[0]
	assert.Equal(t, aws.ToString(in.DBInstanceIdentifier), "flask-db")
	assert.Equal(t, tagValue(in.Tags, "trigger"), "manual")
	assert.Equal(t, tagValue(in.Tags, "created_by"), "docker-log-sentry")
	assert.Equal(t, tagValue(in.Tags, "timestamp"), "2025-06-01T03:00:00Z")
}

func TestRDSSnapshotSkipsWithoutInstance(t *testing.T) {
	client := &fakeRDS{}
	_, err := NewRDSSnapshotter(client, "", Policy{}, zerolog.Nop()).Snapshot(context.Background(), "manual")
	assert.Check(t, errors.Is(err, ErrSkipped))
	assert.Check(t, is.Len(client.created, 0))
}

func TestRDSSnapshotWrapsError(t *testing.T) {
	client := &fakeRDS{createErr: errors.New("SnapshotQuotaExceeded")}
	_, err := NewRDSSnapshotter(client, "flask-db", Policy{}, zerolog.Nop()).Snapshot(context.Background(), "manual")
	assert.ErrorContains(t, err, "SnapshotQuotaExceeded")
}

func TestRDSCleanupOnlyTouchesOwnedSnapshots(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeRDS{tags: map[string][]types.Tag{}}
	client.addSnapshot("ours-new", now.Add(-time.Hour), true)
	client.addSnapshot("ours-old", now.Add(-2*time.Hour), true)
	client.addSnapshot("foreign", now.Add(-3*time.Hour), false)

	r := NewRDSSnapshotter(client, "flask-db", Policy{Daily: 1}, zerolog.Nop())
	r.now = func() time.Time { return now }

	deleted, err := r.Cleanup(context.Background())
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(deleted, []string{"ours-old"}))
	assert.Check(t, is.DeepEqual(client.deleted, []string{"ours-old"}))
}
