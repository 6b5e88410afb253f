package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/rs/zerolog"
)

const (
	createdByTag   = "created_by"
	createdByValue = "docker-log-sentry"
)

type rdsAPI interface {
	CreateDBSnapshot(ctx context.Context, params *rds.CreateDBSnapshotInput, optFns ...func(*rds.Options)) (*rds.CreateDBSnapshotOutput, error)
	DescribeDBSnapshots(ctx context.Context, params *rds.DescribeDBSnapshotsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBSnapshotsOutput, error)
	ListTagsForResource(ctx context.Context, params *rds.ListTagsForResourceInput, optFns ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error)
	DeleteDBSnapshot(ctx context.Context, params *rds.DeleteDBSnapshotInput, optFns ...func(*rds.Options)) (*rds.DeleteDBSnapshotOutput, error)
}

// RDSSnapshotter takes manual snapshots of one RDS instance. Cleanup only
// ever touches snapshots carrying its created_by tag.
type RDSSnapshotter struct {
	client     rdsAPI
	instanceID string
	policy     Policy
	now        func() time.Time
	logger     zerolog.Logger
}

func NewRDSSnapshotter(client rdsAPI, instanceID string, policy Policy, logger zerolog.Logger) *RDSSnapshotter {
	return &RDSSnapshotter{
		client:     client,
		instanceID: instanceID,
		policy:     policy,
		now:        time.Now,
		logger:     logger.With().Str("snapshotter", "rds").Logger(),
	}
}

func (r *RDSSnapshotter) Name() string { return "rds" }

// Snapshot starts a snapshot named <instance>-YYYYmmdd-HHMMSS and returns its
// identifier. Creation continues asynchronously on the AWS side.
func (r *RDSSnapshotter) Snapshot(ctx context.Context, trigger string) (string, error) {
	if r.instanceID == "" {
		r.logger.Warn().Msg("RDS instance id not set, skipping RDS snapshot")
		return "", ErrSkipped
	}
	now := r.now().UTC()
	id := fmt.Sprintf("%s-%s", r.instanceID, now.Format("20060102-150405"))

	r.logger.Info().Str("trigger", trigger).Msgf("Creating RDS snapshot: %s", id)
	_, err := r.client.CreateDBSnapshot(ctx, &rds.CreateDBSnapshotInput{
		DBSnapshotIdentifier: aws.String(id),
		DBInstanceIdentifier: aws.String(r.instanceID),
		Tags: []types.Tag{
			{Key: aws.String("trigger"), Value: aws.String(trigger)},
			{Key: aws.String(createdByTag), Value: aws.String(createdByValue)},
			{Key: aws.String("timestamp"), Value: aws.String(now.Format(time.RFC3339))},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create RDS snapshot %s: %w", id, err)
	}
	r.logger.Info().Msgf("RDS snapshot '%s' creation initiated", id)
	return id, nil
}

// Cleanup deletes our manual snapshots that the retention policy drops and
// returns their identifiers.
func (r *RDSSnapshotter) Cleanup(ctx context.Context) ([]string, error) {
	if r.instanceID == "" {
		return nil, nil
	}
	owned, err := r.ownedSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	_, drop := r.policy.Apply(owned, r.now())
	var deleted []string
	for _, it := range drop {
		r.logger.Info().Msgf("Deleting RDS snapshot: %s", it.ID)
		if _, err := r.client.DeleteDBSnapshot(ctx, &rds.DeleteDBSnapshotInput{
			DBSnapshotIdentifier: aws.String(it.ID),
		}); err != nil {
			return deleted, fmt.Errorf("delete RDS snapshot %s: %w", it.ID, err)
		}
		deleted = append(deleted, it.ID)
	}
	return deleted, nil
}

func (r *RDSSnapshotter) ownedSnapshots(ctx context.Context) ([]Item, error) {
	paginator := rds.NewDescribeDBSnapshotsPaginator(r.client, &rds.DescribeDBSnapshotsInput{
		DBInstanceIdentifier: aws.String(r.instanceID),
		SnapshotType:         aws.String("manual"),
	})

	var owned []Item
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe RDS snapshots: %w", err)
		}
		for _, snap := range page.DBSnapshots {
			ours, err := r.isOwned(ctx, snap)
			if err != nil {
				return nil, err
			}
			if ours {
				owned = append(owned, Item{
					ID:      aws.ToString(snap.DBSnapshotIdentifier),
					Created: aws.ToTime(snap.SnapshotCreateTime),
				})
			}
		}
	}
	return owned, nil
}

func (r *RDSSnapshotter) isOwned(ctx context.Context, snap types.DBSnapshot) (bool, error) {
	resp, err := r.client.ListTagsForResource(ctx, &rds.ListTagsForResourceInput{
		ResourceName: snap.DBSnapshotArn,
	})
	if err != nil {
		return false, fmt.Errorf("list tags for %s: %w", aws.ToString(snap.DBSnapshotIdentifier), err)
	}
	for _, tag := range resp.TagList {
		if aws.ToString(tag.Key) == createdByTag && aws.ToString(tag.Value) == createdByValue {
			return true, nil
		}
	}
	return false, nil
}
